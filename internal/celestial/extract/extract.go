// Package extract coerces freeform generative-model text into typed
// records. Models routinely wrap JSON in prose or code fences, so the
// structure is located by bracket matching rather than assuming the text
// starts or ends with it. Every response is untrusted input: a successful
// parse is not success until the shape checks out.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/skycal/celestial-data-aggregation/internal/celestial"
)

// Events parses an event list out of a text blob and filters it: every
// upcoming event must carry a date strictly later than today at filter
// time; unparseable or past-dated upcoming events are dropped, not kept
// with a warning. Historical events are retained regardless of date
// parseability.
func Events(text string, now time.Time) ([]celestial.CelestialEvent, error) {
	raw, ok := firstBalanced(text, '[', ']')
	if !ok {
		return nil, fmt.Errorf("%w: no JSON array found", celestial.ErrUnparseableText)
	}

	var events []celestial.CelestialEvent
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return nil, fmt.Errorf("%w: %v", celestial.ErrUnparseableText, err)
	}

	for _, ev := range events {
		if ev.Title == "" {
			return nil, fmt.Errorf("%w: event missing title", celestial.ErrSchemaMismatch)
		}
		if ev.Kind != celestial.EventUpcoming && ev.Kind != celestial.EventHistorical {
			return nil, fmt.Errorf("%w: unknown event kind %q", celestial.ErrSchemaMismatch, ev.Kind)
		}
	}

	return filterEvents(events, now), nil
}

func filterEvents(events []celestial.CelestialEvent, now time.Time) []celestial.CelestialEvent {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	kept := make([]celestial.CelestialEvent, 0, len(events))
	for _, ev := range events {
		if ev.Kind == celestial.EventHistorical {
			kept = append(kept, ev)
			continue
		}
		date, ok := parseEventDate(ev.Date)
		if !ok || !date.After(today) {
			continue
		}
		kept = append(kept, ev)
	}
	return kept
}

// eventDateLayouts only includes layouts carrying an explicit year. A bare
// month/day is ambiguous, and guessing a year risks fabricating a false
// "upcoming" claim, so those are rejected.
var eventDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	time.RFC3339,
}

func parseEventDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// News parses a news list out of a text blob.
func News(text string) ([]celestial.NewsItem, error) {
	raw, ok := firstBalanced(text, '[', ']')
	if !ok {
		return nil, fmt.Errorf("%w: no JSON array found", celestial.ErrUnparseableText)
	}

	var items []celestial.NewsItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", celestial.ErrUnparseableText, err)
	}

	for _, item := range items {
		if item.Headline == "" {
			return nil, fmt.Errorf("%w: news item missing headline", celestial.ErrSchemaMismatch)
		}
	}

	return items, nil
}

// Ephemeris parses a sun/moon times object out of a text blob. All four
// keys must be present and non-empty; a partial object is a schema
// mismatch so the caller's fallback replaces the whole field rather than
// mixing real and placeholder times.
func Ephemeris(text string) (celestial.EphemerisSnapshot, error) {
	raw, ok := firstBalanced(text, '{', '}')
	if !ok {
		return celestial.EphemerisSnapshot{}, fmt.Errorf("%w: no JSON object found", celestial.ErrUnparseableText)
	}

	var snapshot celestial.EphemerisSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return celestial.EphemerisSnapshot{}, fmt.Errorf("%w: %v", celestial.ErrUnparseableText, err)
	}

	if snapshot.Sunrise == "" || snapshot.Sunset == "" || snapshot.Moonrise == "" || snapshot.Moonset == "" {
		return celestial.EphemerisSnapshot{}, fmt.Errorf("%w: incomplete ephemeris object", celestial.ErrSchemaMismatch)
	}

	return snapshot, nil
}

// Reply returns a plain chat reply. No structure is expected, so the raw
// text is surfaced as-is, minus surrounding whitespace.
func Reply(text string) string {
	return strings.TrimSpace(text)
}

// firstBalanced returns the first substring of text that forms a
// syntactically balanced structure delimited by opener/closer, honoring JSON
// string and escape state so brackets inside string literals do not
// unbalance the scan.
func firstBalanced(text string, opener, closer byte) (string, bool) {
	start := strings.IndexByte(text, opener)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	return "", false
}
