package celestial

import (
	"fmt"
	"strings"
	"time"

	"github.com/skycal/celestial-data-aggregation/internal/common"
)

// DayFormat is the calendar-date wire format used by every provider.
const DayFormat = "2006-01-02"

// Coordinate is a resolved geographic position.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks the coordinate is within geographic bounds.
func (c Coordinate) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrValidationRejected, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrValidationRejected, c.Longitude)
	}
	return nil
}

// Key returns a canonical string key for indexing this coordinate in stores.
func (c Coordinate) Key() string {
	return fmt.Sprintf("%.4f:%.4f", c.Latitude, c.Longitude)
}

// PlaceName is a best-effort human-readable name for a Coordinate.
type PlaceName struct {
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// DaySelection is a calendar date with no time component.
type DaySelection struct {
	t time.Time
}

// NewDaySelection builds a DaySelection from a point in time, dropping the
// time-of-day component.
func NewDaySelection(t time.Time) DaySelection {
	return DaySelection{t: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDaySelection parses a YYYY-MM-DD string.
func ParseDaySelection(s string) (DaySelection, error) {
	t, err := time.Parse(DayFormat, s)
	if err != nil {
		return DaySelection{}, fmt.Errorf("%w: invalid date %q", ErrValidationRejected, s)
	}
	return NewDaySelection(t), nil
}

func (d DaySelection) String() string { return d.t.Format(DayFormat) }

// Time returns the midnight-UTC instant of the selected day.
func (d DaySelection) Time() time.Time { return d.t }

// BeforeDay reports whether the selection is strictly earlier than the
// calendar day containing now. The image-of-day provider has no data for
// the current or future day.
func (d DaySelection) BeforeDay(now time.Time) bool {
	return d.t.Before(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC))
}

// MediaKind classifies the media behind an image-of-day entry.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaOther MediaKind = "other"
)

// ClassifyMediaKind derives a MediaKind from the provider's media_type field
// and the media URL suffix.
func ClassifyMediaKind(mediaType, mediaURL string) MediaKind {
	switch mediaType {
	case "image":
		return MediaImage
	case "video":
		return MediaVideo
	}
	lower := strings.ToLower(mediaURL)
	if common.HasSuffixAny(lower, ".jpg", ".jpeg", ".png", ".gif") {
		return MediaImage
	}
	return MediaOther
}

// ImageOfDaySnapshot is the imagery record for one selected day.
// Immutable once created; a new date selection produces a new snapshot.
type ImageOfDaySnapshot struct {
	Title       string    `json:"title"`
	Explanation string    `json:"explanation"`
	MediaURL    string    `json:"mediaUrl"`
	MediaKind   MediaKind `json:"mediaKind"`
	Date        string    `json:"date"`
}

// EphemerisSnapshot holds sun and moon times for one day at one location.
// It is either fully populated from a provider or fully replaced by the
// demo placeholder; partial mixes are never produced.
type EphemerisSnapshot struct {
	Sunrise  string `json:"sunrise"`
	Sunset   string `json:"sunset"`
	Moonrise string `json:"moonrise"`
	Moonset  string `json:"moonset"`
}

// DemoEphemeris is the fixed placeholder substituted when every ephemeris
// path fails. The field is decorative, so a representative value beats a
// visible failure.
var DemoEphemeris = EphemerisSnapshot{
	Sunrise:  "06:12",
	Sunset:   "18:45",
	Moonrise: "20:10",
	Moonset:  "07:05",
}

// EventKind tags a celestial event as upcoming or historical.
type EventKind string

const (
	EventUpcoming   EventKind = "upcoming"
	EventHistorical EventKind = "historical"
)

// CelestialEvent is one extracted astronomical event.
type CelestialEvent struct {
	Title       string    `json:"title"`
	Date        string    `json:"date"`
	Description string    `json:"description"`
	Kind        EventKind `json:"type"`
}

// NewsItem is one extracted space news entry.
type NewsItem struct {
	Headline  string `json:"headline"`
	Brief     string `json:"brief"`
	SourceURL string `json:"source"`
}

// TurnAuthor identifies who produced a chat turn.
type TurnAuthor string

const (
	TurnUser      TurnAuthor = "user"
	TurnAssistant TurnAuthor = "assistant"
)

// ChatTurn is one entry in a conversation session's append-only log.
type ChatTurn struct {
	Author TurnAuthor `json:"author"`
	Text   string     `json:"text"`
}

// ThemeDecision is derived solely from the most recently analyzed image.
type ThemeDecision struct {
	IsDark bool `json:"isDark"`
}

// FieldStatus describes how one snapshot field resolved.
type FieldStatus string

const (
	StatusReady    FieldStatus = "ready"
	StatusFallback FieldStatus = "fallback"
	StatusEmpty    FieldStatus = "empty"
	StatusError    FieldStatus = "error"
)

// Snapshot is the assembled result for one (date, location) query. It is
// ready only once every field has resolved to a value or its fallback
// state; consumers never observe a partially updated snapshot.
type Snapshot struct {
	Date     string     `json:"date"`
	Location *Coordinate `json:"location,omitempty"`
	Place    *PlaceName  `json:"place,omitempty"`

	Image       *ImageOfDaySnapshot `json:"image,omitempty"`
	ImageStatus FieldStatus         `json:"imageStatus"`
	ImageError  string              `json:"imageError,omitempty"`

	Ephemeris       *EphemerisSnapshot `json:"ephemeris,omitempty"`
	EphemerisStatus FieldStatus        `json:"ephemerisStatus"`

	Events       []CelestialEvent `json:"events"`
	EventsStatus FieldStatus      `json:"eventsStatus"`

	News       []NewsItem  `json:"news"`
	NewsStatus FieldStatus `json:"newsStatus"`

	Theme ThemeDecision `json:"theme"`

	FetchedAt time.Time `json:"fetchedAt"`
}

// Key returns the cache key for this snapshot's (date, location) query.
func (s Snapshot) Key() string {
	return SnapshotKey(s.Date, s.Location)
}

// SnapshotKey builds the canonical cache key for a (date, location) query.
func SnapshotKey(date string, loc *Coordinate) string {
	if loc == nil {
		return date
	}
	return date + "@" + loc.Key()
}
