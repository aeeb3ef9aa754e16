// Package orchestrator coordinates the per-query provider fan-out and the
// fallback policy that keeps one field's failure from blocking the others.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skycal/celestial-data-aggregation/internal/celestial"
	"github.com/skycal/celestial-data-aggregation/internal/celestial/extract"
)

// Service assembles one consistent snapshot per (date, location) query.
// It exclusively owns the snapshot for the currently selected date; each
// new query produces a new snapshot that replaces the old one atomically.
type Service struct {
	imageProvider  celestial.ImageOfDayProvider
	ephemerisChain []celestial.EphemerisProvider
	generative     celestial.GenerativeProvider
	analyzer       celestial.ThemeAnalyzer
	store          celestial.Store
	now            func() time.Time

	// queryToken is the only shared mutable state guarding concurrent
	// fetches: written when a new query starts, read by every completion
	// path before committing (last-query-wins).
	queryToken atomic.Uint64

	mu      sync.RWMutex
	current *celestial.Snapshot

	recentMu sync.RWMutex
	recent   []celestial.ImageOfDaySnapshot
}

// NewService creates a Service. The ephemeris chain is tried in order; the
// demo placeholder is the final step of that chain.
func NewService(
	imageProvider celestial.ImageOfDayProvider,
	ephemerisChain []celestial.EphemerisProvider,
	generative celestial.GenerativeProvider,
	analyzer celestial.ThemeAnalyzer,
	store celestial.Store,
) *Service {
	return &Service{
		imageProvider:  imageProvider,
		ephemerisChain: ephemerisChain,
		generative:     generative,
		analyzer:       analyzer,
		store:          store,
		now:            time.Now,
	}
}

// Fetch produces the snapshot for one (date, location) query. The four
// field fetches run concurrently and degrade independently; the returned
// snapshot is complete in the sense that every field has resolved to a
// value or its fallback state. If a newer query starts before this one
// finishes, the result is discarded and ErrSuperseded returned.
func (s *Service) Fetch(ctx context.Context, date celestial.DaySelection, coord *celestial.Coordinate) (celestial.Snapshot, error) {
	token := s.queryToken.Add(1)

	key := celestial.SnapshotKey(date.String(), coord)
	if cached, err := s.store.Get(key); err == nil {
		if !s.commit(token, cached) {
			return cached, celestial.ErrSuperseded
		}
		return cached, nil
	}

	snap := celestial.Snapshot{
		Date:     date.String(),
		Location: coord,
		Events:   []celestial.CelestialEvent{},
		News:     []celestial.NewsItem{},
		Theme:    celestial.ThemeDecision{IsDark: true},
	}

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		s.fetchImage(ctx, date, &snap)
	}()
	go func() {
		defer wg.Done()
		s.fetchEphemeris(ctx, date, coord, &snap)
	}()
	go func() {
		defer wg.Done()
		s.fetchEvents(ctx, coord, &snap)
	}()
	go func() {
		defer wg.Done()
		s.fetchNews(ctx, &snap)
	}()

	wg.Wait()
	snap.FetchedAt = s.now().UTC()

	if !s.commit(token, snap) {
		log.Printf("orchestrator: discarding superseded result for %s", key)
		return snap, celestial.ErrSuperseded
	}

	// Only snapshots whose image field resolved are cached. A cached error
	// would pin a transient outage on that date for the whole retention
	// window; leaving it uncached lets the next query retry.
	if snap.ImageStatus != celestial.StatusError {
		s.store.Save(snap)
	}
	return snap, nil
}

// commit installs the snapshot as current only if no newer query has
// started since token was issued.
func (s *Service) commit(token uint64, snap celestial.Snapshot) bool {
	if s.queryToken.Load() != token {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &snap
	return true
}

// Current returns the most recently committed snapshot, if any.
func (s *Service) Current() (celestial.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return celestial.Snapshot{}, false
	}
	return *s.current, true
}

// HistoricalEvents returns the validated historical events from the
// current snapshot, for use as conversation context.
func (s *Service) HistoricalEvents() []celestial.CelestialEvent {
	snap, ok := s.Current()
	if !ok {
		return nil
	}
	var events []celestial.CelestialEvent
	for _, ev := range snap.Events {
		if ev.Kind == celestial.EventHistorical {
			events = append(events, ev)
		}
	}
	return events
}

func (s *Service) fetchImage(ctx context.Context, date celestial.DaySelection, snap *celestial.Snapshot) {
	img, err := s.imageProvider.Fetch(ctx, date)
	if err != nil {
		// Date-specific imagery cannot be fabricated; surface the failure.
		log.Printf("orchestrator: image-of-day fetch failed for %s: %v", date, err)
		snap.ImageStatus = celestial.StatusError
		snap.ImageError = err.Error()
		return
	}

	snap.Image = &img
	snap.ImageStatus = celestial.StatusReady

	// Videos and other non-raster media default to dark and never reach
	// pixel analysis.
	if img.MediaKind == celestial.MediaImage {
		snap.Theme = celestial.ThemeDecision{IsDark: s.analyzer.IsDark(ctx, img.MediaURL)}
	}
}

func (s *Service) fetchEphemeris(ctx context.Context, date celestial.DaySelection, coord *celestial.Coordinate, snap *celestial.Snapshot) {
	if coord == nil {
		// No coordinate, no network call; the field stays unpopulated.
		snap.EphemerisStatus = celestial.StatusEmpty
		return
	}

	for _, provider := range s.ephemerisChain {
		eph, err := provider.Fetch(ctx, *coord, date)
		if err != nil {
			log.Printf("orchestrator: ephemeris provider %s failed: %v", provider.Name(), err)
			continue
		}
		snap.Ephemeris = &eph
		snap.EphemerisStatus = celestial.StatusReady
		return
	}

	// Ephemeris display is decorative; a representative placeholder beats
	// visible failure.
	placeholder := celestial.DemoEphemeris
	snap.Ephemeris = &placeholder
	snap.EphemerisStatus = celestial.StatusFallback
}

func (s *Service) fetchEvents(ctx context.Context, coord *celestial.Coordinate, snap *celestial.Snapshot) {
	text, err := s.generative.Generate(ctx, eventsPrompt(coord))
	if err != nil {
		log.Printf("orchestrator: events fetch failed: %v", err)
		snap.EventsStatus = celestial.StatusEmpty
		return
	}

	events, err := extract.Events(text, s.now())
	if err != nil {
		// Fabricating astronomical claims would be misleading; empty wins.
		log.Printf("orchestrator: events extraction failed: %v", err)
		snap.EventsStatus = celestial.StatusEmpty
		return
	}

	snap.Events = events
	snap.EventsStatus = celestial.StatusReady
}

func (s *Service) fetchNews(ctx context.Context, snap *celestial.Snapshot) {
	text, err := s.generative.Generate(ctx, newsPrompt())
	if err != nil {
		log.Printf("orchestrator: news fetch failed: %v", err)
		snap.NewsStatus = celestial.StatusEmpty
		return
	}

	items, err := extract.News(text)
	if err != nil {
		log.Printf("orchestrator: news extraction failed: %v", err)
		snap.NewsStatus = celestial.StatusEmpty
		return
	}

	snap.News = items
	snap.NewsStatus = celestial.StatusReady
}

// RefreshRecentImages fetches the image-only window of the last `days`
// image-of-day entries, ending yesterday. Called periodically by the
// scheduler so the calendar surface has warm thumbnails.
func (s *Service) RefreshRecentImages(ctx context.Context, days int) error {
	if days <= 0 {
		return fmt.Errorf("days must be greater than zero")
	}

	end := celestial.NewDaySelection(s.now().AddDate(0, 0, -1))
	start := celestial.NewDaySelection(end.Time().AddDate(0, 0, -(days - 1)))

	snapshots, err := s.imageProvider.FetchRange(ctx, start, end)
	if err != nil {
		return err
	}

	images := make([]celestial.ImageOfDaySnapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		if snap.MediaKind == celestial.MediaImage {
			images = append(images, snap)
		}
	}

	s.recentMu.Lock()
	s.recent = images
	s.recentMu.Unlock()
	return nil
}

// RecentImages returns the most recently refreshed imagery window.
func (s *Service) RecentImages() []celestial.ImageOfDaySnapshot {
	s.recentMu.RLock()
	defer s.recentMu.RUnlock()
	out := make([]celestial.ImageOfDaySnapshot, len(s.recent))
	copy(out, s.recent)
	return out
}

// EventSummary asks the generative provider for a short summary of a
// significant astronomical event on the given date. Chat sessions opened
// for a date use it as their first assistant turn.
func (s *Service) EventSummary(ctx context.Context, date celestial.DaySelection) (string, error) {
	text, err := s.generative.Generate(ctx, summaryPrompt(date))
	if err != nil {
		return "", err
	}

	summary := extract.Reply(text)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary", celestial.ErrSchemaMismatch)
	}
	return summary, nil
}

func summaryPrompt(date celestial.DaySelection) string {
	return fmt.Sprintf("Tell me about a significant astronomical event that happened on %s. Give a concise but informative summary.", date)
}

func eventsPrompt(coord *celestial.Coordinate) string {
	where := "for an observer at an unspecified location"
	if coord != nil {
		where = fmt.Sprintf("for the location at latitude %f and longitude %f", coord.Latitude, coord.Longitude)
	}
	return fmt.Sprintf(`You are an astronomy assistant. %s, list:
1. The next 3 upcoming astronomical events (meteor showers, eclipses, planetary conjunctions, visible ISS passes) with date, title, and a short description.
2. The 3 most significant historical astronomical events with date, title, and a short description.
Return the result as a JSON array of objects with fields: title, date, description, type ('upcoming' or 'historical'). Dates must include the year.`, where)
}

func newsPrompt() string {
	return `Give me the top 5 latest news headlines about space and astronomy. For each, provide:
1. The headline
2. A 2-3 sentence brief summary
3. A credible source link (e.g. NASA, ESA, major science news)
Format as JSON array: [{ "headline": "...", "brief": "...", "source": "..." }, ...]`
}
