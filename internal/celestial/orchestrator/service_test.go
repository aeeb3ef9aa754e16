package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skycal/celestial-data-aggregation/internal/celestial"
	"github.com/skycal/celestial-data-aggregation/internal/store"
)

var testNow = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

const (
	eventsJSON = `[
		{"title": "Quadrantid Shower", "date": "2025-02-03", "description": "x", "type": "upcoming"},
		{"title": "Apollo 11 Landing", "date": "1969-07-20", "description": "x", "type": "historical"}
	]`
	newsJSON = `[{"headline": "Station Reboost", "brief": "x", "source": "https://nasa.gov"}]`
)

type fakeImageProvider struct {
	calls   atomic.Int32
	err     error
	release chan struct{} // when set, Fetch blocks until closed
	kind    celestial.MediaKind
}

func (f *fakeImageProvider) Name() string { return "fake-image" }

func (f *fakeImageProvider) Fetch(ctx context.Context, date celestial.DaySelection) (celestial.ImageOfDaySnapshot, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return celestial.ImageOfDaySnapshot{}, f.err
	}
	kind := f.kind
	if kind == "" {
		kind = celestial.MediaVideo
	}
	return celestial.ImageOfDaySnapshot{
		Title:     "Picture for " + date.String(),
		MediaURL:  "https://example.com/" + date.String() + ".jpg",
		MediaKind: kind,
		Date:      date.String(),
	}, nil
}

func (f *fakeImageProvider) FetchRange(ctx context.Context, start, end celestial.DaySelection) ([]celestial.ImageOfDaySnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []celestial.ImageOfDaySnapshot{
		{Title: "a", MediaKind: celestial.MediaImage, Date: start.String()},
		{Title: "b", MediaKind: celestial.MediaVideo, Date: start.String()},
		{Title: "c", MediaKind: celestial.MediaImage, Date: end.String()},
	}, nil
}

type fakeEphemerisProvider struct {
	calls atomic.Int32
	err   error
}

func (f *fakeEphemerisProvider) Name() string { return "fake-ephemeris" }

func (f *fakeEphemerisProvider) Fetch(ctx context.Context, coord celestial.Coordinate, date celestial.DaySelection) (celestial.EphemerisSnapshot, error) {
	f.calls.Add(1)
	if f.err != nil {
		return celestial.EphemerisSnapshot{}, f.err
	}
	return celestial.EphemerisSnapshot{Sunrise: "07:01", Sunset: "17:30", Moonrise: "21:00", Moonset: "08:15"}, nil
}

type fakeGenerative struct {
	err error
}

func (f *fakeGenerative) Name() string { return "fake-generative" }

func (f *fakeGenerative) Generate(ctx context.Context, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if strings.Contains(prompt, "news headlines") {
		return "Here you go:\n" + newsJSON, nil
	}
	if strings.Contains(prompt, "significant astronomical event that happened on") {
		return "  On this day, Apollo 11 landed on the Moon.  \n", nil
	}
	return "Certainly!\n" + eventsJSON, nil
}

func (f *fakeGenerative) Chat(ctx context.Context, system string, turns []celestial.ChatTurn) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "reply", nil
}

type fakeAnalyzer struct {
	dark  bool
	calls atomic.Int32
}

func (f *fakeAnalyzer) IsDark(ctx context.Context, url string) bool {
	f.calls.Add(1)
	return f.dark
}

func newTestService(img celestial.ImageOfDayProvider, eph []celestial.EphemerisProvider, gen celestial.GenerativeProvider, analyzer celestial.ThemeAnalyzer) *Service {
	svc := NewService(img, eph, gen, analyzer, store.NewMemoryStore(16, time.Hour))
	svc.now = func() time.Time { return testNow }
	return svc
}

func mustDay(t *testing.T, s string) celestial.DaySelection {
	t.Helper()
	d, err := celestial.ParseDaySelection(s)
	if err != nil {
		t.Fatalf("bad day %q: %v", s, err)
	}
	return d
}

func TestFieldIndependence(t *testing.T) {
	// Every ephemeris provider fails; the other fields must still resolve.
	img := &fakeImageProvider{kind: celestial.MediaImage}
	eph := &fakeEphemerisProvider{err: fmt.Errorf("%w: boom", celestial.ErrProviderUnavailable)}
	gen := &fakeGenerative{}
	analyzer := &fakeAnalyzer{dark: false}

	svc := newTestService(img, []celestial.EphemerisProvider{eph}, gen, analyzer)

	coord := &celestial.Coordinate{Latitude: 48.85, Longitude: 2.35}
	snap, err := svc.Fetch(context.Background(), mustDay(t, "2025-01-10"), coord)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snap.ImageStatus != celestial.StatusReady {
		t.Fatalf("expected image ready, got %s", snap.ImageStatus)
	}
	if snap.EventsStatus != celestial.StatusReady || len(snap.Events) != 2 {
		t.Fatalf("expected 2 events ready, got %s %d", snap.EventsStatus, len(snap.Events))
	}
	if snap.NewsStatus != celestial.StatusReady || len(snap.News) != 1 {
		t.Fatalf("expected 1 news item ready, got %s %d", snap.NewsStatus, len(snap.News))
	}

	if snap.EphemerisStatus != celestial.StatusFallback {
		t.Fatalf("expected ephemeris fallback, got %s", snap.EphemerisStatus)
	}
	if *snap.Ephemeris != celestial.DemoEphemeris {
		t.Fatalf("expected demo placeholder, got %+v", snap.Ephemeris)
	}
}

func TestImageFailureSurfacesError(t *testing.T) {
	img := &fakeImageProvider{err: fmt.Errorf("%w: 503", celestial.ErrProviderUnavailable)}
	svc := newTestService(img, nil, &fakeGenerative{}, &fakeAnalyzer{dark: true})

	snap, err := svc.Fetch(context.Background(), mustDay(t, "2025-01-10"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snap.ImageStatus != celestial.StatusError || snap.ImageError == "" {
		t.Fatalf("expected explicit image error, got %s %q", snap.ImageStatus, snap.ImageError)
	}
	// No synthetic imagery, but the other fields still resolved.
	if snap.Image != nil {
		t.Fatal("expected no fabricated image snapshot")
	}
	if snap.EventsStatus != celestial.StatusReady {
		t.Fatalf("expected events unaffected, got %s", snap.EventsStatus)
	}
}

func TestEphemerisSkippedWithoutCoordinate(t *testing.T) {
	eph := &fakeEphemerisProvider{}
	svc := newTestService(&fakeImageProvider{}, []celestial.EphemerisProvider{eph}, &fakeGenerative{}, &fakeAnalyzer{})

	snap, err := svc.Fetch(context.Background(), mustDay(t, "2025-01-10"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snap.EphemerisStatus != celestial.StatusEmpty || snap.Ephemeris != nil {
		t.Fatalf("expected empty ephemeris field, got %s %+v", snap.EphemerisStatus, snap.Ephemeris)
	}
	if eph.calls.Load() != 0 {
		t.Fatalf("expected no ephemeris call without a coordinate, got %d", eph.calls.Load())
	}
}

func TestEphemerisChainOrder(t *testing.T) {
	failing := &fakeEphemerisProvider{err: fmt.Errorf("%w: down", celestial.ErrProviderUnavailable)}
	working := &fakeEphemerisProvider{}
	svc := newTestService(&fakeImageProvider{}, []celestial.EphemerisProvider{failing, working}, &fakeGenerative{}, &fakeAnalyzer{})

	coord := &celestial.Coordinate{Latitude: 1, Longitude: 2}
	snap, err := svc.Fetch(context.Background(), mustDay(t, "2025-01-10"), coord)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snap.EphemerisStatus != celestial.StatusReady {
		t.Fatalf("expected second provider to serve the field, got %s", snap.EphemerisStatus)
	}
	if snap.Ephemeris.Sunrise != "07:01" {
		t.Fatalf("unexpected ephemeris: %+v", snap.Ephemeris)
	}
	if failing.calls.Load() != 1 || working.calls.Load() != 1 {
		t.Fatalf("unexpected chain call counts: %d %d", failing.calls.Load(), working.calls.Load())
	}
}

func TestGenerativeFailureYieldsEmptyLists(t *testing.T) {
	gen := &fakeGenerative{err: fmt.Errorf("%w: overloaded", celestial.ErrProviderUnavailable)}
	svc := newTestService(&fakeImageProvider{}, nil, gen, &fakeAnalyzer{})

	snap, err := svc.Fetch(context.Background(), mustDay(t, "2025-01-10"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snap.EventsStatus != celestial.StatusEmpty || len(snap.Events) != 0 {
		t.Fatalf("expected empty events, got %s %d", snap.EventsStatus, len(snap.Events))
	}
	if snap.NewsStatus != celestial.StatusEmpty || len(snap.News) != 0 {
		t.Fatalf("expected empty news, got %s %d", snap.NewsStatus, len(snap.News))
	}
}

func TestThemeOnlyAnalyzedForImages(t *testing.T) {
	analyzer := &fakeAnalyzer{dark: false}
	img := &fakeImageProvider{kind: celestial.MediaVideo}
	svc := newTestService(img, nil, &fakeGenerative{}, analyzer)

	snap, err := svc.Fetch(context.Background(), mustDay(t, "2025-01-10"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !snap.Theme.IsDark {
		t.Fatal("expected non-raster media to default dark")
	}
	if analyzer.calls.Load() != 0 {
		t.Fatalf("expected no pixel analysis for video media, got %d calls", analyzer.calls.Load())
	}
}

func TestLastQueryWins(t *testing.T) {
	release := make(chan struct{})
	img := &fakeImageProvider{release: release, kind: celestial.MediaVideo}
	svc := newTestService(img, nil, &fakeGenerative{}, &fakeAnalyzer{})

	dayA := mustDay(t, "2025-01-09")
	dayB := mustDay(t, "2025-01-10")

	type result struct {
		snap celestial.Snapshot
		err  error
	}
	done := make(chan result, 1)

	go func() {
		snap, err := svc.Fetch(context.Background(), dayA, nil)
		done <- result{snap, err}
	}()

	// Wait for Q1 to reach its image fetch before starting Q2.
	for img.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	go func() {
		// Unblock both fetches only once Q2 has claimed the newer token.
		for svc.queryToken.Load() < 2 {
			time.Sleep(time.Millisecond)
		}
		close(release)
	}()

	snapB, err := svc.Fetch(context.Background(), dayB, nil)
	if err != nil {
		t.Fatalf("unexpected error for Q2: %v", err)
	}
	if snapB.Date != dayB.String() {
		t.Fatalf("unexpected Q2 snapshot date: %s", snapB.Date)
	}

	resA := <-done
	if !errors.Is(resA.err, celestial.ErrSuperseded) {
		t.Fatalf("expected Q1 to be superseded, got %v", resA.err)
	}

	current, ok := svc.Current()
	if !ok || current.Date != dayB.String() {
		t.Fatalf("expected final visible snapshot to reflect Q2, got %+v", current)
	}
}

func TestCachedSnapshotSkipsProviders(t *testing.T) {
	img := &fakeImageProvider{kind: celestial.MediaVideo}
	svc := newTestService(img, nil, &fakeGenerative{}, &fakeAnalyzer{})

	day := mustDay(t, "2025-01-10")
	if _, err := svc.Fetch(context.Background(), day, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := img.calls.Load()

	if _, err := svc.Fetch(context.Background(), day, nil); err != nil {
		t.Fatalf("unexpected error on cache hit: %v", err)
	}
	if img.calls.Load() != first {
		t.Fatalf("expected cache hit to skip the provider, calls went %d -> %d", first, img.calls.Load())
	}
}

func TestErrorSnapshotNotCached(t *testing.T) {
	// A transient image outage must not be pinned for the retention window.
	img := &fakeImageProvider{err: fmt.Errorf("%w: 503", celestial.ErrProviderUnavailable)}
	svc := newTestService(img, nil, &fakeGenerative{}, &fakeAnalyzer{})

	day := mustDay(t, "2025-01-10")
	snap, err := svc.Fetch(context.Background(), day, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ImageStatus != celestial.StatusError {
		t.Fatalf("expected error status while the provider is down, got %s", snap.ImageStatus)
	}

	img.err = nil
	snap, err = svc.Fetch(context.Background(), day, nil)
	if err != nil {
		t.Fatalf("unexpected error after recovery: %v", err)
	}
	if snap.ImageStatus != celestial.StatusReady {
		t.Fatalf("expected a fresh fetch after recovery, got %s", snap.ImageStatus)
	}
	if img.calls.Load() != 2 {
		t.Fatalf("expected the failed query to stay uncached, got %d calls", img.calls.Load())
	}

	// The recovered snapshot is cached like any other.
	if _, err := svc.Fetch(context.Background(), day, nil); err != nil {
		t.Fatalf("unexpected error on cache hit: %v", err)
	}
	if img.calls.Load() != 2 {
		t.Fatalf("expected the recovered snapshot cached, got %d calls", img.calls.Load())
	}
}

func TestEventSummary(t *testing.T) {
	svc := newTestService(&fakeImageProvider{}, nil, &fakeGenerative{}, &fakeAnalyzer{})

	summary, err := svc.EventSummary(context.Background(), mustDay(t, "2025-01-10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != "On this day, Apollo 11 landed on the Moon." {
		t.Fatalf("unexpected summary: %q", summary)
	}
}

func TestEventSummaryProviderFailure(t *testing.T) {
	gen := &fakeGenerative{err: fmt.Errorf("%w: overloaded", celestial.ErrProviderUnavailable)}
	svc := newTestService(&fakeImageProvider{}, nil, gen, &fakeAnalyzer{})

	if _, err := svc.EventSummary(context.Background(), mustDay(t, "2025-01-10")); !errors.Is(err, celestial.ErrProviderUnavailable) {
		t.Fatalf("expected the provider failure to surface, got %v", err)
	}
}

func TestRefreshRecentImagesKeepsOnlyImages(t *testing.T) {
	svc := newTestService(&fakeImageProvider{}, nil, &fakeGenerative{}, &fakeAnalyzer{})

	if err := svc.RefreshRecentImages(context.Background(), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	images := svc.RecentImages()
	if len(images) != 2 {
		t.Fatalf("expected only image media in the window, got %d entries", len(images))
	}
	for _, img := range images {
		if img.MediaKind != celestial.MediaImage {
			t.Fatalf("non-image leaked into the window: %+v", img)
		}
	}
}

func TestHistoricalEventsOnly(t *testing.T) {
	svc := newTestService(&fakeImageProvider{}, nil, &fakeGenerative{}, &fakeAnalyzer{})

	if _, err := svc.Fetch(context.Background(), mustDay(t, "2025-01-10"), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := svc.HistoricalEvents()
	if len(events) != 1 || events[0].Kind != celestial.EventHistorical {
		t.Fatalf("expected only historical events as context, got %+v", events)
	}
}
