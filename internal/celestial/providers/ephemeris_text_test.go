package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/skycal/celestial-data-aggregation/internal/celestial"
)

type stubGenerative struct {
	reply string
	err   error
	calls int
}

func (s *stubGenerative) Name() string { return "stub" }

func (s *stubGenerative) Generate(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.reply, s.err
}

func (s *stubGenerative) Chat(ctx context.Context, system string, turns []celestial.ChatTurn) (string, error) {
	return s.reply, s.err
}

func TestTextEphemerisCoercesReply(t *testing.T) {
	gen := &stubGenerative{reply: `Here are the times: {"sunrise": "06:58", "sunset": "17:12", "moonrise": "22:40", "moonset": "09:31"}`}
	p := NewTextEphemerisProvider(gen)

	d, _ := celestial.ParseDaySelection("2025-01-10")
	eph, err := p.Fetch(context.Background(), celestial.Coordinate{Latitude: 40.7, Longitude: -74}, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := celestial.EphemerisSnapshot{Sunrise: "06:58", Sunset: "17:12", Moonrise: "22:40", Moonset: "09:31"}
	if eph != want {
		t.Fatalf("unexpected snapshot: %+v", eph)
	}
}

func TestTextEphemerisUnstructuredReply(t *testing.T) {
	gen := &stubGenerative{reply: "The sun rises quite early at that latitude in January."}
	p := NewTextEphemerisProvider(gen)

	d, _ := celestial.ParseDaySelection("2025-01-10")
	_, err := p.Fetch(context.Background(), celestial.Coordinate{Latitude: 40.7, Longitude: -74}, d)
	if !errors.Is(err, celestial.ErrUnparseableText) {
		t.Fatalf("expected ErrUnparseableText, got %v", err)
	}
}

func TestTextEphemerisProviderFailure(t *testing.T) {
	gen := &stubGenerative{err: fmt.Errorf("%w: quota", celestial.ErrProviderUnavailable)}
	p := NewTextEphemerisProvider(gen)

	d, _ := celestial.ParseDaySelection("2025-01-10")
	_, err := p.Fetch(context.Background(), celestial.Coordinate{Latitude: 40.7, Longitude: -74}, d)
	if !errors.Is(err, celestial.ErrProviderUnavailable) {
		t.Fatalf("expected the provider failure to surface, got %v", err)
	}
}

func TestTextEphemerisRejectsBadCoordinate(t *testing.T) {
	gen := &stubGenerative{reply: "irrelevant"}
	p := NewTextEphemerisProvider(gen)

	d, _ := celestial.ParseDaySelection("2025-01-10")
	_, err := p.Fetch(context.Background(), celestial.Coordinate{Latitude: -100, Longitude: 0}, d)
	if !errors.Is(err, celestial.ErrValidationRejected) {
		t.Fatalf("expected validation rejection, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("expected no generate call for an invalid coordinate, got %d", gen.calls)
	}
}
