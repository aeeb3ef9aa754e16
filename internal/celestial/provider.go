package celestial

import (
	"context"
)

// ImageOfDayProvider abstracts the astronomy-picture-of-the-day source.
type ImageOfDayProvider interface {
	Name() string
	Fetch(ctx context.Context, date DaySelection) (ImageOfDaySnapshot, error)
	FetchRange(ctx context.Context, start, end DaySelection) ([]ImageOfDaySnapshot, error)
}

// EphemerisProvider abstracts a sunrise/sunset/moonrise/moonset source.
// Implementations return a fully populated snapshot or an error; they never
// mix real and missing fields.
type EphemerisProvider interface {
	Name() string
	Fetch(ctx context.Context, coord Coordinate, date DaySelection) (EphemerisSnapshot, error)
}

// GenerativeProvider abstracts the generative-language source. Responses
// are freeform text; callers route them through the extract package when a
// structured shape is expected.
type GenerativeProvider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
	Chat(ctx context.Context, system string, turns []ChatTurn) (string, error)
}

// ThemeAnalyzer decides whether an image should be treated as a dark
// background. Implementations absorb their own failures and fail toward
// dark.
type ThemeAnalyzer interface {
	IsDark(ctx context.Context, imageURL string) bool
}

// Store is the contract the snapshot cache must satisfy. Snapshots for
// past dates are immutable, so cache hits skip the provider fan-out.
type Store interface {
	Save(snapshot Snapshot)
	Get(key string) (Snapshot, error)
}
