package providers

import (
	"context"
	"fmt"

	"github.com/skycal/celestial-data-aggregation/internal/celestial"
	"github.com/skycal/celestial-data-aggregation/internal/celestial/extract"
)

// TextEphemerisProvider is the alternate ephemeris path: it asks the
// generative provider for sun and moon times and coerces the freeform
// reply into a structured snapshot. Sits behind the structured provider in
// the orchestrator's fallback chain.
type TextEphemerisProvider struct {
	name       string
	generative celestial.GenerativeProvider
}

func NewTextEphemerisProvider(generative celestial.GenerativeProvider) *TextEphemerisProvider {
	return &TextEphemerisProvider{
		name:       "generative-ephemeris",
		generative: generative,
	}
}

func (p *TextEphemerisProvider) Name() string {
	return p.name
}

func (p *TextEphemerisProvider) Fetch(ctx context.Context, coord celestial.Coordinate, date celestial.DaySelection) (celestial.EphemerisSnapshot, error) {
	if err := coord.Validate(); err != nil {
		return celestial.EphemerisSnapshot{}, err
	}

	prompt := fmt.Sprintf(
		"For the location at latitude %f and longitude %f, what are the sunrise, sunset, moonrise, and moonset times on %s? "+
			"Give the answer as a JSON object with keys sunrise, sunset, moonrise, and moonset, and use 24-hour time.",
		coord.Latitude, coord.Longitude, date,
	)

	text, err := p.generative.Generate(ctx, prompt)
	if err != nil {
		return celestial.EphemerisSnapshot{}, err
	}

	return extract.Ephemeris(text)
}
