package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/skycal/celestial-data-aggregation/internal/celestial"
)

// OpenMeteoProvider implements celestial.EphemerisProvider against the
// Open-Meteo forecast API's daily sun/moon arrays.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		client:  client,
		circuit: newCircuit("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, coord celestial.Coordinate, date celestial.DaySelection) (celestial.EphemerisSnapshot, error) {
	if err := coord.Validate(); err != nil {
		return celestial.EphemerisSnapshot{}, err
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", coord.Latitude))
		values.Set("longitude", fmt.Sprintf("%f", coord.Longitude))
		values.Set("daily", "sunrise,sunset,moonrise,moonset")
		values.Set("timezone", "auto")
		values.Set("start_date", date.String())
		values.Set("end_date", date.String())

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return celestial.EphemerisSnapshot{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Daily struct {
			Sunrise  []string `json:"sunrise"`
			Sunset   []string `json:"sunset"`
			Moonrise []string `json:"moonrise"`
			Moonset  []string `json:"moonset"`
		} `json:"daily"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return celestial.EphemerisSnapshot{}, fmt.Errorf("%w: %v", celestial.ErrSchemaMismatch, err)
	}

	// All four series must be present; a partial day would otherwise leak a
	// mix of real and synthetic values into the snapshot.
	snapshot := celestial.EphemerisSnapshot{
		Sunrise:  firstTimeOfDay(payload.Daily.Sunrise),
		Sunset:   firstTimeOfDay(payload.Daily.Sunset),
		Moonrise: firstTimeOfDay(payload.Daily.Moonrise),
		Moonset:  firstTimeOfDay(payload.Daily.Moonset),
	}
	if snapshot.Sunrise == "" || snapshot.Sunset == "" || snapshot.Moonrise == "" || snapshot.Moonset == "" {
		return celestial.EphemerisSnapshot{}, fmt.Errorf("%w: incomplete daily ephemeris", celestial.ErrSchemaMismatch)
	}

	return snapshot, nil
}

// firstTimeOfDay extracts the HH:MM portion of the first ISO timestamp in
// a daily series, e.g. "2024-03-01T06:12" -> "06:12".
func firstTimeOfDay(series []string) string {
	if len(series) == 0 {
		return ""
	}
	ts := series[0]
	if i := strings.IndexByte(ts, 'T'); i >= 0 && i+1 < len(ts) {
		return ts[i+1:]
	}
	return ts
}
