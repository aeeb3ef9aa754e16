package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/skycal/celestial-data-aggregation/internal/celestial"
)

// APODProvider implements celestial.ImageOfDayProvider against the NASA
// Astronomy Picture of the Day API.
type APODProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

func NewAPODProvider(client *http.Client, apiKey string) *APODProvider {
	return &APODProvider{
		name:    "nasa-apod",
		apiKey:  apiKey,
		baseURL: "https://api.nasa.gov/planetary/apod",
		client:  client,
		circuit: newCircuit("nasa-apod"),
		now:     time.Now,
	}
}

func (p *APODProvider) Name() string {
	return p.name
}

type apodPayload struct {
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
	URL         string `json:"url"`
	MediaType   string `json:"media_type"`
	Date        string `json:"date"`
}

func (p *APODProvider) toSnapshot(raw apodPayload) celestial.ImageOfDaySnapshot {
	return celestial.ImageOfDaySnapshot{
		Title:       raw.Title,
		Explanation: raw.Explanation,
		MediaURL:    raw.URL,
		MediaKind:   celestial.ClassifyMediaKind(raw.MediaType, raw.URL),
		Date:        raw.Date,
	}
}

// Fetch retrieves the image-of-day entry for a single date. Dates on or
// after the current day are rejected before any network call; the provider
// has no data for them.
func (p *APODProvider) Fetch(ctx context.Context, date celestial.DaySelection) (celestial.ImageOfDaySnapshot, error) {
	if p.apiKey == "" {
		return celestial.ImageOfDaySnapshot{}, fmt.Errorf("apod api key is not configured")
	}
	if !date.BeforeDay(p.now()) {
		return celestial.ImageOfDaySnapshot{}, fmt.Errorf("%w: date %s is not before today", celestial.ErrValidationRejected, date)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("api_key", p.apiKey)
		values.Set("date", date.String())
		values.Set("thumbs", "true")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return celestial.ImageOfDaySnapshot{}, err
	}
	defer resp.Body.Close()

	var payload apodPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return celestial.ImageOfDaySnapshot{}, fmt.Errorf("%w: %v", celestial.ErrSchemaMismatch, err)
	}
	if payload.URL == "" {
		return celestial.ImageOfDaySnapshot{}, fmt.Errorf("%w: missing media url", celestial.ErrSchemaMismatch)
	}

	return p.toSnapshot(payload), nil
}

// FetchRange retrieves entries for an inclusive date range. The end of the
// range must still be strictly before today.
func (p *APODProvider) FetchRange(ctx context.Context, start, end celestial.DaySelection) ([]celestial.ImageOfDaySnapshot, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("apod api key is not configured")
	}
	if !end.BeforeDay(p.now()) {
		return nil, fmt.Errorf("%w: range end %s is not before today", celestial.ErrValidationRejected, end)
	}
	if end.Time().Before(start.Time()) {
		return nil, fmt.Errorf("%w: range end before start", celestial.ErrValidationRejected)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("api_key", p.apiKey)
		values.Set("start_date", start.String())
		values.Set("end_date", end.String())
		values.Set("thumbs", "true")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload []apodPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", celestial.ErrSchemaMismatch, err)
	}

	snapshots := make([]celestial.ImageOfDaySnapshot, 0, len(payload))
	for _, raw := range payload {
		if raw.URL == "" {
			continue
		}
		snapshots = append(snapshots, p.toSnapshot(raw))
	}
	return snapshots, nil
}
