// Package location turns a granted geolocation into a validated
// coordinate and, best-effort, a human-readable place name. Nothing
// downstream depends on the place name being present.
package location

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/kelvins/geocoder"

	"github.com/skycal/celestial-data-aggregation/internal/celestial"
)

// ReverseGeocoder resolves a coordinate into a place name.
type ReverseGeocoder interface {
	Name() string
	Reverse(ctx context.Context, coord celestial.Coordinate) (celestial.PlaceName, error)
}

// Resolver validates a coordinate grant and reverse-geocodes it through an
// ordered chain of geocoders.
type Resolver struct {
	geocoders []ReverseGeocoder
}

func NewResolver(geocoders ...ReverseGeocoder) *Resolver {
	return &Resolver{geocoders: geocoders}
}

// Resolve returns the validated coordinate and, when any geocoder
// succeeds, a place name. A nil coordinate means the permission grant was
// refused or absent. Geocoding failure never blocks use of the coordinate.
func (r *Resolver) Resolve(ctx context.Context, coord *celestial.Coordinate) (celestial.Coordinate, *celestial.PlaceName, error) {
	if coord == nil {
		return celestial.Coordinate{}, nil, celestial.ErrPermissionDenied
	}
	if err := coord.Validate(); err != nil {
		return celestial.Coordinate{}, nil, err
	}

	for _, g := range r.geocoders {
		place, err := g.Reverse(ctx, *coord)
		if err != nil {
			log.Printf("location: geocoder %s failed for %s: %v", g.Name(), coord.Key(), err)
			continue
		}
		if place.City == "" && place.Country == "" {
			continue
		}
		return *coord, &place, nil
	}

	return *coord, nil, nil
}

// GoogleGeocoder reverse-geocodes through the Google geocoding API.
type GoogleGeocoder struct {
	name string
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{name: "google"}
}

func (g *GoogleGeocoder) Name() string {
	return g.name
}

func (g *GoogleGeocoder) Reverse(_ context.Context, coord celestial.Coordinate) (celestial.PlaceName, error) {
	addresses, err := geocoder.GeocodingReverse(geocoder.Location{
		Latitude:  coord.Latitude,
		Longitude: coord.Longitude,
	})
	if err != nil {
		return celestial.PlaceName{}, fmt.Errorf("%w: %v", celestial.ErrProviderUnavailable, err)
	}
	if len(addresses) == 0 {
		return celestial.PlaceName{}, fmt.Errorf("%w: no address for %s", celestial.ErrSchemaMismatch, coord.Key())
	}

	addr := addresses[0]
	return celestial.PlaceName{
		City:    addr.City,
		Country: addr.Country,
	}, nil
}

// NominatimGeocoder reverse-geocodes through the OpenStreetMap Nominatim
// API. City is read with city -> town -> village -> state fallback
// priority.
type NominatimGeocoder struct {
	name    string
	baseURL string
	client  *http.Client
}

func NewNominatimGeocoder(client *http.Client) *NominatimGeocoder {
	return &NominatimGeocoder{
		name:    "nominatim",
		baseURL: "https://nominatim.openstreetmap.org/reverse",
		client:  client,
	}
}

func (g *NominatimGeocoder) Name() string {
	return g.name
}

func (g *NominatimGeocoder) Reverse(ctx context.Context, coord celestial.Coordinate) (celestial.PlaceName, error) {
	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", coord.Latitude))
	values.Set("lon", fmt.Sprintf("%f", coord.Longitude))
	values.Set("format", "json")

	u := fmt.Sprintf("%s?%s", g.baseURL, values.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return celestial.PlaceName{}, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return celestial.PlaceName{}, fmt.Errorf("%w: %v", celestial.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return celestial.PlaceName{}, fmt.Errorf("%w: status %d", celestial.ErrProviderUnavailable, resp.StatusCode)
	}

	var payload struct {
		Address struct {
			City    string `json:"city"`
			Town    string `json:"town"`
			Village string `json:"village"`
			State   string `json:"state"`
			Country string `json:"country"`
		} `json:"address"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return celestial.PlaceName{}, fmt.Errorf("%w: %v", celestial.ErrSchemaMismatch, err)
	}

	city := payload.Address.City
	if city == "" {
		city = payload.Address.Town
	}
	if city == "" {
		city = payload.Address.Village
	}
	if city == "" {
		city = payload.Address.State
	}

	return celestial.PlaceName{
		City:    city,
		Country: payload.Address.Country,
	}, nil
}
