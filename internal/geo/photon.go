package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// PhotonLookup queries a photon-style geocoding endpoint
// (GET /api?q=...&limit=n returning GeoJSON features).
type PhotonLookup struct {
	baseURL string
	limit   int
	client  *http.Client
}

func NewPhotonLookup(baseURL string, client *http.Client) *PhotonLookup {
	if client == nil {
		client = http.DefaultClient
	}
	return &PhotonLookup{baseURL: baseURL, limit: 5, client: client}
}

type photonResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Name     string `json:"name"`
			Street   string `json:"street"`
			City     string `json:"city"`
			Postcode string `json:"postcode"`
			Country  string `json:"country"`
		} `json:"properties"`
	} `json:"features"`
}

func (p *PhotonLookup) Search(ctx context.Context, query string) ([]Suggestion, error) {
	u := fmt.Sprintf("%s/api?q=%s&limit=%d", p.baseURL, url.QueryEscape(query), p.limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build geocoding request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding returned status %d", resp.StatusCode)
	}

	var decoded photonResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode geocoding response: %w", err)
	}

	suggestions := make([]Suggestion, 0, len(decoded.Features))
	for _, f := range decoded.Features {
		s := Suggestion{
			Label:      f.Properties.Name,
			Street:     f.Properties.Street,
			City:       f.Properties.City,
			PostalCode: f.Properties.Postcode,
			Country:    f.Properties.Country,
		}
		if len(f.Geometry.Coordinates) == 2 {
			s.Lon = f.Geometry.Coordinates[0]
			s.Lat = f.Geometry.Coordinates[1]
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, nil
}
