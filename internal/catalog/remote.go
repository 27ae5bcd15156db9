package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Zyrax101/ThreadHeaven/internal/domain"
)

// RemoteCatalog fetches products from the hosted backend's REST
// surface. Calls carry an explicit timeout and run through a circuit
// breaker so a dead backend fails fast instead of stacking up slow
// requests.
type RemoteCatalog struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]domain.Product]
}

func NewRemoteCatalog(baseURL, apiKey string, timeout time.Duration) *RemoteCatalog {
	cb := gobreaker.NewCircuitBreaker[[]domain.Product](gobreaker.Settings{
		Name:    "remote-catalog",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &RemoteCatalog{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		breaker: cb,
	}
}

type remoteProduct struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Material     string    `json:"material"`
	Description  string    `json:"description"`
	Price        float64   `json:"price"`
	ImageURL     string    `json:"image_url"`
	RotationHint string    `json:"rotation_hint"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

func (c *RemoteCatalog) ListActive(ctx context.Context) ([]domain.Product, error) {
	return c.breaker.Execute(func() ([]domain.Product, error) {
		return c.fetch(ctx)
	})
}

func (c *RemoteCatalog) fetch(ctx context.Context) ([]domain.Product, error) {
	url := c.baseURL + "/products?active=true&order=newest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var rows []remoteProduct
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	products := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		if !row.Active {
			continue
		}
		products = append(products, domain.Product{
			ID:           row.ID,
			Name:         row.Name,
			Material:     row.Material,
			Description:  row.Description,
			Price:        row.Price,
			ImageURL:     row.ImageURL,
			RotationHint: row.RotationHint,
			Active:       row.Active,
			CreatedAt:    row.CreatedAt,
		})
	}
	return products, nil
}
