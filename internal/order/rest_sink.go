package order

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Zyrax101/ThreadHeaven/internal/domain"
)

// RESTSink submits orders to the hosted backend. Every request carries
// the order's idempotency key so a retried submission lands on the
// same remote record instead of creating a duplicate.
type RESTSink struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*domain.Order]
}

func NewRESTSink(baseURL, apiKey string, timeout time.Duration) *RESTSink {
	cb := gobreaker.NewCircuitBreaker[*domain.Order](gobreaker.Settings{
		Name:    "order-sink",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &RESTSink{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		breaker: cb,
	}
}

func (s *RESTSink) Submit(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	return s.breaker.Execute(func() (*domain.Order, error) {
		return s.post(ctx, o)
	})
}

func (s *RESTSink) post(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	body, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", o.IdempotencyKey)
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("order request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var created domain.Order
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			return nil, fmt.Errorf("decode order response: %w", err)
		}
		return &created, nil
	case resp.StatusCode == http.StatusConflict:
		// The sink already holds this idempotency key; the order was
		// placed on an earlier attempt.
		return o, nil
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("order sink returned status %d: %s", resp.StatusCode, snippet)
	}
}
