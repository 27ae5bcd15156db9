package geo

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned when a newer query arrived while this one
// was waiting out the quiet period or in flight. Its results must be
// discarded, never merged.
var ErrSuperseded = errors.New("address search superseded by a newer query")

// DefaultQuietPeriod is how long typing has to pause before a lookup
// is actually issued.
const DefaultQuietPeriod = 500 * time.Millisecond

type Suggestion struct {
	Label      string  `json:"label"`
	Street     string  `json:"street,omitempty"`
	City       string  `json:"city,omitempty"`
	PostalCode string  `json:"postal_code,omitempty"`
	Country    string  `json:"country,omitempty"`
	Lat        float64 `json:"lat,omitempty"`
	Lon        float64 `json:"lon,omitempty"`
}

// Lookup is the geocoding collaborator.
type Lookup interface {
	Search(ctx context.Context, query string) ([]Suggestion, error)
}

// Suggester debounces address lookups: a call waits out the quiet
// period, and any newer call cancels it. Only the most recent query's
// results are ever returned; everything older fails with
// ErrSuperseded.
type Suggester struct {
	mu     sync.Mutex
	lookup Lookup
	quiet  time.Duration
	gen    uint64
	cancel context.CancelFunc
}

func NewSuggester(lookup Lookup, quiet time.Duration) *Suggester {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Suggester{lookup: lookup, quiet: quiet}
}

// Search issues a debounced lookup for query. It blocks for at least
// the quiet period; callers run it per keystroke and drop
// ErrSuperseded results.
func (s *Suggester) Search(ctx context.Context, query string) ([]Suggestion, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.cancel != nil {
		// A newer keystroke arrived: abort the pending search.
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	timer := time.NewTimer(s.quiet)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		if s.superseded(gen) {
			return nil, ErrSuperseded
		}
		return nil, ctx.Err()
	}
	if s.superseded(gen) {
		return nil, ErrSuperseded
	}

	results, err := s.lookup.Search(ctx, query)

	// The lookup may have completed after a newer query started; its
	// results are stale regardless of success.
	if s.superseded(gen) {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Suggester) superseded(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen != s.gen
}
