package geo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// controlledLookup records queries and can hold a response until
// released.
type controlledLookup struct {
	mu      sync.Mutex
	calls   atomic.Int64
	results map[string][]Suggestion
	hold    map[string]chan struct{}
}

func newControlledLookup() *controlledLookup {
	return &controlledLookup{
		results: make(map[string][]Suggestion),
		hold:    make(map[string]chan struct{}),
	}
}

func (c *controlledLookup) Search(ctx context.Context, query string) ([]Suggestion, error) {
	c.calls.Add(1)
	c.mu.Lock()
	gate := c.hold[query]
	res := c.results[query]
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res, nil
}

func TestSuggester_DeliversLatestQuery(t *testing.T) {
	lookup := newControlledLookup()
	lookup.results["london"] = []Suggestion{{Label: "London", Country: "GB"}}
	s := NewSuggester(lookup, 10*time.Millisecond)

	results, err := s.Search(context.Background(), "london")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "London", results[0].Label)
}

func TestSuggester_RapidKeystrokesCoalesce(t *testing.T) {
	lookup := newControlledLookup()
	lookup.results["london"] = []Suggestion{{Label: "London"}}
	s := NewSuggester(lookup, 50*time.Millisecond)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i, q := range []string{"l", "lo", "lon"} {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			_, errs[i] = s.Search(context.Background(), q)
		}(i, q)
		time.Sleep(5 * time.Millisecond)
	}
	results, err := s.Search(context.Background(), "london")
	wg.Wait()

	require.NoError(t, err)
	require.Len(t, results, 1)
	for _, e := range errs {
		assert.ErrorIs(t, e, ErrSuperseded)
	}

	// The earlier keystrokes never reached the lookup.
	assert.Equal(t, int64(1), lookup.calls.Load())
}

func TestSuggester_StaleInFlightResultsAreDiscarded(t *testing.T) {
	lookup := newControlledLookup()
	lookup.results["old"] = []Suggestion{{Label: "Old"}}
	lookup.results["new"] = []Suggestion{{Label: "New"}}
	gate := make(chan struct{})
	lookup.hold["old"] = gate
	s := NewSuggester(lookup, time.Millisecond)

	oldDone := make(chan error, 1)
	go func() {
		_, err := s.Search(context.Background(), "old")
		oldDone <- err
	}()

	// Let the old query pass its quiet period and block in the lookup.
	require.Eventually(t, func() bool {
		return lookup.calls.Load() == 1
	}, time.Second, time.Millisecond)

	results, err := s.Search(context.Background(), "new")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "New", results[0].Label)

	close(gate)
	assert.ErrorIs(t, <-oldDone, ErrSuperseded)
}

func TestPhotonLookup_ParsesFeatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api", r.URL.Path)
		assert.Equal(t, "10 downing street", r.URL.Query().Get("q"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"features": []map[string]interface{}{
				{
					"geometry": map[string]interface{}{"coordinates": []float64{-0.1276, 51.5034}},
					"properties": map[string]interface{}{
						"name":     "10 Downing Street",
						"street":   "Downing Street",
						"city":     "London",
						"postcode": "SW1A 2AA",
						"country":  "United Kingdom",
					},
				},
			},
		})
	}))
	defer srv.Close()

	lookup := NewPhotonLookup(srv.URL, srv.Client())
	results, err := lookup.Search(context.Background(), "10 downing street")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "10 Downing Street", results[0].Label)
	assert.Equal(t, "SW1A 2AA", results[0].PostalCode)
	assert.Equal(t, 51.5034, results[0].Lat)
	assert.Equal(t, -0.1276, results[0].Lon)
}

func TestPhotonLookup_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	lookup := NewPhotonLookup(srv.URL, srv.Client())
	_, err := lookup.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestPool_SessionsSearchIndependently(t *testing.T) {
	lookup := newControlledLookup()
	lookup.results["london"] = []Suggestion{{Label: "London"}}
	lookup.results["berlin"] = []Suggestion{{Label: "Berlin"}}

	pool := NewPool(lookup, 20*time.Millisecond)
	defer pool.Close()

	// Overlapping searches from different sessions never supersede
	// each other.
	var wg sync.WaitGroup
	results := make([][]Suggestion, 2)
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0], errs[0] = pool.Suggester("alice").Search(context.Background(), "london")
	}()
	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		results[1], errs[1] = pool.Suggester("bob").Search(context.Background(), "berlin")
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Len(t, results[0], 1)
	require.Len(t, results[1], 1)
	assert.Equal(t, "London", results[0][0].Label)
	assert.Equal(t, "Berlin", results[1][0].Label)
}

func TestPool_ReusesSuggesterPerSession(t *testing.T) {
	pool := NewPool(newControlledLookup(), time.Millisecond)
	defer pool.Close()

	assert.Same(t, pool.Suggester("alice"), pool.Suggester("alice"))
	assert.NotSame(t, pool.Suggester("alice"), pool.Suggester("bob"))
}
