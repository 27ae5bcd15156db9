package geo

import (
	"sync"
	"time"
)

const (
	// SuggesterTTL is how long an idle session's suggester stays
	// resident before the cleanup loop drops it.
	SuggesterTTL = 30 * time.Minute

	// CleanupInterval is how often the background cleanup runs
	CleanupInterval = time.Minute
)

type poolEntry struct {
	suggester  *Suggester
	lastAccess time.Time
}

// Pool hands out one Suggester per session. Last-request-wins is a
// per-user discipline: only a newer keystroke from the same session
// may supersede a pending search, never another user's query.
type Pool struct {
	mu      sync.Mutex
	lookup  Lookup
	quiet   time.Duration
	entries map[string]*poolEntry

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewPool(lookup Lookup, quiet time.Duration) *Pool {
	p := &Pool{
		lookup:      lookup,
		quiet:       quiet,
		entries:     make(map[string]*poolEntry),
		stopCleanup: make(chan struct{}),
	}

	p.wg.Add(1)
	go p.cleanupLoop()

	return p
}

// Suggester returns the session's suggester, creating one on first
// access.
func (p *Pool) Suggester(sessionID string) *Suggester {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.entries[sessionID]; ok {
		entry.lastAccess = time.Now()
		return entry.suggester
	}

	s := NewSuggester(p.lookup, p.quiet)
	p.entries[sessionID] = &poolEntry{suggester: s, lastAccess: time.Now()}
	return s
}

// Close stops the cleanup loop.
func (p *Pool) Close() {
	close(p.stopCleanup)
	p.wg.Wait()
}

func (p *Pool) cleanupLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.evictIdle()
		case <-p.stopCleanup:
			return
		}
	}
}

func (p *Pool) evictIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := time.Now().Add(-SuggesterTTL)
	for sessionID, entry := range p.entries {
		if entry.lastAccess.Before(cutoff) {
			delete(p.entries, sessionID)
		}
	}
}
