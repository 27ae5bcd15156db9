package checkout

import (
	"sync"
	"time"
)

const (
	// SessionTTL is how long an untouched checkout stays resident.
	// Checkouts are ephemeral by design: eviction is equivalent to the
	// user walking away.
	SessionTTL = 30 * time.Minute

	// CleanupInterval is how often the background cleanup runs
	CleanupInterval = time.Minute
)

type registryEntry struct {
	orch       *Orchestrator
	lastAccess time.Time
}

// Registry owns one Orchestrator per session. "Continue shopping"
// after a successful checkout removes the entry; the next checkout
// starts from a fresh Idle orchestrator.
type Registry struct {
	mu      sync.Mutex
	factory func(sessionID string) *Orchestrator
	entries map[string]*registryEntry

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewRegistry(factory func(sessionID string) *Orchestrator) *Registry {
	r := &Registry{
		factory:     factory,
		entries:     make(map[string]*registryEntry),
		stopCleanup: make(chan struct{}),
	}

	r.wg.Add(1)
	go r.cleanupLoop()

	return r
}

// Get returns the session's orchestrator, creating one in Idle if none
// exists.
func (r *Registry) Get(sessionID string) *Orchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[sessionID]; ok {
		entry.lastAccess = time.Now()
		return entry.orch
	}

	o := r.factory(sessionID)
	r.entries[sessionID] = &registryEntry{orch: o, lastAccess: time.Now()}
	return o
}

// Discard drops the session's orchestrator. Submissions in flight are
// protected by the orchestrator's own state machine, so callers check
// state before discarding.
func (r *Registry) Discard(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, sessionID)
}

// Close stops the cleanup loop.
func (r *Registry) Close() {
	close(r.stopCleanup)
	r.wg.Wait()
}

func (r *Registry) cleanupLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle()
		case <-r.stopCleanup:
			return
		}
	}
}

func (r *Registry) evictIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-SessionTTL)
	for sessionID, entry := range r.entries {
		if entry.lastAccess.Before(cutoff) {
			delete(r.entries, sessionID)
		}
	}
}
