package cart

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Zyrax101/ThreadHeaven/internal/store"
)

const (
	// LedgerTTL is how long an untouched ledger stays resident before
	// the cleanup loop drops it. The persisted blob survives; the next
	// access simply re-hydrates.
	LedgerTTL = 30 * time.Minute

	// CleanupInterval is how often the background cleanup runs
	CleanupInterval = time.Minute
)

type ledgerEntry struct {
	ledger     *Ledger
	lastAccess time.Time
}

// Manager hands out one Ledger per session for the lifetime of the
// process, so concurrent requests in the same session share a single
// critical section around the persisted blob.
type Manager struct {
	mu      sync.Mutex
	st      store.Store
	log     *logrus.Logger
	ledgers map[string]*ledgerEntry

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewManager(st store.Store, log *logrus.Logger) *Manager {
	m := &Manager{
		st:          st,
		log:         log,
		ledgers:     make(map[string]*ledgerEntry),
		stopCleanup: make(chan struct{}),
	}

	m.wg.Add(1)
	go m.cleanupLoop()

	return m
}

// Ledger returns the session's ledger, hydrating it from the store on
// first access.
func (m *Manager) Ledger(ctx context.Context, sessionID string) *Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.ledgers[sessionID]; ok {
		entry.lastAccess = time.Now()
		return entry.ledger
	}

	l := NewLedger(ctx, m.st, Key(sessionID), m.log)
	m.ledgers[sessionID] = &ledgerEntry{ledger: l, lastAccess: time.Now()}
	return l
}

// Close stops the cleanup loop.
func (m *Manager) Close() {
	close(m.stopCleanup)
	m.wg.Wait()
}

// Key is the store key holding a session's serialized cart.
func Key(sessionID string) string {
	return "cart:" + sessionID
}

func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Manager) evictIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-LedgerTTL)
	for sessionID, entry := range m.ledgers {
		if entry.lastAccess.Before(cutoff) {
			delete(m.ledgers, sessionID)
		}
	}
}
