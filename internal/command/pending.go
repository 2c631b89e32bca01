package command

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/aura/pkg/models"
)

// sweepInterval is how often expired clarifications are swept out.
const sweepInterval = 30 * time.Second

// defaultPendingTTL bounds how long a clarification awaits confirmation.
const defaultPendingTTL = 2 * time.Minute

// PendingManager holds clarifier interpretations awaiting an explicit
// confirm. Entries are single-use: Consume removes them, and expired entries
// are never returned. The stored copy is authoritative; whatever a client
// echoes back is ignored.
type PendingManager struct {
	mu      sync.RWMutex
	entries map[string]*models.Clarification
	ttl     time.Duration
	done    chan struct{}
	stop    sync.Once

	nowFn func() time.Time
}

// NewPendingManager starts a manager with the given TTL and a background
// sweep. Call Shutdown when done.
func NewPendingManager(ttl time.Duration) *PendingManager {
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	m := &PendingManager{
		entries: make(map[string]*models.Clarification),
		ttl:     ttl,
		done:    make(chan struct{}),
		nowFn:   time.Now,
	}
	go m.sweepLoop()
	return m
}

// TTL returns the configured clarification lifetime.
func (m *PendingManager) TTL() time.Duration {
	return m.ttl
}

// Put stores a clarification, stamping ExpiresAt if unset.
func (m *PendingManager) Put(c *models.Clarification) {
	if c == nil || c.RequestID == "" {
		return
	}
	if c.ExpiresAt.IsZero() {
		c.ExpiresAt = m.nowFn().Add(m.ttl)
	}

	m.mu.Lock()
	m.entries[c.RequestID] = c
	m.mu.Unlock()

	log.Debug().Str("request_id", c.RequestID).Time("expires_at", c.ExpiresAt).Msg("clarification pending")
}

// Consume removes and returns the clarification for id. Unknown or expired
// ids return false; either way the entry is gone afterwards.
func (m *PendingManager) Consume(id string) (*models.Clarification, bool) {
	if id == "" {
		return nil, false
	}

	m.mu.Lock()
	c, ok := m.entries[id]
	if ok {
		delete(m.entries, id)
	}
	m.mu.Unlock()

	if !ok {
		return nil, false
	}
	if m.nowFn().After(c.ExpiresAt) {
		log.Debug().Str("request_id", id).Msg("clarification expired")
		return nil, false
	}
	return c, true
}

// Len reports how many clarifications are pending, including any not yet
// swept after expiry.
func (m *PendingManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Shutdown stops the sweep loop. Safe to call more than once.
func (m *PendingManager) Shutdown() {
	m.stop.Do(func() { close(m.done) })
}

func (m *PendingManager) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *PendingManager) sweep() {
	now := m.nowFn()
	removed := 0

	m.mu.Lock()
	for id, c := range m.entries {
		if now.After(c.ExpiresAt) {
			delete(m.entries, id)
			removed++
		}
	}
	m.mu.Unlock()

	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("swept expired clarifications")
	}
}
