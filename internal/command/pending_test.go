package command

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/aura/pkg/models"
)

func pendingClarification(id string) *models.Clarification {
	return &models.Clarification{
		RequestID:       id,
		ClarifiedIntent: "do the thing",
		ActionSteps:     []string{"search for the thing"},
		Confidence:      0.6,
	}
}

func TestPendingPutAndConsume(t *testing.T) {
	m := NewPendingManager(time.Minute)
	defer m.Shutdown()

	m.Put(pendingClarification("req-1"))
	require.Equal(t, 1, m.Len())

	got, ok := m.Consume("req-1")
	require.True(t, ok)
	assert.Equal(t, "do the thing", got.ClarifiedIntent)
	assert.False(t, got.ExpiresAt.IsZero(), "Put stamps the deadline")
	assert.Zero(t, m.Len())

	_, ok = m.Consume("req-1")
	assert.False(t, ok, "clarifications are single-use")
}

func TestPendingConsumeUnknown(t *testing.T) {
	m := NewPendingManager(time.Minute)
	defer m.Shutdown()

	_, ok := m.Consume("nope")
	assert.False(t, ok)
	_, ok = m.Consume("")
	assert.False(t, ok)
}

func TestPendingExpiredEntriesRejected(t *testing.T) {
	m := NewPendingManager(time.Minute)
	defer m.Shutdown()

	now := time.Now()
	m.nowFn = func() time.Time { return now }
	m.Put(pendingClarification("req-1"))

	// Jump past the deadline.
	m.nowFn = func() time.Time { return now.Add(2 * time.Minute) }

	_, ok := m.Consume("req-1")
	assert.False(t, ok, "expired entries never come back")
	assert.Zero(t, m.Len(), "consume removes the entry even when expired")
}

func TestPendingSweepRemovesExpired(t *testing.T) {
	m := NewPendingManager(time.Minute)
	defer m.Shutdown()

	now := time.Now()
	m.nowFn = func() time.Time { return now }
	for i := 0; i < 3; i++ {
		m.Put(pendingClarification(fmt.Sprintf("req-%d", i)))
	}
	require.Equal(t, 3, m.Len())

	m.nowFn = func() time.Time { return now.Add(2 * time.Minute) }
	m.Put(pendingClarification("fresh"))

	m.sweep()
	assert.Equal(t, 1, m.Len(), "only the fresh entry survives the sweep")

	_, ok := m.Consume("fresh")
	assert.True(t, ok)
}

func TestPendingDefaultTTL(t *testing.T) {
	m := NewPendingManager(0)
	defer m.Shutdown()
	assert.Equal(t, defaultPendingTTL, m.TTL())
}

func TestPendingIgnoresInvalidEntries(t *testing.T) {
	m := NewPendingManager(time.Minute)
	defer m.Shutdown()

	m.Put(nil)
	m.Put(&models.Clarification{})
	assert.Zero(t, m.Len())
}

func TestPendingShutdownIdempotent(t *testing.T) {
	m := NewPendingManager(time.Minute)
	m.Shutdown()
	m.Shutdown()
}
