// Package screen samples the foreground window on a fixed cadence and emits
// deduplicated, redacted snapshots.
package screen

import (
	"context"
	"errors"
	"sync"

	"github.com/thebtf/aura/pkg/models"
)

// ErrNoFrame means no frame is available for the current tick. Sampling
// treats it as a quiet tick, not a failure.
var ErrNoFrame = errors.New("screen: no frame available")

// FrameSource produces the most recent view of the foreground window.
type FrameSource interface {
	Capture(ctx context.Context) (*models.Frame, error)
}

// PushSource buffers the latest frame pushed by a platform shell over the
// ingest API. Capture drains nothing; it returns the newest frame each tick
// until a newer one replaces it.
type PushSource struct {
	mu    sync.RWMutex
	frame *models.Frame
}

// NewPushSource returns an empty push source.
func NewPushSource() *PushSource {
	return &PushSource{}
}

// Push stores the frame as the current view.
func (p *PushSource) Push(frame models.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frame = &frame
}

// Capture implements FrameSource.
func (p *PushSource) Capture(_ context.Context) (*models.Frame, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.frame == nil {
		return nil, ErrNoFrame
	}
	f := *p.frame
	return &f, nil
}
