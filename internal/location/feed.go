package location

import (
	"context"
	"errors"
	"sync"
)

// ErrNoFix is returned while no position has been fed yet
var ErrNoFix = errors.New("no position fix available")

// Feed is a Sampler fed externally: the host platform (or the UI layer)
// pushes GPS fixes in, the reporter samples the latest one on its own
// interval.
type Feed struct {
	mu   sync.RWMutex
	last Sample
	ok   bool
}

// NewFeed creates an empty position feed
func NewFeed() *Feed {
	return &Feed{}
}

// Update stores the newest position fix
func (f *Feed) Update(sample Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = sample
	f.ok = true
}

// Sample returns the most recent fix, or ErrNoFix before the first update
func (f *Feed) Sample(_ context.Context) (Sample, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.ok {
		return Sample{}, ErrNoFix
	}
	return f.last, nil
}
