package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Hook is the host's replaceable backlink query slot. Callers query through
// the hook; the service swaps its façade in on Start and back out on Close.
type Hook struct {
	mu      sync.RWMutex
	current Backlinker
}

// NewHook creates a hook holding initial.
func NewHook(initial Backlinker) *Hook {
	return &Hook{current: initial}
}

// Load returns the installed entry point.
func (h *Hook) Load() Backlinker {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Swap installs b and returns the previous entry point.
func (h *Hook) Swap(b Backlinker) Backlinker {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.current
	h.current = b
	return prev
}

// Restore puts prev back if ours is still installed.
func (h *Hook) Restore(ours, prev Backlinker) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != ours {
		return false
	}
	h.current = prev
	return true
}

// Backlinks queries the installed entry point.
func (h *Hook) Backlinks(ctx context.Context, path string) ([]Backlink, error) {
	b := h.Load()
	if b == nil {
		return nil, errors.New("no backlink provider installed")
	}
	return b.Backlinks(ctx, path)
}

// Facade answers backlink queries from the link graph.
type Facade struct {
	svc *Service

	mu       sync.RWMutex
	original Backlinker
}

func newFacade(svc *Service) *Facade {
	return &Facade{svc: svc}
}

func (f *Facade) setOriginal(b Backlinker) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.original = b
}

// Backlinks is the default query mode installed into the hook: Fast.
func (f *Facade) Backlinks(ctx context.Context, path string) ([]Backlink, error) {
	return f.Fast(path), nil
}

// Fast returns the current graph state without waiting. If actions are
// pending, a background drain is scheduled so later queries converge.
func (f *Facade) Fast(path string) []Backlink {
	queryTotal.WithLabelValues("fast").Inc()
	f.svc.scheduleDrain()
	return f.svc.graph.Backlinks(NormalizePath(path))
}

// Safe applies every action signaled before the call, then reads. It fails
// with ErrSafeQueryTimeout if that takes longer than the configured timeout.
func (f *Facade) Safe(ctx context.Context, path string) ([]Backlink, error) {
	queryTotal.WithLabelValues("safe").Inc()
	ctx, cancel := context.WithTimeout(ctx, f.svc.cfg.SafeTimeout)
	defer cancel()
	if err := f.svc.Drain(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			safeQueryTimeouts.Inc()
			return nil, fmt.Errorf("%w: %s", ErrSafeQueryTimeout, path)
		}
		return nil, err
	}
	return f.svc.graph.Backlinks(NormalizePath(path)), nil
}

// Original returns the entry point that was installed before the façade,
// nil if there was none.
func (f *Facade) Original() Backlinker {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.original
}
