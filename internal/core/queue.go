package core

import (
	"sort"
	"sync"
	"time"
)

// Action is the reconciliation owed to a path.
type Action int

const (
	ActionRefresh Action = iota
	ActionRemove
)

func (a Action) String() string {
	if a == ActionRemove {
		return "remove"
	}
	return "refresh"
}

// PendingAction pairs a path with the action owed to it.
type PendingAction struct {
	Path   string
	Action Action
}

type pendingEntry struct {
	action Action
	seq    uint64
}

// PendingQueue holds at most one action per path. A later signal for the
// same path replaces the earlier one; Take returns entries in the order of
// their latest signal.
type PendingQueue struct {
	mu      sync.Mutex
	pending map[string]pendingEntry
	seq     uint64
}

// NewPendingQueue creates an empty queue.
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{pending: make(map[string]pendingEntry)}
}

// Set records the action owed to path, replacing any earlier one.
func (q *PendingQueue) Set(path string, action Action) {
	q.SetMany(PendingAction{Path: path, Action: action})
}

// SetMany records several actions atomically, in order.
func (q *PendingQueue) SetMany(items ...PendingAction) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range items {
		q.seq++
		q.pending[it.Path] = pendingEntry{action: it.Action, seq: q.seq}
	}
}

// Take removes and returns every pending action.
func (q *PendingQueue) Take() []PendingAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	type entry struct {
		PendingAction
		seq uint64
	}
	entries := make([]entry, 0, len(q.pending))
	for p, e := range q.pending {
		entries = append(entries, entry{PendingAction{Path: p, Action: e.action}, e.seq})
	}
	q.pending = make(map[string]pendingEntry)

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]PendingAction, len(entries))
	for i, e := range entries {
		out[i] = e.PendingAction
	}
	return out
}

// Restore puts back actions that were taken but not applied. A path that has
// been signaled again since keeps its newer action.
func (q *PendingQueue) Restore(items []PendingAction) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range items {
		if _, newer := q.pending[it.Path]; newer {
			continue
		}
		q.seq++
		q.pending[it.Path] = pendingEntry{action: it.Action, seq: q.seq}
	}
}

// Get returns the action pending for path, if any.
func (q *PendingQueue) Get(path string) (Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.pending[path]
	return e.action, ok
}

// Len returns the number of pending paths.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Clear drops every pending action.
func (q *PendingQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = make(map[string]pendingEntry)
}

// Debouncer runs fn once after interval has passed without a new Trigger.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	fn       func()
	timer    *time.Timer
	stopped  bool
}

// NewDebouncer creates a trailing-edge debouncer.
func NewDebouncer(interval time.Duration, fn func()) *Debouncer {
	return &Debouncer{interval: interval, fn: fn}
}

// Trigger (re)starts the quiet window.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer == nil {
		d.timer = time.AfterFunc(d.interval, d.fire)
		return
	}
	d.timer.Reset(d.interval)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if !stopped {
		d.fn()
	}
}

// Stop cancels the pending run and disables further triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
