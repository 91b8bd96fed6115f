package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Options configures a Service.
type Options struct {
	Store     DocumentStore
	Resolver  PathIndex // nil = NewVaultResolver(Config.Resolver.CacheSize)
	Extractor Extractor // nil = MarkdownExtractor
	Hook      *Hook     // optional query slot the façade is installed into
	Config    Config
	Logger    *slog.Logger
}

// Service keeps the link graph in sync with a document store. Mutation
// events are coalesced into a pending queue and applied by debounced drains;
// at most one drain runs at a time.
type Service struct {
	cfg       Config
	log       *slog.Logger
	store     DocumentStore
	resolver  PathIndex
	extractor Extractor
	graph     *Graph
	queue     *PendingQueue
	debouncer *Debouncer
	canvas    *CanvasAdapter
	facade    *Facade
	hook      *Hook
	previous  Backlinker

	drainSem chan struct{}
	kick     singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	started   bool
	installed bool
	closed    bool
	listeners []func(paths []string)
	unsubs    []func()

	drains    atomic.Int64
	lastDrain atomic.Int64 // unix nanos
}

// NewService wires a service from opts. Call Start to bootstrap it.
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("document store is required")
	}
	cfg := opts.Config.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	resolver := opts.Resolver
	if resolver == nil {
		resolver = NewVaultResolver(cfg.Resolver.CacheSize)
	}
	extractor := opts.Extractor
	if extractor == nil {
		extractor = MarkdownExtractor{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:       cfg,
		log:       log,
		store:     opts.Store,
		resolver:  resolver,
		extractor: extractor,
		queue:     NewPendingQueue(),
		canvas:    NewCanvasAdapter(opts.Store, extractor, log, cfg.CanvasEnabled()),
		hook:      opts.Hook,
		drainSem:  make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
	var stat func(string) (DocumentInfo, error)
	if cfg.SortOrder.NeedsStat() {
		stat = opts.Store.Stat
	}
	s.graph = NewGraph(GraphOptions{
		Resolver: resolver,
		Compare:  ComparerFor(cfg.SortOrder),
		Stat:     stat,
	})
	s.debouncer = NewDebouncer(cfg.Debounce, func() {
		if err := s.Drain(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("debounced drain failed", "err", err)
		}
	})
	s.facade = newFacade(s)
	return s, nil
}

// Start indexes every document, then installs the façade into the hook.
// Per-document failures are logged and skipped.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	err := s.acquire(ctx)
	if err == nil {
		err = s.bootstrap(ctx)
		s.release()
	}
	if err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return err
	}
	s.install()
	return nil
}

func (s *Service) bootstrap(ctx context.Context) error {
	start := time.Now()
	docs, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	paths := make([]string, 0, len(docs))
	for _, d := range docs {
		if !s.cfg.Excluded(d.Path) {
			paths = append(paths, d.Path)
		}
	}
	s.resolver.Reset(paths)

	indexed := 0
	for _, p := range paths {
		if !isIndexable(p) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.canvas.Handles(p) {
			if err := s.canvas.Index(ctx, p); err != nil {
				s.log.Warn("canvas index failed", "path", p, "err", err)
			}
		}
		if err := s.refresh(ctx, p); err != nil {
			s.log.Warn("initial index failed", "path", p, "err", err)
			continue
		}
		indexed++
	}
	st := s.graph.Stats()
	recordGraphSize(st)
	s.log.Info("link graph built",
		"documents", len(paths),
		"indexed", indexed,
		"edges", st.Edges,
		"references", st.References,
		"elapsed", time.Since(start))
	return nil
}

func (s *Service) install() {
	if s.hook == nil {
		return
	}
	s.previous = s.hook.Swap(s.facade)
	s.facade.setOriginal(s.previous)
	s.mu.Lock()
	s.installed = true
	s.mu.Unlock()
}

// Attach subscribes the service to src until Close.
func (s *Service) Attach(src EventSource) {
	unsub := src.Subscribe(s.Handle)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		unsub()
		return
	}
	s.unsubs = append(s.unsubs, unsub)
}

// Handle translates a mutation event into pending actions. The resolver's
// path set is updated immediately; graph mutations wait for the next drain.
func (s *Service) Handle(ev Event) {
	if s.isClosed() {
		return
	}
	p := NormalizePath(ev.Path)
	s.log.Debug("document event", "op", ev.Op, "path", p, "old_path", ev.OldPath)

	switch ev.Op {
	case EventCreated, EventModified:
		s.enqueue(s.appeared(p)...)

	case EventDeleted:
		paths := []string{p}
		if !s.resolver.Has(p) {
			// A directory went away; its documents go with it.
			paths = s.resolver.Under(p)
		}
		items := make([]PendingAction, 0, len(paths))
		for _, q := range paths {
			s.resolver.Remove(q)
			s.canvas.Forget(q)
			items = append(items, PendingAction{Path: q, Action: ActionRemove})
		}
		for _, q := range paths {
			items = append(items, s.inboundRefreshes(q, paths...)...)
		}
		s.enqueue(items...)

	case EventRenamed:
		old := NormalizePath(ev.OldPath)
		pairs := [][2]string{{old, p}}
		if !s.resolver.Has(old) {
			pairs = nil
			for _, q := range s.resolver.Under(old) {
				pairs = append(pairs, [2]string{q, p + q[len(old):]})
			}
		}
		if len(pairs) == 0 {
			// Nothing was indexed under the old path, typically a move out
			// of an excluded folder: the new path is simply new.
			s.enqueue(s.arrived(p)...)
			return
		}
		var items []PendingAction
		for _, pair := range pairs {
			items = append(items, s.renameActions(pair[0], pair[1])...)
		}
		s.enqueue(items...)
	}
}

// appeared registers p if it is new and returns its refresh plus the
// refreshes of sources waiting on it. A changed canvas is marked unindexed;
// the drain reparses it.
func (s *Service) appeared(p string) []PendingAction {
	if s.cfg.Excluded(p) {
		return nil
	}
	items := []PendingAction{{Path: p, Action: ActionRefresh}}
	if !s.resolver.Has(p) {
		// Some writers replace files without a create notification.
		s.resolver.Add(p)
		items = append(items, s.danglingRefreshes(p)...)
	}
	if s.canvas.Handles(p) {
		s.canvas.Forget(p)
	}
	return items
}

// arrived handles a path moved in from outside the index. A directory
// contributes every document beneath it.
func (s *Service) arrived(p string) []PendingAction {
	if _, err := s.store.Stat(p); err == nil {
		return s.appeared(p)
	}
	docs, err := s.store.List(s.ctx)
	if err != nil {
		s.log.Warn("list moved directory failed", "path", p, "err", err)
		return nil
	}
	var items []PendingAction
	for _, d := range docs {
		if hasPathPrefix(d.Path, p) {
			items = append(items, s.appeared(d.Path)...)
		}
	}
	return items
}

// renameActions removes the old path and refreshes the new one. Both are
// queued together so no drain observes only half of the rename.
func (s *Service) renameActions(oldPath, newPath string) []PendingAction {
	s.resolver.Remove(oldPath)
	s.canvas.Rename(oldPath, newPath)
	items := []PendingAction{{Path: oldPath, Action: ActionRemove}}
	if s.cfg.Excluded(newPath) {
		s.canvas.Forget(newPath)
		return append(items, s.inboundRefreshes(oldPath, oldPath)...)
	}
	s.resolver.Add(newPath)
	items = append(items, PendingAction{Path: newPath, Action: ActionRefresh})
	items = append(items, s.danglingRefreshes(newPath)...)
	return append(items, s.inboundRefreshes(oldPath, oldPath, newPath)...)
}

// inboundRefreshes returns refreshes for the sources currently linking to p,
// whose links may resolve elsewhere once p is gone. Paths in skip are left out.
func (s *Service) inboundRefreshes(p string, skip ...string) []PendingAction {
	var items []PendingAction
	for _, src := range s.graph.Sources(p) {
		if !slices.Contains(skip, src) {
			items = append(items, PendingAction{Path: src, Action: ActionRefresh})
		}
	}
	return items
}

// danglingRefreshes returns refreshes for sources whose unresolved links may
// now resolve to p.
func (s *Service) danglingRefreshes(p string) []PendingAction {
	var items []PendingAction
	for _, src := range s.graph.Dangling(nameKeys(p)...) {
		if src != p {
			items = append(items, PendingAction{Path: src, Action: ActionRefresh})
		}
	}
	return items
}

// TriggerRefresh signals that path's outbound links may have changed.
func (s *Service) TriggerRefresh(path string) {
	s.enqueue(PendingAction{Path: NormalizePath(path), Action: ActionRefresh})
}

// TriggerRemove signals that path no longer exists.
func (s *Service) TriggerRemove(path string) {
	s.enqueue(PendingAction{Path: NormalizePath(path), Action: ActionRemove})
}

func (s *Service) enqueue(items ...PendingAction) {
	if len(items) == 0 || s.isClosed() {
		return
	}
	s.queue.SetMany(items...)
	pendingActions.Set(float64(s.queue.Len()))
	s.debouncer.Trigger()
}

// Drain applies every pending action. Drains never overlap; a caller waits
// for a running drain first. ctx is checked before each path; on
// cancellation the unapplied actions are put back and ctx's error returned.
func (s *Service) Drain(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	batch := s.queue.Take()
	if len(batch) == 0 {
		return nil
	}
	start := time.Now()
	for i, item := range batch {
		if err := ctx.Err(); err != nil {
			s.requeue(batch[i:])
			return err
		}
		err := s.apply(ctx, item)
		if err != nil && ctx.Err() != nil {
			s.requeue(batch[i:])
			return ctx.Err()
		}
		actionTotal.WithLabelValues(item.Action.String(), resultLabel(err)).Inc()
		switch {
		case err == nil:
		case errors.Is(err, ErrMissingDocument):
			s.log.Debug("document vanished before refresh", "path", item.Path)
		default:
			s.log.Warn("backlink action failed", "path", item.Path, "action", item.Action, "err", err)
		}
	}

	s.drains.Add(1)
	s.lastDrain.Store(time.Now().UnixNano())
	drainTotal.Inc()
	drainDuration.Observe(time.Since(start).Seconds())
	pendingActions.Set(float64(s.queue.Len()))
	recordGraphSize(s.graph.Stats())
	s.log.Debug("pending actions applied", "count", len(batch), "elapsed", time.Since(start))

	if s.cfg.NotifyOnChange {
		paths := make([]string, len(batch))
		for i, item := range batch {
			paths[i] = item.Path
		}
		s.notify(paths)
	}
	return nil
}

func (s *Service) requeue(items []PendingAction) {
	s.queue.Restore(items)
	pendingActions.Set(float64(s.queue.Len()))
	if s.ctx.Err() == nil {
		s.debouncer.Trigger()
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMissingDocument):
		return "missing"
	case errors.Is(err, ErrStaleMetadata):
		return "stale"
	default:
		return "error"
	}
}

func (s *Service) acquire(ctx context.Context) error {
	select {
	case s.drainSem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) release() { <-s.drainSem }

func (s *Service) apply(ctx context.Context, item PendingAction) error {
	if item.Action == ActionRemove {
		s.graph.Remove(item.Path)
		return nil
	}
	return s.refresh(ctx, item.Path)
}

// refresh re-extracts path and replaces its outbound edges. A vanished
// document has its outbound edges cleared.
func (s *Service) refresh(ctx context.Context, p string) error {
	if !isIndexable(p) {
		return nil
	}
	meta, err := s.metadata(ctx, p)
	if err != nil {
		if errors.Is(err, ErrMissingDocument) {
			s.graph.Refresh(p, nil)
		}
		return err
	}
	s.graph.Refresh(p, meta.References)
	return nil
}

// scheduleDrain starts a background drain unless one is already scheduled.
func (s *Service) scheduleDrain() {
	if s.queue.Len() == 0 {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		_, _, _ = s.kick.Do("drain", func() (any, error) {
			if err := s.Drain(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Warn("background drain failed", "err", err)
			}
			return nil, nil
		})
	}()
}

// SetCanvasEnabled toggles container indexing. Enabling indexes and refreshes
// every container document; disabling drops the side cache and refreshes
// them to empty.
func (s *Service) SetCanvasEnabled(ctx context.Context, enabled bool) error {
	if s.canvas.Enabled() == enabled {
		return nil
	}
	s.canvas.SetEnabled(enabled)
	docs, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}
	var items []PendingAction
	for _, d := range docs {
		if !s.canvas.Handles(d.Path) || s.cfg.Excluded(d.Path) {
			continue
		}
		if enabled {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.canvas.Index(ctx, d.Path); err != nil {
				s.log.Warn("canvas index failed", "path", d.Path, "err", err)
			}
		}
		items = append(items, PendingAction{Path: d.Path, Action: ActionRefresh})
	}
	s.log.Info("canvas indexing toggled", "enabled", enabled, "documents", len(items))
	s.enqueue(items...)
	return nil
}

// OnChange registers fn to receive the paths of each non-empty drain when
// notify_on_change is set.
func (s *Service) OnChange(fn func(paths []string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Service) notify(paths []string) {
	s.mu.Lock()
	listeners := append([]func([]string){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(paths)
	}
}

// Graph returns the underlying link graph.
func (s *Service) Graph() *Graph { return s.graph }

// Facade returns the query façade.
func (s *Service) Facade() *Facade { return s.facade }

// Resolver returns the path index used for link resolution.
func (s *Service) Resolver() PathIndex { return s.resolver }

// Pending returns the number of paths awaiting reconciliation.
func (s *Service) Pending() int { return s.queue.Len() }

// ServiceStats summarizes the service state.
type ServiceStats struct {
	Graph     GraphStats
	Pending   int
	Drains    int64
	LastDrain time.Time
	Canvas    bool
}

// Stats returns the current counters.
func (s *Service) Stats() ServiceStats {
	st := ServiceStats{
		Graph:   s.graph.Stats(),
		Pending: s.queue.Len(),
		Drains:  s.drains.Load(),
		Canvas:  s.canvas.Enabled(),
	}
	if ns := s.lastDrain.Load(); ns > 0 {
		st.LastDrain = time.Unix(0, ns)
	}
	return st
}

func (s *Service) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close detaches event sources, restores the previous query entry point,
// waits for in-flight drains and discards all state. Pending actions are
// dropped. Close is idempotent.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	installed := s.installed
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if installed {
		if !s.hook.Restore(s.facade, s.previous) {
			s.log.Warn("query hook was replaced by another component; leaving it in place")
		}
	}

	s.cancel()
	s.debouncer.Stop()
	s.wg.Wait()
	s.drainSem <- struct{}{}
	defer s.release()

	s.queue.Clear()
	s.graph.Reset()
	s.canvas.Reset()
	pendingActions.Set(0)
	s.log.Debug("backlink service closed")
	return nil
}
