package core

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// renameWindow is how long a vanished path waits for the matching create
// before it is reported as deleted.
const renameWindow = 50 * time.Millisecond

// Watcher is an EventSource over a vault directory backed by fsnotify.
// A rename followed by a create within renameWindow is reported as one
// EventRenamed; an unmatched rename is reported as EventDeleted.
type Watcher struct {
	vault   *Vault
	watcher *fsnotify.Watcher
	log     *slog.Logger

	mu     sync.RWMutex
	subs   map[int]func(Event)
	nextID int

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher for vault. Call Start to begin delivering events.
func NewWatcher(vault *Vault, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		vault:   vault,
		watcher: fw,
		log:     log,
		subs:    make(map[int]func(Event)),
		done:    make(chan struct{}),
	}, nil
}

// Subscribe registers fn for every event.
func (w *Watcher) Subscribe(fn func(Event)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.subs[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}
}

// Start watches every non-hidden directory of the vault.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.vault.Root()); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.processEvents(ctx)
	return nil
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Ignore errors, continue walking
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.vault.Root() {
			if _, ok := w.vault.Rel(path); !ok {
				return filepath.SkipDir
			}
		}
		return w.watcher.Add(path)
	})
}

type pendingRename struct {
	path  string
	timer *time.Timer
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()

	var pending *pendingRename
	var pendingC <-chan time.Time
	flush := func() {
		if pending == nil {
			return
		}
		pending.timer.Stop()
		w.emit(Event{Op: EventDeleted, Path: pending.path})
		pending, pendingC = nil, nil
	}
	defer flush()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-pendingC:
			flush()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			rel, ok := w.vault.Rel(event.Name)
			if !ok {
				continue
			}
			switch {
			case event.Has(fsnotify.Create):
				if isDir(event.Name) {
					// New directories are watched, and their files announced.
					if err := w.addRecursive(event.Name); err != nil {
						w.log.Warn("watch directory failed", "path", rel, "err", err)
					}
				}
				if pending != nil {
					old := pending.path
					pending.timer.Stop()
					pending, pendingC = nil, nil
					w.emit(Event{Op: EventRenamed, Path: rel, OldPath: old})
					continue
				}
				if isDir(event.Name) {
					w.announceDir(event.Name)
					continue
				}
				w.emit(Event{Op: EventCreated, Path: rel})
			case event.Has(fsnotify.Write):
				if !isDir(event.Name) {
					w.emit(Event{Op: EventModified, Path: rel})
				}
			case event.Has(fsnotify.Remove):
				w.emit(Event{Op: EventDeleted, Path: rel})
			case event.Has(fsnotify.Rename):
				flush()
				t := time.NewTimer(renameWindow)
				pending, pendingC = &pendingRename{path: rel, timer: t}, t.C
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "err", err)
		}
	}
}

// announceDir emits a create event for every file already inside a newly
// created directory.
func (w *Watcher) announceDir(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, ok := w.vault.Rel(path); ok {
			w.emit(Event{Op: EventCreated, Path: rel})
		}
		return nil
	})
}

func (w *Watcher) emit(ev Event) {
	w.mu.RLock()
	subs := make([]func(Event), 0, len(w.subs))
	for _, fn := range w.subs {
		subs = append(subs, fn)
	}
	w.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
