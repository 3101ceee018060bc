package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handle is a thread-safe holder for the current catalog. resolution code reads
// Current() once per call; reloads swap the whole pointer so a reader never
// observes a half-updated capability list.
type Handle struct {
	cur atomic.Pointer[Catalog]
}

// NewHandle creates a handle seeded with the given catalog.
func NewHandle(c *Catalog) *Handle {
	h := &Handle{}
	h.cur.Store(c)
	return h
}

// Current returns the current catalog.
func (h *Handle) Current() *Catalog {
	return h.cur.Load()
}

// Swap atomically replaces the current catalog.
func (h *Handle) Swap(c *Catalog) {
	if c == nil {
		return
	}
	h.cur.Store(c)
}

// logger is the minimal logging interface the watcher needs.
type logger interface {
	Print(format string, args ...any)
}

// Watcher reloads catalog override files on change and swaps them into a Handle.
// a failed reload keeps the previous catalog serving: hot reload must never leave
// the engine without a usable catalog.
type Watcher struct {
	handle     *Handle
	localPath  string
	globalPath string
	debounce   time.Duration
	log        logger
	onReload   func(*Catalog)
}

// NewWatcher creates a watcher over the given override files. either path may be
// empty. onReload may be nil; when set it fires after each successful swap.
func NewWatcher(handle *Handle, localPath, globalPath string, log logger, onReload func(*Catalog)) *Watcher {
	return &Watcher{
		handle:     handle,
		localPath:  localPath,
		globalPath: globalPath,
		debounce:   200 * time.Millisecond,
		log:        log,
		onReload:   onReload,
	}
}

// Watch blocks until the context is canceled, reloading the catalog when any
// watched file changes. editors often replace files (write temp + rename), so
// the parent directories are watched and events are debounced.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	watched := map[string]bool{}
	dirs := map[string]bool{}
	for _, p := range []string{w.localPath, w.globalPath} {
		if p == "" {
			continue
		}
		abs, absErr := filepath.Abs(p)
		if absErr != nil {
			continue
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	if len(dirs) == 0 {
		<-ctx.Done()
		return nil
	}
	for dir := range dirs {
		if addErr := fsw.Add(dir); addErr != nil {
			w.log.Print("[WARN] cannot watch %s: %v", dir, addErr)
		}
	}

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			abs, absErr := filepath.Abs(ev.Name)
			if absErr != nil || !watched[abs] {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			// debounce bursts of events for one logical save
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			w.reload()

		case watchErr, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Print("[WARN] catalog watch error: %v", watchErr)
		}
	}
}

// reload re-reads the catalog files and swaps the handle on success.
func (w *Watcher) reload() {
	c, err := Load(w.localPath, w.globalPath)
	if err != nil {
		w.log.Print("[WARN] catalog reload failed, keeping previous: %v", err)
		return
	}
	w.handle.Swap(c)
	w.log.Print("catalog reloaded: %d skills, %d providers", len(c.skills), len(c.providers))
	if w.onReload != nil {
		w.onReload(c)
	}
}
