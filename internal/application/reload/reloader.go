package reload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Func is called once per debounced burst of changes
type Func func()

// Config holds reloader configuration
type Config struct {
	// Paths are files or directories to watch. A directory matches any
	// change to its direct children.
	Paths    []string
	Debounce time.Duration
	OnChange Func
	Logger   *zap.Logger
}

// Reloader watches a set of paths and calls OnChange after they settle
type Reloader struct {
	files     map[string]struct{}
	dirs      map[string]struct{}
	watchDirs []string
	debounce  time.Duration
	onChange  Func
	logger    *zap.Logger

	mu      sync.Mutex
	running bool
	watcher *fsnotify.Watcher
	timer   *time.Timer
	seq     uint64
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewReloader creates a new reloader. Paths are resolved to absolute paths;
// files that do not exist yet are watched through their parent directory.
func NewReloader(cfg *Config) (*Reloader, error) {
	if len(cfg.Paths) == 0 {
		return nil, errors.New("at least one path to watch is required")
	}
	if cfg.Debounce <= 0 {
		return nil, fmt.Errorf("debounce must be positive, got %s", cfg.Debounce)
	}
	if cfg.OnChange == nil {
		return nil, errors.New("change callback is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Reloader{
		files:    make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
		debounce: cfg.Debounce,
		onChange: cfg.OnChange,
		logger:   logger,
	}

	watchDirs := make(map[string]struct{})
	for _, p := range cfg.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}

		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			r.dirs[abs] = struct{}{}
			watchDirs[abs] = struct{}{}
			continue
		}

		// Build tools replace binaries by rename, so watch the parent
		r.files[abs] = struct{}{}
		watchDirs[filepath.Dir(abs)] = struct{}{}
	}

	for dir := range watchDirs {
		r.watchDirs = append(r.watchDirs, dir)
	}
	sort.Strings(r.watchDirs)

	return r, nil
}

// Start starts watching
func (r *Reloader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	for _, dir := range r.watchDirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	r.watcher = watcher
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.running = true

	go r.run(watcher, r.stopCh, r.doneCh)

	r.logger.Info("watching for changes",
		zap.Strings("dirs", r.watchDirs),
		zap.Duration("debounce", r.debounce))

	return nil
}

// Stop stops watching. Pending callbacks are dropped.
func (r *Reloader) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	watcher, stopCh, doneCh := r.watcher, r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stopCh)
	<-doneCh

	if err := watcher.Close(); err != nil {
		r.logger.Warn("failed to close watcher", zap.Error(err))
	}
}

// run is the main event loop
func (r *Reloader) run(watcher *fsnotify.Watcher, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-stopCh:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			r.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Error("watcher error", zap.Error(err))
		}
	}
}

// handleEvent arms the debounce timer for changes to watched paths
func (r *Reloader) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if !r.matches(event.Name) {
		return
	}

	r.logger.Debug("change detected",
		zap.String("path", event.Name),
		zap.String("op", event.Op.String()))

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	if r.timer != nil && r.timer.Stop() {
		r.timer.Reset(r.debounce)
		return
	}

	// A timer that already fired may still be waiting on mu; bumping seq
	// makes that callback a no-op
	r.seq++
	seq := r.seq
	r.timer = time.AfterFunc(r.debounce, func() { r.fire(seq) })
}

func (r *Reloader) matches(name string) bool {
	name = filepath.Clean(name)
	if _, ok := r.files[name]; ok {
		return true
	}
	_, ok := r.dirs[filepath.Dir(name)]
	return ok
}

// fire runs when the debounce timer for generation seq expires
func (r *Reloader) fire(seq uint64) {
	r.mu.Lock()
	if seq != r.seq {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	running := r.running
	r.mu.Unlock()

	if !running {
		return
	}

	r.logger.Info("changes settled, triggering reload")
	r.onChange()
}
