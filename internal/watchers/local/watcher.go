package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hidswatch/hidswatch/internal/metrics"
	hidserrors "github.com/hidswatch/hidswatch/pkg/errors"
	"github.com/hidswatch/hidswatch/pkg/logger"
	"github.com/hidswatch/hidswatch/pkg/models"
	"go.uber.org/zap"
)

const defaultBufferSize = 100

// Options configures a HidsWatcher
type Options struct {
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	BufferSize int              // capacity of the event channel
	Clock      func() time.Time // stamps ObservedAt; defaults to time.Now
}

// HidsWatcher implements the ChangeDetector interface using fsnotify
type HidsWatcher struct {
	watcher    *fsnotify.Watcher
	root       string
	recursive  bool
	paths      map[string]bool // directories being watched
	pathsMu    sync.RWMutex
	eventsChan chan models.Event
	errorsChan chan error
	stopChan   chan struct{}
	metrics    *metrics.Metrics
	logger     *zap.Logger
	clock      func() time.Time
	wg         sync.WaitGroup
	isRunning  bool
	exited     atomic.Bool // monitor returned, e.g. on context cancellation
	stopped    bool
	runningMu  sync.RWMutex
}

// NewHidsWatcher creates a new change detector. No OS resources are
// acquired until Start.
func NewHidsWatcher(opts Options) *HidsWatcher {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &HidsWatcher{
		paths:      make(map[string]bool),
		eventsChan: make(chan models.Event, opts.BufferSize),
		errorsChan: make(chan error, 10),
		stopChan:   make(chan struct{}),
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		clock:      opts.Clock,
	}
}

// Start begins watching root for file system events. Any failure leaves no
// goroutine and no OS watch behind.
func (hw *HidsWatcher) Start(ctx context.Context, root string, recursive bool) error {
	hw.runningMu.Lock()
	defer hw.runningMu.Unlock()

	if hw.isRunning {
		return fmt.Errorf("watcher is already running")
	}
	if hw.stopped {
		return fmt.Errorf("watcher has been stopped")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return hidserrors.NewWatchSetupError("failed to get absolute path", err).WithContext("path", root)
	}

	// WalkDir does not follow a symlinked root, so watch the directory it names
	resolved, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return hidserrors.NewWatchSetupError("root path does not exist or is inaccessible", err).
			WithContext("path", absRoot)
	}
	if resolved != absRoot {
		hw.logger.Info("Watch root is a symlink; watching its target",
			zap.String("root", absRoot),
			zap.String("target", resolved),
		)
		absRoot = resolved
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return hidserrors.NewWatchSetupError("root path does not exist or is inaccessible", err).
			WithContext("path", absRoot)
	}
	if !info.IsDir() {
		return hidserrors.NewWatchSetupError(fmt.Sprintf("root path is not a directory: %s", absRoot), nil).
			WithContext("path", absRoot)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return hidserrors.NewWatchSetupError("failed to create fsnotify watcher", err)
	}

	hw.watcher = w
	hw.root = absRoot
	hw.recursive = recursive

	hw.pathsMu.Lock()
	if recursive {
		err = hw.addRecursive(absRoot)
	} else {
		err = hw.addDir(absRoot)
	}
	if err == nil && len(hw.paths) == 0 {
		err = fmt.Errorf("no directories could be watched under %s", absRoot)
	}
	hw.pathsMu.Unlock()

	if err != nil {
		w.Close()
		hw.watcher = nil
		hw.pathsMu.Lock()
		hw.paths = make(map[string]bool)
		hw.pathsMu.Unlock()
		return hidserrors.NewWatchSetupError("failed to watch root path", err).WithContext("path", absRoot)
	}

	hw.wg.Add(1)
	go hw.monitor(ctx)

	hw.isRunning = true
	hw.logger.Info("Change detector started",
		zap.String("root", absRoot),
		zap.Bool("recursive", recursive),
		zap.Int("directories", len(hw.GetWatchedPaths())),
	)

	return nil
}

// Stop stops the change detector and closes its channels
func (hw *HidsWatcher) Stop() error {
	hw.runningMu.Lock()
	defer hw.runningMu.Unlock()

	if !hw.isRunning {
		return nil
	}

	close(hw.stopChan)

	// Wait for monitor goroutine to finish
	hw.wg.Wait()

	// Close the fsnotify watcher
	err := hw.watcher.Close()

	close(hw.eventsChan)
	close(hw.errorsChan)

	hw.pathsMu.Lock()
	hw.paths = make(map[string]bool)
	hw.pathsMu.Unlock()

	hw.isRunning = false
	hw.stopped = true

	if err != nil {
		return hidserrors.NewShutdownError("failed to release fsnotify watcher", err)
	}

	hw.logger.Info("Change detector stopped", zap.String("root", hw.root))
	return nil
}

// Watch returns the channel for receiving change events
func (hw *HidsWatcher) Watch() <-chan models.Event {
	return hw.eventsChan
}

// Errors returns the channel for receiving backend errors
func (hw *HidsWatcher) Errors() <-chan error {
	return hw.errorsChan
}

// IsWatching checks if currently watching
func (hw *HidsWatcher) IsWatching() bool {
	hw.runningMu.RLock()
	defer hw.runningMu.RUnlock()
	return hw.isRunning && !hw.exited.Load()
}

// GetWatchedPaths returns a list of all watched directories
func (hw *HidsWatcher) GetWatchedPaths() []string {
	hw.pathsMu.RLock()
	defer hw.pathsMu.RUnlock()

	paths := make([]string, 0, len(hw.paths))
	for path := range hw.paths {
		paths = append(paths, path)
	}
	return paths
}

// monitor is the delivery goroutine
func (hw *HidsWatcher) monitor(ctx context.Context) {
	defer hw.wg.Done()
	defer hw.exited.Store(true)

	for {
		select {
		case <-ctx.Done():
			hw.logger.Debug("Change detector context cancelled", zap.String("root", hw.root))
			return
		case <-hw.stopChan:
			return
		case event, ok := <-hw.watcher.Events:
			if !ok {
				return
			}
			hw.handleEvent(event)
		case err, ok := <-hw.watcher.Errors:
			if !ok {
				return
			}
			hw.logger.Error("File watcher error", zap.Error(err))
			select {
			case hw.errorsChan <- err:
			default:
			}
		}
	}
}

// handleEvent classifies one raw notification and forwards it unfiltered
func (hw *HidsWatcher) handleEvent(raw fsnotify.Event) {
	kind, ok := mapOp(raw.Op)
	if !ok {
		return
	}

	event := models.Event{
		Kind:       kind,
		Path:       raw.Name,
		ObservedAt: hw.clock(),
	}

	switch kind {
	case models.EventCreated:
		if hw.recursive {
			hw.trackNewDirectory(raw.Name)
		}
	case models.EventDeleted:
		hw.forgetDirectory(raw.Name)
	}

	hw.metrics.ObserveEvent(kind)

	select {
	case hw.eventsChan <- event:
		hw.logger.Debug("File change detected",
			zap.String("path", event.Path),
			zap.String("kind", kind.String()),
			zap.String("op", raw.Op.String()),
		)
	case <-hw.stopChan:
	}
}

// mapOp maps fsnotify operations to event kinds. A rename reports the old
// name leaving the tree; the new name arrives as its own Create.
func mapOp(op fsnotify.Op) (models.EventKind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return models.EventCreated, true
	case op.Has(fsnotify.Write):
		return models.EventModified, true
	case op.Has(fsnotify.Remove):
		return models.EventDeleted, true
	case op.Has(fsnotify.Rename):
		return models.EventDeleted, true
	case op.Has(fsnotify.Chmod):
		return models.EventModified, true
	default:
		return "", false
	}
}

// trackNewDirectory adds a directory created under a recursive watch
func (hw *HidsWatcher) trackNewDirectory(path string) {
	info, err := os.Lstat(path)
	if err != nil || !info.IsDir() {
		return
	}

	hw.pathsMu.Lock()
	err = hw.addRecursive(path)
	hw.pathsMu.Unlock()
	if err != nil {
		hw.logger.Warn("Failed to add new directory to watcher",
			zap.String("path", path),
			zap.Error(err),
		)
	}
}

// forgetDirectory drops bookkeeping for a removed or renamed directory
func (hw *HidsWatcher) forgetDirectory(path string) {
	hw.pathsMu.Lock()
	defer hw.pathsMu.Unlock()

	prefix := path + string(filepath.Separator)
	for watched := range hw.paths {
		if watched == path || strings.HasPrefix(watched, prefix) {
			// fsnotify drops removed watches itself; a renamed directory is
			// still watched under its old name until removed here
			_ = hw.watcher.Remove(watched)
			delete(hw.paths, watched)
		}
	}
}

// addDir adds a single directory; callers hold pathsMu
func (hw *HidsWatcher) addDir(dir string) error {
	if hw.paths[dir] {
		return nil
	}
	if err := hw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to add directory %s: %w", dir, err)
	}
	hw.paths[dir] = true
	return nil
}

// addRecursive adds dir and every directory below it; callers hold pathsMu.
// Only a failure on dir itself is returned; unreadable subdirectories are
// logged and skipped.
func (hw *HidsWatcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			hw.logger.Warn("Skipping unreadable path", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		// Files are watched through their parent directory
		if !d.IsDir() {
			return nil
		}

		if err := hw.addDir(path); err != nil {
			if path == dir {
				return err
			}
			hw.logger.Warn("Failed to watch subdirectory", zap.String("path", path), zap.Error(err))
			return filepath.SkipDir
		}
		return nil
	})
}
