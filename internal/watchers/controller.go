package watchers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hidswatch/hidswatch/internal/core/interfaces"
	"github.com/hidswatch/hidswatch/internal/metrics"
	hidserrors "github.com/hidswatch/hidswatch/pkg/errors"
	"github.com/hidswatch/hidswatch/pkg/logger"
	"go.uber.org/zap"
)

const defaultTickInterval = 10 * time.Second

// State is a step in the controller lifecycle
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// ControllerConfig contains configuration for the watch controller
type ControllerConfig struct {
	RootPath     string           // Directory to monitor
	Recursive    bool             // Watch subdirectories
	TickInterval time.Duration    // Liveness tick while running
	OnTick       func(Stats)      // Optional status callback on every tick
	Metrics      *metrics.Metrics // Shared counters, may be nil
	Logger       *zap.Logger      // Defaults to the global logger
}

// Stats is a status snapshot of a controller
type Stats struct {
	State       State
	RootPath    string
	Uptime      time.Duration
	WatchedDirs int
	Counters    metrics.Snapshot
}

// Controller wires a change detector to a notifier and owns the watch lifecycle:
// idle -> running -> stopping -> stopped.
type Controller struct {
	detector  interfaces.ChangeDetector
	notifier  interfaces.AlertNotifier
	config    ControllerConfig
	logger    *zap.Logger
	stopChan  chan struct{}
	wg        sync.WaitGroup
	state     State
	stateMu   sync.RWMutex
	startedAt time.Time
}

// NewController creates a controller in the idle state
func NewController(detector interfaces.ChangeDetector, notifier interfaces.AlertNotifier, config ControllerConfig) (*Controller, error) {
	if detector == nil {
		return nil, fmt.Errorf("change detector is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if config.RootPath == "" {
		return nil, hidserrors.NewConfigError("root path is required", nil)
	}
	if config.TickInterval <= 0 {
		config.TickInterval = defaultTickInterval
	}
	if config.Logger == nil {
		config.Logger = logger.Get()
	}

	return &Controller{
		detector: detector,
		notifier: notifier,
		config:   config,
		logger:   config.Logger,
		stopChan: make(chan struct{}),
		state:    StateIdle,
	}, nil
}

// Start subscribes the detector and begins dispatching events. A detector
// failure is returned unchanged and leaves the controller stopped.
func (c *Controller) Start(ctx context.Context) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if c.state != StateIdle {
		return fmt.Errorf("watch controller is %s", c.state)
	}

	if err := c.detector.Start(ctx, c.config.RootPath, c.config.Recursive); err != nil {
		c.state = StateStopped
		c.logger.Error("Failed to start change detector",
			zap.String("root", c.config.RootPath),
			zap.Error(err),
		)
		return err
	}

	c.wg.Add(1)
	go c.dispatch()

	c.state = StateRunning
	c.startedAt = time.Now()
	c.logger.Info("Watch controller started",
		zap.String("root", c.config.RootPath),
		zap.Bool("recursive", c.config.Recursive),
		zap.Duration("tick_interval", c.config.TickInterval),
	)

	return nil
}

// Run starts the controller, blocks until ctx is cancelled, then stops it
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	return c.Serve(ctx)
}

// Serve ticks a started controller until ctx is cancelled, then stops it
func (c *Controller) Serve(ctx context.Context) error {
	if state := c.State(); state != StateRunning {
		return fmt.Errorf("watch controller is %s", state)
	}

	ticker := time.NewTicker(c.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return c.Stop()
		case <-ticker.C:
			c.tick()
		}
	}
}

// Stop releases the detector and waits for the in-flight notification.
// Calling Stop again, or before Start, does nothing.
func (c *Controller) Stop() error {
	c.stateMu.Lock()
	if c.state != StateRunning {
		c.stateMu.Unlock()
		return nil
	}
	c.state = StateStopping
	c.stateMu.Unlock()

	c.logger.Info("Watch controller stopping")

	close(c.stopChan)
	stopErr := c.detector.Stop()

	// Wait for dispatcher
	c.wg.Wait()

	c.stateMu.Lock()
	c.state = StateStopped
	c.stateMu.Unlock()

	if stopErr != nil {
		if !hidserrors.IsShutdownError(stopErr) {
			stopErr = hidserrors.NewShutdownError("failed to stop change detector", stopErr)
		}
		c.logger.Error("Watch controller stopped uncleanly", zap.Error(stopErr))
		return stopErr
	}

	c.logger.Info("Watch controller stopped")
	return nil
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Stats returns a status snapshot
func (c *Controller) Stats() Stats {
	c.stateMu.RLock()
	state := c.state
	startedAt := c.startedAt
	c.stateMu.RUnlock()

	stats := Stats{
		State:       state,
		RootPath:    c.config.RootPath,
		WatchedDirs: len(c.detector.GetWatchedPaths()),
	}
	if state == StateRunning {
		stats.Uptime = time.Since(startedAt)
	}

	snap, err := c.config.Metrics.Snapshot()
	if err != nil {
		c.logger.Warn("Failed to gather counters", zap.Error(err))
	}
	stats.Counters = snap

	return stats
}

// dispatch hands every detector event to the notifier, one at a time
func (c *Controller) dispatch() {
	defer c.wg.Done()

	events := c.detector.Watch()
	errs := c.detector.Errors()

	for events != nil || errs != nil {
		select {
		case <-c.stopChan:
			return

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			// The notifier reports its own failures; they never stop dispatch
			if err := c.notifier.Notify(event); err != nil {
				c.logger.Debug("Alert delivery incomplete",
					zap.String("path", event.Path),
					zap.Error(err),
				)
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.logger.Error("Change detector error", zap.Error(err))
		}
	}
}

// tick is the liveness heartbeat while running
func (c *Controller) tick() {
	stats := c.Stats()
	c.logger.Info("Watch controller alive",
		zap.String("root", stats.RootPath),
		zap.Duration("uptime", stats.Uptime),
		zap.Int("watched_dirs", stats.WatchedDirs),
		zap.Float64("events_observed", stats.Counters.TotalObserved()),
		zap.Float64("alerts_emitted", stats.Counters.TotalEmitted()),
		zap.Float64("alerts_suppressed", stats.Counters.AlertsSuppressed),
	)
	if c.config.OnTick != nil {
		c.config.OnTick(stats)
	}
}
