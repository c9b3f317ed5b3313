// Package notifier turns change events into timestamped alert lines on the
// console and in the alert log, suppressing bursts with a global debounce.
package notifier

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/hidswatch/hidswatch/internal/metrics"
	hidserrors "github.com/hidswatch/hidswatch/pkg/errors"
	"github.com/hidswatch/hidswatch/pkg/logger"
	"github.com/hidswatch/hidswatch/pkg/models"
	"go.uber.org/zap"
)

const (
	// TimestampLayout renders alert timestamps, zone abbreviation included
	TimestampLayout = "2006-01-02 15:04:05 MST"

	// DefaultDebounceWindow is the minimum gap between two emissions
	DefaultDebounceWindow = time.Second
)

// Config holds what the notifier needs to know about its sinks
type Config struct {
	LogFilePath    string
	Location       *time.Location // reference zone for timestamps; UTC when nil
	DebounceWindow time.Duration  // zero only drops events at the same instant
}

// Options injects collaborators; zero values use the process defaults
type Options struct {
	Console io.Writer
	ErrOut  io.Writer
	Clock   func() time.Time
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Notifier emits at most one alert per debounce window, across all paths
// and kinds.
type Notifier struct {
	mu            sync.Mutex
	lastEmittedAt time.Time
	hasEmitted    bool

	window   time.Duration
	location *time.Location
	sink     *LogSink
	console  io.Writer
	errOut   io.Writer
	clock    func() time.Time
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// New creates a notifier
func New(cfg Config, opts Options) (*Notifier, error) {
	if cfg.LogFilePath == "" {
		return nil, hidserrors.NewConfigError("alert log path is required", nil)
	}
	if cfg.DebounceWindow < 0 {
		return nil, hidserrors.NewConfigError(fmt.Sprintf("debounce window must not be negative: %s", cfg.DebounceWindow), nil)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	if opts.ErrOut == nil {
		opts.ErrOut = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}

	return &Notifier{
		window:   cfg.DebounceWindow,
		location: cfg.Location,
		sink:     NewLogSink(cfg.LogFilePath),
		console:  opts.Console,
		errOut:   opts.ErrOut,
		clock:    opts.Clock,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}, nil
}

// Notify emits an alert for event unless another alert went out within the
// debounce window. A failed log append is reported and returned, but the
// console line has already been printed and the window is still consumed.
func (n *Notifier) Notify(event models.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock()
	if n.hasEmitted && now.Sub(n.lastEmittedAt) <= n.window {
		n.metrics.AlertSuppressed()
		n.logger.Debug("Alert suppressed by debounce",
			zap.String("path", event.Path),
			zap.String("kind", event.Kind.String()),
			zap.Duration("since_last", now.Sub(n.lastEmittedAt)),
		)
		return nil
	}

	line := n.Format(event, now)

	if _, err := fmt.Fprintln(n.console, line); err != nil {
		fmt.Fprintf(n.errOut, "Warning: failed to write alert to console: %v\n", err)
		n.logger.Warn("Failed to write alert to console", zap.Error(err))
	}

	n.lastEmittedAt = now
	n.hasEmitted = true
	n.metrics.AlertEmitted(event.Kind)

	if err := n.sink.Append(line); err != nil {
		n.metrics.LogWriteFailed()
		fmt.Fprintf(n.errOut, "Warning: %v\n", err)
		n.logger.Warn("Failed to append alert to log",
			zap.String("log_file", n.sink.Path()),
			zap.String("path", event.Path),
			zap.Error(err),
		)
		return err
	}

	n.logger.Debug("Alert emitted",
		zap.String("path", event.Path),
		zap.String("kind", event.Kind.String()),
	)
	return nil
}

// Format renders the alert line for event at the given instant
func (n *Notifier) Format(event models.Event, at time.Time) string {
	return fmt.Sprintf("%s - %s", at.In(n.location).Format(TimestampLayout), event.Message())
}

// LastEmittedAt returns the time of the last emission and whether one happened
func (n *Notifier) LastEmittedAt() (time.Time, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastEmittedAt, n.hasEmitted
}
