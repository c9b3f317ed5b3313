package watchers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hidswatch/hidswatch/internal/metrics"
	"github.com/hidswatch/hidswatch/internal/notifier"
	"github.com/hidswatch/hidswatch/internal/watchers/local"
	hidserrors "github.com/hidswatch/hidswatch/pkg/errors"
	"github.com/hidswatch/hidswatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockDetector is a testify mock of the change detector
type MockDetector struct {
	mock.Mock
	events chan models.Event
	errs   chan error
	once   sync.Once
}

func newMockDetector() *MockDetector {
	return &MockDetector{
		events: make(chan models.Event, 16),
		errs:   make(chan error, 4),
	}
}

func (m *MockDetector) Start(ctx context.Context, root string, recursive bool) error {
	args := m.Called(ctx, root, recursive)
	return args.Error(0)
}

func (m *MockDetector) Stop() error {
	args := m.Called()
	m.once.Do(func() {
		close(m.events)
		close(m.errs)
	})
	return args.Error(0)
}

func (m *MockDetector) Watch() <-chan models.Event {
	return m.events
}

func (m *MockDetector) Errors() <-chan error {
	return m.errs
}

func (m *MockDetector) GetWatchedPaths() []string {
	return []string{"/tmp/watched"}
}

func (m *MockDetector) IsWatching() bool {
	args := m.Called()
	return args.Bool(0)
}

// recordingNotifier keeps every event it is handed
type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Event
	fail   error
}

func (r *recordingNotifier) Notify(event models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.fail
}

func (r *recordingNotifier) received() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Event, len(r.events))
	copy(out, r.events)
	return out
}

func newTestController(t *testing.T, d *MockDetector, n *recordingNotifier, cfg ControllerConfig) *Controller {
	t.Helper()
	if cfg.RootPath == "" {
		cfg.RootPath = "/tmp/watched"
	}
	cfg.Recursive = true
	cfg.Logger = zaptest.NewLogger(t)
	c, err := NewController(d, n, cfg)
	require.NoError(t, err)
	return c
}

func TestNewController_Validation(t *testing.T) {
	_, err := NewController(nil, &recordingNotifier{}, ControllerConfig{RootPath: "/tmp"})
	assert.Error(t, err)

	_, err = NewController(newMockDetector(), nil, ControllerConfig{RootPath: "/tmp"})
	assert.Error(t, err)

	_, err = NewController(newMockDetector(), &recordingNotifier{}, ControllerConfig{})
	assert.True(t, hidserrors.IsConfigError(err))
}

func TestController_StartFailure(t *testing.T) {
	d := newMockDetector()
	setupErr := hidserrors.NewWatchSetupError("root path does not exist or is inaccessible", os.ErrNotExist)
	d.On("Start", mock.Anything, "/tmp/watched", true).Return(setupErr)

	c := newTestController(t, d, &recordingNotifier{}, ControllerConfig{})

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.True(t, hidserrors.IsWatchSetupError(err))
	assert.Equal(t, StateStopped, c.State())

	// Nothing to release after a failed start
	assert.NoError(t, c.Stop())
	d.AssertNotCalled(t, "Stop")

	// A stopped controller cannot be restarted or served
	assert.Error(t, c.Start(context.Background()))
	assert.Error(t, c.Serve(context.Background()))
}

func TestController_DispatchesEventsInOrder(t *testing.T) {
	d := newMockDetector()
	d.On("Start", mock.Anything, "/tmp/watched", true).Return(nil)
	d.On("Stop").Return(nil)

	n := &recordingNotifier{}
	c := newTestController(t, d, n, ControllerConfig{})
	assert.Equal(t, StateIdle, c.State())

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, StateRunning, c.State())

	sent := []models.Event{
		{Kind: models.EventCreated, Path: "/tmp/watched/a.txt"},
		{Kind: models.EventModified, Path: "/tmp/watched/a.txt"},
		{Kind: models.EventDeleted, Path: "/tmp/watched/b.txt"},
	}
	for _, ev := range sent {
		d.events <- ev
	}
	d.errs <- errors.New("queue overflow")

	assert.Eventually(t, func() bool { return len(n.received()) == len(sent) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, sent, n.received())

	require.NoError(t, c.Stop())
	assert.Equal(t, StateStopped, c.State())

	// Idempotent
	require.NoError(t, c.Stop())
	d.AssertNumberOfCalls(t, "Stop", 1)
}

func TestController_NotifierFailureDoesNotStopDispatch(t *testing.T) {
	d := newMockDetector()
	d.On("Start", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	d.On("Stop").Return(nil)

	n := &recordingNotifier{fail: hidserrors.NewLogWriteError("failed to open alert log", os.ErrPermission)}
	c := newTestController(t, d, n, ControllerConfig{})
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	d.events <- models.Event{Kind: models.EventCreated, Path: "/tmp/watched/1"}
	d.events <- models.Event{Kind: models.EventCreated, Path: "/tmp/watched/2"}

	assert.Eventually(t, func() bool { return len(n.received()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateRunning, c.State())
}

func TestController_StopFailureIsShutdownError(t *testing.T) {
	d := newMockDetector()
	d.On("Start", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	d.On("Stop").Return(errors.New("inotify close failed"))

	c := newTestController(t, d, &recordingNotifier{}, ControllerConfig{})
	require.NoError(t, c.Start(context.Background()))

	err := c.Stop()
	require.Error(t, err)
	assert.True(t, hidserrors.IsShutdownError(err))
	assert.Equal(t, StateStopped, c.State())
}

func TestController_RunTicksUntilCancelled(t *testing.T) {
	d := newMockDetector()
	d.On("Start", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	d.On("Stop").Return(nil)

	ticks := make(chan Stats, 8)
	m := metrics.New()
	m.ObserveEvent(models.EventCreated)

	c := newTestController(t, d, &recordingNotifier{}, ControllerConfig{
		TickInterval: 10 * time.Millisecond,
		Metrics:      m,
		OnTick: func(s Stats) {
			select {
			case ticks <- s:
			default:
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case s := <-ticks:
		assert.Equal(t, StateRunning, s.State)
		assert.Equal(t, "/tmp/watched", s.RootPath)
		assert.Equal(t, 1, s.WatchedDirs)
		assert.Equal(t, 1.0, s.Counters.TotalObserved())
	case <-time.After(2 * time.Second):
		t.Fatal("no liveness tick")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, StateStopped, c.State())
}

func TestController_EndToEnd(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	logPath := filepath.Join(t.TempDir(), "hids_notifications.txt")
	log := zaptest.NewLogger(t)
	m := metrics.New()

	var console strings.Builder
	var consoleMu sync.Mutex
	n, err := notifier.New(notifier.Config{
		LogFilePath:    logPath,
		Location:       time.UTC,
		DebounceWindow: notifier.DefaultDebounceWindow,
	}, notifier.Options{
		Console: writerFunc(func(p []byte) (int, error) {
			consoleMu.Lock()
			defer consoleMu.Unlock()
			return console.Write(p)
		}),
		ErrOut:  &strings.Builder{},
		Logger:  log,
		Metrics: m,
	})
	require.NoError(t, err)

	d := local.NewHidsWatcher(local.Options{Logger: log, Metrics: m})
	c, err := NewController(d, n, ControllerConfig{
		RootPath:     root,
		Recursive:    true,
		TickInterval: time.Hour,
		Metrics:      m,
		Logger:       log,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return c.State() == StateRunning }, 2*time.Second, 5*time.Millisecond)

	target := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("payload"), 0644))

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(logPath)
		return err == nil && strings.Contains(string(data), "A new file: "+target+" has appeared")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, StateStopped, c.State())
	assert.False(t, d.IsWatching())

	consoleMu.Lock()
	defer consoleMu.Unlock()
	assert.Contains(t, console.String(), target)
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
