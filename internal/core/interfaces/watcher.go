package interfaces

import (
	"context"

	"github.com/hidswatch/hidswatch/pkg/models"
)

// ChangeDetector defines the contract for observing a directory tree
type ChangeDetector interface {
	// Start begins watching root, recursively if requested
	Start(ctx context.Context, root string, recursive bool) error

	// Stop releases the OS watch and closes the event channel; safe to call twice
	Stop() error

	// Watch returns a channel that receives one event per raw notification
	Watch() <-chan models.Event

	// Errors returns a channel for backend error notifications
	Errors() <-chan error

	// GetWatchedPaths returns list of currently watched directories
	GetWatchedPaths() []string

	// IsWatching checks if currently watching
	IsWatching() bool
}

// AlertNotifier renders events into alert lines
type AlertNotifier interface {
	// Notify emits an alert for event unless it falls inside the debounce window
	Notify(event models.Event) error
}
