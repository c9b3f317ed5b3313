package models

import (
	"fmt"
	"time"
)

// EventKind defines the type of file system change reported in an alert
type EventKind string

const (
	// EventCreated indicates a file or directory appeared
	EventCreated EventKind = "created"

	// EventModified indicates a file's content or metadata changed
	EventModified EventKind = "modified"

	// EventDeleted indicates a file or directory disappeared
	EventDeleted EventKind = "deleted"
)

// Kinds lists every event kind in a stable order
var Kinds = []EventKind{EventCreated, EventModified, EventDeleted}

// String returns the string representation of the event kind
func (k EventKind) String() string {
	return string(k)
}

// Phrase renders the alert text for a change of this kind at path.
func (k EventKind) Phrase(path string) string {
	switch k {
	case EventCreated:
		return fmt.Sprintf("Heads up! A new file: %s has appeared. Could be something or nothing.", path)
	case EventModified:
		return fmt.Sprintf("Alert: %s was just modified. Keep an eye on this!", path)
	case EventDeleted:
		return fmt.Sprintf("Just so you know, %s was deleted. Hope it was expected.", path)
	default:
		return fmt.Sprintf("Something happened to %s.", path)
	}
}

// Event represents a single classified file system change.
// Events are values; nothing mutates one after the detector produces it.
type Event struct {
	Kind       EventKind `json:"kind"`
	Path       string    `json:"path"`
	ObservedAt time.Time `json:"observed_at"`
}

// Message returns the alert text for the event, without timestamp
func (e Event) Message() string {
	return e.Kind.Phrase(e.Path)
}
