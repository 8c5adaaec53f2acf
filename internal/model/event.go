package model

import "fmt"

// PageID identifies one page in the persistence store.
type PageID string

// EventKind classifies session notifications delivered to the editor.
type EventKind int

const (
	// EventLoaded fires after a successful initial fetch.
	EventLoaded EventKind = iota

	// EventSaved fires after a save is confirmed by the store.
	EventSaved

	// EventSaveFailed fires when a save attempt errors; local edits are
	// retained and the next debounce cycle retries.
	EventSaveFailed

	// EventExternalChange fires when externally-changed source replaces
	// local state; the editor must resynchronize its document.
	EventExternalChange
)

// String returns a human-readable name for the event kind.
func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventSaved:
		return "saved"
	case EventSaveFailed:
		return "save-failed"
	case EventExternalChange:
		return "external-change"
	default:
		return "unknown"
	}
}

// Event is one session notification.
type Event struct {
	Kind EventKind
	Page PageID
	// Version is the resync version for external changes and the confirmed
	// edit version for saves.
	Version uint64
	Err     error
}

func (e Event) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s v%d: %v", e.Kind, e.Page, e.Version, e.Err)
	}

	return fmt.Sprintf("%s %s v%d", e.Kind, e.Page, e.Version)
}
