// Package adapter contains the infrastructure collaborators of the page
// engine: page stores (filesystem, in-memory, HTTP), the page server that
// exposes a store to remote editors, the filesystem seam the workflow
// layer scans through, and the clock the session layer schedules on. It
// intentionally hides direct os/net access so workflow and session logic
// can be tested without a disk or a network.
package adapter

import (
	"context"
	"errors"

	"github.com/quire-dev/quire/internal/model"
)

// ErrPageNotFound reports a page id with no stored source behind it.
var ErrPageNotFound = errors.New("adapter: page not found")

// PageStore is the persistence seam sessions load from and save through.
// Implementations are network-style: calls may block and fail
// transiently, so they take a context and return errors the session
// surfaces without treating them as fatal.
type PageStore interface {
	// GetSource returns the persisted source of a page.
	GetSource(ctx context.Context, page model.PageID) (string, error)

	// SaveSource persists source as the page's new content.
	SaveSource(ctx context.Context, page model.PageID, source string) error

	// Rename moves a page to a new identifier.
	Rename(ctx context.Context, page, to model.PageID) error

	// List enumerates the stored page identifiers in lexical order.
	List(ctx context.Context) ([]model.PageID, error)
}

// Watcher is the optional push surface of a store: a stream of ids whose
// pages changed behind the session's back. Sessions treat it as a poll
// hint only; adoption decisions stay with the poll cadence.
type Watcher interface {
	Watch(ctx context.Context) (<-chan model.PageID, error)
}
