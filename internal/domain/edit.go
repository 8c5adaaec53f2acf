package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/quire-dev/quire/internal/adapter"
	"github.com/quire-dev/quire/internal/controller"
	"github.com/quire-dev/quire/internal/session"
)

// Edit opens one page in the interactive editor: a session synchronizes
// the source against its store while the UI applies structural edits.
// The call blocks until the editor is dismissed; outstanding edits are
// flushed before it returns.
func (w *workflow) Edit(ctx context.Context, args EditArgs) error {
	page := args.Path.PageID()

	store, kind, err := w.editStore(args)
	if err != nil {
		return err
	}

	glog.Infof("edit: opening %s (%s store)", page, kind)

	cfg := session.Config{
		Debounce: args.Debounce,
		Poll:     args.Poll,
		Grace:    args.Grace,
		Notify:   w.ui.Notify,
	}

	// Stores with a push surface hint the poll loop; adoption rules stay
	// with the poll cadence.
	if watcher, ok := store.(adapter.Watcher); ok {
		cfg.Watcher = watcher
	}

	sess := session.New(store, page, cfg)
	defer sess.Close()

	if err := sess.Load(ctx); err != nil {
		return fmt.Errorf("load %s: %w", page, err)
	}

	if err := w.ui.Start(controller.WithEditMode(sess)); err != nil {
		return err
	}

	w.ui.Wait()

	if sess.Dirty() {
		if err := sess.SaveNow(ctx); err != nil {
			return fmt.Errorf("final save %s: %w", page, err)
		}

		glog.V(1).Infof("edit: flushed final save for %s", page)
	}

	return nil
}

// editStore picks the page store for an edit: the page's directory on
// the local filesystem, a remote quire server, or an in-memory scratch
// store seeded from the file and discarded on exit.
func (w *workflow) editStore(args EditArgs) (adapter.PageStore, string, error) {
	switch {
	case args.Store == "http" && args.Server == "":
		return nil, "", errors.New("edit: the http store needs a server address")

	case args.Server != "":
		return adapter.NewHTTPStore(args.Server), "http", nil

	case args.Store == "" || args.Store == "fs":
		return adapter.NewFSStore(args.Path.Dir()), "fs", nil

	case args.Store == "mem":
		raw, err := w.fs.ReadFile(args.Path)
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", args.Path, err)
		}

		store := adapter.NewMemStore()
		store.Put(args.Path.PageID(), string(raw))

		return store, "mem", nil

	default:
		return nil, "", fmt.Errorf("edit: unknown store %q", args.Store)
	}
}
