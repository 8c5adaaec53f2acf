package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/quire-dev/quire/internal/adapter"
)

const serveShutdownTimeout = 5 * time.Second

// Serve exposes a page directory over HTTP: the REST surface HTTPStore
// consumes plus the websocket change feed. It blocks until ctx is
// canceled or the listener fails.
func (w *workflow) Serve(ctx context.Context, args ServeArgs) error {
	info, err := w.fs.FileInfo(args.Dir)
	if err != nil {
		return fmt.Errorf("serve %s: %w", args.Dir, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("serve %s: not a directory", args.Dir)
	}

	store := adapter.NewFSStore(args.Dir)

	srv := &http.Server{
		Handler:           adapter.NewPageServer(store),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", args.Addr)
	if err != nil {
		return fmt.Errorf("serve: listen %s: %w", args.Addr, err)
	}

	glog.Infof("serve: pages from %s on http://%s", args.Dir, ln.Addr())

	errc := make(chan error, 1)

	go func() {
		errc <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		<-errc

		glog.Info("serve: stopped")

		return err

	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	}
}
