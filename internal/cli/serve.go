package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	httpAdapter "github.com/aretw0/hpyharness/pkg/adapters/http"
)

// RunServe serves the expansion API on addr until ctx is cancelled.
func RunServe(ctx context.Context, opts Options, addr string) error {
	reg := prometheus.NewRegistry()
	opts.Registerer = reg
	app, err := NewApp(opts)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           httpAdapter.NewHandler(app.Harness, httpAdapter.WithGatherer(reg), httpAdapter.WithLogger(app.Logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("serving", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
