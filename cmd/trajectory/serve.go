package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/trajectory.report/internal/api"
	"github.com/banshee-data/trajectory.report/internal/storage/sqlite"
	"github.com/banshee-data/trajectory.report/internal/units"
)

func runServe(e *env, args []string) error {
	fs := newFlagSet(e, "serve")
	dbPath := fs.String("db", "trajectory.db", "SQLite database path")
	listen := fs.String("listen", "localhost:8080", "HTTP listen address")
	unit := fs.String("units", units.KMPH, "Speed units: "+units.GetValidUnitsString())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !units.IsValid(*unit) {
		return fmt.Errorf("%w: -units %q, want one of %s", errUsage, *unit, units.GetValidUnitsString())
	}

	store, err := sqlite.Open(*dbPath, e.clock)
	if err != nil {
		return err
	}
	defer store.Close()

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, e, ln, api.NewServer(store, *unit))
}

// serve answers requests on ln until ctx is cancelled.
func serve(ctx context.Context, e *env, ln net.Listener, s *api.Server) error {
	server := &http.Server{
		Handler:           api.LoggingMiddleware(s.ServeMux()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	e.log.Info("serving runs", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	e.log.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	return <-errc
}
