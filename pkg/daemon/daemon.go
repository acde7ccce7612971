// Package daemon implements the metconf serve lifecycle: load the session
// configuration, serve it over HTTP and reload it on SIGHUP.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/psaab/metconf/pkg/api"
	"github.com/psaab/metconf/pkg/configstore"
	"github.com/psaab/metconf/pkg/logging"
)

// Options configures the daemon.
type Options struct {
	ConfigFile  string
	APIAddr     string // empty disables the HTTP API
	HistorySize int
	EventBuffer int
	Auth        *api.AuthConfig
	// RequireConfig makes Run fail when the initial load fails instead of
	// serving without an active configuration.
	RequireConfig bool
}

// Daemon serves one configuration file.
type Daemon struct {
	opts     Options
	store    *configstore.Store
	eventBuf *logging.EventBuffer
}

// New creates a new Daemon.
func New(opts Options) *Daemon {
	if opts.HistorySize <= 0 {
		opts.HistorySize = 10
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 1000
	}

	d := &Daemon{
		opts:     opts,
		store:    configstore.New(opts.ConfigFile, opts.HistorySize),
		eventBuf: logging.NewEventBuffer(opts.EventBuffer),
	}
	d.store.SetEventBuffer(d.eventBuf)
	return d
}

// Store returns the daemon's config store.
func (d *Daemon) Store() *configstore.Store {
	return d.store
}

// Reload re-reads the configuration file. A failed reload keeps the
// previous configuration active.
func (d *Daemon) Reload() error {
	if err := d.store.Load(); err != nil {
		slog.Warn("reload failed, keeping previous configuration", "err", err)
		return err
	}
	return nil
}

// Run starts the daemon and blocks until ctx is cancelled or a shutdown
// signal arrives.
func (d *Daemon) Run(ctx context.Context) error {
	slog.Info("starting metconf daemon",
		"config", d.opts.ConfigFile,
		"pid", os.Getpid())

	if err := d.store.Load(); err != nil {
		if d.opts.RequireConfig {
			return fmt.Errorf("initial load: %w", err)
		}
		slog.Warn("failed to load config, starting without an active configuration",
			"err", err)
	}

	// Handle signals for clean shutdown
	ctx, stop := signal.NotifyContext(ctx, unix.SIGTERM, unix.SIGINT)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, unix.SIGHUP)
	defer signal.Stop(hup)

	// WaitGroup for coordinated shutdown of background goroutines
	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	if d.opts.APIAddr != "" {
		srv := api.NewServer(api.Config{
			Addr:     d.opts.APIAddr,
			Store:    d.store,
			EventBuf: d.eventBuf,
			Auth:     d.opts.Auth,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				errCh <- fmt.Errorf("HTTP API: %w", err)
			}
		}()
	}

	var runErr error
loop:
	for {
		select {
		case <-hup:
			slog.Info("SIGHUP received, reloading configuration")
			d.Reload()
		case err := <-errCh:
			runErr = err
			break loop
		case <-ctx.Done():
			slog.Info("signal received, shutting down")
			break loop
		}
	}

	// Cancel context to stop background goroutines, then wait for them.
	stop()
	wg.Wait()

	st := d.store.Stats()
	slog.Info("shutdown complete", "loads", st.Loads, "failures", st.Failures)
	return runErr
}
