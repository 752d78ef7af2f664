package commands

import (
	"context"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/systmms/credwatch/internal/config"
	cwerrors "github.com/systmms/credwatch/internal/errors"
	"github.com/systmms/credwatch/pkg/credential"
	"github.com/systmms/credwatch/pkg/watcher"
)

func NewRunCommand(cfg *config.Config) *cobra.Command {
	var metricsListen string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load credentials and watch the store for rotation",
		Long: `Perform the initial credential load and then poll the secret store for
rotated values.

The initial load is strict: if any tracked secret cannot be fetched and
parsed, the command exits with an error naming the offending store key.
Once loaded, the store is polled on the configured interval. Transient
poll failures are tolerated and the cached values stay in effect. When a
credential's value changes, the process logs the rotation and exits so a
supervisor can restart the consuming client with fresh credentials.

Examples:
  # Watch with the default config file
  credwatch run

  # Expose Prometheus metrics while watching
  credwatch run --metrics-listen :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}

			store, err := buildStore(cfg)
			if err != nil {
				return err
			}

			tracked, err := trackedSecrets(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if metricsListen != "" {
				watcher.InitMetrics()
				go serveMetrics(cfg, metricsListen)
			}

			if !cfg.Definition.WatchEnabled() {
				return runWithoutWatch(ctx, cfg, store, tracked)
			}

			w, err := watcher.New(watcher.Config{
				Store:    store,
				Secrets:  tracked,
				Interval: cfg.Definition.PollInterval(),
				Logger:   cfg.Logger,
				Metrics:  metricsFor(metricsListen),
			})
			if err != nil {
				return err
			}

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			var rotated atomic.Bool
			snap, err := w.Start(runCtx, func() {
				rotated.Store(true)
				cancel()
			})
			if err != nil {
				return cwerrors.UserError{
					Message:    "Initial credential load failed",
					Suggestion: "Verify the store configuration and that every tracked store key holds a valid payload",
					Err:        err,
				}
			}
			defer w.Stop()

			cfg.Logger.Info("✓ Loaded %d credential(s): %v", len(tracked), snap.Names())
			cfg.Logger.Info("Watching for rotation every %s", cfg.Definition.PollInterval())

			<-runCtx.Done()

			if rotated.Load() {
				cfg.Logger.Warn("Credential rotation detected, exiting so the client can restart")
				return nil
			}
			cfg.Logger.Info("Shutting down")
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "Address to serve Prometheus metrics on (e.g. :9090)")

	return cmd
}

// runWithoutWatch performs the strict initial load but never polls.
func runWithoutWatch(ctx context.Context, cfg *config.Config, store watcher.Store, tracked []watcher.TrackedSecret) error {
	snap, err := loadOnce(ctx, store, tracked)
	if err != nil {
		return err
	}
	cfg.Logger.Info("✓ Loaded %d credential(s): %v", len(tracked), snap.Names())
	cfg.Logger.Info("Rotation watch is disabled, running until terminated")
	<-ctx.Done()
	cfg.Logger.Info("Shutting down")
	return nil
}

// loadOnce fetches and parses every tracked secret exactly once.
func loadOnce(ctx context.Context, store watcher.Store, tracked []watcher.TrackedSecret) (*credential.Snapshot, error) {
	values := make(map[string]credential.Value, len(tracked))
	for _, s := range tracked {
		if s.Preloaded != nil {
			values[s.Name] = *s.Preloaded
			continue
		}
		raw, err := store.Fetch(ctx, s.StoreKey)
		if err != nil {
			return nil, &watcher.InvalidCredentialError{StoreKey: s.StoreKey, Err: err}
		}
		parsed, err := credential.Parse(raw)
		if err != nil {
			return nil, &watcher.InvalidCredentialError{StoreKey: s.StoreKey, Err: err}
		}
		values[s.Name] = parsed
	}
	return credential.NewSnapshot(values), nil
}

func metricsFor(metricsListen string) *watcher.Metrics {
	if metricsListen == "" {
		return nil
	}
	return watcher.NewMetrics()
}

func serveMetrics(cfg *config.Config, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	cfg.Logger.Info("Serving metrics on %s/metrics", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		cfg.Logger.Error("Metrics server failed: %v", err)
	}
}
