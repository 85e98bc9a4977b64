// Package command provides CLI command definitions for tillvault.
package command

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tillvault-go/internal/infra/confloader"
	"github.com/yndnr/tillvault-go/internal/infra/shutdown"
	"github.com/yndnr/tillvault-go/internal/shop"
	"github.com/yndnr/tillvault-go/internal/telemetry/logger"
	"github.com/yndnr/tillvault-go/internal/telemetry/metric"
)

// ServeCommand returns the serve command. It keeps the shop open and
// exposes health and Prometheus metrics endpoints until terminated,
// for kiosk-style deployments where the store must stay warm.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Keep the shop open and serve health and metrics endpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "Metrics listen address",
				Value:   "127.0.0.1:2112",
			},
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Usage: "Grace period for shutdown hooks",
				Value: 10 * time.Second,
			},
		},
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := logger.NewSlog(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	metrics := metric.New()
	s, err := shop.Open(contextOf(c), shop.Options{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	srv := &http.Server{
		Addr:              c.String("listen"),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	handler := shutdown.NewHandler(c.Duration("shutdown-timeout"))
	handler.OnShutdown(func(ctx context.Context) error {
		return s.Close()
	})
	handler.OnShutdown(func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	})

	// Config edits need a restart to apply; say so instead of
	// silently ignoring them.
	if path := c.String("config"); path != "" {
		watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
		if err != nil {
			log.Warn("config watcher unavailable", "error", err)
		} else {
			if err := watcher.Watch(path); err != nil {
				log.Warn("config watch failed", "path", path, "error", err)
			} else {
				watcher.OnChange(func(changed string) {
					log.Info("configuration file changed, restart to apply", "path", changed)
				})
				watcher.StartAsync()
				handler.OnShutdown(func(ctx context.Context) error {
					return watcher.Stop()
				})
			}
		}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	waitCh := make(chan error, 1)
	go func() { waitCh <- handler.Wait() }()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case err := <-waitCh:
		return err
	}
}
