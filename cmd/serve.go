package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/vadiminshakov/sentidca/internal/services/tracker"
	"github.com/vadiminshakov/sentidca/internal/storage/budgetstate"
	"github.com/vadiminshakov/sentidca/internal/storage/decisions"
	"github.com/vadiminshakov/sentidca/internal/storage/settings"
	"github.com/vadiminshakov/sentidca/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Refresh the daily plan on a schedule and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return errors.Wrap(err, "create sqlite dir")
				}
			}
			store, err := settings.Open(cfg.Storage.SQLitePath, logger.Named("settings"))
			if err != nil {
				return err
			}
			defer store.Close()

			state, err := budgetstate.NewStore(cfg.Storage.StateDir)
			if err != nil {
				return err
			}

			journal, err := decisions.NewWALStore(cfg.Storage.WALDir)
			if err != nil {
				return err
			}
			defer journal.Close()

			src, err := sources(cfg, logger)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			tr, err := tracker.New(src, store, state, journal, trackerConfig(cfg), logger.Named("tracker"),
				tracker.WithMetrics(tracker.NewMetrics(reg)))
			if err != nil {
				return err
			}

			server := web.NewServer(cfg.ServerAddr, web.Deps{
				Tracker:         tr,
				Settings:        store,
				Journal:         journal,
				Strategy:        cfg.Strategy,
				SmoothingWindow: cfg.SmoothingWindow,
				Gatherer:        reg,
			}, logger.Named("web"))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := tr.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				return server.Start(gctx)
			})

			logger.Info("sentidca started",
				zap.String("addr", cfg.ServerAddr),
				zap.String("bands", cfg.Strategy.Bands.Name),
				zap.Bool("trend_adjustment", cfg.Strategy.TrendAdjustment),
			)

			return g.Wait()
		},
	}
}
