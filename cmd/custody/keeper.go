package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"poolCustody/internal/config"
	"poolCustody/internal/keeper"
	"poolCustody/internal/metrics"
	"poolCustody/internal/model"
	"poolCustody/internal/storage"
)

func keeperCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keeper",
		Short: "Liquidate matured loans on an interval",
		Args:  cobra.NoArgs,
		RunE:  runKeeper,
	}
	cmd.Flags().Duration("interval", 30*time.Second, "sweep interval")
	cmd.Flags().Uint16("slippage-bps", 100, "slippage allowed below the current quote")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("keeper-state", "./data/keeper.json", "keeper state file for the file backend")
	cmd.Flags().String("state-name", "keeper", "keeper state row name for the postgres backend")
	cmd.Flags().String("metrics-addr", ":9464", "prometheus listen address, empty disables")
	return cmd
}

func runKeeper(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadKeeper(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg.Config)
	if err != nil {
		return err
	}
	defer a.close()

	caller, err := a.caller()
	if err != nil {
		return err
	}

	var stateStore keeper.StateStore = &keeper.FileStateStore{Path: cfg.KeeperState}
	if a.pg != nil {
		stateStore = &keeper.DBStateStore{Store: a.pg, Name: cfg.StateName}
	}

	m := metrics.Default()
	k := keeper.NewKeeper(keeper.Config{
		Caller:       caller,
		Interval:     cfg.Interval,
		SlippageBps:  cfg.SlippageBps,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, a.svc, a.svc, stateStore, m, a.logger.Named("keeper"))

	// The app subscription feeds the journal; metrics get their own.
	metricEvents := make(chan model.Event, 256)
	metricSub := a.svc.Subscribe(metricEvents)
	defer metricSub.Unsubscribe()

	a.logger.Info("keeper start",
		zap.String("caller", caller.String()),
		zap.Duration("interval", cfg.Interval),
		zap.Uint16("slippage_bps", cfg.SlippageBps),
		zap.String("backend", cfg.Backend),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return k.Run(gctx)
	})
	g.Go(func() error {
		return storage.NewJournal(a.logger.Named("journal"), a.sinks...).Run(gctx, a.events)
	})
	g.Go(func() error {
		m.Consume(gctx, metricEvents)
		return nil
	})
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}
