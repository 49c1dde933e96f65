package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/event"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolCustody/internal/amm/cpmm"
	"poolCustody/internal/config"
	"poolCustody/internal/custody"
	"poolCustody/internal/model"
	"poolCustody/internal/state"
	"poolCustody/internal/storage"
	"poolCustody/internal/storage/postgres"
)

// app bundles what every command needs: configuration, the custody service
// on the configured backend, and the event sinks.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	svc     *custody.Service
	program *cpmm.Program
	pg      *postgres.Store
	sinks   []storage.EventSink

	events chan model.Event
	sub    event.Subscription
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	var backend state.Backend
	switch cfg.Backend {
	case config.BackendPostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		a.pg = store
		backend = store
		a.sinks = append(a.sinks, store)
	default:
		backend = state.NewFileBackend(cfg.StateFile)
	}
	if cfg.Journal != "" {
		a.sinks = append(a.sinks, storage.NewJsonlStorage(cfg.Journal))
	}

	programCfg := cpmm.DefaultConfig()
	if cfg.AmmProgramID != "" {
		programCfg.ProgramID, err = config.ParsePublicKey("amm-program-id", cfg.AmmProgramID)
		if err != nil {
			return nil, a.fail(err)
		}
	}
	programCfg.AmmConfigIndex = cfg.AmmConfigIndex
	programCfg.CreatePoolFee = cfg.CreatePoolFee
	a.program, err = cpmm.New(programCfg, logger.Named("cpmm"))
	if err != nil {
		return nil, a.fail(err)
	}

	var programID solana.PublicKey
	if cfg.ProgramID != "" {
		programID, err = config.ParsePublicKey("program-id", cfg.ProgramID)
		if err != nil {
			return nil, a.fail(err)
		}
	}
	a.svc, err = custody.NewService(backend, a.program, custody.Options{
		ProgramID: programID,
		Policy: custody.Policy{
			LoanDurations:     cfg.LoanDurations,
			Principals:        cfg.Principals,
			RequireFullSupply: cfg.RequireFullSupply,
		},
		Logger: logger.Named("custody"),
	})
	if err != nil {
		return nil, a.fail(err)
	}
	if cfg.Now != 0 {
		now := cfg.Now
		a.svc.SetNowFunc(func() int64 { return now })
	}

	a.events = make(chan model.Event, 256)
	a.sub = a.svc.Subscribe(a.events)
	return a, nil
}

func (a *app) fail(err error) error {
	a.close()
	return err
}

// flush writes every event committed so far to the sinks.
func (a *app) flush(ctx context.Context) error {
	var pending []model.Event
drain:
	for {
		select {
		case ev := <-a.events:
			pending = append(pending, ev)
		default:
			break drain
		}
	}
	for _, sink := range a.sinks {
		if err := sink.PutEventBatch(ctx, pending); err != nil {
			return fmt.Errorf("journal events: %w", err)
		}
	}
	return nil
}

func (a *app) close() {
	if a.sub != nil {
		a.sub.Unsubscribe()
	}
	if a.pg != nil {
		a.pg.Close()
	}
	_ = a.logger.Sync()
}

func (a *app) caller() (solana.PublicKey, error) {
	return config.ParsePublicKey("--as", a.cfg.Caller)
}

// withApp loads configuration, runs fn against a fresh app and journals the
// events fn committed.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	runErr := fn(ctx, a)
	if err := a.flush(ctx); err != nil {
		a.logger.Error("journal events", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
