package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	root := &cobra.Command{
		Use:          "custody",
		Short:        "Liquidity pool custody and loan service",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("backend", "file", "state backend (file, postgres)")
	flags.String("state-file", "./data/custody-state.json", "account snapshot path for the file backend")
	flags.String("pg-dsn", "", "Postgres DSN for the postgres backend")
	flags.String("journal", "./data/events.jsonl", "event journal JSONL path, empty disables")
	flags.String("program-id", "", "custody program id (base58)")
	flags.String("amm-program-id", "", "CPMM program id (base58)")
	flags.Uint16("amm-config-index", 0, "CPMM amm config index")
	flags.String("create-pool-fee", "0.15", "CPMM pool creation fee in SOL")
	flags.StringSlice("loan-durations", []string{"86400"}, "accepted loan durations (seconds or Go durations)")
	flags.StringSlice("principals", []string{"2", "5", "10", "20"}, "accepted principals in SOL, empty accepts any")
	flags.Bool("require-full-supply", true, "require the full, authority-revoked token supply in new pools")
	flags.String("as", "", "caller address (base58)")
	flags.String("now", "", "override the clock (unix seconds or RFC3339)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "optional rotated log file")

	root.AddCommand(
		initCmd(),
		setFeeCmd(),
		setFeeScheduleCmd(),
		pauseCmd(),
		depositCmd(),
		withdrawCmd(),
		vaultCmd(),
		createPoolCmd(),
		sendLpCmd(),
		removeCmd(),
		liquidateCmd(),
		loanCmd(),
		faucetCmd(),
		createTokenCmd(),
		inspectPoolCmd(),
		eventsCmd(),
		keeperCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level, file string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if file == "" {
		return logger, nil
	}

	rotated := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg.EncoderConfig),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}),
		cfg.Level,
	)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, rotated)
	})), nil
}
