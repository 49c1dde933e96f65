package keeper

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"poolCustody/internal/amm"
	"poolCustody/internal/custody"
	"poolCustody/internal/metrics"
	"poolCustody/internal/model"
)

const (
	defaultInterval    = 30 * time.Second
	defaultSlippageBps = 100
)

// Custodian is the part of the custody service the keeper drives.
type Custodian interface {
	Now() int64
	Loans(ctx context.Context) ([]model.LoanEscrow, error)
	LiquidateLoan(ctx context.Context, caller, pool solana.PublicKey, lpAmount, min0, min1 uint64) (custody.ExitReceipt, error)
}

// PoolReader quotes pool reserves for slippage bounds.
type PoolReader interface {
	PoolState(ctx context.Context, pool solana.PublicKey) (amm.PoolState, error)
}

// Config holds runtime settings for the keeper.
type Config struct {
	Caller       solana.PublicKey
	Interval     time.Duration
	SlippageBps  uint16
	MaxRetries   int
	RetryBackoff time.Duration
}

// SweepResult summarises one pass over the loan book.
type SweepResult struct {
	Checked    int
	Matured    int
	Liquidated int
	Failed     int
}

// Keeper liquidates matured loans on a fixed interval.
type Keeper struct {
	cfg     Config
	custody Custodian
	pools   PoolReader
	state   StateStore
	metrics *metrics.Custody
	logger  *zap.Logger
}

// NewKeeper builds a Keeper with its dependencies. pools and state may be nil.
func NewKeeper(cfg Config, custodian Custodian, pools PoolReader, state StateStore, m *metrics.Custody, logger *zap.Logger) *Keeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.SlippageBps == 0 {
		cfg.SlippageBps = defaultSlippageBps
	}
	return &Keeper{
		cfg:     cfg,
		custody: custodian,
		pools:   pools,
		state:   state,
		metrics: m,
		logger:  logger,
	}
}

// Run sweeps immediately and then on every tick until ctx is done.
func (k *Keeper) Run(ctx context.Context) error {
	if k.custody == nil {
		return fmt.Errorf("custody service is nil")
	}
	if k.cfg.Caller.IsZero() {
		return fmt.Errorf("keeper caller is required")
	}
	if k.cfg.SlippageBps > model.BpsDenominator {
		return fmt.Errorf("slippage bps %d above %d", k.cfg.SlippageBps, model.BpsDenominator)
	}

	if k.state != nil {
		last, ok, err := k.state.Load(ctx)
		if err != nil {
			return err
		}
		if ok {
			k.logger.Info("resume keeper", zap.Time("last_sweep", time.Unix(last, 0).UTC()))
		}
	}

	ticker := time.NewTicker(k.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := k.Sweep(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			k.logger.Warn("sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep liquidates every active loan that has matured.
func (k *Keeper) Sweep(ctx context.Context) (SweepResult, error) {
	started := time.Now()
	var res SweepResult

	var loans []model.LoanEscrow
	err := withRetry(ctx, k.cfg.MaxRetries, k.cfg.RetryBackoff, custody.IsRejection, func(ctx context.Context) error {
		var err error
		loans, err = k.custody.Loans(ctx)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("list loans: %w", err)
	}

	now := k.custody.Now()
	for _, loan := range loans {
		if loan.State != model.LoanStateActive {
			continue
		}
		res.Checked++
		if !loan.Matured(now) {
			continue
		}
		res.Matured++

		if err := k.liquidate(ctx, loan); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Failed++
			k.metrics.ObserveLiquidation(result(err))
			k.logger.Warn("liquidation failed", zap.String("pool", loan.Pool.String()), zap.Error(err))
			continue
		}
		res.Liquidated++
		k.metrics.ObserveLiquidation("ok")
	}

	if k.state != nil {
		if err := k.state.Save(ctx, now); err != nil {
			return res, err
		}
	}
	k.metrics.ObserveSweep(time.Since(started))
	k.logger.Info("sweep complete",
		zap.Int("checked", res.Checked),
		zap.Int("matured", res.Matured),
		zap.Int("liquidated", res.Liquidated),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (k *Keeper) liquidate(ctx context.Context, loan model.LoanEscrow) error {
	min0, min1, err := k.minimums(ctx, loan)
	if err != nil {
		return err
	}
	return withRetry(ctx, k.cfg.MaxRetries, k.cfg.RetryBackoff, custody.IsRejection, func(ctx context.Context) error {
		receipt, err := k.custody.LiquidateLoan(ctx, k.cfg.Caller, loan.Pool, loan.LpAmount, min0, min1)
		if err != nil {
			return err
		}
		k.logger.Info("loan liquidated",
			zap.String("pool", loan.Pool.String()),
			zap.Uint64("asset_out", receipt.AssetOut),
			zap.Uint64("repaid", receipt.Split.Repaid),
		)
		return nil
	})
}

// minimums bounds the removal at the current quote less the slippage
// allowance. Without a pool reader the keeper accepts any output.
func (k *Keeper) minimums(ctx context.Context, loan model.LoanEscrow) (uint64, uint64, error) {
	if k.pools == nil {
		return 0, 0, nil
	}
	var ps amm.PoolState
	err := withRetry(ctx, k.cfg.MaxRetries, k.cfg.RetryBackoff, custody.IsRejection, func(ctx context.Context) error {
		var err error
		ps, err = k.pools.PoolState(ctx, loan.Pool)
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("quote pool %s: %w", loan.Pool, err)
	}
	out0, out1 := ps.Quote(loan.LpAmount)
	return discount(out0, k.cfg.SlippageBps), discount(out1, k.cfg.SlippageBps), nil
}

func discount(amount uint64, bps uint16) uint64 {
	out := new(big.Int).SetUint64(amount)
	out.Mul(out, big.NewInt(int64(model.BpsDenominator-bps)))
	out.Quo(out, big.NewInt(model.BpsDenominator))
	return out.Uint64()
}

func result(err error) string {
	switch {
	case errors.Is(err, custody.ErrSlippageExceeded):
		return "slippage"
	case errors.Is(err, custody.ErrLoanNotMature):
		return "not_mature"
	case errors.Is(err, custody.ErrInvalidState):
		return "closed"
	case custody.IsRejection(err):
		return "rejected"
	default:
		return "error"
	}
}
