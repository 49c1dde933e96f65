package custody

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"poolCustody/internal/amm"
	"poolCustody/internal/model"
)

// ExitReceipt reports what an exit paid out and where the asset side went.
type ExitReceipt struct {
	Pool     solana.PublicKey
	Amount0  uint64
	Amount1  uint64
	AssetOut uint64
	TokenOut uint64
	Split    Split
	Outcome  model.LoanOutcome
}

// RemoveLiquidity lets the creator unwind an active loan before maturity.
// The vault recovers the principal plus the removal fee; the creator keeps
// the token side and the rest of the asset side.
func (s *Service) RemoveLiquidity(ctx context.Context, caller, pool solana.PublicKey, lpAmount, min0, min1 uint64) (ExitReceipt, error) {
	var out ExitReceipt
	err := s.execute(ctx, "remove_liquidity", func(tx *txn) error {
		var err error
		out, err = s.exit(ctx, tx, caller, pool, lpAmount, min0, min1, model.LoanOutcomeRepaid)
		return err
	})
	return out, err
}

// LiquidateLoan closes a matured loan on behalf of the service. Anyone may
// call it once the loan has matured.
func (s *Service) LiquidateLoan(ctx context.Context, caller, pool solana.PublicKey, lpAmount, min0, min1 uint64) (ExitReceipt, error) {
	var out ExitReceipt
	err := s.execute(ctx, "liquidate_loan", func(tx *txn) error {
		var err error
		out, err = s.exit(ctx, tx, caller, pool, lpAmount, min0, min1, model.LoanOutcomeLiquidated)
		return err
	})
	return out, err
}

func (s *Service) exit(ctx context.Context, tx *txn, caller, pool solana.PublicKey, lpAmount, min0, min1 uint64, outcome model.LoanOutcome) (ExitReceipt, error) {
	cfg, err := s.loadConfig(tx)
	if err != nil {
		return ExitReceipt{}, err
	}
	loan, loanAddr, err := s.loadLoan(tx, pool)
	if err != nil {
		return ExitReceipt{}, err
	}
	if loan.State != model.LoanStateActive {
		return ExitReceipt{}, fmt.Errorf("%w: loan is %s", ErrInvalidState, loan.State)
	}

	switch outcome {
	case model.LoanOutcomeRepaid:
		if !loan.Creator.Equals(caller) {
			return ExitReceipt{}, fmt.Errorf("%w: %s is not the loan creator", ErrUnauthorized, caller)
		}
		if tx.now > loan.MaturesAt() {
			return ExitReceipt{}, fmt.Errorf("%w: matured at %d", ErrLoanExpired, loan.MaturesAt())
		}
	case model.LoanOutcomeLiquidated:
		if tx.now < loan.MaturesAt() {
			return ExitReceipt{}, fmt.Errorf("%w: matures at %d, now %d", ErrLoanNotMature, loan.MaturesAt(), tx.now)
		}
	}
	if lpAmount != loan.LpAmount {
		return ExitReceipt{}, fmt.Errorf("%w: lp amount %d must equal custody %d", ErrInvalidArgument, lpAmount, loan.LpAmount)
	}

	custody, _, err := model.LpCustodyAddress(s.programID, pool)
	if err != nil {
		return ExitReceipt{}, fmt.Errorf("derive lp custody: %w", err)
	}

	// The asset side always lands in the vault first. The token side goes
	// to the creator on repayment and to the service on liquidation.
	tokenOwner := loan.Creator
	if outcome == model.LoanOutcomeLiquidated {
		tokenOwner = s.configAddr
	}
	tokenDest, err := tx.ledger.EnsureAssociated(tokenOwner, loan.TokenMint)
	if err != nil {
		return ExitReceipt{}, translate(err)
	}
	dest0, dest1 := s.vaultAddr, tokenDest
	if loan.AssetSide == 1 {
		dest0, dest1 = tokenDest, s.vaultAddr
	}

	removed, err := s.adapter.RemoveLiquidity(ctx, tx.view, amm.RemoveLiquidityRequest{
		Pool:         pool,
		Owner:        loanAddr,
		LpSource:     custody,
		LpAmount:     lpAmount,
		Min0:         min0,
		Min1:         min1,
		Destination0: dest0,
		Destination1: dest1,
	})
	if err != nil {
		return ExitReceipt{}, fmt.Errorf("remove liquidity: %w", translate(err))
	}
	assetOut, tokenOut := removed.Amount0, removed.Amount1
	if loan.AssetSide == 1 {
		assetOut, tokenOut = removed.Amount1, removed.Amount0
	}

	fees := NewFeeCollector(cfg)
	var split Split
	if outcome == model.LoanOutcomeRepaid {
		split, err = fees.RemovalSplit(assetOut, loan.Principal)
	} else {
		split, err = fees.LiquidationSplit(assetOut, loan.Principal)
	}
	if err != nil {
		return ExitReceipt{}, err
	}
	if split.ToCreator > 0 {
		creatorAsset, err := tx.ledger.EnsureAssociated(loan.Creator, cfg.AssetMint)
		if err != nil {
			return ExitReceipt{}, translate(err)
		}
		if err := tx.ledger.Transfer(s.vaultAddr, creatorAsset, split.ToCreator); err != nil {
			return ExitReceipt{}, fmt.Errorf("pay creator: %w", translate(err))
		}
	}

	committed, underflow := math.SafeSub(cfg.Committed, loan.Principal)
	if underflow {
		return ExitReceipt{}, fmt.Errorf("%w: committed %d below principal %d", ErrArithmeticOverflow, cfg.Committed, loan.Principal)
	}
	cfg.Committed = committed

	loan.State = model.LoanStateClosed
	loan.Outcome = outcome
	loan.LpAmount = 0
	loan.ClosedAt = tx.now
	loan.Repaid = split.Repaid
	loan.FeesPaid = split.Fee
	if err := s.storeLoan(tx, loanAddr, loan); err != nil {
		return ExitReceipt{}, err
	}
	if err := s.storeConfig(tx, cfg); err != nil {
		return ExitReceipt{}, err
	}

	attrs := map[string]string{
		"user":         loan.Creator.String(),
		"principal":    u64(loan.Principal),
		"amount":       u64(assetOut),
		"token_amount": u64(tokenOut),
		"repaid":       u64(split.Repaid),
		"fee":          u64(split.Fee),
		"to_vault":     u64(split.ToVault),
		"to_creator":   u64(split.ToCreator),
	}
	evType := model.EventLoanRepaid
	if outcome == model.LoanOutcomeLiquidated {
		evType = model.EventLoanLiquidated
		attrs["liquidator"] = caller.String()
	}
	tx.emit(evType, caller, pool, attrs)
	s.logger.Info("loan closed",
		zap.String("pool", pool.String()),
		zap.Stringer("outcome", outcome),
		zap.Uint64("asset_out", assetOut),
		zap.Uint64("token_out", tokenOut),
		zap.Uint64("repaid", split.Repaid),
	)

	return ExitReceipt{
		Pool:     pool,
		Amount0:  removed.Amount0,
		Amount1:  removed.Amount1,
		AssetOut: assetOut,
		TokenOut: tokenOut,
		Split:    split,
		Outcome:  outcome,
	}, nil
}
