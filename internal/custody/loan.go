package custody

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"poolCustody/internal/amm"
	"poolCustody/internal/model"
)

// CreatePoolParams describes the pool a creator wants fronted. Mints may be
// given in any order; one of them must be the asset mint.
type CreatePoolParams struct {
	Mint0        solana.PublicKey
	Mint1        solana.PublicKey
	Amount0      uint64
	Amount1      uint64
	MinLpOut     uint64
	LoanDuration int64
	OpenTime     int64
}

// CreatedPool is the outcome of CreateLiquidityPool.
type CreatedPool struct {
	Pool      solana.PublicKey
	Loan      solana.PublicKey
	LpMint    solana.PublicKey
	LpAccount solana.PublicKey
	LpMinted  uint64
	Principal uint64
}

// CreateLiquidityPool charges the service fee, fronts the asset side from
// the vault and creates the pool. The loan starts Pending until the creator
// hands over the LP shares with SendLpTokens.
func (s *Service) CreateLiquidityPool(ctx context.Context, creator solana.PublicKey, params CreatePoolParams) (CreatedPool, error) {
	var out CreatedPool
	err := s.execute(ctx, "create_liquidity_pool", func(tx *txn) error {
		cfg, err := s.loadConfig(tx)
		if err != nil {
			return err
		}
		if cfg.Paused {
			return ErrProgramPaused
		}
		if params.Amount0 == 0 || params.Amount1 == 0 {
			return fmt.Errorf("%w: pool amounts must be positive", ErrInvalidArgument)
		}
		if params.LoanDuration <= 0 {
			return fmt.Errorf("%w: loan duration must be positive", ErrInvalidArgument)
		}
		if _, ok := model.Maturity(tx.now, params.LoanDuration); !ok {
			return fmt.Errorf("%w: loan duration %d overflows maturity", ErrInvalidArgument, params.LoanDuration)
		}
		if params.Mint0.Equals(params.Mint1) {
			return fmt.Errorf("%w: mints must differ", ErrInvalidArgument)
		}

		mint0, mint1, swapped := amm.SortMints(params.Mint0, params.Mint1)
		amount0, amount1 := params.Amount0, params.Amount1
		if swapped {
			amount0, amount1 = amount1, amount0
		}

		var (
			assetSide   uint8
			principal   uint64
			tokenMint   solana.PublicKey
			tokenAmount uint64
		)
		switch {
		case mint0.Equals(cfg.AssetMint):
			assetSide, principal, tokenMint, tokenAmount = 0, amount0, mint1, amount1
		case mint1.Equals(cfg.AssetMint):
			assetSide, principal, tokenMint, tokenAmount = 1, amount1, mint0, amount0
		default:
			return fmt.Errorf("%w: neither side is %s", ErrInvalidMint, cfg.AssetMint)
		}

		if err := s.policy.checkDuration(params.LoanDuration); err != nil {
			return err
		}
		if err := s.policy.checkPrincipal(principal); err != nil {
			return err
		}
		tokenInfo, err := tx.ledger.Mint(tokenMint)
		if err != nil {
			return translate(err)
		}
		if err := s.policy.checkTokenSide(tokenInfo, tokenAmount); err != nil {
			return err
		}

		pool, err := s.adapter.PoolAddress(mint0, mint1)
		if err != nil {
			return fmt.Errorf("derive pool: %w", err)
		}
		loanAddr, loanBump, err := model.LoanAddress(s.programID, pool)
		if err != nil {
			return fmt.Errorf("derive loan address: %w", err)
		}
		exists, err := tx.view.Has(model.Key(model.NamespaceLoan, loanAddr))
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrPoolAlreadyExists, pool)
		}

		creatorAsset, err := tx.ledger.EnsureAssociated(creator, cfg.AssetMint)
		if err != nil {
			return translate(err)
		}
		creatorToken, err := model.AssociatedAddress(creator, tokenMint)
		if err != nil {
			return err
		}

		fees := NewFeeCollector(cfg)
		if err := tx.ledger.Transfer(creatorAsset, s.vaultAddr, fees.CreationFee()); err != nil {
			return fmt.Errorf("charge service fee: %w", translate(err))
		}

		vaultBalance, err := tx.ledger.Balance(s.vaultAddr)
		if err != nil {
			return err
		}
		if vaultBalance < principal {
			return fmt.Errorf("%w: vault holds %d, principal %d", ErrInsufficientFunds, vaultBalance, principal)
		}
		if err := tx.ledger.Transfer(s.vaultAddr, creatorAsset, principal); err != nil {
			return fmt.Errorf("front principal: %w", translate(err))
		}
		committed, overflow := math.SafeAdd(cfg.Committed, principal)
		if overflow {
			return fmt.Errorf("%w: committed principal", ErrArithmeticOverflow)
		}
		cfg.Committed = committed

		source0, source1 := creatorAsset, creatorToken
		if assetSide == 1 {
			source0, source1 = creatorToken, creatorAsset
		}
		receipt, err := s.adapter.CreatePool(ctx, tx.view, amm.CreatePoolRequest{
			Payer:     creator,
			Mint0:     mint0,
			Mint1:     mint1,
			Amount0:   amount0,
			Amount1:   amount1,
			Source0:   source0,
			Source1:   source1,
			FeeSource: creatorAsset,
			LpOwner:   creator,
			OpenTime:  params.OpenTime,
			Now:       tx.now,
		})
		if err != nil {
			return fmt.Errorf("create pool: %w", translate(err))
		}
		if !receipt.Pool.Equals(pool) {
			return fmt.Errorf("create pool: adapter returned %s, expected %s", receipt.Pool, pool)
		}
		if receipt.LpMinted < params.MinLpOut {
			return fmt.Errorf("%w: minted %d lp, minimum %d", ErrSlippageExceeded, receipt.LpMinted, params.MinLpOut)
		}

		loan := model.LoanEscrow{
			Pool:         pool,
			Creator:      creator,
			LpMint:       receipt.LpMint,
			TokenMint:    tokenMint,
			Mint0:        mint0,
			Mint1:        mint1,
			Principal:    principal,
			TokenAmount:  tokenAmount,
			LoanDuration: params.LoanDuration,
			CreatedAt:    tx.now,
			State:        model.LoanStatePending,
			AssetSide:    assetSide,
			Bump:         loanBump,
		}
		if err := s.storeLoan(tx, loanAddr, loan); err != nil {
			return err
		}
		if err := s.storeConfig(tx, cfg); err != nil {
			return err
		}

		tx.emit(model.EventLoanCreated, creator, pool, map[string]string{
			"principal":     u64(principal),
			"token_mint":    tokenMint.String(),
			"token_amount":  u64(tokenAmount),
			"lp_minted":     u64(receipt.LpMinted),
			"loan_duration": i64(params.LoanDuration),
			"service_fee":   u64(fees.CreationFee()),
		})
		s.logger.Info("loan created",
			zap.String("pool", pool.String()),
			zap.String("creator", creator.String()),
			zap.Uint64("principal", principal),
			zap.Uint64("lp_minted", receipt.LpMinted),
		)

		out = CreatedPool{
			Pool:      pool,
			Loan:      loanAddr,
			LpMint:    receipt.LpMint,
			LpAccount: receipt.LpAccount,
			LpMinted:  receipt.LpMinted,
			Principal: principal,
		}
		return nil
	})
	return out, err
}

// SendLpTokens moves the creator's LP shares into loan custody and starts
// the loan clock.
func (s *Service) SendLpTokens(ctx context.Context, caller, pool solana.PublicKey) (model.LoanEscrow, error) {
	var out model.LoanEscrow
	err := s.execute(ctx, "send_lp_tokens", func(tx *txn) error {
		loan, loanAddr, err := s.loadLoan(tx, pool)
		if err != nil {
			return err
		}
		if loan.State != model.LoanStatePending {
			return fmt.Errorf("%w: loan is %s", ErrInvalidState, loan.State)
		}
		if !loan.Creator.Equals(caller) {
			return fmt.Errorf("%w: %s is not the loan creator", ErrUnauthorized, caller)
		}
		if _, ok := model.Maturity(tx.now, loan.LoanDuration); !ok {
			return fmt.Errorf("%w: loan duration %d overflows maturity", ErrInvalidArgument, loan.LoanDuration)
		}

		creatorLp, err := model.AssociatedAddress(loan.Creator, loan.LpMint)
		if err != nil {
			return err
		}
		shares, err := tx.ledger.Balance(creatorLp)
		if err != nil {
			return err
		}
		if shares == 0 {
			return fmt.Errorf("%w: creator holds no lp shares", ErrInsufficientFunds)
		}

		custody, _, err := model.LpCustodyAddress(s.programID, pool)
		if err != nil {
			return fmt.Errorf("derive lp custody: %w", err)
		}
		if _, err := tx.ledger.OpenAccount(custody, loan.LpMint, loanAddr); err != nil {
			return translate(err)
		}
		if err := tx.ledger.Transfer(creatorLp, custody, shares); err != nil {
			return fmt.Errorf("move lp shares: %w", translate(err))
		}

		loan.LpAmount = shares
		loan.StartTime = tx.now
		loan.State = model.LoanStateActive
		if err := s.storeLoan(tx, loanAddr, loan); err != nil {
			return err
		}

		tx.emit(model.EventLoanActivated, caller, pool, map[string]string{
			"lp_amount":  u64(shares),
			"matures_at": i64(loan.MaturesAt()),
		})
		out = loan
		return nil
	})
	return out, err
}

// Loan returns the escrow record for pool.
func (s *Service) Loan(ctx context.Context, pool solana.PublicKey) (model.LoanEscrow, error) {
	var out model.LoanEscrow
	err := s.read(ctx, func(tx *txn) error {
		loan, _, err := s.loadLoan(tx, pool)
		out = loan
		return err
	})
	return out, err
}

// Loans returns every escrow record ordered by key.
func (s *Service) Loans(ctx context.Context) ([]model.LoanEscrow, error) {
	var out []model.LoanEscrow
	err := s.read(ctx, func(tx *txn) error {
		keys, err := tx.view.Keys(model.Prefix(model.NamespaceLoan))
		if err != nil {
			return err
		}
		out = make([]model.LoanEscrow, 0, len(keys))
		for _, key := range keys {
			var loan model.LoanEscrow
			ok, err := model.LoadAccount(tx.view, key, &loan)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, loan)
			}
		}
		return nil
	})
	return out, err
}

// PoolState reads the current AMM state of pool.
func (s *Service) PoolState(ctx context.Context, pool solana.PublicKey) (amm.PoolState, error) {
	var out amm.PoolState
	err := s.read(ctx, func(tx *txn) error {
		ps, err := s.adapter.PoolState(ctx, tx.view, pool)
		if err != nil {
			if errors.Is(err, amm.ErrPoolNotFound) {
				return fmt.Errorf("%w: %w", ErrLoanNotFound, err)
			}
			return err
		}
		out = ps
		return nil
	})
	return out, err
}
