package cpmm

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"poolCustody/internal/amm"
	"poolCustody/internal/ledger"
	"poolCustody/internal/model"
	"poolCustody/internal/state"
)

const (
	// LockedLiquidity is burned from the first deposit so a pool can never be
	// drained to zero supply.
	LockedLiquidity uint64 = 100

	DefaultCreatePoolFee       uint64 = 150_000_000
	DefaultTradeFeeNumerator   uint64 = 25
	DefaultTradeFeeDenominator uint64 = 10_000
	LpDecimals                 uint8  = 9
)

var _ amm.Adapter = (*Program)(nil)

// Config describes the simulated pool program.
type Config struct {
	ProgramID      solana.PublicKey
	AmmConfigIndex uint16
	// FeeOwner owns the account that collects the pool creation fee.
	FeeOwner            solana.PublicKey
	FeeMint             solana.PublicKey
	CreatePoolFee       uint64
	TradeFeeNumerator   uint64
	TradeFeeDenominator uint64
}

// DefaultConfig mirrors the Raydium CPMM defaults with a wrapped SOL fee.
func DefaultConfig() Config {
	return Config{
		ProgramID:           amm.CPMMProgramID,
		FeeMint:             solana.WrappedSol,
		CreatePoolFee:       DefaultCreatePoolFee,
		TradeFeeNumerator:   DefaultTradeFeeNumerator,
		TradeFeeDenominator: DefaultTradeFeeDenominator,
	}
}

// Program is an in-process constant-product pool program. It keeps pools,
// vaults and LP mints in the same state view as the caller.
type Program struct {
	cfg       Config
	ammConfig solana.PublicKey
	authority solana.PublicKey
	logger    *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Program, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProgramID.IsZero() {
		cfg.ProgramID = amm.CPMMProgramID
	}
	if cfg.FeeMint.IsZero() {
		cfg.FeeMint = solana.WrappedSol
	}
	if cfg.FeeOwner.IsZero() {
		cfg.FeeOwner = cfg.ProgramID
	}
	if cfg.TradeFeeDenominator == 0 {
		cfg.TradeFeeNumerator = DefaultTradeFeeNumerator
		cfg.TradeFeeDenominator = DefaultTradeFeeDenominator
	}
	if cfg.TradeFeeNumerator >= cfg.TradeFeeDenominator {
		return nil, fmt.Errorf("trade fee %d/%d must be below 1", cfg.TradeFeeNumerator, cfg.TradeFeeDenominator)
	}

	ammConfig, err := amm.DeriveAmmConfig(cfg.ProgramID, cfg.AmmConfigIndex)
	if err != nil {
		return nil, err
	}
	authority, err := amm.DeriveAuthority(cfg.ProgramID)
	if err != nil {
		return nil, err
	}
	return &Program{
		cfg:       cfg,
		ammConfig: ammConfig,
		authority: authority,
		logger:    logger,
	}, nil
}

// AmmConfig returns the fee tier account pools are derived under.
func (p *Program) AmmConfig() solana.PublicKey {
	return p.ammConfig
}

// FeeReceiver returns the account that collects creation fees.
func (p *Program) FeeReceiver() (solana.PublicKey, error) {
	return model.AssociatedAddress(p.cfg.FeeOwner, p.cfg.FeeMint)
}

func (p *Program) PoolAddress(mint0, mint1 solana.PublicKey) (solana.PublicKey, error) {
	lo, hi, _ := amm.SortMints(mint0, mint1)
	return amm.DerivePool(p.cfg.ProgramID, p.ammConfig, lo, hi)
}

// Pool loads the pool record at addr.
func (p *Program) Pool(v *state.View, addr solana.PublicKey) (model.Pool, error) {
	var pool model.Pool
	ok, err := model.LoadAccount(v, model.Key(model.NamespacePool, addr), &pool)
	if err != nil {
		return model.Pool{}, err
	}
	if !ok {
		return model.Pool{}, fmt.Errorf("%w: %s", amm.ErrPoolNotFound, addr)
	}
	return pool, nil
}

func (p *Program) CreatePool(ctx context.Context, v *state.View, req amm.CreatePoolRequest) (amm.PoolReceipt, error) {
	if req.Amount0 == 0 || req.Amount1 == 0 {
		return amm.PoolReceipt{}, ErrZeroAmount
	}
	lo, hi, swapped := amm.SortMints(req.Mint0, req.Mint1)
	if swapped || lo.Equals(hi) {
		return amm.PoolReceipt{}, ErrUnsortedMints
	}

	accounts, err := amm.DerivePoolAccounts(p.cfg.ProgramID, p.ammConfig, req.Mint0, req.Mint1)
	if err != nil {
		return amm.PoolReceipt{}, err
	}
	exists, err := v.Has(model.Key(model.NamespacePool, accounts.Pool))
	if err != nil {
		return amm.PoolReceipt{}, err
	}
	if exists {
		return amm.PoolReceipt{}, fmt.Errorf("%w: %s", ErrPoolExists, accounts.Pool)
	}

	l := ledger.New(v)
	if p.cfg.CreatePoolFee > 0 {
		receiver, err := l.EnsureAssociated(p.cfg.FeeOwner, p.cfg.FeeMint)
		if err != nil {
			return amm.PoolReceipt{}, fmt.Errorf("open fee receiver: %w", err)
		}
		if err := l.Transfer(req.FeeSource, receiver, p.cfg.CreatePoolFee); err != nil {
			return amm.PoolReceipt{}, fmt.Errorf("pay create pool fee: %w", err)
		}
	}

	err = l.CreateMint(accounts.LpMint, model.Mint{
		Decimals:         LpDecimals,
		HasMintAuthority: true,
		MintAuthority:    p.authority,
	})
	if err != nil {
		return amm.PoolReceipt{}, fmt.Errorf("create lp mint: %w", err)
	}
	if _, err := l.OpenAccount(accounts.Vault0, req.Mint0, p.authority); err != nil {
		return amm.PoolReceipt{}, fmt.Errorf("open vault0: %w", err)
	}
	if _, err := l.OpenAccount(accounts.Vault1, req.Mint1, p.authority); err != nil {
		return amm.PoolReceipt{}, fmt.Errorf("open vault1: %w", err)
	}
	if err := l.Transfer(req.Source0, accounts.Vault0, req.Amount0); err != nil {
		return amm.PoolReceipt{}, fmt.Errorf("deposit token0: %w", err)
	}
	if err := l.Transfer(req.Source1, accounts.Vault1, req.Amount1); err != nil {
		return amm.PoolReceipt{}, fmt.Errorf("deposit token1: %w", err)
	}

	liquidity := initialLiquidity(req.Amount0, req.Amount1)
	if liquidity <= LockedLiquidity {
		return amm.PoolReceipt{}, fmt.Errorf("%w: %d", ErrInsufficientLiquidity, liquidity)
	}
	minted := liquidity - LockedLiquidity

	lpAccount, err := l.EnsureAssociated(req.LpOwner, accounts.LpMint)
	if err != nil {
		return amm.PoolReceipt{}, fmt.Errorf("open lp account: %w", err)
	}
	if err := l.MintTo(accounts.LpMint, lpAccount, minted); err != nil {
		return amm.PoolReceipt{}, fmt.Errorf("mint lp: %w", err)
	}

	pool := model.Pool{
		AmmConfig: p.ammConfig,
		Creator:   req.Payer,
		Mint0:     req.Mint0,
		Mint1:     req.Mint1,
		LpMint:    accounts.LpMint,
		Vault0:    accounts.Vault0,
		Vault1:    accounts.Vault1,
		LpSupply:  liquidity,
		OpenTime:  req.OpenTime,
		CreatedAt: req.Now,
	}
	if err := model.StoreAccount(v, model.Key(model.NamespacePool, accounts.Pool), pool); err != nil {
		return amm.PoolReceipt{}, err
	}

	p.logger.Debug("pool created",
		zap.String("pool", accounts.Pool.String()),
		zap.Uint64("amount0", req.Amount0),
		zap.Uint64("amount1", req.Amount1),
		zap.Uint64("lp_minted", minted),
	)
	return amm.PoolReceipt{
		Pool:      accounts.Pool,
		LpMint:    accounts.LpMint,
		LpAccount: lpAccount,
		LpMinted:  minted,
	}, nil
}

func (p *Program) RemoveLiquidity(ctx context.Context, v *state.View, req amm.RemoveLiquidityRequest) (amm.RemoveReceipt, error) {
	if req.LpAmount == 0 {
		return amm.RemoveReceipt{}, ErrZeroAmount
	}
	pool, err := p.Pool(v, req.Pool)
	if err != nil {
		return amm.RemoveReceipt{}, err
	}
	if req.LpAmount > pool.LpSupply-LockedLiquidity {
		return amm.RemoveReceipt{}, fmt.Errorf("%w: %d of %d", ErrLockedLiquidity, req.LpAmount, pool.LpSupply)
	}

	l := ledger.New(v)
	reserve0, err := l.Balance(pool.Vault0)
	if err != nil {
		return amm.RemoveReceipt{}, err
	}
	reserve1, err := l.Balance(pool.Vault1)
	if err != nil {
		return amm.RemoveReceipt{}, err
	}
	out0 := shareOf(reserve0, req.LpAmount, pool.LpSupply)
	out1 := shareOf(reserve1, req.LpAmount, pool.LpSupply)
	if out0 < req.Min0 || out1 < req.Min1 {
		return amm.RemoveReceipt{}, fmt.Errorf("%w: got %d/%d want %d/%d", ErrSlippage, out0, out1, req.Min0, req.Min1)
	}

	if err := l.Burn(pool.LpMint, req.LpSource, req.LpAmount); err != nil {
		return amm.RemoveReceipt{}, fmt.Errorf("burn lp: %w", err)
	}
	if err := l.Transfer(pool.Vault0, req.Destination0, out0); err != nil {
		return amm.RemoveReceipt{}, fmt.Errorf("withdraw token0: %w", err)
	}
	if err := l.Transfer(pool.Vault1, req.Destination1, out1); err != nil {
		return amm.RemoveReceipt{}, fmt.Errorf("withdraw token1: %w", err)
	}

	pool.LpSupply -= req.LpAmount
	if err := model.StoreAccount(v, model.Key(model.NamespacePool, req.Pool), pool); err != nil {
		return amm.RemoveReceipt{}, err
	}
	return amm.RemoveReceipt{Amount0: out0, Amount1: out1}, nil
}

func (p *Program) PoolState(ctx context.Context, v *state.View, addr solana.PublicKey) (amm.PoolState, error) {
	pool, err := p.Pool(v, addr)
	if err != nil {
		return amm.PoolState{}, err
	}
	l := ledger.New(v)
	reserve0, err := l.Balance(pool.Vault0)
	if err != nil {
		return amm.PoolState{}, err
	}
	reserve1, err := l.Balance(pool.Vault1)
	if err != nil {
		return amm.PoolState{}, err
	}
	return amm.PoolState{
		Pool:     addr,
		Mint0:    pool.Mint0,
		Mint1:    pool.Mint1,
		LpMint:   pool.LpMint,
		Reserve0: reserve0,
		Reserve1: reserve1,
		LpSupply: pool.LpSupply,
	}, nil
}

// SwapRequest trades AmountIn of InputMint against the other reserve.
type SwapRequest struct {
	Pool        solana.PublicKey
	InputMint   solana.PublicKey
	AmountIn    uint64
	MinOut      uint64
	Source      solana.PublicKey
	Destination solana.PublicKey
}

// Swap trades against the pool and returns the amount paid out.
func (p *Program) Swap(ctx context.Context, v *state.View, req SwapRequest) (uint64, error) {
	if req.AmountIn == 0 {
		return 0, ErrZeroAmount
	}
	pool, err := p.Pool(v, req.Pool)
	if err != nil {
		return 0, err
	}

	vaultIn, vaultOut := pool.Vault0, pool.Vault1
	switch {
	case req.InputMint.Equals(pool.Mint0):
	case req.InputMint.Equals(pool.Mint1):
		vaultIn, vaultOut = pool.Vault1, pool.Vault0
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownMint, req.InputMint)
	}

	l := ledger.New(v)
	reserveIn, err := l.Balance(vaultIn)
	if err != nil {
		return 0, err
	}
	reserveOut, err := l.Balance(vaultOut)
	if err != nil {
		return 0, err
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, ErrReservesZero
	}

	out := swapOutput(reserveIn, reserveOut, req.AmountIn, p.cfg.TradeFeeNumerator, p.cfg.TradeFeeDenominator)
	if out == 0 || out < req.MinOut {
		return 0, fmt.Errorf("%w: got %d want %d", ErrSlippage, out, req.MinOut)
	}
	if err := l.Transfer(req.Source, vaultIn, req.AmountIn); err != nil {
		return 0, fmt.Errorf("swap input: %w", err)
	}
	if err := l.Transfer(vaultOut, req.Destination, out); err != nil {
		return 0, fmt.Errorf("swap output: %w", err)
	}
	return out, nil
}
