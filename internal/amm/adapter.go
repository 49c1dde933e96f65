package amm

import (
	"context"
	"errors"
	"math/big"

	"github.com/gagliardetto/solana-go"

	"poolCustody/internal/state"
)

var (
	ErrPoolNotFound = errors.New("pool not found")
	ErrPoolExists   = errors.New("pool already exists")
	ErrSlippage     = errors.New("output below minimum")
)

// CreatePoolRequest seeds a new pool from the payer's token accounts. Mints
// must already be in canonical order.
type CreatePoolRequest struct {
	Payer     solana.PublicKey
	Mint0     solana.PublicKey
	Mint1     solana.PublicKey
	Amount0   uint64
	Amount1   uint64
	Source0   solana.PublicKey
	Source1   solana.PublicKey
	FeeSource solana.PublicKey
	// LpOwner receives the minted shares in its associated LP account.
	LpOwner  solana.PublicKey
	OpenTime int64
	Now      int64
}

type PoolReceipt struct {
	Pool      solana.PublicKey
	LpMint    solana.PublicKey
	LpAccount solana.PublicKey
	LpMinted  uint64
}

// RemoveLiquidityRequest burns LpAmount shares held at LpSource and pays
// the proportional reserves to the destinations.
type RemoveLiquidityRequest struct {
	Pool         solana.PublicKey
	Owner        solana.PublicKey
	LpSource     solana.PublicKey
	LpAmount     uint64
	Min0         uint64
	Min1         uint64
	Destination0 solana.PublicKey
	Destination1 solana.PublicKey
}

type RemoveReceipt struct {
	Amount0 uint64
	Amount1 uint64
}

// PoolState is a point-in-time read of a pool.
type PoolState struct {
	Pool     solana.PublicKey
	Mint0    solana.PublicKey
	Mint1    solana.PublicKey
	LpMint   solana.PublicKey
	Reserve0 uint64
	Reserve1 uint64
	LpSupply uint64
}

// Quote returns the reserves a removal of lp shares would pay out, rounded
// down.
func (p PoolState) Quote(lp uint64) (uint64, uint64) {
	if p.LpSupply == 0 || lp == 0 {
		return 0, 0
	}
	return proportional(p.Reserve0, lp, p.LpSupply), proportional(p.Reserve1, lp, p.LpSupply)
}

func proportional(reserve, lp, supply uint64) uint64 {
	out := new(big.Int).SetUint64(reserve)
	out.Mul(out, new(big.Int).SetUint64(lp))
	out.Quo(out, new(big.Int).SetUint64(supply))
	if !out.IsUint64() {
		return reserve
	}
	return out.Uint64()
}

// Adapter is the boundary to the external AMM. Implementations stage every
// mutation on the supplied view so the caller decides whether it commits.
type Adapter interface {
	PoolAddress(mint0, mint1 solana.PublicKey) (solana.PublicKey, error)
	CreatePool(ctx context.Context, v *state.View, req CreatePoolRequest) (PoolReceipt, error)
	RemoveLiquidity(ctx context.Context, v *state.View, req RemoveLiquidityRequest) (RemoveReceipt, error)
	PoolState(ctx context.Context, v *state.View, pool solana.PublicKey) (PoolState, error)
}
