package cpmm

import (
	"errors"

	"poolCustody/internal/amm"
)

var (
	ErrPoolExists            = amm.ErrPoolExists
	ErrSlippage              = amm.ErrSlippage
	ErrInsufficientLiquidity = errors.New("insufficient liquidity minted")
	ErrZeroAmount            = errors.New("amount must be positive")
	ErrReservesZero          = errors.New("pool reserves are zero")
	ErrUnsortedMints         = errors.New("mints not in canonical order")
	ErrUnknownMint           = errors.New("mint is not part of the pool")
	ErrLockedLiquidity       = errors.New("removal exceeds unlocked liquidity")
)
