package model

import "github.com/gagliardetto/solana-go"

// Pool is the AMM state record of a constant-product pool. Reserves live in
// the two vault token accounts.
type Pool struct {
	AmmConfig solana.PublicKey
	Creator   solana.PublicKey
	Mint0     solana.PublicKey
	Mint1     solana.PublicKey
	LpMint    solana.PublicKey
	Vault0    solana.PublicKey
	Vault1    solana.PublicKey
	LpSupply  uint64
	OpenTime  int64
	CreatedAt int64
	Bump      uint8
}

func (Pool) AccountName() string { return "PoolState" }
