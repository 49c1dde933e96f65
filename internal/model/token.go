package model

import "github.com/gagliardetto/solana-go"

// TokenAccount holds a balance of one mint for one owner.
type TokenAccount struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

func (TokenAccount) AccountName() string { return "TokenAccount" }

// Mint describes a fungible token. Authorities use explicit presence flags
// the way SPL encodes COption.
type Mint struct {
	Supply             uint64
	Decimals           uint8
	HasMintAuthority   bool
	MintAuthority      solana.PublicKey
	HasFreezeAuthority bool
	FreezeAuthority    solana.PublicKey
}

func (Mint) AccountName() string { return "Mint" }

// AuthoritiesRevoked reports whether neither authority is set.
func (m Mint) AuthoritiesRevoked() bool {
	return !m.HasMintAuthority && !m.HasFreezeAuthority
}
