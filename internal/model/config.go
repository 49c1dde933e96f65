package model

import "github.com/gagliardetto/solana-go"

// BpsDenominator is the basis-point scale used by every fee rate.
const BpsDenominator = 10_000

// Config is the singleton service configuration record.
type Config struct {
	Admin              solana.PublicKey
	Syncer             solana.PublicKey
	Verifier           solana.PublicKey
	AssetMint          solana.PublicKey
	ServiceFee         uint64
	RemovalFeeBps      uint16
	LiquidationFeeBps  uint16
	CreatorResidualBps uint16
	Paused             bool
	Initialized        bool
	// Committed is principal fronted to loans that are not closed yet.
	Committed uint64
	Bump      uint8
	VaultBump uint8
}

func (Config) AccountName() string { return "Config" }
