package amm

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// CPMMProgramID is the Raydium constant-product program.
var CPMMProgramID = solana.MustPublicKeyFromBase58("CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C")

var (
	AmmConfigSeed   = []byte("amm_config")
	PoolSeed        = []byte("pool")
	PoolLpMintSeed  = []byte("pool_lp_mint")
	PoolVaultSeed   = []byte("pool_vault")
	AuthSeed        = []byte("vault_and_lp_mint_auth_seed")
	ObservationSeed = []byte("observation")
)

// SortMints returns the mints in canonical byte order and reports whether
// they were swapped.
func SortMints(a, b solana.PublicKey) (solana.PublicKey, solana.PublicKey, bool) {
	if bytes.Compare(a[:], b[:]) > 0 {
		return b, a, true
	}
	return a, b, false
}

// DeriveAmmConfig derives the fee tier config account for index.
func DeriveAmmConfig(programID solana.PublicKey, index uint16) (solana.PublicKey, error) {
	var raw [2]byte
	binary.BigEndian.PutUint16(raw[:], index)
	addr, _, err := solana.FindProgramAddress([][]byte{AmmConfigSeed, raw[:]}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive amm config: %w", err)
	}
	return addr, nil
}

// DeriveAuthority derives the signer for pool vaults and LP mints.
func DeriveAuthority(programID solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{AuthSeed}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive pool authority: %w", err)
	}
	return addr, nil
}

// DerivePool derives the pool state address. Mints must be sorted.
func DerivePool(programID, ammConfig, mint0, mint1 solana.PublicKey) (solana.PublicKey, error) {
	if bytes.Compare(mint0[:], mint1[:]) >= 0 {
		return solana.PublicKey{}, fmt.Errorf("derive pool: mints not in canonical order")
	}
	addr, _, err := solana.FindProgramAddress(
		[][]byte{PoolSeed, ammConfig.Bytes(), mint0.Bytes(), mint1.Bytes()},
		programID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive pool: %w", err)
	}
	return addr, nil
}

func DeriveLpMint(programID, pool solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{PoolLpMintSeed, pool.Bytes()}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive lp mint: %w", err)
	}
	return addr, nil
}

func DeriveVault(programID, pool, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{PoolVaultSeed, pool.Bytes(), mint.Bytes()}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive pool vault: %w", err)
	}
	return addr, nil
}

// PoolAccounts bundles every address of a pool.
type PoolAccounts struct {
	Pool   solana.PublicKey
	LpMint solana.PublicKey
	Vault0 solana.PublicKey
	Vault1 solana.PublicKey
}

// DerivePoolAccounts derives the pool, LP mint and both vaults.
func DerivePoolAccounts(programID, ammConfig, mint0, mint1 solana.PublicKey) (PoolAccounts, error) {
	pool, err := DerivePool(programID, ammConfig, mint0, mint1)
	if err != nil {
		return PoolAccounts{}, err
	}
	lpMint, err := DeriveLpMint(programID, pool)
	if err != nil {
		return PoolAccounts{}, err
	}
	vault0, err := DeriveVault(programID, pool, mint0)
	if err != nil {
		return PoolAccounts{}, err
	}
	vault1, err := DeriveVault(programID, pool, mint1)
	if err != nil {
		return PoolAccounts{}, err
	}
	return PoolAccounts{Pool: pool, LpMint: lpMint, Vault0: vault0, Vault1: vault1}, nil
}
