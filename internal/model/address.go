package model

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// DefaultProgramID is the custody program the CLI derives addresses under.
var DefaultProgramID = solana.MustPublicKeyFromBase58("H22783urCUvrQSHtwou3x8D3JxxsG8tCiaEdbP9ygsf8")

var (
	ConfigSeed   = []byte("config")
	VaultSeed    = []byte("vault")
	PoolLoanSeed = []byte("pool_loan")
	LpTokenSeed  = []byte("lp_token")
	FaucetSeed   = []byte("faucet")
)

// Namespace partitions the account key space by record type.
type Namespace string

const (
	NamespaceConfig Namespace = "config"
	NamespaceLoan   Namespace = "loan"
	NamespaceToken  Namespace = "token"
	NamespaceMint   Namespace = "mint"
	NamespacePool   Namespace = "pool"
)

// Key is the storage key of an account.
func Key(ns Namespace, addr solana.PublicKey) string {
	return string(ns) + "/" + addr.String()
}

// Prefix is the key prefix shared by every account of ns.
func Prefix(ns Namespace) string {
	return string(ns) + "/"
}

// ParseKey splits a storage key into namespace and address.
func ParseKey(key string) (Namespace, solana.PublicKey, error) {
	ns, raw, ok := strings.Cut(key, "/")
	if !ok {
		return "", solana.PublicKey{}, fmt.Errorf("invalid account key %q", key)
	}
	addr, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return "", solana.PublicKey{}, fmt.Errorf("invalid account address %q: %w", raw, err)
	}
	return Namespace(ns), addr, nil
}

// ConfigAddress derives the Config record address.
func ConfigAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{ConfigSeed}, programID)
}

// VaultAddress derives the ServiceVault token account address.
func VaultAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{VaultSeed}, programID)
}

// FaucetAddress derives the mint authority of sandbox faucet mints.
func FaucetAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{FaucetSeed}, programID)
}

// LoanAddress derives the LoanEscrow address for pool.
func LoanAddress(programID, pool solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{PoolLoanSeed, pool.Bytes()}, programID)
}

// LpCustodyAddress derives the token account holding a loan's LP shares.
func LpCustodyAddress(programID, pool solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{LpTokenSeed, pool.Bytes()}, programID)
}

// AssociatedAddress is the canonical token account of owner for mint.
func AssociatedAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive associated account: %w", err)
	}
	return addr, nil
}
