package model

import (
	"math"

	"github.com/gagliardetto/solana-go"
)

// LoanState is the lifecycle position of a LoanEscrow.
type LoanState uint8

const (
	LoanStateUnknown LoanState = iota
	LoanStatePending
	LoanStateActive
	LoanStateClosed
)

func (s LoanState) String() string {
	switch s {
	case LoanStatePending:
		return "pending"
	case LoanStateActive:
		return "active"
	case LoanStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// LoanOutcome records which exit path closed a loan.
type LoanOutcome uint8

const (
	LoanOutcomeNone LoanOutcome = iota
	LoanOutcomeRepaid
	LoanOutcomeLiquidated
)

func (o LoanOutcome) String() string {
	switch o {
	case LoanOutcomeRepaid:
		return "repaid"
	case LoanOutcomeLiquidated:
		return "liquidated"
	default:
		return "none"
	}
}

// LoanEscrow is the per-pool custody record for the LP collateral.
type LoanEscrow struct {
	Pool      solana.PublicKey
	Creator   solana.PublicKey
	LpMint    solana.PublicKey
	TokenMint solana.PublicKey
	Mint0     solana.PublicKey
	Mint1     solana.PublicKey
	// Principal is the asset amount fronted by the vault.
	Principal    uint64
	TokenAmount  uint64
	LpAmount     uint64
	LoanDuration int64
	CreatedAt    int64
	StartTime    int64
	ClosedAt     int64
	State        LoanState
	Outcome      LoanOutcome
	// AssetSide is 0 when Mint0 is the asset mint, 1 otherwise.
	AssetSide uint8
	Repaid    uint64
	FeesPaid  uint64
	Bump      uint8
}

func (LoanEscrow) AccountName() string { return "LoanEscrow" }

// Maturity returns start+duration, or false when the sum leaves the int64
// range.
func Maturity(start, duration int64) (int64, bool) {
	if duration > 0 && start > math.MaxInt64-duration {
		return 0, false
	}
	if duration < 0 && start < math.MinInt64-duration {
		return 0, false
	}
	return start + duration, true
}

// MaturesAt is the first unix second at which the loan may be liquidated. A
// maturity past the int64 range saturates instead of wrapping.
func (l LoanEscrow) MaturesAt() int64 {
	at, ok := Maturity(l.StartTime, l.LoanDuration)
	if !ok {
		if l.LoanDuration > 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return at
}

// Matured reports whether now has reached the maturity boundary.
func (l LoanEscrow) Matured(now int64) bool {
	return l.State == LoanStateActive && now >= l.MaturesAt()
}

// AssetMint returns the mint on the fronted side of the pool.
func (l LoanEscrow) AssetMint() solana.PublicKey {
	if l.AssetSide == 0 {
		return l.Mint0
	}
	return l.Mint1
}
