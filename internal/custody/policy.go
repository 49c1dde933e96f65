package custody

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"poolCustody/internal/model"
)

// DefaultLoanDuration is one day in seconds.
const DefaultLoanDuration int64 = 86400

// Policy restricts which pools the service is willing to front. The zero
// value accepts any positive principal and duration.
type Policy struct {
	LoanDurations []int64
	Principals    []uint64
	// RequireFullSupply demands the token side be the entire mint supply with
	// both authorities revoked.
	RequireFullSupply bool
}

// DefaultPolicy fronts 2, 5, 10 or 20 SOL for exactly one day against a
// fixed-supply token.
func DefaultPolicy() Policy {
	sol := solana.LAMPORTS_PER_SOL
	return Policy{
		LoanDurations:     []int64{DefaultLoanDuration},
		Principals:        []uint64{2 * sol, 5 * sol, 10 * sol, 20 * sol},
		RequireFullSupply: true,
	}
}

func (p Policy) checkDuration(d int64) error {
	if len(p.LoanDurations) == 0 {
		return nil
	}
	for _, allowed := range p.LoanDurations {
		if d == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrInvalidDuration, d)
}

func (p Policy) checkPrincipal(amount uint64) error {
	if len(p.Principals) == 0 {
		return nil
	}
	for _, allowed := range p.Principals {
		if amount == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrInvalidPrincipal, amount)
}

func (p Policy) checkTokenSide(mint model.Mint, amount uint64) error {
	if !p.RequireFullSupply {
		return nil
	}
	if amount != mint.Supply {
		return fmt.Errorf("%w: deposit %d of %d", ErrInsufficientTokenSupply, amount, mint.Supply)
	}
	if mint.HasMintAuthority {
		return ErrMintAuthorityNotRevoked
	}
	if mint.HasFreezeAuthority {
		return ErrFreezeAuthorityNotRevoked
	}
	return nil
}
