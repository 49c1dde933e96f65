package custody

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"

	"poolCustody/internal/model"
)

// Split describes where the asset side of an exit goes.
type Split struct {
	// Repaid is the part returning fronted principal to the vault.
	Repaid uint64
	// Fee is the service's cut of the surplus above principal.
	Fee       uint64
	ToVault   uint64
	ToCreator uint64
}

// FeeCollector computes service fees from the current config.
type FeeCollector struct {
	cfg model.Config
}

func NewFeeCollector(cfg model.Config) FeeCollector {
	return FeeCollector{cfg: cfg}
}

// CreationFee is the flat fee a creator pays into the vault per pool.
func (f FeeCollector) CreationFee() uint64 {
	return f.cfg.ServiceFee
}

// RemovalSplit splits the asset proceeds of a creator-initiated exit. The
// vault recovers up to principal plus a fee on the surplus; the creator keeps
// the rest.
func (f FeeCollector) RemovalSplit(assetOut, principal uint64) (Split, error) {
	repaid := min(assetOut, principal)
	surplus := assetOut - repaid
	fee := bps(surplus, f.cfg.RemovalFeeBps)
	toVault, overflow := math.SafeAdd(repaid, fee)
	if overflow {
		return Split{}, fmt.Errorf("%w: removal split", ErrArithmeticOverflow)
	}
	return Split{
		Repaid:    repaid,
		Fee:       fee,
		ToVault:   toVault,
		ToCreator: surplus - fee,
	}, nil
}

// LiquidationSplit splits the asset proceeds of a liquidation. Everything
// goes to the vault except CreatorResidualBps of the post-fee surplus.
func (f FeeCollector) LiquidationSplit(assetOut, principal uint64) (Split, error) {
	repaid := min(assetOut, principal)
	surplus := assetOut - repaid
	fee := bps(surplus, f.cfg.LiquidationFeeBps)
	residual := bps(surplus-fee, f.cfg.CreatorResidualBps)
	toVault, overflow := math.SafeAdd(repaid, surplus-residual)
	if overflow {
		return Split{}, fmt.Errorf("%w: liquidation split", ErrArithmeticOverflow)
	}
	return Split{
		Repaid:    repaid,
		Fee:       fee,
		ToVault:   toVault,
		ToCreator: residual,
	}, nil
}

// bps returns amount * rate / 10_000, rounded down.
func bps(amount uint64, rate uint16) uint64 {
	if amount == 0 || rate == 0 {
		return 0
	}
	out := new(big.Int).SetUint64(amount)
	out.Mul(out, big.NewInt(int64(rate)))
	out.Quo(out, big.NewInt(model.BpsDenominator))
	return out.Uint64()
}

func validBps(rate uint16) bool {
	return rate <= model.BpsDenominator
}
