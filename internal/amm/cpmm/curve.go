package cpmm

import "math/big"

// initialLiquidity is isqrt(amount0 * amount1).
func initialLiquidity(amount0, amount1 uint64) uint64 {
	product := new(big.Int).Mul(new(big.Int).SetUint64(amount0), new(big.Int).SetUint64(amount1))
	// sqrt of a product of two uint64 always fits in uint64
	return new(big.Int).Sqrt(product).Uint64()
}

// shareOf returns reserve * lp / supply, rounded down.
func shareOf(reserve, lp, supply uint64) uint64 {
	if supply == 0 {
		return 0
	}
	out := new(big.Int).Mul(new(big.Int).SetUint64(reserve), new(big.Int).SetUint64(lp))
	out.Quo(out, new(big.Int).SetUint64(supply))
	return out.Uint64()
}

// swapOutput applies the trade fee to amountIn and returns the amount of
// the other reserve paid out, keeping reserveIn * reserveOut non-decreasing.
func swapOutput(reserveIn, reserveOut, amountIn, feeNum, feeDen uint64) uint64 {
	if feeDen == 0 {
		feeDen = 1
		feeNum = 0
	}
	in := new(big.Int).SetUint64(amountIn)
	in.Mul(in, new(big.Int).SetUint64(feeDen-feeNum))
	in.Quo(in, new(big.Int).SetUint64(feeDen))

	num := new(big.Int).Mul(new(big.Int).SetUint64(reserveOut), in)
	den := new(big.Int).Add(new(big.Int).SetUint64(reserveIn), in)
	if den.Sign() == 0 {
		return 0
	}
	return num.Quo(num, den).Uint64()
}
