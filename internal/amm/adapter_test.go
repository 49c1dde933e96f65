package amm

import (
	"bytes"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestSortMints(t *testing.T) {
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()

	lo, hi, swapped := SortMints(a, b)
	if bytes.Compare(lo[:], hi[:]) >= 0 {
		t.Fatalf("mints not ordered: %s %s", lo, hi)
	}
	lo2, hi2, swapped2 := SortMints(b, a)
	if !lo.Equals(lo2) || !hi.Equals(hi2) {
		t.Fatalf("order depends on input order")
	}
	if swapped == swapped2 {
		t.Fatalf("exactly one call should report a swap")
	}
}

func TestDerivePoolRequiresCanonicalOrder(t *testing.T) {
	cfg, err := DeriveAmmConfig(CPMMProgramID, 0)
	if err != nil {
		t.Fatalf("amm config: %v", err)
	}
	lo, hi, _ := SortMints(solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey())

	pool, err := DerivePool(CPMMProgramID, cfg, lo, hi)
	if err != nil {
		t.Fatalf("derive pool: %v", err)
	}
	again, err := DerivePool(CPMMProgramID, cfg, lo, hi)
	if err != nil || !again.Equals(pool) {
		t.Fatalf("derivation is not deterministic")
	}
	if _, err := DerivePool(CPMMProgramID, cfg, hi, lo); err == nil {
		t.Fatalf("expected error for unsorted mints")
	}
}

func TestPoolStateQuote(t *testing.T) {
	p := PoolState{Reserve0: 2_000_000_000, Reserve1: 1_000_000, LpSupply: 44_721_359}

	a0, a1 := p.Quote(p.LpSupply)
	if a0 != p.Reserve0 || a1 != p.Reserve1 {
		t.Fatalf("full quote: got %d %d", a0, a1)
	}
	a0, a1 = p.Quote(p.LpSupply / 2)
	if a0 > p.Reserve0/2 || a1 > p.Reserve1/2 {
		t.Fatalf("half quote rounds up: %d %d", a0, a1)
	}
	if a0, a1 = (PoolState{}).Quote(10); a0 != 0 || a1 != 0 {
		t.Fatalf("empty pool quote: %d %d", a0, a1)
	}
}
