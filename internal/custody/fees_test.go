package custody

import (
	"testing"

	"poolCustody/internal/model"
)

func TestRemovalSplit(t *testing.T) {
	cases := []struct {
		name      string
		bps       uint16
		assetOut  uint64
		principal uint64
		want      Split
	}{
		{"shortfall", 1000, 90, 100, Split{Repaid: 90, ToVault: 90}},
		{"exact", 1000, 100, 100, Split{Repaid: 100, ToVault: 100}},
		{"surplus", 1000, 200, 100, Split{Repaid: 100, Fee: 10, ToVault: 110, ToCreator: 90}},
		{"no fee", 0, 200, 100, Split{Repaid: 100, ToVault: 100, ToCreator: 100}},
		{"rounds down", 2500, 103, 100, Split{Repaid: 100, ToVault: 100, ToCreator: 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fc := NewFeeCollector(model.Config{RemovalFeeBps: tc.bps})
			got, err := fc.RemovalSplit(tc.assetOut, tc.principal)
			if err != nil {
				t.Fatalf("RemovalSplit: %v", err)
			}
			if got != tc.want {
				t.Fatalf("split = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestLiquidationSplit(t *testing.T) {
	cases := []struct {
		name     string
		feeBps   uint16
		residual uint16
		assetOut uint64
		want     Split
	}{
		{"all to vault", 0, 0, 300, Split{Repaid: 100, ToVault: 300}},
		{"fee only", 1000, 0, 300, Split{Repaid: 100, Fee: 20, ToVault: 300}},
		{"residual", 1000, 5000, 300, Split{Repaid: 100, Fee: 20, ToVault: 210, ToCreator: 90}},
		{"shortfall", 1000, 5000, 60, Split{Repaid: 60, ToVault: 60}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fc := NewFeeCollector(model.Config{LiquidationFeeBps: tc.feeBps, CreatorResidualBps: tc.residual})
			got, err := fc.LiquidationSplit(tc.assetOut, 100)
			if err != nil {
				t.Fatalf("LiquidationSplit: %v", err)
			}
			if got != tc.want {
				t.Fatalf("split = %+v, want %+v", got, tc.want)
			}
			if got.ToVault+got.ToCreator != tc.assetOut {
				t.Fatalf("split loses funds: %+v of %d", got, tc.assetOut)
			}
		})
	}
}

func TestCreationFee(t *testing.T) {
	fc := NewFeeCollector(model.Config{ServiceFee: 200_000_000})
	if fc.CreationFee() != 200_000_000 {
		t.Fatalf("CreationFee = %d", fc.CreationFee())
	}
}
