package chain

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"

	"poolCustody/internal/model"
)

func TestDecodePoolAccount(t *testing.T) {
	want := cpmmPoolState{
		AmmConfig:          solana.NewWallet().PublicKey(),
		Token0Vault:        solana.NewWallet().PublicKey(),
		Token1Vault:        solana.NewWallet().PublicKey(),
		LpMint:             solana.NewWallet().PublicKey(),
		Token0Mint:         solana.WrappedSol,
		Token1Mint:         solana.NewWallet().PublicKey(),
		LpMintDecimals:     9,
		LpSupply:           44_721_359_549,
		ProtocolFeesToken0: 12,
		OpenTime:           1_700_000_000,
	}
	body, err := borsh.Serialize(want)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	disc := model.Discriminator("PoolState")
	data := append(disc[:], body...)
	data = append(data, make([]byte, 31*8)...)

	got, err := decodePoolAccount(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != want {
		t.Fatalf("decoded %+v, want %+v", got, want)
	}
}

func TestDecodePoolAccountRejectsForeignData(t *testing.T) {
	if _, err := decodePoolAccount([]byte{1, 2}); !errors.Is(err, model.ErrShortAccount) {
		t.Fatalf("expected short account, got %v", err)
	}
	disc := model.Discriminator("AmmConfig")
	if _, err := decodePoolAccount(append(disc[:], 0)); !errors.Is(err, model.ErrDiscriminator) {
		t.Fatalf("expected discriminator error, got %v", err)
	}
}

func TestNetReserve(t *testing.T) {
	got, err := netReserve(1_000, 10, 5)
	if err != nil || got != 985 {
		t.Fatalf("netReserve = %d, %v", got, err)
	}
	if _, err := netReserve(10, 10, 1); err == nil {
		t.Fatalf("expected underflow error")
	}
}
