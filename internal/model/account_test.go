package model

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestLoanEscrowAccountRoundTrip(t *testing.T) {
	original := LoanEscrow{
		Pool:         solana.NewWallet().PublicKey(),
		Creator:      solana.NewWallet().PublicKey(),
		LpMint:       solana.NewWallet().PublicKey(),
		TokenMint:    solana.NewWallet().PublicKey(),
		Mint0:        solana.SolMint,
		Mint1:        solana.NewWallet().PublicKey(),
		Principal:    2_000_000_000,
		TokenAmount:  1_000_000_000_000,
		LpAmount:     44_721_359_449,
		LoanDuration: 86400,
		CreatedAt:    1700000000,
		StartTime:    1700000010,
		State:        LoanStateActive,
		AssetSide:    0,
		Bump:         254,
	}

	data, err := MarshalAccount(&original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	disc := Discriminator("LoanEscrow")
	if !reflect.DeepEqual(data[:DiscriminatorSize], disc[:]) {
		t.Fatalf("missing discriminator prefix")
	}

	var decoded LoanEscrow
	if err := UnmarshalAccount(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
}

func TestUnmarshalAccountRejectsOtherType(t *testing.T) {
	data, err := MarshalAccount(TokenAccount{Amount: 5})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var cfg Config
	if err := UnmarshalAccount(data, &cfg); !errors.Is(err, ErrDiscriminator) {
		t.Fatalf("expected ErrDiscriminator, got %v", err)
	}
	if err := UnmarshalAccount(data[:4], &cfg); !errors.Is(err, ErrShortAccount) {
		t.Fatalf("expected ErrShortAccount, got %v", err)
	}
}

func TestMintAuthorityFlagsSurviveEncoding(t *testing.T) {
	authority := solana.NewWallet().PublicKey()
	original := Mint{Supply: 10, Decimals: 6, HasMintAuthority: true, MintAuthority: authority}

	data, err := MarshalAccount(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded Mint
	if err := UnmarshalAccount(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.AuthoritiesRevoked() {
		t.Fatalf("mint authority lost in encoding")
	}
	if !decoded.MintAuthority.Equals(authority) || decoded.HasFreezeAuthority {
		t.Fatalf("unexpected authorities: %+v", decoded)
	}
}

func TestLoanMaturity(t *testing.T) {
	loan := LoanEscrow{State: LoanStateActive, StartTime: 100, LoanDuration: 86400}
	if loan.Matured(86499) {
		t.Fatalf("matured one second early")
	}
	if !loan.Matured(86500) {
		t.Fatalf("not matured at boundary")
	}
	loan.State = LoanStatePending
	if loan.Matured(1 << 40) {
		t.Fatalf("pending loan must never mature")
	}
}

func TestMaturityOverflow(t *testing.T) {
	if _, ok := Maturity(1_700_000_000, math.MaxInt64); ok {
		t.Fatalf("overflowing maturity accepted")
	}
	if at, ok := Maturity(100, 86400); !ok || at != 86500 {
		t.Fatalf("unexpected maturity: %d %v", at, ok)
	}

	loan := LoanEscrow{State: LoanStateActive, StartTime: 1_700_000_000, LoanDuration: math.MaxInt64}
	if loan.MaturesAt() != math.MaxInt64 {
		t.Fatalf("maturity wrapped: %d", loan.MaturesAt())
	}
	if loan.Matured(1_700_000_000) {
		t.Fatalf("saturated loan matured at start")
	}
}

func TestKeyRoundTrip(t *testing.T) {
	addr := solana.NewWallet().PublicKey()
	key := Key(NamespaceLoan, addr)

	ns, parsed, err := ParseKey(key)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if ns != NamespaceLoan || !parsed.Equals(addr) {
		t.Fatalf("unexpected parse result: %s %s", ns, parsed)
	}
	if _, _, err := ParseKey("loan-no-slash"); err == nil {
		t.Fatalf("expected error for malformed key")
	}
}

func TestProgramAddressesAreDistinct(t *testing.T) {
	pool := solana.NewWallet().PublicKey()
	cfg, _, err := ConfigAddress(DefaultProgramID)
	if err != nil {
		t.Fatalf("config address: %v", err)
	}
	vault, _, err := VaultAddress(DefaultProgramID)
	if err != nil {
		t.Fatalf("vault address: %v", err)
	}
	loan, _, err := LoanAddress(DefaultProgramID, pool)
	if err != nil {
		t.Fatalf("loan address: %v", err)
	}
	custody, _, err := LpCustodyAddress(DefaultProgramID, pool)
	if err != nil {
		t.Fatalf("custody address: %v", err)
	}
	seen := map[solana.PublicKey]bool{}
	for _, addr := range []solana.PublicKey{cfg, vault, loan, custody} {
		if seen[addr] {
			t.Fatalf("duplicate derived address %s", addr)
		}
		seen[addr] = true
	}
}
