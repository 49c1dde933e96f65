package ledger

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gagliardetto/solana-go"

	"poolCustody/internal/model"
	"poolCustody/internal/state"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("token account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrMintNotFound      = errors.New("mint not found")
	ErrMintMismatch      = errors.New("token account mint mismatch")
	ErrOverflow          = errors.New("amount overflow")
)

// Ledger reads and writes token accounts and mints through a state view.
// It holds no state of its own; every mutation is staged on the view.
type Ledger struct {
	view *state.View
}

func New(view *state.View) *Ledger {
	return &Ledger{view: view}
}

// View returns the underlying state view.
func (l *Ledger) View() *state.View {
	return l.view
}

func (l *Ledger) Mint(addr solana.PublicKey) (model.Mint, error) {
	var m model.Mint
	ok, err := l.load(model.Key(model.NamespaceMint, addr), &m)
	if err != nil {
		return model.Mint{}, err
	}
	if !ok {
		return model.Mint{}, fmt.Errorf("%w: %s", ErrMintNotFound, addr)
	}
	return m, nil
}

func (l *Ledger) PutMint(addr solana.PublicKey, m model.Mint) error {
	return l.store(model.Key(model.NamespaceMint, addr), m)
}

// CreateMint registers a new mint with zero supply.
func (l *Ledger) CreateMint(addr solana.PublicKey, m model.Mint) error {
	key := model.Key(model.NamespaceMint, addr)
	exists, err := l.view.Has(key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: mint %s", ErrAccountExists, addr)
	}
	m.Supply = 0
	return l.store(key, m)
}

// RevokeAuthorities clears both the mint and freeze authority of a mint.
func (l *Ledger) RevokeAuthorities(addr solana.PublicKey) error {
	m, err := l.Mint(addr)
	if err != nil {
		return err
	}
	m.HasMintAuthority = false
	m.MintAuthority = solana.PublicKey{}
	m.HasFreezeAuthority = false
	m.FreezeAuthority = solana.PublicKey{}
	return l.PutMint(addr, m)
}

func (l *Ledger) Account(addr solana.PublicKey) (model.TokenAccount, error) {
	var acc model.TokenAccount
	ok, err := l.load(model.Key(model.NamespaceToken, addr), &acc)
	if err != nil {
		return model.TokenAccount{}, err
	}
	if !ok {
		return model.TokenAccount{}, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return acc, nil
}

// HasAccount reports whether a token account exists at addr.
func (l *Ledger) HasAccount(addr solana.PublicKey) (bool, error) {
	return l.view.Has(model.Key(model.NamespaceToken, addr))
}

func (l *Ledger) putAccount(addr solana.PublicKey, acc model.TokenAccount) error {
	return l.store(model.Key(model.NamespaceToken, addr), acc)
}

// OpenAccount creates an empty token account, or returns the existing one
// when it already holds the same mint.
func (l *Ledger) OpenAccount(addr, mint, owner solana.PublicKey) (model.TokenAccount, error) {
	acc, err := l.Account(addr)
	if err == nil {
		if !acc.Mint.Equals(mint) {
			return model.TokenAccount{}, fmt.Errorf("%w: %s holds %s", ErrMintMismatch, addr, acc.Mint)
		}
		return acc, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return model.TokenAccount{}, err
	}
	if _, err := l.Mint(mint); err != nil {
		return model.TokenAccount{}, err
	}
	acc = model.TokenAccount{Mint: mint, Owner: owner}
	if err := l.putAccount(addr, acc); err != nil {
		return model.TokenAccount{}, err
	}
	return acc, nil
}

// EnsureAssociated opens the associated token account of owner for mint.
func (l *Ledger) EnsureAssociated(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, err := model.AssociatedAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if _, err := l.OpenAccount(addr, mint, owner); err != nil {
		return solana.PublicKey{}, err
	}
	return addr, nil
}

// Balance returns the amount held at addr, zero when the account is absent.
func (l *Ledger) Balance(addr solana.PublicKey) (uint64, error) {
	acc, err := l.Account(addr)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return acc.Amount, nil
}

// Transfer moves amount between two accounts of the same mint.
func (l *Ledger) Transfer(from, to solana.PublicKey, amount uint64) error {
	if amount == 0 || from.Equals(to) {
		return nil
	}
	src, err := l.Account(from)
	if err != nil {
		return fmt.Errorf("transfer source: %w", err)
	}
	dst, err := l.Account(to)
	if err != nil {
		return fmt.Errorf("transfer destination: %w", err)
	}
	if !src.Mint.Equals(dst.Mint) {
		return fmt.Errorf("%w: %s -> %s", ErrMintMismatch, src.Mint, dst.Mint)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s holds %d, need %d", ErrInsufficientFunds, from, src.Amount, amount)
	}
	next, overflow := math.SafeAdd(dst.Amount, amount)
	if overflow {
		return fmt.Errorf("%w: credit %s", ErrOverflow, to)
	}
	src.Amount -= amount
	dst.Amount = next
	if err := l.putAccount(from, src); err != nil {
		return err
	}
	return l.putAccount(to, dst)
}

// MintTo issues amount of mint into to.
func (l *Ledger) MintTo(mint, to solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	m, err := l.Mint(mint)
	if err != nil {
		return err
	}
	dst, err := l.Account(to)
	if err != nil {
		return fmt.Errorf("mint destination: %w", err)
	}
	if !dst.Mint.Equals(mint) {
		return fmt.Errorf("%w: %s holds %s", ErrMintMismatch, to, dst.Mint)
	}
	supply, overflow := math.SafeAdd(m.Supply, amount)
	if overflow {
		return fmt.Errorf("%w: supply of %s", ErrOverflow, mint)
	}
	balance, overflow := math.SafeAdd(dst.Amount, amount)
	if overflow {
		return fmt.Errorf("%w: credit %s", ErrOverflow, to)
	}
	m.Supply = supply
	dst.Amount = balance
	if err := l.PutMint(mint, m); err != nil {
		return err
	}
	return l.putAccount(to, dst)
}

// Burn destroys amount of mint held at from.
func (l *Ledger) Burn(mint, from solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	m, err := l.Mint(mint)
	if err != nil {
		return err
	}
	src, err := l.Account(from)
	if err != nil {
		return fmt.Errorf("burn source: %w", err)
	}
	if !src.Mint.Equals(mint) {
		return fmt.Errorf("%w: %s holds %s", ErrMintMismatch, from, src.Mint)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s holds %d, burn %d", ErrInsufficientFunds, from, src.Amount, amount)
	}
	src.Amount -= amount
	m.Supply -= amount
	if err := l.PutMint(mint, m); err != nil {
		return err
	}
	return l.putAccount(from, src)
}

// Airdrop mints amount into the associated account of owner, creating the
// account when needed.
func (l *Ledger) Airdrop(owner, mint solana.PublicKey, amount uint64) (solana.PublicKey, error) {
	addr, err := l.EnsureAssociated(owner, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := l.MintTo(mint, addr, amount); err != nil {
		return solana.PublicKey{}, err
	}
	return addr, nil
}

func (l *Ledger) load(key string, out model.Account) (bool, error) {
	return model.LoadAccount(l.view, key, out)
}

func (l *Ledger) store(key string, acc model.Account) error {
	return model.StoreAccount(l.view, key, acc)
}
