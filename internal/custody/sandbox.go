package custody

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"poolCustody/internal/ledger"
	"poolCustody/internal/model"
)

// TokenParams describes a token minted in the local sandbox.
type TokenParams struct {
	Mint     solana.PublicKey
	Decimals uint8
	Supply   uint64
	Owner    solana.PublicKey
	// Revoke clears mint and freeze authority after the supply is issued.
	Revoke bool
}

// CreateToken registers a mint and issues its supply to the owner's
// associated account.
func (s *Service) CreateToken(ctx context.Context, params TokenParams) (solana.PublicKey, error) {
	var account solana.PublicKey
	err := s.execute(ctx, "create_token", func(tx *txn) error {
		err := tx.ledger.CreateMint(params.Mint, model.Mint{
			Decimals:           params.Decimals,
			HasMintAuthority:   true,
			MintAuthority:      params.Owner,
			HasFreezeAuthority: true,
			FreezeAuthority:    params.Owner,
		})
		if err != nil {
			return err
		}
		account, err = tx.ledger.Airdrop(params.Owner, params.Mint, params.Supply)
		if err != nil {
			return translate(err)
		}
		if params.Revoke {
			return tx.ledger.RevokeAuthorities(params.Mint)
		}
		return nil
	})
	return account, err
}

// Airdrop mints amount into the owner's associated account, creating a
// 9-decimal faucet mint on first use. Only faucet mints can be topped up; a
// zero amount just opens the account for any existing mint.
func (s *Service) Airdrop(ctx context.Context, owner, mint solana.PublicKey, amount uint64) (solana.PublicKey, error) {
	var account solana.PublicKey
	err := s.execute(ctx, "airdrop", func(tx *txn) error {
		info, err := tx.ledger.Mint(mint)
		switch {
		case errors.Is(err, ledger.ErrMintNotFound):
			info = model.Mint{Decimals: 9, HasMintAuthority: true, MintAuthority: s.faucetAddr}
			if err := tx.ledger.CreateMint(mint, info); err != nil {
				return err
			}
		case err != nil:
			return err
		}
		if amount == 0 {
			account, err = tx.ledger.EnsureAssociated(owner, mint)
			return translate(err)
		}
		if !info.HasMintAuthority || !info.MintAuthority.Equals(s.faucetAddr) {
			return fmt.Errorf("%w: %s is not a faucet mint", ErrInvalidMint, mint)
		}
		account, err = tx.ledger.Airdrop(owner, mint, amount)
		if err != nil {
			return fmt.Errorf("airdrop: %w", translate(err))
		}
		return nil
	})
	return account, err
}

// Balance returns what owner holds of mint in its associated account.
func (s *Service) Balance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	var balance uint64
	err := s.read(ctx, func(tx *txn) error {
		addr, err := model.AssociatedAddress(owner, mint)
		if err != nil {
			return err
		}
		balance, err = tx.ledger.Balance(addr)
		return err
	})
	return balance, err
}
