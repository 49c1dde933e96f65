package custody

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"poolCustody/internal/model"
)

// VaultStatus reports the free float and the principal out on loans.
type VaultStatus struct {
	Address   solana.PublicKey
	AssetMint solana.PublicKey
	Balance   uint64
	Committed uint64
}

// Deposit moves amount from the admin's associated account into the vault.
func (s *Service) Deposit(ctx context.Context, caller solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: deposit amount is zero", ErrInvalidArgument)
	}
	return s.execute(ctx, "deposit", func(tx *txn) error {
		cfg, err := s.loadConfig(tx)
		if err != nil {
			return err
		}
		if err := requireAdmin(cfg, caller); err != nil {
			return err
		}
		source, err := model.AssociatedAddress(caller, cfg.AssetMint)
		if err != nil {
			return err
		}
		if err := tx.ledger.Transfer(source, s.vaultAddr, amount); err != nil {
			return fmt.Errorf("deposit: %w", translate(err))
		}
		balance, err := tx.ledger.Balance(s.vaultAddr)
		if err != nil {
			return err
		}
		tx.emit(model.EventVaultDeposit, caller, solana.PublicKey{}, map[string]string{
			"amount":  u64(amount),
			"balance": u64(balance),
		})
		return nil
	})
}

// Withdraw moves amount from the vault to the admin's associated account.
// Only the free float is withdrawable; fronted principal has already left
// the vault.
func (s *Service) Withdraw(ctx context.Context, caller solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: withdraw amount is zero", ErrInvalidArgument)
	}
	return s.execute(ctx, "withdraw", func(tx *txn) error {
		cfg, err := s.loadConfig(tx)
		if err != nil {
			return err
		}
		if err := requireAdmin(cfg, caller); err != nil {
			return err
		}
		balance, err := tx.ledger.Balance(s.vaultAddr)
		if err != nil {
			return err
		}
		if amount > balance {
			return fmt.Errorf("%w: vault holds %d, requested %d", ErrInsufficientFunds, balance, amount)
		}
		destination, err := tx.ledger.EnsureAssociated(caller, cfg.AssetMint)
		if err != nil {
			return translate(err)
		}
		if err := tx.ledger.Transfer(s.vaultAddr, destination, amount); err != nil {
			return fmt.Errorf("withdraw: %w", translate(err))
		}
		tx.emit(model.EventVaultWithdraw, caller, solana.PublicKey{}, map[string]string{
			"amount":  u64(amount),
			"balance": u64(balance - amount),
		})
		return nil
	})
}

// VaultStatus returns the vault balance and committed principal.
func (s *Service) VaultStatus(ctx context.Context) (VaultStatus, error) {
	var status VaultStatus
	err := s.read(ctx, func(tx *txn) error {
		cfg, err := s.loadConfig(tx)
		if err != nil {
			return err
		}
		balance, err := tx.ledger.Balance(s.vaultAddr)
		if err != nil {
			return err
		}
		status = VaultStatus{
			Address:   s.vaultAddr,
			AssetMint: cfg.AssetMint,
			Balance:   balance,
			Committed: cfg.Committed,
		}
		return nil
	})
	return status, err
}
