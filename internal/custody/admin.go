package custody

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"poolCustody/internal/model"
)

// InitParams configures a fresh deployment. A zero AssetMint selects
// wrapped SOL.
type InitParams struct {
	Syncer     solana.PublicKey
	Verifier   solana.PublicKey
	AssetMint  solana.PublicKey
	ServiceFee uint64
}

// FeeSchedule holds the basis-point rates applied on exit.
type FeeSchedule struct {
	RemovalFeeBps      uint16
	LiquidationFeeBps  uint16
	CreatorResidualBps uint16
}

// Initialize creates the config record and the empty service vault. The
// caller becomes the admin.
func (s *Service) Initialize(ctx context.Context, admin solana.PublicKey, params InitParams) error {
	return s.execute(ctx, "initialize", func(tx *txn) error {
		exists, err := tx.view.Has(model.Key(model.NamespaceConfig, s.configAddr))
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyInitialized
		}
		if admin.IsZero() {
			return fmt.Errorf("%w: admin is zero", ErrInvalidArgument)
		}

		assetMint := params.AssetMint
		if assetMint.IsZero() {
			assetMint = solana.WrappedSol
		}
		if _, err := tx.ledger.OpenAccount(s.vaultAddr, assetMint, s.configAddr); err != nil {
			return fmt.Errorf("open service vault: %w", translate(err))
		}

		cfg := model.Config{
			Admin:       admin,
			Syncer:      params.Syncer,
			Verifier:    params.Verifier,
			AssetMint:   assetMint,
			ServiceFee:  params.ServiceFee,
			Initialized: true,
			Bump:        s.configBump,
			VaultBump:   s.vaultBump,
		}
		if err := s.storeConfig(tx, cfg); err != nil {
			return err
		}

		tx.emit(model.EventInitialized, admin, solana.PublicKey{}, map[string]string{
			"asset_mint":  assetMint.String(),
			"service_fee": u64(params.ServiceFee),
			"vault":       s.vaultAddr.String(),
		})
		s.logger.Info("custody initialized",
			zap.String("admin", admin.String()),
			zap.String("asset_mint", assetMint.String()),
			zap.Uint64("service_fee", params.ServiceFee),
		)
		return nil
	})
}

// SetServiceFee replaces the flat per-pool creation fee.
func (s *Service) SetServiceFee(ctx context.Context, caller solana.PublicKey, fee uint64) error {
	return s.execute(ctx, "set_service_fee", func(tx *txn) error {
		cfg, err := s.loadConfig(tx)
		if err != nil {
			return err
		}
		if err := requireAdmin(cfg, caller); err != nil {
			return err
		}
		previous := cfg.ServiceFee
		cfg.ServiceFee = fee
		if err := s.storeConfig(tx, cfg); err != nil {
			return err
		}
		tx.emit(model.EventFeeUpdated, caller, solana.PublicKey{}, map[string]string{
			"service_fee": u64(fee),
			"previous":    u64(previous),
		})
		return nil
	})
}

// SetFeeSchedule replaces the exit fee rates.
func (s *Service) SetFeeSchedule(ctx context.Context, caller solana.PublicKey, schedule FeeSchedule) error {
	if !validBps(schedule.RemovalFeeBps) || !validBps(schedule.LiquidationFeeBps) || !validBps(schedule.CreatorResidualBps) {
		return fmt.Errorf("%w: rates must not exceed %d bps", ErrInvalidFee, model.BpsDenominator)
	}
	return s.execute(ctx, "set_fee_schedule", func(tx *txn) error {
		cfg, err := s.loadConfig(tx)
		if err != nil {
			return err
		}
		if err := requireAdmin(cfg, caller); err != nil {
			return err
		}
		cfg.RemovalFeeBps = schedule.RemovalFeeBps
		cfg.LiquidationFeeBps = schedule.LiquidationFeeBps
		cfg.CreatorResidualBps = schedule.CreatorResidualBps
		if err := s.storeConfig(tx, cfg); err != nil {
			return err
		}
		tx.emit(model.EventFeeUpdated, caller, solana.PublicKey{}, map[string]string{
			"removal_fee_bps":      u64(uint64(schedule.RemovalFeeBps)),
			"liquidation_fee_bps":  u64(uint64(schedule.LiquidationFeeBps)),
			"creator_residual_bps": u64(uint64(schedule.CreatorResidualBps)),
		})
		return nil
	})
}

// SetPaused stops or resumes pool creation. Exit paths stay open.
func (s *Service) SetPaused(ctx context.Context, caller solana.PublicKey, paused bool) error {
	return s.execute(ctx, "set_paused", func(tx *txn) error {
		cfg, err := s.loadConfig(tx)
		if err != nil {
			return err
		}
		if err := requireAdmin(cfg, caller); err != nil {
			return err
		}
		cfg.Paused = paused
		if err := s.storeConfig(tx, cfg); err != nil {
			return err
		}
		tx.emit(model.EventPaused, caller, solana.PublicKey{}, map[string]string{
			"paused": fmt.Sprintf("%t", paused),
		})
		return nil
	})
}

// Config returns the current configuration.
func (s *Service) Config(ctx context.Context) (model.Config, error) {
	var cfg model.Config
	err := s.read(ctx, func(tx *txn) error {
		var err error
		cfg, err = s.loadConfig(tx)
		return err
	})
	return cfg, err
}
