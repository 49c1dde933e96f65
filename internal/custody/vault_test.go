package custody

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestVaultDepositWithdraw(t *testing.T) {
	h := newHarness(t, Policy{})
	require.NoError(t, h.svc.Initialize(h.ctx, h.admin, InitParams{ServiceFee: 200_000_000}))

	require.NoError(t, h.svc.Deposit(h.ctx, h.admin, 2_100_000_000))
	require.Equal(t, uint64(2_100_000_000), h.vaultBalance())

	err := h.svc.Withdraw(h.ctx, h.admin, 2_499_999_998)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, uint64(2_100_000_000), h.vaultBalance())

	require.NoError(t, h.svc.Withdraw(h.ctx, h.admin, 2_100_000_000))
	require.Zero(t, h.vaultBalance())
	require.Equal(t, 50*sol, h.balance(h.admin, h.wsol))
}

func TestInitializeOnlyOnce(t *testing.T) {
	h := newHarness(t, Policy{})
	require.NoError(t, h.svc.Initialize(h.ctx, h.admin, InitParams{ServiceFee: 1}))

	err := h.svc.Initialize(h.ctx, solana.NewWallet().PublicKey(), InitParams{ServiceFee: 2})
	require.ErrorIs(t, err, ErrAlreadyInitialized)

	cfg, err := h.svc.Config(h.ctx)
	require.NoError(t, err)
	require.Equal(t, h.admin, cfg.Admin)
	require.Equal(t, uint64(1), cfg.ServiceFee)
	require.Equal(t, solana.WrappedSol, cfg.AssetMint)
}

func TestOperationsRequireInitialize(t *testing.T) {
	h := newHarness(t, Policy{})
	require.ErrorIs(t, h.svc.Deposit(h.ctx, h.admin, 1), ErrNotInitialized)
	require.ErrorIs(t, h.svc.SetServiceFee(h.ctx, h.admin, 1), ErrNotInitialized)
	_, err := h.svc.VaultStatus(h.ctx)
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestAdminOnlyOperations(t *testing.T) {
	h := initialized(t, Policy{}, 100, 0)
	stranger := h.creator

	require.ErrorIs(t, h.svc.SetServiceFee(h.ctx, stranger, 5), ErrUnauthorized)
	require.ErrorIs(t, h.svc.SetPaused(h.ctx, stranger, true), ErrUnauthorized)
	require.ErrorIs(t, h.svc.Deposit(h.ctx, stranger, 1), ErrUnauthorized)
	require.ErrorIs(t, h.svc.Withdraw(h.ctx, stranger, 1), ErrUnauthorized)
	require.ErrorIs(t, h.svc.SetFeeSchedule(h.ctx, stranger, FeeSchedule{}), ErrUnauthorized)

	require.NoError(t, h.svc.SetServiceFee(h.ctx, h.admin, 5))
	cfg, err := h.svc.Config(h.ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(5), cfg.ServiceFee)
}

func TestSetFeeScheduleValidatesRates(t *testing.T) {
	h := initialized(t, Policy{}, 0, 0)

	err := h.svc.SetFeeSchedule(h.ctx, h.admin, FeeSchedule{RemovalFeeBps: 10_001})
	require.ErrorIs(t, err, ErrInvalidFee)

	schedule := FeeSchedule{RemovalFeeBps: 500, LiquidationFeeBps: 10_000, CreatorResidualBps: 2_500}
	require.NoError(t, h.svc.SetFeeSchedule(h.ctx, h.admin, schedule))
	cfg, err := h.svc.Config(h.ctx)
	require.NoError(t, err)
	require.Equal(t, uint16(500), cfg.RemovalFeeBps)
	require.Equal(t, uint16(10_000), cfg.LiquidationFeeBps)
	require.Equal(t, uint16(2_500), cfg.CreatorResidualBps)
}

func TestDepositRejectsZeroAndShortfall(t *testing.T) {
	h := initialized(t, Policy{}, 0, 0)
	require.ErrorIs(t, h.svc.Deposit(h.ctx, h.admin, 0), ErrInvalidArgument)
	require.ErrorIs(t, h.svc.Deposit(h.ctx, h.admin, 51*sol), ErrInsufficientFunds)
	require.Zero(t, h.vaultBalance())
}
