package custody

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"poolCustody/internal/amm/cpmm"
	"poolCustody/internal/state"
)

const sol = solana.LAMPORTS_PER_SOL

type harness struct {
	t       *testing.T
	ctx     context.Context
	now     int64
	backend *state.MemoryBackend
	program *cpmm.Program
	svc     *Service
	admin   solana.PublicKey
	creator solana.PublicKey
	wsol    solana.PublicKey
}

func newHarness(t *testing.T, policy Policy) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		ctx:     context.Background(),
		now:     1_700_000_000,
		backend: state.NewMemoryBackend(),
		admin:   solana.NewWallet().PublicKey(),
		creator: solana.NewWallet().PublicKey(),
		wsol:    solana.WrappedSol,
	}

	program, err := cpmm.New(cpmm.DefaultConfig(), nil)
	require.NoError(t, err)
	h.program = program

	svc, err := NewService(h.backend, program, Options{
		Policy: policy,
		Now:    func() int64 { return h.now },
	})
	require.NoError(t, err)
	h.svc = svc

	_, err = svc.Airdrop(h.ctx, h.admin, h.wsol, 50*sol)
	require.NoError(t, err)
	return h
}

// initialized returns a harness whose vault holds deposit lamports.
func initialized(t *testing.T, policy Policy, fee, deposit uint64) *harness {
	t.Helper()
	h := newHarness(t, policy)
	require.NoError(t, h.svc.Initialize(h.ctx, h.admin, InitParams{ServiceFee: fee}))
	if deposit > 0 {
		require.NoError(t, h.svc.Deposit(h.ctx, h.admin, deposit))
	}
	_, err := h.svc.Airdrop(h.ctx, h.creator, h.wsol, 1*sol)
	require.NoError(t, err)
	return h
}

func (h *harness) advance(seconds int64) {
	h.now += seconds
}

func (h *harness) token(supply uint64, revoke bool) solana.PublicKey {
	h.t.Helper()
	mint := solana.NewWallet().PublicKey()
	_, err := h.svc.CreateToken(h.ctx, TokenParams{
		Mint:     mint,
		Decimals: 6,
		Supply:   supply,
		Owner:    h.creator,
		Revoke:   revoke,
	})
	require.NoError(h.t, err)
	return mint
}

func (h *harness) createPool(token solana.PublicKey, principal, tokenAmount uint64, duration int64) (CreatedPool, error) {
	return h.svc.CreateLiquidityPool(h.ctx, h.creator, CreatePoolParams{
		Mint0:        token,
		Mint1:        h.wsol,
		Amount0:      tokenAmount,
		Amount1:      principal,
		LoanDuration: duration,
	})
}

func (h *harness) activePool(principal, tokenAmount uint64) CreatedPool {
	h.t.Helper()
	token := h.token(tokenAmount, true)
	created, err := h.createPool(token, principal, tokenAmount, DefaultLoanDuration)
	require.NoError(h.t, err)
	_, err = h.svc.SendLpTokens(h.ctx, h.creator, created.Pool)
	require.NoError(h.t, err)
	return created
}

func (h *harness) vaultBalance() uint64 {
	h.t.Helper()
	status, err := h.svc.VaultStatus(h.ctx)
	require.NoError(h.t, err)
	return status.Balance
}

func (h *harness) balance(owner, mint solana.PublicKey) uint64 {
	h.t.Helper()
	b, err := h.svc.Balance(h.ctx, owner, mint)
	require.NoError(h.t, err)
	return b
}
