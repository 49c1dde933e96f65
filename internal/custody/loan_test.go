package custody

import (
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"poolCustody/internal/amm/cpmm"
	"poolCustody/internal/model"
	"poolCustody/internal/state"
)

const tokenSupply uint64 = 1_000_000_000_000

func TestLoanLifecycleLiquidation(t *testing.T) {
	h := initialized(t, DefaultPolicy(), 200_000_000, 5*sol)
	token := h.token(tokenSupply, true)

	created, err := h.createPool(token, 2*sol, tokenSupply, 86400)
	require.NoError(t, err)
	require.Equal(t, 2*sol, created.Principal)

	loan, err := h.svc.Loan(h.ctx, created.Pool)
	require.NoError(t, err)
	require.Equal(t, model.LoanStatePending, loan.State)
	require.Zero(t, loan.LpAmount)

	status, err := h.svc.VaultStatus(h.ctx)
	require.NoError(t, err)
	require.Equal(t, 5*sol+200_000_000-2*sol, status.Balance)
	require.Equal(t, 2*sol, status.Committed)

	loan, err = h.svc.SendLpTokens(h.ctx, h.creator, created.Pool)
	require.NoError(t, err)
	require.Equal(t, model.LoanStateActive, loan.State)
	require.Equal(t, created.LpMinted, loan.LpAmount)
	require.Equal(t, h.now, loan.StartTime)

	_, err = h.svc.LiquidateLoan(h.ctx, h.admin, created.Pool, loan.LpAmount, 0, 0)
	require.ErrorIs(t, err, ErrLoanNotMature)

	h.advance(86399)
	_, err = h.svc.LiquidateLoan(h.ctx, h.admin, created.Pool, loan.LpAmount, 0, 0)
	require.ErrorIs(t, err, ErrLoanNotMature)

	h.advance(1)
	events := make(chan model.Event, 4)
	sub := h.svc.Subscribe(events)
	defer sub.Unsubscribe()

	liquidator := solana.NewWallet().PublicKey()
	receipt, err := h.svc.LiquidateLoan(h.ctx, liquidator, created.Pool, loan.LpAmount, 0, 0)
	require.NoError(t, err)
	require.Equal(t, model.LoanOutcomeLiquidated, receipt.Outcome)

	loan, err = h.svc.Loan(h.ctx, created.Pool)
	require.NoError(t, err)
	require.Equal(t, model.LoanStateClosed, loan.State)
	require.Equal(t, model.LoanOutcomeLiquidated, loan.Outcome)
	require.Zero(t, loan.LpAmount)
	require.Equal(t, h.now, loan.ClosedAt)

	// locked liquidity keeps a few lamports in the pool
	require.LessOrEqual(t, receipt.AssetOut, 2*sol)
	require.Greater(t, receipt.AssetOut, 2*sol-1_000)
	require.Equal(t, receipt.AssetOut, receipt.Split.Repaid)

	status, err = h.svc.VaultStatus(h.ctx)
	require.NoError(t, err)
	require.Equal(t, 3*sol+200_000_000+receipt.AssetOut, status.Balance)
	require.Zero(t, status.Committed)

	serviceToken := h.balance(h.svc.ConfigAddress(), token)
	require.Equal(t, receipt.TokenOut, serviceToken)

	ev := <-events
	require.Equal(t, model.EventLoanLiquidated, ev.Type)
	require.Equal(t, created.Pool.String(), ev.Pool)
	require.Equal(t, liquidator.String(), ev.Attributes["liquidator"])
	require.Equal(t, receipt.AssetOut, ev.Uint("amount"))

	_, err = h.svc.LiquidateLoan(h.ctx, liquidator, created.Pool, loan.LpAmount, 0, 0)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCreatePoolPolicy(t *testing.T) {
	h := initialized(t, DefaultPolicy(), 0, 30*sol)

	token := h.token(tokenSupply, true)
	_, err := h.createPool(token, 3*sol, tokenSupply, DefaultLoanDuration)
	require.ErrorIs(t, err, ErrInvalidPrincipal)

	_, err = h.createPool(token, 2*sol, tokenSupply, 3600)
	require.ErrorIs(t, err, ErrInvalidDuration)

	_, err = h.createPool(token, 2*sol, tokenSupply/2, DefaultLoanDuration)
	require.ErrorIs(t, err, ErrInsufficientTokenSupply)

	unrevoked := h.token(tokenSupply, false)
	_, err = h.createPool(unrevoked, 2*sol, tokenSupply, DefaultLoanDuration)
	require.ErrorIs(t, err, ErrMintAuthorityNotRevoked)

	other := h.token(tokenSupply, true)
	_, err = h.svc.CreateLiquidityPool(h.ctx, h.creator, CreatePoolParams{
		Mint0: token, Mint1: other, Amount0: 1, Amount1: 1, LoanDuration: DefaultLoanDuration,
	})
	require.ErrorIs(t, err, ErrInvalidMint)

	_, err = h.createPool(token, 0, tokenSupply, DefaultLoanDuration)
	require.ErrorIs(t, err, ErrInvalidArgument)

	status, err := h.svc.VaultStatus(h.ctx)
	require.NoError(t, err)
	require.Equal(t, 30*sol, status.Balance)
	require.Zero(t, status.Committed)
}

func TestLoanDurationMustNotOverflowMaturity(t *testing.T) {
	h := initialized(t, Policy{}, 0, 10*sol)
	token := h.token(tokenSupply, true)

	_, err := h.createPool(token, 2*sol, tokenSupply, math.MaxInt64)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.Equal(t, 10*sol, h.vaultBalance())

	// Maturity lands exactly on the int64 limit at creation, then the clock
	// moves before the shares are handed over.
	created, err := h.createPool(token, 2*sol, tokenSupply, math.MaxInt64-h.now)
	require.NoError(t, err)
	h.advance(1)
	_, err = h.svc.SendLpTokens(h.ctx, h.creator, created.Pool)
	require.ErrorIs(t, err, ErrInvalidArgument)

	loan, err := h.svc.Loan(h.ctx, created.Pool)
	require.NoError(t, err)
	require.Equal(t, model.LoanStatePending, loan.State)

	stranger := solana.NewWallet().PublicKey()
	_, err = h.svc.LiquidateLoan(h.ctx, stranger, created.Pool, created.LpMinted, 0, 0)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCreatePoolFailureLeavesNoTrace(t *testing.T) {
	h := initialized(t, DefaultPolicy(), 200_000_000, 5*sol)
	token := h.token(tokenSupply, true)
	creatorBefore := h.balance(h.creator, h.wsol)

	_, err := h.svc.CreateLiquidityPool(h.ctx, h.creator, CreatePoolParams{
		Mint0:        token,
		Mint1:        h.wsol,
		Amount0:      tokenSupply,
		Amount1:      2 * sol,
		MinLpOut:     ^uint64(0),
		LoanDuration: DefaultLoanDuration,
	})
	require.ErrorIs(t, err, ErrSlippageExceeded)

	require.Equal(t, 5*sol, h.vaultBalance())
	require.Equal(t, creatorBefore, h.balance(h.creator, h.wsol))
	require.Equal(t, tokenSupply, h.balance(h.creator, token))
	loans, err := h.svc.Loans(h.ctx)
	require.NoError(t, err)
	require.Empty(t, loans)
}

func TestCreatePoolTwice(t *testing.T) {
	h := initialized(t, Policy{}, 0, 10*sol)
	token := h.token(tokenSupply, true)

	_, err := h.createPool(token, 2*sol, tokenSupply/2, DefaultLoanDuration)
	require.NoError(t, err)
	_, err = h.createPool(token, 2*sol, tokenSupply/2, DefaultLoanDuration)
	require.ErrorIs(t, err, ErrPoolAlreadyExists)
}

func TestCreatePoolVaultShortfall(t *testing.T) {
	h := initialized(t, DefaultPolicy(), 0, 1*sol)
	token := h.token(tokenSupply, true)

	_, err := h.createPool(token, 2*sol, tokenSupply, DefaultLoanDuration)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestPausedBlocksCreationOnly(t *testing.T) {
	h := initialized(t, DefaultPolicy(), 0, 10*sol)
	created := h.activePool(2*sol, tokenSupply)

	require.NoError(t, h.svc.SetPaused(h.ctx, h.admin, true))
	token := h.token(tokenSupply, true)
	_, err := h.createPool(token, 2*sol, tokenSupply, DefaultLoanDuration)
	require.ErrorIs(t, err, ErrProgramPaused)

	loan, err := h.svc.Loan(h.ctx, created.Pool)
	require.NoError(t, err)
	_, err = h.svc.RemoveLiquidity(h.ctx, h.creator, created.Pool, loan.LpAmount, 0, 0)
	require.NoError(t, err)
}

func TestSendLpTokensGuards(t *testing.T) {
	h := initialized(t, DefaultPolicy(), 0, 10*sol)
	token := h.token(tokenSupply, true)
	created, err := h.createPool(token, 2*sol, tokenSupply, DefaultLoanDuration)
	require.NoError(t, err)

	_, err = h.svc.SendLpTokens(h.ctx, h.admin, created.Pool)
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = h.svc.SendLpTokens(h.ctx, h.creator, solana.NewWallet().PublicKey())
	require.ErrorIs(t, err, ErrLoanNotFound)

	_, err = h.svc.SendLpTokens(h.ctx, h.creator, created.Pool)
	require.NoError(t, err)
	require.Zero(t, h.balance(h.creator, created.LpMint))

	_, err = h.svc.SendLpTokens(h.ctx, h.creator, created.Pool)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestExitRequiresActiveLoan(t *testing.T) {
	h := initialized(t, DefaultPolicy(), 0, 10*sol)
	token := h.token(tokenSupply, true)
	created, err := h.createPool(token, 2*sol, tokenSupply, DefaultLoanDuration)
	require.NoError(t, err)

	_, err = h.svc.RemoveLiquidity(h.ctx, h.creator, created.Pool, created.LpMinted, 0, 0)
	require.ErrorIs(t, err, ErrInvalidState)
	h.advance(2 * DefaultLoanDuration)
	_, err = h.svc.LiquidateLoan(h.ctx, h.admin, created.Pool, created.LpMinted, 0, 0)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestRemoveLiquidityRepaysPrincipal(t *testing.T) {
	h := initialized(t, DefaultPolicy(), 0, 10*sol)
	require.NoError(t, h.svc.SetFeeSchedule(h.ctx, h.admin, FeeSchedule{RemovalFeeBps: 1_000}))
	created := h.activePool(2*sol, tokenSupply)

	// a buyer pushes the asset reserve above principal
	buyer := solana.NewWallet().PublicKey()
	_, err := h.svc.Airdrop(h.ctx, buyer, h.wsol, 1*sol)
	require.NoError(t, err)
	loan, err := h.svc.Loan(h.ctx, created.Pool)
	require.NoError(t, err)
	swap(t, h, buyer, loan.TokenMint, 1*sol)

	vaultBefore := h.vaultBalance()
	creatorBefore := h.balance(h.creator, h.wsol)

	_, err = h.svc.RemoveLiquidity(h.ctx, h.admin, created.Pool, loan.LpAmount, 0, 0)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = h.svc.RemoveLiquidity(h.ctx, h.creator, created.Pool, loan.LpAmount-1, 0, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = h.svc.RemoveLiquidity(h.ctx, h.creator, created.Pool, loan.LpAmount, ^uint64(0), ^uint64(0))
	require.ErrorIs(t, err, ErrSlippageExceeded)

	receipt, err := h.svc.RemoveLiquidity(h.ctx, h.creator, created.Pool, loan.LpAmount, 0, 0)
	require.NoError(t, err)
	require.Greater(t, receipt.AssetOut, 2*sol)
	require.Equal(t, 2*sol, receipt.Split.Repaid)
	require.Equal(t, (receipt.AssetOut-2*sol)/10, receipt.Split.Fee)
	require.Equal(t, receipt.AssetOut, receipt.Split.ToVault+receipt.Split.ToCreator)

	require.Equal(t, vaultBefore+receipt.Split.ToVault, h.vaultBalance())
	require.Equal(t, creatorBefore+receipt.Split.ToCreator, h.balance(h.creator, h.wsol))
	require.Equal(t, receipt.TokenOut, h.balance(h.creator, loan.TokenMint))

	closed, err := h.svc.Loan(h.ctx, created.Pool)
	require.NoError(t, err)
	require.Equal(t, model.LoanStateClosed, closed.State)
	require.Equal(t, model.LoanOutcomeRepaid, closed.Outcome)
	require.Equal(t, receipt.Split.Fee, closed.FeesPaid)
}

func TestRemoveLiquidityAfterMaturity(t *testing.T) {
	h := initialized(t, DefaultPolicy(), 0, 10*sol)
	created := h.activePool(2*sol, tokenSupply)
	loan, err := h.svc.Loan(h.ctx, created.Pool)
	require.NoError(t, err)

	h.advance(DefaultLoanDuration)
	_, err = h.svc.RemoveLiquidity(h.ctx, h.creator, created.Pool, loan.LpAmount, 0, 0)
	require.NoError(t, err, "removal is still allowed at the maturity boundary")

	other := h.activePool(2*sol, tokenSupply)
	loan, err = h.svc.Loan(h.ctx, other.Pool)
	require.NoError(t, err)
	h.advance(DefaultLoanDuration + 1)
	_, err = h.svc.RemoveLiquidity(h.ctx, h.creator, other.Pool, loan.LpAmount, 0, 0)
	require.ErrorIs(t, err, ErrLoanExpired)
}

func TestLiquidationCreatorResidual(t *testing.T) {
	h := initialized(t, DefaultPolicy(), 0, 10*sol)
	schedule := FeeSchedule{LiquidationFeeBps: 2_000, CreatorResidualBps: 5_000}
	require.NoError(t, h.svc.SetFeeSchedule(h.ctx, h.admin, schedule))
	created := h.activePool(2*sol, tokenSupply)
	loan, err := h.svc.Loan(h.ctx, created.Pool)
	require.NoError(t, err)

	buyer := solana.NewWallet().PublicKey()
	_, err = h.svc.Airdrop(h.ctx, buyer, h.wsol, 2*sol)
	require.NoError(t, err)
	swap(t, h, buyer, loan.TokenMint, 2*sol)

	h.advance(DefaultLoanDuration)
	creatorBefore := h.balance(h.creator, h.wsol)
	receipt, err := h.svc.LiquidateLoan(h.ctx, h.admin, created.Pool, loan.LpAmount, 0, 0)
	require.NoError(t, err)

	surplus := receipt.AssetOut - 2*sol
	fee := surplus * 2_000 / 10_000
	require.Equal(t, fee, receipt.Split.Fee)
	require.Equal(t, (surplus-fee)/2, receipt.Split.ToCreator)
	require.Equal(t, creatorBefore+receipt.Split.ToCreator, h.balance(h.creator, h.wsol))
}

func TestLoansListsEveryEscrow(t *testing.T) {
	h := initialized(t, Policy{}, 0, 10*sol)
	h.activePool(2*sol, tokenSupply)
	h.activePool(5*sol, tokenSupply)

	loans, err := h.svc.Loans(h.ctx)
	require.NoError(t, err)
	require.Len(t, loans, 2)
	for _, loan := range loans {
		require.Equal(t, model.LoanStateActive, loan.State)
	}
}

func TestStatePersistsAcrossServiceInstances(t *testing.T) {
	h := initialized(t, DefaultPolicy(), 0, 10*sol)
	created := h.activePool(2*sol, tokenSupply)

	again, err := NewService(h.backend, h.program, Options{Policy: DefaultPolicy(), Now: func() int64 { return h.now }})
	require.NoError(t, err)
	loan, err := again.Loan(h.ctx, created.Pool)
	require.NoError(t, err)
	require.Equal(t, model.LoanStateActive, loan.State)

	ps, err := again.PoolState(h.ctx, created.Pool)
	require.NoError(t, err)
	require.Equal(t, created.LpMint, ps.LpMint)
}

// swap buys token with amount of the buyer's wrapped SOL directly on the pool.
func swap(t *testing.T, h *harness, buyer, token solana.PublicKey, amount uint64) {
	t.Helper()
	source, err := model.AssociatedAddress(buyer, h.wsol)
	require.NoError(t, err)
	dest, err := model.AssociatedAddress(buyer, token)
	require.NoError(t, err)

	loans, err := h.svc.Loans(h.ctx)
	require.NoError(t, err)
	var pool solana.PublicKey
	for _, loan := range loans {
		if loan.TokenMint.Equals(token) {
			pool = loan.Pool
		}
	}
	require.False(t, pool.IsZero())

	_, err = h.svc.Airdrop(h.ctx, buyer, token, 0)
	require.NoError(t, err)
	view := state.NewView(h.ctx, h.backend)
	_, err = h.program.Swap(h.ctx, view, cpmm.SwapRequest{
		Pool:        pool,
		InputMint:   h.wsol,
		AmountIn:    amount,
		Source:      source,
		Destination: dest,
	})
	require.NoError(t, err)
	require.NoError(t, view.Commit())
}
