package custody

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestAirdropOnlyMintsFaucetMints(t *testing.T) {
	h := initialized(t, DefaultPolicy(), 0, 10*sol)
	created := h.activePool(2*sol, tokenSupply)
	stranger := solana.NewWallet().PublicKey()

	_, err := h.svc.Airdrop(h.ctx, stranger, created.LpMint, 1_000)
	require.ErrorIs(t, err, ErrInvalidMint)
	require.Zero(t, h.balance(stranger, created.LpMint))

	revoked := h.token(tokenSupply, true)
	_, err = h.svc.Airdrop(h.ctx, stranger, revoked, 1)
	require.ErrorIs(t, err, ErrInvalidMint)

	owned := h.token(tokenSupply, false)
	_, err = h.svc.Airdrop(h.ctx, stranger, owned, 1)
	require.ErrorIs(t, err, ErrInvalidMint)

	// Opening an empty account needs no mint authority.
	_, err = h.svc.Airdrop(h.ctx, stranger, revoked, 0)
	require.NoError(t, err)
	require.Zero(t, h.balance(stranger, revoked))

	fresh := solana.NewWallet().PublicKey()
	_, err = h.svc.Airdrop(h.ctx, stranger, fresh, 7)
	require.NoError(t, err)
	_, err = h.svc.Airdrop(h.ctx, stranger, fresh, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(10), h.balance(stranger, fresh))
}
