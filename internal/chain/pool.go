package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"

	"poolCustody/internal/amm"
	"poolCustody/internal/model"
)

// cpmmPoolState is the leading part of the on-chain CPMM pool account. The
// account is packed little endian, which borsh decodes field for field.
type cpmmPoolState struct {
	AmmConfig          solana.PublicKey
	PoolCreator        solana.PublicKey
	Token0Vault        solana.PublicKey
	Token1Vault        solana.PublicKey
	LpMint             solana.PublicKey
	Token0Mint         solana.PublicKey
	Token1Mint         solana.PublicKey
	Token0Program      solana.PublicKey
	Token1Program      solana.PublicKey
	ObservationKey     solana.PublicKey
	AuthBump           uint8
	Status             uint8
	LpMintDecimals     uint8
	Mint0Decimals      uint8
	Mint1Decimals      uint8
	LpSupply           uint64
	ProtocolFeesToken0 uint64
	ProtocolFeesToken1 uint64
	FundFeesToken0     uint64
	FundFeesToken1     uint64
	OpenTime           uint64
}

func decodePoolAccount(data []byte) (cpmmPoolState, error) {
	if len(data) < model.DiscriminatorSize {
		return cpmmPoolState{}, model.ErrShortAccount
	}
	want := model.Discriminator("PoolState")
	if string(data[:model.DiscriminatorSize]) != string(want[:]) {
		return cpmmPoolState{}, model.ErrDiscriminator
	}
	var out cpmmPoolState
	if err := borsh.Deserialize(&out, data[model.DiscriminatorSize:]); err != nil {
		return cpmmPoolState{}, fmt.Errorf("decode pool account: %w", err)
	}
	return out, nil
}

// PoolState reads a CPMM pool from the network. Reserves exclude the
// protocol and fund fees accrued in the vaults.
func (c *Client) PoolState(ctx context.Context, pool solana.PublicKey) (amm.PoolState, error) {
	data, err := c.AccountData(ctx, pool)
	if err != nil {
		return amm.PoolState{}, err
	}
	raw, err := decodePoolAccount(data)
	if err != nil {
		return amm.PoolState{}, fmt.Errorf("pool %s: %w", pool, err)
	}

	vault0, err := c.TokenAccountBalance(ctx, raw.Token0Vault)
	if err != nil {
		return amm.PoolState{}, err
	}
	vault1, err := c.TokenAccountBalance(ctx, raw.Token1Vault)
	if err != nil {
		return amm.PoolState{}, err
	}
	reserve0, err := netReserve(vault0, raw.ProtocolFeesToken0, raw.FundFeesToken0)
	if err != nil {
		return amm.PoolState{}, fmt.Errorf("pool %s token0: %w", pool, err)
	}
	reserve1, err := netReserve(vault1, raw.ProtocolFeesToken1, raw.FundFeesToken1)
	if err != nil {
		return amm.PoolState{}, fmt.Errorf("pool %s token1: %w", pool, err)
	}

	return amm.PoolState{
		Pool:     pool,
		Mint0:    raw.Token0Mint,
		Mint1:    raw.Token1Mint,
		LpMint:   raw.LpMint,
		Reserve0: reserve0,
		Reserve1: reserve1,
		LpSupply: raw.LpSupply,
	}, nil
}

func netReserve(vault, protocolFees, fundFees uint64) (uint64, error) {
	fees, overflow := math.SafeAdd(protocolFees, fundFees)
	if overflow {
		return 0, fmt.Errorf("fee total overflows")
	}
	out, underflow := math.SafeSub(vault, fees)
	if underflow {
		return 0, fmt.Errorf("vault %d below accrued fees %d", vault, fees)
	}
	return out, nil
}
