package chain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrAccountNotFound is returned when an RPC node has no account at an address.
var ErrAccountNotFound = errors.New("account not found")

// Client wraps the solana-go RPC client and provides helper methods.
type Client struct {
	rpcClient  *rpc.Client
	commitment rpc.CommitmentType

	mu            sync.RWMutex
	decimalsCache map[solana.PublicKey]uint8
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(rpcURL string) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	return &Client{
		rpcClient:     rpc.New(rpcURL),
		commitment:    rpc.CommitmentConfirmed,
		decimalsCache: make(map[solana.PublicKey]uint8),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		_ = c.rpcClient.Close()
	}
}

// Slot returns the latest confirmed slot.
func (c *Client) Slot(ctx context.Context) (uint64, error) {
	return c.rpcClient.GetSlot(ctx, c.commitment)
}

// AccountData returns the raw data stored at addr.
func (c *Client) AccountData(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	out, err := c.rpcClient.GetAccountInfo(ctx, addr)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
		}
		return nil, fmt.Errorf("get account %s: %w", addr, err)
	}
	return out.GetBinary(), nil
}

// TokenAccountBalance returns the raw amount held by a token account.
func (c *Client) TokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	out, err := c.rpcClient.GetTokenAccountBalance(ctx, account, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("get token balance %s: %w", account, err)
	}
	if out == nil || out.Value == nil {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, account)
	}
	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token balance %q: %w", out.Value.Amount, err)
	}
	return amount, nil
}

// TokenSupply returns the raw supply of mint.
func (c *Client) TokenSupply(ctx context.Context, mint solana.PublicKey) (uint64, error) {
	out, err := c.rpcClient.GetTokenSupply(ctx, mint, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("get token supply %s: %w", mint, err)
	}
	if out == nil || out.Value == nil {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, mint)
	}
	c.storeDecimals(mint, out.Value.Decimals)
	supply, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token supply %q: %w", out.Value.Amount, err)
	}
	return supply, nil
}

// TokenDecimals returns the decimals of mint, using an in-memory cache.
func (c *Client) TokenDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	c.mu.RLock()
	decimals, ok := c.decimalsCache[mint]
	c.mu.RUnlock()
	if ok {
		return decimals, nil
	}
	if _, err := c.TokenSupply(ctx, mint); err != nil {
		return 0, err
	}
	c.mu.RLock()
	decimals = c.decimalsCache[mint]
	c.mu.RUnlock()
	return decimals, nil
}

func (c *Client) storeDecimals(mint solana.PublicKey, decimals uint8) {
	c.mu.Lock()
	c.decimalsCache[mint] = decimals
	c.mu.Unlock()
}
