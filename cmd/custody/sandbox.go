package main

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolCustody/internal/amm"
	"poolCustody/internal/chain"
	"poolCustody/internal/config"
	"poolCustody/internal/custody"
	"poolCustody/internal/model"
	"poolCustody/internal/storage"
)

func faucetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faucet <owner> <amount>",
		Short: "Mint sandbox tokens (wrapped SOL by default) to an owner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := config.ParsePublicKey("owner", args[0])
			if err != nil {
				return err
			}
			rawMint, _ := cmd.Flags().GetString("mint")
			mint := solana.WrappedSol
			if rawMint != "" {
				if mint, err = config.ParsePublicKey("mint", rawMint); err != nil {
					return err
				}
			}
			decimals, _ := cmd.Flags().GetUint8("decimals")
			amount, err := config.ParseAmount(args[1], decimals)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				account, err := a.svc.Airdrop(ctx, owner, mint, amount)
				if err != nil {
					return err
				}
				balance, err := a.svc.Balance(ctx, owner, mint)
				if err != nil {
					return err
				}
				printf(cmd, "account=%s mint=%s balance=%s\n", account, mint, config.FormatAmount(balance, decimals))
				return nil
			})
		},
	}
	cmd.Flags().String("mint", "", "mint to issue, defaults to wrapped SOL")
	cmd.Flags().Uint8("decimals", 9, "decimals used to parse the amount")
	return cmd
}

func createTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-token",
		Short: "Create a sandbox token and issue its supply to the caller",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				owner, err := a.caller()
				if err != nil {
					return err
				}
				mint := solana.NewWallet().PublicKey()
				if raw, _ := cmd.Flags().GetString("mint"); raw != "" {
					if mint, err = config.ParsePublicKey("mint", raw); err != nil {
						return err
					}
				}
				decimals, _ := cmd.Flags().GetUint8("decimals")
				rawSupply, _ := cmd.Flags().GetString("supply")
				supply, err := config.ParseAmount(rawSupply, decimals)
				if err != nil {
					return fmt.Errorf("supply: %w", err)
				}
				revoke, _ := cmd.Flags().GetBool("revoke")

				account, err := a.svc.CreateToken(ctx, custody.TokenParams{
					Mint:     mint,
					Decimals: decimals,
					Supply:   supply,
					Owner:    owner,
					Revoke:   revoke,
				})
				if err != nil {
					return err
				}
				printf(cmd, "mint=%s account=%s supply=%d revoked=%t\n", mint, account, supply, revoke)
				return nil
			})
		},
	}
	cmd.Flags().String("mint", "", "mint address, random when empty")
	cmd.Flags().Uint8("decimals", 6, "token decimals")
	cmd.Flags().String("supply", "1000000", "supply in whole tokens")
	cmd.Flags().Bool("revoke", true, "revoke mint and freeze authority after issuing")
	return cmd
}

func inspectPoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect-pool <pool>",
		Short: "Show pool reserves from the sandbox, or from an RPC node with --rpc",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := config.ParsePublicKey("pool", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				var ps amm.PoolState
				if a.cfg.RPCURL != "" {
					client, err := chain.NewClient(a.cfg.RPCURL)
					if err != nil {
						return err
					}
					defer client.Close()
					a.logger.Info("read remote pool", zap.String("rpc", a.cfg.RPCURL), zap.String("pool", pool.String()))
					if ps, err = client.PoolState(ctx, pool); err != nil {
						return err
					}
				} else if ps, err = a.svc.PoolState(ctx, pool); err != nil {
					return err
				}
				printf(cmd, "pool=%s lp_mint=%s lp_supply=%d\n", ps.Pool, ps.LpMint, ps.LpSupply)
				printf(cmd, "mint0=%s reserve0=%d\nmint1=%s reserve1=%d\n", ps.Mint0, ps.Reserve0, ps.Mint1, ps.Reserve1)
				return nil
			})
		},
	}
	cmd.Flags().String("rpc", "", "Solana RPC URL for a live CPMM pool")
	return cmd
}

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the event journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				pool, _ := cmd.Flags().GetString("pool")
				var (
					events []model.Event
					err    error
				)
				if a.pg != nil {
					events, err = a.pg.Events(ctx, pool)
				} else {
					events, err = storage.ReadEvents(a.cfg.Journal)
				}
				if err != nil {
					return err
				}
				for _, ev := range events {
					if pool != "" && ev.Pool != pool {
						continue
					}
					printf(cmd, "%s %s actor=%s pool=%s %v\n", ev.Time().Format("2006-01-02T15:04:05Z"), ev.Type, ev.Actor, ev.Pool, ev.Attributes)
				}
				return nil
			})
		},
	}
	cmd.Flags().String("pool", "", "only events for this pool")
	return cmd
}
