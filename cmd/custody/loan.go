package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"poolCustody/internal/config"
	"poolCustody/internal/custody"
	"poolCustody/internal/model"
)

func createPoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-pool",
		Short: "Create a pool with the asset side fronted by the service vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				creator, err := a.caller()
				if err != nil {
					return err
				}
				rawToken, _ := cmd.Flags().GetString("token")
				token, err := config.ParsePublicKey("token", rawToken)
				if err != nil {
					return err
				}
				rawPrincipal, _ := cmd.Flags().GetString("principal")
				principal, err := config.ParseSOL(rawPrincipal)
				if err != nil {
					return fmt.Errorf("principal: %w", err)
				}
				tokenAmount, _ := cmd.Flags().GetUint64("token-amount")
				minLp, _ := cmd.Flags().GetUint64("min-lp")
				openTime, _ := cmd.Flags().GetInt64("open-time")
				rawDuration, _ := cmd.Flags().GetString("duration")
				duration, err := config.ParseDuration(rawDuration)
				if err != nil {
					return fmt.Errorf("duration: %w", err)
				}

				cfg, err := a.svc.Config(ctx)
				if err != nil {
					return err
				}
				created, err := a.svc.CreateLiquidityPool(ctx, creator, custody.CreatePoolParams{
					Mint0:        token,
					Mint1:        cfg.AssetMint,
					Amount0:      tokenAmount,
					Amount1:      principal,
					MinLpOut:     minLp,
					LoanDuration: duration,
					OpenTime:     openTime,
				})
				if err != nil {
					return err
				}
				printf(cmd, "pool=%s loan=%s lp_mint=%s lp_account=%s lp_minted=%d principal=%s\n",
					created.Pool, created.Loan, created.LpMint, created.LpAccount, created.LpMinted, config.FormatSOL(created.Principal))
				return nil
			})
		},
	}
	cmd.Flags().String("token", "", "token mint paired with the asset")
	cmd.Flags().Uint64("token-amount", 0, "token side in base units")
	cmd.Flags().String("principal", "", "asset side fronted by the vault, in SOL")
	cmd.Flags().String("duration", "86400", "loan duration (seconds or Go duration)")
	cmd.Flags().Uint64("min-lp", 0, "minimum LP shares to accept")
	cmd.Flags().Int64("open-time", 0, "pool open time (unix seconds)")
	return cmd
}

func sendLpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send-lp <pool>",
		Short: "Hand the creator's LP shares to loan custody and start the loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := config.ParsePublicKey("pool", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				caller, err := a.caller()
				if err != nil {
					return err
				}
				loan, err := a.svc.SendLpTokens(ctx, caller, pool)
				if err != nil {
					return err
				}
				printLoan(cmd, loan)
				return nil
			})
		},
	}
}

func removeCmd() *cobra.Command {
	return exitCmd("remove <pool>", "Unwind an active loan as its creator before maturity",
		func(ctx context.Context, a *app, caller, pool solana.PublicKey, lp, min0, min1 uint64) (custody.ExitReceipt, error) {
			return a.svc.RemoveLiquidity(ctx, caller, pool, lp, min0, min1)
		})
}

func liquidateCmd() *cobra.Command {
	return exitCmd("liquidate <pool>", "Liquidate a matured loan",
		func(ctx context.Context, a *app, caller, pool solana.PublicKey, lp, min0, min1 uint64) (custody.ExitReceipt, error) {
			return a.svc.LiquidateLoan(ctx, caller, pool, lp, min0, min1)
		})
}

type exitFunc func(ctx context.Context, a *app, caller, pool solana.PublicKey, lp, min0, min1 uint64) (custody.ExitReceipt, error)

func exitCmd(use, short string, fn exitFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := config.ParsePublicKey("pool", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				caller, err := a.caller()
				if err != nil {
					return err
				}
				loan, err := a.svc.Loan(ctx, pool)
				if err != nil {
					return err
				}
				lp, _ := cmd.Flags().GetUint64("lp")
				if lp == 0 {
					lp = loan.LpAmount
				}
				min0, _ := cmd.Flags().GetUint64("min0")
				min1, _ := cmd.Flags().GetUint64("min1")
				slippage, _ := cmd.Flags().GetUint16("slippage-bps")
				if slippage > 0 && min0 == 0 && min1 == 0 {
					ps, err := a.svc.PoolState(ctx, pool)
					if err != nil {
						return err
					}
					out0, out1 := ps.Quote(lp)
					min0, min1 = lessBps(out0, slippage), lessBps(out1, slippage)
				}

				receipt, err := fn(ctx, a, caller, pool, lp, min0, min1)
				if err != nil {
					return err
				}
				printf(cmd, "pool=%s outcome=%s amount0=%d amount1=%d asset_out=%s token_out=%d\n",
					receipt.Pool, receipt.Outcome, receipt.Amount0, receipt.Amount1, config.FormatSOL(receipt.AssetOut), receipt.TokenOut)
				printf(cmd, "repaid=%s fee=%s to_vault=%s to_creator=%s\n",
					config.FormatSOL(receipt.Split.Repaid), config.FormatSOL(receipt.Split.Fee),
					config.FormatSOL(receipt.Split.ToVault), config.FormatSOL(receipt.Split.ToCreator))
				return nil
			})
		},
	}
	cmd.Flags().Uint64("lp", 0, "LP shares to remove, defaults to the amount in custody")
	cmd.Flags().Uint64("min0", 0, "minimum token0 out in base units")
	cmd.Flags().Uint64("min1", 0, "minimum token1 out in base units")
	cmd.Flags().Uint16("slippage-bps", 0, "derive minimums from the current quote when min0/min1 are unset")
	return cmd
}

func loanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "loan [pool]",
		Short: "Show one loan, or list every loan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if len(args) == 1 {
					pool, err := config.ParsePublicKey("pool", args[0])
					if err != nil {
						return err
					}
					loan, err := a.svc.Loan(ctx, pool)
					if err != nil {
						return err
					}
					printLoan(cmd, loan)
					return nil
				}
				loans, err := a.svc.Loans(ctx)
				if err != nil {
					return err
				}
				for _, loan := range loans {
					printLoan(cmd, loan)
				}
				return nil
			})
		},
	}
}

func printLoan(cmd *cobra.Command, loan model.LoanEscrow) {
	printf(cmd, "pool=%s state=%s outcome=%s creator=%s principal=%s token=%s lp=%d",
		loan.Pool, loan.State, loan.Outcome, loan.Creator, config.FormatSOL(loan.Principal), loan.TokenMint, loan.LpAmount)
	if loan.State != model.LoanStatePending {
		printf(cmd, " start=%d matures_at=%d", loan.StartTime, loan.MaturesAt())
	}
	printf(cmd, "\n")
}

func lessBps(amount uint64, bps uint16) uint64 {
	if bps >= model.BpsDenominator {
		return 0
	}
	out := new(big.Int).SetUint64(amount)
	out.Mul(out, big.NewInt(int64(model.BpsDenominator-bps)))
	out.Quo(out, big.NewInt(model.BpsDenominator))
	return out.Uint64()
}
