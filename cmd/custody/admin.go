package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"poolCustody/internal/config"
	"poolCustody/internal/custody"
)

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the custody config and service vault; the caller becomes admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				admin, err := a.caller()
				if err != nil {
					return err
				}
				params := custody.InitParams{}
				if params.Syncer, err = optionalKey(cmd, "syncer"); err != nil {
					return err
				}
				if params.Verifier, err = optionalKey(cmd, "verifier"); err != nil {
					return err
				}
				if params.AssetMint, err = optionalKey(cmd, "asset-mint"); err != nil {
					return err
				}
				fee, _ := cmd.Flags().GetString("service-fee")
				if params.ServiceFee, err = config.ParseSOL(fee); err != nil {
					return fmt.Errorf("service-fee: %w", err)
				}
				if err := a.svc.Initialize(ctx, admin, params); err != nil {
					return err
				}
				printf(cmd, "initialized config=%s vault=%s admin=%s service_fee=%s\n",
					a.svc.ConfigAddress(), a.svc.VaultAddress(), admin, config.FormatSOL(params.ServiceFee))
				return nil
			})
		},
	}
	cmd.Flags().String("syncer", "", "syncer address")
	cmd.Flags().String("verifier", "", "verifier address")
	cmd.Flags().String("asset-mint", "", "vault asset mint, defaults to wrapped SOL")
	cmd.Flags().String("service-fee", "0", "per-pool service fee in SOL")
	return cmd
}

func setFeeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-fee <sol>",
		Short: "Set the per-pool service fee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				caller, err := a.caller()
				if err != nil {
					return err
				}
				fee, err := config.ParseSOL(args[0])
				if err != nil {
					return err
				}
				if err := a.svc.SetServiceFee(ctx, caller, fee); err != nil {
					return err
				}
				printf(cmd, "service fee %s SOL\n", config.FormatSOL(fee))
				return nil
			})
		},
	}
}

func setFeeScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-fee-schedule",
		Short: "Set removal, liquidation and creator residual rates in basis points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				caller, err := a.caller()
				if err != nil {
					return err
				}
				removal, _ := cmd.Flags().GetUint16("removal-bps")
				liquidation, _ := cmd.Flags().GetUint16("liquidation-bps")
				residual, _ := cmd.Flags().GetUint16("creator-residual-bps")
				schedule := custody.FeeSchedule{
					RemovalFeeBps:      removal,
					LiquidationFeeBps:  liquidation,
					CreatorResidualBps: residual,
				}
				if err := a.svc.SetFeeSchedule(ctx, caller, schedule); err != nil {
					return err
				}
				printf(cmd, "fee schedule removal=%d liquidation=%d creator_residual=%d\n", removal, liquidation, residual)
				return nil
			})
		},
	}
	cmd.Flags().Uint16("removal-bps", 0, "fee on the surplus of a creator removal")
	cmd.Flags().Uint16("liquidation-bps", 0, "fee on the surplus of a liquidation")
	cmd.Flags().Uint16("creator-residual-bps", 0, "share of the post-fee liquidation surplus returned to the creator")
	return cmd
}

func pauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <true|false>",
		Short: "Pause or resume pool creation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paused, err := strconv.ParseBool(args[0])
			if err != nil {
				return fmt.Errorf("parse pause flag: %w", err)
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				caller, err := a.caller()
				if err != nil {
					return err
				}
				if err := a.svc.SetPaused(ctx, caller, paused); err != nil {
					return err
				}
				printf(cmd, "paused=%t\n", paused)
				return nil
			})
		},
	}
}

func depositCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <sol>",
		Short: "Move SOL from the admin into the service vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return vaultTransfer(cmd, args[0], func(ctx context.Context, a *app, caller solana.PublicKey, amount uint64) error {
				return a.svc.Deposit(ctx, caller, amount)
			})
		},
	}
}

func withdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <sol>",
		Short: "Move SOL from the service vault back to the admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return vaultTransfer(cmd, args[0], func(ctx context.Context, a *app, caller solana.PublicKey, amount uint64) error {
				return a.svc.Withdraw(ctx, caller, amount)
			})
		},
	}
}

func vaultTransfer(cmd *cobra.Command, raw string, fn func(context.Context, *app, solana.PublicKey, uint64) error) error {
	amount, err := config.ParseSOL(raw)
	if err != nil {
		return err
	}
	return withApp(cmd, func(ctx context.Context, a *app) error {
		caller, err := a.caller()
		if err != nil {
			return err
		}
		if err := fn(ctx, a, caller, amount); err != nil {
			return err
		}
		return printVault(ctx, cmd, a)
	})
}

func vaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vault",
		Short: "Show the service vault and config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				cfg, err := a.svc.Config(ctx)
				if err != nil {
					return err
				}
				printf(cmd, "admin=%s syncer=%s verifier=%s paused=%t\n", cfg.Admin, cfg.Syncer, cfg.Verifier, cfg.Paused)
				printf(cmd, "service_fee=%s removal_bps=%d liquidation_bps=%d creator_residual_bps=%d\n",
					config.FormatSOL(cfg.ServiceFee), cfg.RemovalFeeBps, cfg.LiquidationFeeBps, cfg.CreatorResidualBps)
				return printVault(ctx, cmd, a)
			})
		},
	}
}

func printVault(ctx context.Context, cmd *cobra.Command, a *app) error {
	status, err := a.svc.VaultStatus(ctx)
	if err != nil {
		return err
	}
	printf(cmd, "vault=%s balance=%s committed=%s\n",
		status.Address, config.FormatSOL(status.Balance), config.FormatSOL(status.Committed))
	return nil
}

func optionalKey(cmd *cobra.Command, flag string) (solana.PublicKey, error) {
	raw, _ := cmd.Flags().GetString(flag)
	if raw == "" {
		return solana.PublicKey{}, nil
	}
	return config.ParsePublicKey(flag, raw)
}
