package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/giftstream/giftstream/internal/account"
	"github.com/giftstream/giftstream/internal/middleware"
	"github.com/giftstream/giftstream/internal/reward"
)

func init() {
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(chainCmd)
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminBootstrapCmd)
	adminCmd.AddCommand(adminTokenCmd)

	chainCmd.Flags().Int("depth", 0, "Maximum levels to walk (0 uses REFERRAL_MAX_DEPTH)")
	adminBootstrapCmd.Flags().String("name", "house", "Display name of the admin sink account")
	adminTokenCmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile ACCOUNT_ID",
	Short: "Compare materialized balances with the transaction log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		recs, err := s.container.Wallet.Reconcile(ctx, args[0])
		if err != nil {
			return err
		}
		unbalanced := 0
		for _, r := range recs {
			mark := "ok"
			if !r.Balanced() {
				mark = "MISMATCH"
				unbalanced++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-14s materialized=%-12d computed=%-12d %s\n", r.Currency, r.Materialized, r.Computed, mark)
		}
		if unbalanced > 0 {
			return fmt.Errorf("%d currencies out of balance for %s", unbalanced, args[0])
		}
		return nil
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay EVENT_KEY",
	Short: "Reissue the credits of a stored distribution",
	Long: `Replay reloads the distribution record and reissues every planned
credit with its original idempotency key. Credits that already landed are
reported as duplicates; it is safe to run repeatedly.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		outcome, err := s.container.Rewards.Replay(ctx, args[0])
		for _, leg := range outcome.Credited {
			state := "credited"
			if leg.Duplicate {
				state = "already applied"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-9s %-36s level=%d amount=%d %s\n",
				leg.Share.Role, leg.Share.AccountID, leg.Share.Level, leg.Share.Amount, state)
		}
		var perr *reward.PartialDistributionError
		if errors.As(err, &perr) {
			for _, f := range perr.Failed {
				fmt.Fprintf(cmd.OutOrStdout(), "%-9s %-36s level=%d amount=%d FAILED: %v\n",
					f.Share.Role, f.Share.AccountID, f.Share.Level, f.Share.Amount, f.Err)
			}
		}
		return err
	},
}

var chainCmd = &cobra.Command{
	Use:   "chain ACCOUNT_ID",
	Short: "Print the referral chain of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		depth, _ := cmd.Flags().GetInt("depth")
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		chain, err := s.container.Referrals.ResolveChain(ctx, args[0], depth)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), chain)
	},
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage the admin sink account",
}

var adminBootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the admin sink account if none exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name, _ := cmd.Flags().GetString("name")
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		admin, err := s.container.Accounts.EnsureAdmin(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), admin.ID)
		return nil
	},
}

var adminTokenCmd = &cobra.Command{
	Use:   "token ACCOUNT_ID",
	Short: "Issue a bearer token for an admin account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ttl, _ := cmd.Flags().GetDuration("ttl")
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		acct, err := s.container.Accounts.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if acct.Role != account.RoleAdmin {
			return fmt.Errorf("%s is a %s account, not admin", acct.ID, acct.Role)
		}
		if s.container.Config.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET must be set")
		}
		token, err := middleware.IssueToken([]byte(s.container.Config.JWTSecret), acct.ID, acct.Role, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
