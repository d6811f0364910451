package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/agentstore/storefront-auth/internal/models"
)

// NewRootCmd creates the root command for attemptctl.
func NewRootCmd(deps Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:          "attemptctl",
		Short:        "Manage storefront login attempt records",
		Long:         `Inspect, unlock and sweep the per-email login attempt records behind the sign-in lockout.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newMigrateCmd(deps))
	cmd.AddCommand(newStatusCmd(deps))
	cmd.AddCommand(newUnlockCmd(deps))
	cmd.AddCommand(newSweepCmd(deps))
	return cmd
}

func newMigrateCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Run all pending database migrations against the PostgreSQL database.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Println("Running migrations...")
			if err := deps.Migrate(cmd.Context()); err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
			}
			cmd.Println("Migrations completed successfully")
			return nil
		},
	}
}

func newStatusCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "status <email>",
		Short: "Show the attempt count and lock state for an email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, closeFn, err := deps.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			status, err := tracker.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if status.Record == nil {
				cmd.Printf("%s: no failed attempts recorded\n", status.Email)
				return nil
			}

			cmd.Printf("email:         %s\n", status.Email)
			cmd.Printf("attempts:      %d\n", status.Record.AttemptCount)
			cmd.Printf("last attempt:  %s\n", status.Record.LastAttempt.UTC().Format(time.RFC3339))
			if status.Locked {
				cmd.Printf("state:         locked (%s remaining)\n", status.Remaining.Round(time.Second))
			} else {
				cmd.Println("state:         unlocked")
			}
			return nil
		},
	}
}

func newUnlockCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <email>",
		Short: "Clear the failed attempt counter for an email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tracker, closeFn, err := deps.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := tracker.Unlock(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, models.ErrNotFound) {
					return fmt.Errorf("no attempt record for %s", args[0])
				}
				return err
			}
			cmd.Printf("%s unlocked\n", args[0])
			return nil
		},
	}
}

func newSweepCmd(deps Deps) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete stale login attempt records",
		Long: `Delete login attempt records whose last attempt is older than --older-than.
Records inside an active 24 hour lockout are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return oops.Code("INVALID_FLAG").Errorf("--older-than must be positive")
			}

			tracker, closeFn, err := deps.openTracker(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			deleted, err := tracker.Sweep(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			cmd.Printf("deleted %d records\n", deleted)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "retention period")
	return cmd
}
