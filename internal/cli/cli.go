// Package cli implements the civicctl subcommands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/civicreport/civic-server/internal/app"
	"github.com/civicreport/civic-server/internal/config"
	"github.com/civicreport/civic-server/internal/logging"
	"github.com/civicreport/civic-server/internal/services"
)

var (
	ok   = color.New(color.FgGreen).SprintFunc()
	warn = color.New(color.FgYellow).SprintFunc()
	bold = color.New(color.Bold).SprintFunc()
)

// withApp loads config, connects and runs fn, cancelling on SIGINT/SIGTERM.
// Each override is applied to the loaded config first.
func withApp(fn func(ctx context.Context, a *app.App) error, overrides ...func(*config.Config)) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	for _, o := range overrides {
		o(cfg)
	}
	logger, err := logging.New(cfg.LogLevel, "console", "civicctl")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger.Sugar())
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// MigrateCmd applies the database schema.
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and indexes if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				fmt.Println(ok("✓"), "schema applied")
				return nil
			}, func(cfg *config.Config) { cfg.AutoMigrate = true })
		},
	}
}

// EscalateCmd runs one escalation sweep and reports how many complaints moved up.
func EscalateCmd() *cobra.Command {
	var lease time.Duration

	cmd := &cobra.Command{
		Use:   "escalate",
		Short: "Run one escalation sweep now",
		Long: `Escalate every open complaint that has sat at its current level past the
escalation threshold. When Redis is reachable the sweep takes the same lock as
the server's background worker, so it never overlaps a running sweep.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if a.Locker == nil {
					fmt.Println(warn("!"), "Redis unavailable, sweeping without a lock")
				}
				escalated, ran := a.EscalationWorker.RunOnce(ctx, lease)
				if !ran {
					fmt.Println(warn("!"), "another sweep is running or the lock could not be taken; nothing done")
					return nil
				}
				fmt.Printf("%s escalated %s complaint(s)\n", ok("✓"), bold(escalated))
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&lease, "lease", 10*time.Minute, "how long the sweep lock is held at most")
	return cmd
}

// BootstrapStateAdminCmd creates the first StateAdmin of a state.
func BootstrapStateAdminCmd() *cobra.Command {
	var in services.CreateAdminInput

	cmd := &cobra.Command{
		Use:   "bootstrap-state-admin",
		Short: "Create a top-level StateAdmin account",
		Long: `State admins cannot be created through the API. Use this command to create
the first account of a state; it can then create district admins.
The password may be passed with --password or CIVIC_BOOTSTRAP_PASSWORD.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Password == "" {
				in.Password = os.Getenv("CIVIC_BOOTSTRAP_PASSWORD")
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				admin, err := a.Admins.BootstrapStateAdmin(ctx, in)
				if err != nil {
					return err
				}
				fmt.Printf("%s created StateAdmin %s <%s> for %s (id %s)\n",
					ok("✓"), bold(admin.Name), admin.Email, admin.Location.State, admin.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&in.Email, "email", "", "login email (required)")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&in.Location.State, "state", "", "state the admin is responsible for (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("state")
	return cmd
}

// IntegrityCmd rebuilds the audit Merkle tree and prints its root.
func IntegrityCmd() *cobra.Command {
	var index int

	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Print the activity log Merkle root, optionally verifying one entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				a.IntegrityWorker.Rebuild(ctx)
				fmt.Printf("root:   %s\n", bold(orNone(a.Merkle.Root())))
				fmt.Printf("leaves: %d\n", a.Merkle.LeafCount())

				if index < 0 {
					return nil
				}
				proof, err := a.Merkle.Proof(index)
				if err != nil {
					return err
				}
				status := ok("verified")
				if !proof.Verified {
					status = color.New(color.FgRed).Sprint("NOT VERIFIED")
				}
				fmt.Printf("entry %d: %s (%d proof steps) %s\n", index, proof.LeafHash, len(proof.Proof), status)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&index, "verify", -1, "leaf index to verify")
	return cmd
}

func orNone(s string) string {
	if s == "" {
		return "(empty log)"
	}
	return s
}
