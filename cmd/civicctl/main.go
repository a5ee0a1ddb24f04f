// Command civicctl runs operator tasks against the civic issue database:
// one-shot escalation sweeps, bootstrapping the first state admin, applying
// the schema and checking the audit log Merkle root.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/civicreport/civic-server/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "civicctl",
		Short: "Operator tool for the civic issue reporting server",
		Long: `civicctl performs maintenance tasks that have no HTTP endpoint.
It reads the same environment (.env supported) as the server.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.EscalateCmd())
	rootCmd.AddCommand(cli.BootstrapStateAdminCmd())
	rootCmd.AddCommand(cli.IntegrityCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
