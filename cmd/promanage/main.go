package main

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/promanage/cmd/promanage/commands"
	"github.com/teranos/promanage/errors"
	"github.com/teranos/promanage/logger"
)

var rootCmd = &cobra.Command{
	Use:   "promanage",
	Short: "promanage - Deadline-constrained work item scheduler",
	Long: `promanage - Deadline-constrained work item scheduler.

promanage picks which work items to take on so that the most valuable ones
fit before their deadlines. Each run shrinks capacity by one slot when the
recent mean item value is above the configured revenue threshold.

Available commands:
  item     - Add and list work items
  schedule - Run the scheduler or query the best possible schedule
  server   - Serve the HTTP API and live run feed
  db       - Apply migrations and inspect run history
  am       - Manage promanage configuration

Examples:
  promanage item add --title "Website" --deadline 2 --value 1200
  promanage schedule run --dry-run
  promanage db runs --limit 5
  promanage server -v`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if err := logger.Initialize(jsonOutput, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json", false, "Machine-readable output and logs")
	rootCmd.PersistentFlags().String("config", "", "Read configuration from this file only (skips the cascade and env)")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.ItemCmd)
	rootCmd.AddCommand(commands.ScheduleCmd)
	rootCmd.AddCommand(commands.ServerCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		for _, hint := range errors.GetAllHints(err) {
			pterm.Info.Println(hint)
		}
		os.Exit(1)
	}
}
