package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/promanage/db"
	"github.com/teranos/promanage/display"
	"github.com/teranos/promanage/errors"
	"github.com/teranos/promanage/logger"
	"github.com/teranos/promanage/storage"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the promanage database",
	Long: `Manage the promanage SQLite database.

Examples:
  promanage db migrate          # Apply pending migrations
  promanage db status           # Show which migrations are applied
  promanage db runs --limit 10  # Show the last 10 scheduling runs`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	RunE:  runDbMigrate,
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status without applying anything",
	RunE:  runDbStatus,
}

var dbRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show scheduling run history, newest first",
	RunE:  runDbRuns,
}

var runsLimitFlag int

func init() {
	dbRunsCmd.Flags().IntVar(&runsLimitFlag, "limit", 20, "Number of runs to show (0 = all)")

	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatusCmd)
	DbCmd.AddCommand(dbRunsCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	database, err := db.Open(cfg.GetDatabasePath(), logger.Logger.Named("db"))
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(database, logger.Logger.Named("db")); err != nil {
		return errors.Wrapf(err, "failed to migrate %s", cfg.GetDatabasePath())
	}
	pterm.Success.Printfln("Database %s is up to date", cfg.GetDatabasePath())
	return nil
}

func runDbStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	database, err := db.Open(cfg.GetDatabasePath(), logger.Logger.Named("db"))
	if err != nil {
		return err
	}
	defer database.Close()

	migrations, err := db.Status(database)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), migrations)
	}

	pending := 0
	rows := pterm.TableData{{"Version", "File", "Applied"}}
	for _, m := range migrations {
		applied := "yes"
		if !m.Applied {
			applied = "no"
			pending++
		}
		rows = append(rows, []string{m.Version, m.File, applied})
	}
	pterm.Info.Printfln("Database: %s", cfg.GetDatabasePath())
	if err := display.Table(cmd.OutOrStdout(), rows); err != nil {
		return err
	}
	if pending > 0 {
		pterm.Warning.Printfln("%d pending migration(s), run: promanage db migrate", pending)
	}
	return nil
}

func runDbRuns(cmd *cobra.Command, args []string) error {
	if runsLimitFlag < 0 {
		return errors.NewInvalidRequestError("--limit must be >= 0, got %d", runsLimitFlag)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	runs, err := storage.NewSQLStore(database, logger.Logger.Named("storage")).ListRuns(cmd.Context(), runsLimitFlag)
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), runs)
	}
	if len(runs) == 0 {
		pterm.Info.Println("No scheduling runs yet")
		return nil
	}
	return display.Table(cmd.OutOrStdout(), runRows(runs))
}
