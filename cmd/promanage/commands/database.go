package commands

import (
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/teranos/promanage/am"
	"github.com/teranos/promanage/db"
	"github.com/teranos/promanage/errors"
	"github.com/teranos/promanage/logger"
	"github.com/teranos/promanage/schedule"
	"github.com/teranos/promanage/storage"
)

// loadConfig honours --config, falling back to the normal cascade
func loadConfig(cmd *cobra.Command) (*am.Config, error) {
	var (
		cfg *am.Config
		err error
	)
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = am.LoadFromFile(path)
	} else {
		cfg, err = am.Load()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

// openDatabase opens and migrates the configured database
func openDatabase(cfg *am.Config) (*sql.DB, error) {
	path := cfg.GetDatabasePath()
	database, err := db.OpenWithMigrations(path, logger.Logger.Named("db"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", path)
	}
	return database, nil
}

// app is everything a scheduling command needs. Close releases the database.
type app struct {
	cfg     *am.Config
	db      *sql.DB
	store   *storage.SQLStore
	service *schedule.Service
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	settings, err := cfg.SchedulerSettings()
	if err != nil {
		return nil, err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	store := storage.NewSQLStore(database, logger.Logger.Named("storage"))
	return &app{
		cfg:     cfg,
		db:      database,
		store:   store,
		service: schedule.NewService(store, settings, logger.Logger.Named("schedule")),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
