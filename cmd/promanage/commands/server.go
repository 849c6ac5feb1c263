package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/promanage/am"
	"github.com/teranos/promanage/display"
	"github.com/teranos/promanage/errors"
	"github.com/teranos/promanage/logger"
	"github.com/teranos/promanage/server"
)

// ServerCmd starts the promanage HTTP server
var ServerCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"serve"},
	Short:   "Serve the work item API and live run feed",
	Long: `Serve the promanage HTTP API.

Routes:
  POST /api/projects/schedule    Run the scheduler (?dry_run=true to preview)
  GET  /api/projects/all         List work items
  POST /api/projects/add         Add a work item
  GET  /api/projects/runs        Run history (?limit=N)
  GET  /api/projects/max-profit  Best schedule over the largest deadline
  GET  /ws/schedule              WebSocket feed of completed runs
  GET  /health                   Health and version

Press Ctrl+C once for a graceful shutdown, twice to exit immediately.`,
	RunE: runServer,
}

var (
	serverPortFlag  int
	serverWatchFlag bool
)

func init() {
	ServerCmd.Flags().IntVar(&serverPortFlag, "port", 0, "Listen port (overrides server.port)")
	ServerCmd.Flags().BoolVar(&serverWatchFlag, "watch-config", true, "Apply config file edits without a restart")
}

// watchConfig reloads the files the server was configured from and applies
// them to srv. It returns nil when there is nothing to watch.
func watchConfig(cmd *cobra.Command, srv *server.Server) *am.ConfigWatcher {
	log := logger.Logger.Named("config-watcher")

	var (
		paths []string
		load  func() (*am.Config, error)
	)
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		paths = []string{path}
		load = func() (*am.Config, error) { return am.LoadFromFile(path) }
	} else {
		for _, p := range am.ConfigPaths() {
			paths = append(paths, p.Path)
		}
		load = am.ReloadCascade
	}

	cw, err := am.NewConfigWatcher(paths, load, log)
	if err != nil {
		log.Debugw("Config watching disabled", logger.FieldError, err)
		return nil
	}
	cw.OnReload(srv.ApplyConfig)
	cw.Start()
	return cw
}

func runServer(cmd *cobra.Command, args []string) error {
	// Server defaults to Info so startup is visible
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		verbosity = logger.VerbosityInfo
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if err := logger.Initialize(jsonOutput, verbosity); err != nil {
			return err
		}
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if serverPortFlag != 0 {
		a.cfg.Server.Port = serverPortFlag
	}

	srv := server.New(a.cfg, a.store, a.service, logger.Logger.Named("server"))

	if serverWatchFlag {
		if cw := watchConfig(cmd, srv); cw != nil {
			defer cw.Stop()
		}
	}

	if !display.ShouldOutputJSON(cmd) {
		printStartupBanner(a.cfg, verbosity)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		if err != nil {
			return errors.Wrap(err, "server failed")
		}
		return nil
	case <-sigChan:
		pterm.Info.Println("Shutting down gracefully (press Ctrl+C again to force)...")

		ctx, cancel := context.WithTimeout(context.Background(), srv.ShutdownTimeout())
		defer cancel()

		shutdownDone := make(chan error, 1)
		go func() {
			shutdownDone <- srv.Stop(ctx)
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return errors.Wrap(err, "shutdown error")
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("Force shutdown - exiting immediately")
			os.Exit(1)
			return nil
		}
	}
}
