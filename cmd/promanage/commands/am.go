package commands

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/promanage/am"
	"github.com/teranos/promanage/display"
	"github.com/teranos/promanage/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage promanage configuration",
	Long: `Display and manage promanage configuration.

Configuration sources (later overrides earlier):
1. Built-in defaults
2. System config (/etc/promanage/config.toml)
3. User config (~/.promanage/am.toml)
4. Project config (nearest ./am.toml, searching up directories)
5. Environment variables (PROMANAGE_* prefix, e.g. PROMANAGE_SERVER_PORT)

Examples:
  promanage am show                          # Show current configuration
  promanage am show --format json            # Show configuration as JSON
  promanage am get scheduler.base_capacity   # Get one value
  promanage am set scheduler.cron "@hourly"  # Write a value to am.toml
  promanage am validate --strict             # Validate, flagging unknown keys
  promanage am sources                       # Show where each value came from`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value (dot notation, e.g. server.port)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a configuration value to a config file",
	Long: `Write a configuration value to a TOML config file.

Without --file the nearest project am.toml is updated, or ~/.promanage/am.toml
when there is none. The previous contents are kept as .back1 to .back3.
List values are comma separated.`,
	Args: cobra.ExactArgs(2),
	RunE: runAmSet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runAmValidate,
}

var amSourcesCmd = &cobra.Command{
	Use:     "sources",
	Aliases: []string{"where"},
	Short:   "Show where each configuration value comes from",
	RunE:    runAmSources,
}

var (
	configFormat   string
	amSetFile      string
	validateStrict bool
)

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")
	amSetCmd.Flags().StringVar(&amSetFile, "file", "", "Config file to write (default: project am.toml, else user am.toml)")
	amValidateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Also fail on keys promanage does not recognise")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amSetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amSourcesCmd)
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := am.Render(cfg, configFormat)
	if err != nil {
		return err
	}
	if configFormat != "json" {
		fmt.Fprintln(cmd.OutOrStdout(), "# promanage configuration")
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	v := am.GetViper()
	if !v.IsSet(key) {
		return errors.NewNotFoundError("configuration key %q", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), am.Get(key))
	return nil
}

// defaultWriteTarget picks the project am.toml if one is in scope, else the user file
func defaultWriteTarget() (string, error) {
	paths := am.ConfigPaths()
	for i := len(paths) - 1; i >= 0; i-- {
		if paths[i].Source == am.SourceProject {
			return paths[i].Path, nil
		}
	}
	if user := am.UserConfigPath(); user != "" {
		return user, nil
	}
	return "", errors.WithHint(errors.New("no config file to write"), "pass --file")
}

func runAmSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]

	target := amSetFile
	if target == "" {
		var err error
		if target, err = defaultWriteTarget(); err != nil {
			return err
		}
	}

	if err := am.SetInFile(target, key, raw); err != nil {
		return err
	}

	// Re-read so an invalid value is reported now rather than on next start
	am.Reset()
	cfg, err := am.LoadFromFile(target)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		pterm.Warning.Printfln("%s now fails validation: %v", target, err)
	}

	pterm.Success.Printfln("Set %s = %s in %s", key, raw, target)
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(cmd); err != nil {
		return err
	}

	if validateStrict {
		files := []string{}
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			files = append(files, path)
		} else {
			for _, p := range am.ConfigPaths() {
				if _, err := os.Stat(p.Path); err == nil {
					files = append(files, p.Path)
				}
			}
		}

		var bad int
		for _, f := range files {
			unknown, err := am.UnknownKeys(f)
			if err != nil {
				return err
			}
			for _, k := range unknown {
				pterm.Error.Printfln("%s: unknown key %s", f, k)
				bad++
			}
		}
		if bad > 0 {
			return errors.Newf("configuration has %d unknown key(s)", bad)
		}
	}

	pterm.Success.Println("Configuration is valid")
	return nil
}

func runAmSources(cmd *cobra.Command, args []string) error {
	settings, err := am.Introspect()
	if err != nil {
		return err
	}
	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(cmd.OutOrStdout(), settings)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Checked files (later overrides earlier):")
	for _, p := range am.ConfigPaths() {
		state := "missing"
		if _, err := os.Stat(p.Path); err == nil {
			state = "loaded"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  [%-7s] %s (%s)\n", p.Source, p.Path, state)
	}
	fmt.Fprintln(cmd.OutOrStdout())

	rows := pterm.TableData{{"Key", "Value", "Source", "From"}}
	for _, s := range settings {
		rows = append(rows, []string{s.Key, fmt.Sprint(s.Value), string(s.Source), s.SourcePath})
	}
	return display.Table(cmd.OutOrStdout(), rows)
}
