package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/picogrid/scenario-config/pkg/config"
	"github.com/picogrid/scenario-config/pkg/logger"
	"github.com/picogrid/scenario-config/pkg/scenario"
)

// app carries the state shared by every subcommand of one invocation
type app struct {
	cfgFile  string
	v        *viper.Viper
	settings config.Settings
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "scenario",
		Short: "Scenario configuration loader and validator",
		Long: `Scenario loads adversarial-robustness evaluation configurations from
JSON or YAML, validates them against the scenario schema and reports every
problem it finds in one pass.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.scenario/config.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("no-color", false, "disable colored output")
	flags.Bool("strict", false, "treat unknown fields as errors")
	flags.String("eps-step-policy", "warn", "how eps_step > eps is reported (warn, error)")
	flags.Int64("max-input-bytes", scenario.DefaultMaxInputSize, "largest scenario document accepted")
	flags.String("audit-db", "", "load history database (default is $HOME/.scenario/history.db)")

	for key, flag := range map[string]string{
		"log_level":       "log-level",
		"no_color":        "no-color",
		"strict":          "strict",
		"eps_step_policy": "eps-step-policy",
		"max_input_bytes": "max-input-bytes",
		"audit_db":        "audit-db",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	// Add commands
	rootCmd.AddCommand(a.newValidateCmd())
	rootCmd.AddCommand(a.newShowCmd())
	rootCmd.AddCommand(a.newListCmd())
	rootCmd.AddCommand(a.newInitCmd())
	rootCmd.AddCommand(a.newHistoryCmd())
	rootCmd.AddCommand(a.newConfigCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// initConfig reads the config file and SCENARIO_* variables, then applies
// the resulting settings to the logger.
func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	config.SetDefaults(a.v)

	if a.cfgFile != "" {
		// Use config file from the flag
		a.v.SetConfigFile(a.cfgFile)
	} else {
		// Search for config in home directory
		a.v.AddConfigPath("$HOME/.scenario")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName("config")
	}

	a.v.SetEnvPrefix("SCENARIO")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv() // read in environment variables that match

	// A missing config file leaves the defaults in place
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	settings, err := config.FromViper(a.v)
	if err != nil {
		return err
	}
	a.settings = settings

	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(logger.ParseLevel(settings.LogLevel))
	logger.SetNoColor(settings.NoColor || !isTerminal(os.Stderr))
	return nil
}

// loader returns a scenario loader configured from the settings
func (a *app) loader() (*scenario.Loader, error) {
	opts, err := a.settings.LoaderOptions(logger.Default())
	if err != nil {
		return nil, err
	}
	return scenario.NewLoader(opts...), nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
