// Package cmd assembles the hellobirdie command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hellobirdie/hellobirdie/cmd/admin"
	"github.com/hellobirdie/hellobirdie/cmd/backup"
	"github.com/hellobirdie/hellobirdie/cmd/birds"
	"github.com/hellobirdie/hellobirdie/cmd/serve"
	"github.com/hellobirdie/hellobirdie/cmd/taxonomy"
	"github.com/hellobirdie/hellobirdie/cmd/version"
	"github.com/hellobirdie/hellobirdie/internal/conf"
	"github.com/hellobirdie/hellobirdie/internal/logger"
)

// SkipSetupAnnotation marks commands that run without loading the config.
const SkipSetupAnnotation = "hellobirdie/skip-setup"

// RootCommand creates and returns the root command. settings is filled in
// before any sub-command runs.
func RootCommand(settings *conf.Settings) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "hellobirdie",
		Short:         "Look up and manage bird species records",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	// Neither needs the config file or the database.
	standalone := []*cobra.Command{admin.Command(), version.Command()}
	for _, sub := range standalone {
		sub.Annotations = map[string]string{SkipSetupAnnotation: "true"}
	}

	rootCmd.AddCommand(
		serve.Command(settings),
		birds.Command(settings),
		taxonomy.Command(settings),
		backup.Command(settings),
	)
	rootCmd.AddCommand(standalone...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if skipsSetup(cmd) {
			return nil
		}
		return initialize(settings, configFile)
	}

	return rootCmd
}

// skipsSetup reports whether cmd or one of its parents opts out of setup.
func skipsSetup(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[SkipSetupAnnotation] != "" {
			return true
		}
	}
	return false
}

// initialize loads the configuration and installs the global logger.
func initialize(settings *conf.Settings, configFile string) error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	}

	loaded, err := conf.Load()
	if err != nil {
		return err
	}
	*settings = *loaded

	if settings.Debug {
		settings.Logging.DefaultLevel = string(logger.LogLevelDebug)
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = string(logger.LogLevelDebug)
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(central)
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(configFile, "config", "", "Path to the config file (default: search the standard locations)")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
