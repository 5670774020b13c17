// Package cmd provides the command-line interface for template-tally.
//
// Configuration System:
//
//	The CLI reads configuration from several sources, highest priority first:
//	1. Command-line flags (--config, --log-level, --port, etc.)
//	2. TALLY_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (TALLY_STORE_REDIS_ADDR, etc.)
//	4. Configuration files (.tally.yml)
//
// Environment Variables:
//
//	TALLY_CONFIG_FILE: Path to custom configuration file
//	TALLY_TALLY_ROOT: Project root templates are discovered under
//	TALLY_STORE_DRIVER: Render key store (redis or memory)
//	TALLY_STORE_REDIS_ADDR: Redis address
//	And the rest following the TALLY_<SECTION>_<OPTION> pattern
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Execute builds the command tree and runs it.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "tally",
		Short: "Find the templates your application no longer renders",
		Long: `tally records which templates an application renders and reports the
ones that have not been rendered within the retention window (14 days by
default). Candidates in the unrendered list are likely dead code.

Render records live in a shared key-value store (Redis in production), so
every process of the application contributes to the same report. The memory
store lives only as long as one process: use it with "tally serve", where the
report and the renders share that process. Other commands start with an
empty memory store and report every template as unrendered.

Quick Start:
  tally serve                 Serve views and the report over HTTP
  tally report                Show rendered and unrendered templates
  tally unrendered -o json    List unrendered templates as JSON
  tally watch                 Reprint unrendered templates on change`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd, cfgFile)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .tally.yml, can also use TALLY_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newReportCmd(),
		newRenderedCmd(),
		newUnrenderedCmd(),
		newServeCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// initConfig points viper at the configuration file and environment.
//
// The file is, in order of preference, the --config flag, TALLY_CONFIG_FILE,
// or .tally.yml in the working directory. A missing default file is not an
// error; an explicitly named one is.
func initConfig(cmd *cobra.Command, cfgFile string) error {
	explicit := true
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("TALLY_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		explicit = false
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tally")
	}

	viper.SetEnvPrefix("TALLY")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if flag := cmd.Flags().Lookup("log-level"); flag != nil {
		if err := viper.BindPFlag("logging.level", flag); err != nil {
			return fmt.Errorf("binding log-level flag: %w", err)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", viper.ConfigFileUsed())
	return nil
}
