// Package cmd implements the movicictl command-line entrypoint: cobra for
// subcommand dispatch, viper for MOVICI_* environment binding, following
// the cmd/root.go + per-subcommand-file layout used across the example
// corpus's cobra-based CLIs.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nginfra/movici-simulation-core-sub002/cmn/nlog"
)

var rootCmd = &cobra.Command{
	Use:   "movicictl",
	Short: "Run and inspect simulation scenarios",
	Long: `movicictl launches a scenario's process supervisor (init-data
server, update-data broker, orchestrator, and model subprocesses), or
validates a scenario file without running it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

func init() {
	cobra.OnInitialize(initViper)

	rootCmd.PersistentFlags().String("log-level", "info", "log level: info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "plain", "log format: plain, json")

	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initViper() {
	viper.SetEnvPrefix("MOVICI")
	viper.AutomaticEnv()

	level := viper.GetString("log_level")
	format := viper.GetString("log_format")
	applyLogSettings(level, format)
}

func applyLogSettings(level, format string) {
	nlog.SetLevel(level)
	nlog.SetFormat(format)
}
