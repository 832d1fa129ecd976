// Package commands implements the finsight command line.
package commands

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ndewijer/Finance-Insights/internal/config"
	"github.com/ndewijer/Finance-Insights/internal/logger"
	"github.com/ndewijer/Finance-Insights/internal/version"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "finsight",
		Short:   "Spending insights from bank statements and linked accounts",
		Version: versionString(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newAnalyzeCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func versionString() string {
	if commit := version.Commit(); commit != "" {
		return fmt.Sprintf("%s (commit: %s)", version.Version, commit)
	}
	return version.Version
}

// newLogger builds the process logger. Console output goes to w so command
// output on stdout stays machine readable.
func newLogger(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	if cfg.JSON {
		return logger.NewJSON(w, cfg.Level)
	}
	return logger.NewWithWriter(zerolog.ConsoleWriter{Out: w, NoColor: true}).Level(logger.ParseLevel(cfg.Level))
}
