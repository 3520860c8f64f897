package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// buildVersion is set with -ldflags "-X main.buildVersion=..."
var buildVersion = "dev"

const (
	exitOK             = 0
	exitInvalidCommand = 1
	exitRunFailed      = 2
)

// exitError carries the process exit code of a failed command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func runFailed(err error) error {
	return &exitError{code: exitRunFailed, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return exitInvalidCommand
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "sqldatabase",
		Short: "sqldatabase - versioned SQL upgrade runner",
		Long: `sqldatabase upgrades a database by running SQL scripts named after the
versions they upgrade from and to.

Scripts are named [<module>.]<from>-<to>.sql. Each module keeps its own
version; a script may declare in its leading comments that it needs another
module at a given version:

  -- module dependency: customers 2.0

Supports SQL Server, PostgreSQL, MySQL and SQLite.`,
		Version:       buildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configuration, "configuration", "", "Path to the YAML configuration file (default: $SQLDATABASE_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newRunCommand(opts, runUpgrade),
		newRunCommand(opts, runCreate),
		newRunCommand(opts, runExecute),
		newScriptCommand(),
		newVersionCommand(),
	)
	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sqldatabase version %s\n", buildVersion)
		},
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
