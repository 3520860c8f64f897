package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/toolsascode/sqldatabase/internal/config"
	"github.com/toolsascode/sqldatabase/internal/executor"
	"github.com/toolsascode/sqldatabase/internal/logger"
	"github.com/toolsascode/sqldatabase/internal/variables"
)

type globalOptions struct {
	configuration string
	logFormat     string
	logLevel      string
}

type runOptions struct {
	database           string
	sources            []string
	vars               []string
	transaction        string
	folderAsModuleName bool
	whatIf             bool
}

type runCommand struct {
	use   string
	short string
	long  string
	run   func(runner *executor.Runner, ctx context.Context, opts executor.RunOptions) (*executor.ExecuteResult, error)
}

var (
	runUpgrade = runCommand{
		use:   "upgrade",
		short: "Upgrade the database to the latest script versions",
		long: `Upgrade reads the current version of every module from the database,
orders the pending upgrade scripts by version and module dependency and runs
them one by one, recording each new version.`,
		run: (*executor.Runner).Upgrade,
	}
	runCreate = runCommand{
		use:   "create",
		short: "Run the creation scripts",
		long: `Create runs every script named [<module>.]<version>. If the database does not
exist the scripts run on the maintenance connection of the server.`,
		run: (*executor.Runner).Create,
	}
	runExecute = runCommand{
		use:   "execute",
		short: "Run every script found, without version bookkeeping",
		run:   (*executor.Runner).Execute,
	}
)

func newRunCommand(global *globalOptions, command runCommand) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   command.use,
		Short: command.short,
		Long:  command.long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, global, opts, command)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.database, "database", "", "Connection string of the target database")
	flags.StringArrayVar(&opts.sources, "from", nil, "Script file or folder (repeatable)")
	flags.StringArrayVar(&opts.vars, "var", nil, "Variable as name=value (repeatable)")
	flags.StringVar(&opts.transaction, "transaction", "", "Transaction mode: none or perStep")
	flags.BoolVar(&opts.folderAsModuleName, "folder-as-module-name", false, "Use the folder name as the module name")
	flags.BoolVar(&opts.whatIf, "what-if", false, "Show what would be done without changing the database")
	return cmd
}

// loadConfig applies the command line on top of the configuration file and
// the environment
func loadConfig(cmd *cobra.Command, global *globalOptions, opts *runOptions) (*config.Config, map[string]string, error) {
	cfg, err := config.Load(global.configuration)
	if err != nil {
		return nil, nil, err
	}

	if opts.database != "" {
		cfg.Database = opts.database
	}
	if len(opts.sources) > 0 {
		cfg.Sources = opts.sources
	}
	if opts.transaction != "" {
		cfg.Transaction = opts.transaction
	}
	if cmd.Flags().Changed("folder-as-module-name") {
		cfg.FolderAsModuleName = opts.folderAsModuleName
	}
	if global.logFormat != "" {
		cfg.Log.Format = global.logFormat
	}
	if global.logLevel != "" {
		cfg.Log.Level = global.logLevel
	}

	values := make(map[string]string, len(opts.vars))
	for _, assignment := range opts.vars {
		name, value, err := variables.ParseAssignment(assignment)
		if err != nil {
			return nil, nil, err
		}
		values[name] = value
	}

	if cfg.Database == "" {
		return nil, nil, errors.New("no database: set --database, the configuration file or SQLDATABASE_DATABASE")
	}
	if len(cfg.Sources) == 0 {
		return nil, nil, errors.New("no scripts: set --from, the configuration file or SQLDATABASE_SOURCES")
	}
	return cfg, values, nil
}

func run(cmd *cobra.Command, global *globalOptions, opts *runOptions, command runCommand) error {
	cfg, values, err := loadConfig(cmd, global, opts)
	if err != nil {
		return err
	}

	if cfg.Log.Level != "" {
		logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	}
	logger.SetFormat(cfg.Log.Format)

	runner, err := executor.NewRunnerFromConfig(cfg, "")
	if err != nil {
		return err
	}
	defer func() { _ = runner.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := command.run(runner, ctx, executor.RunOptions{
		WhatIf:    opts.whatIf,
		Variables: values,
	})
	if err != nil {
		return runFailed(err)
	}
	if result.WhatIf {
		logger.Infof("what-if: %d script(s) would be applied", len(result.Applied))
	}
	return nil
}
