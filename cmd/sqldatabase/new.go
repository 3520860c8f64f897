package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/toolsascode/sqldatabase/internal/scripts"
	"github.com/toolsascode/sqldatabase/migrations"
)

type scriptOptions struct {
	folder    string
	extension string
	depends   []string
}

func newScriptCommand() *cobra.Command {
	opts := &scriptOptions{}

	cmd := &cobra.Command{
		Use:   "new [<module>.]<from>-<to>",
		Short: "Create an upgrade script",
		Long: `New writes an empty upgrade script with a header declaring its module
dependencies.

Example:
  sqldatabase new orders.1.0-1.1 --folder scripts --depends customers:2.0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := newScript(args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.folder, "folder", ".", "Folder to create the script in")
	cmd.Flags().StringVar(&opts.extension, "extension", ".sql", "Script file extension")
	cmd.Flags().StringArrayVar(&opts.depends, "depends", nil, "Module dependency as <module>:<version> (repeatable)")
	return cmd
}

func newScript(name string, opts *scriptOptions) (string, error) {
	parsed, err := scripts.ParseName(name)
	if err != nil {
		return "", err
	}
	if parsed.From.IsZero() {
		return "", fmt.Errorf("%q is a creation script name, expected [<module>.]<from>-<to>", name)
	}

	script := migrations.Script{
		Module: parsed.Module,
		From:   parsed.From,
		To:     parsed.To,
	}
	for _, text := range opts.depends {
		dep, err := migrations.ParseDependency(text)
		if err != nil {
			return "", err
		}
		script.Dependencies = append(script.Dependencies, dep)
	}

	return script.Write(opts.folder, opts.extension)
}
