package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tordrt/catalogmodel/internal/symbol"
)

const symbolHelp = `Symbols name a constraint as schema:name, every constraint of a schema as
schema:*, or a column as schema:table:column. A JSON array such as
["schema", null] is also accepted.`

func newFindCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "find SYMBOL",
		Short: "List annotation references to a column or constraint",
		Long:  symbolHelp,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sym, err := symbol.Parse(args[0])
			if err != nil {
				return err
			}
			m, err := a.loadModel(cmd.Context(), false)
			if err != nil {
				return err
			}
			planFormatter(cmd.OutOrStdout()).FormatMatches(a.engine.Find(m, sym))
			return nil
		},
	}
}

func newReplaceCommand(a *app) *cobra.Command {
	var opts pushOptions
	cmd := &cobra.Command{
		Use:   "replace SYMBOL REPLACEMENT",
		Short: "Rename annotation references to a column or constraint",
		Long:  symbolHelp + "\n\nThe replacement must be the same kind of symbol.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sym, err := symbol.Parse(args[0])
			if err != nil {
				return err
			}
			replacement, err := symbol.Parse(args[1])
			if err != nil {
				return err
			}
			m, err := a.loadModel(cmd.Context(), opts.dryRun)
			if err != nil {
				return err
			}
			existing, err := m.Clone()
			if err != nil {
				return err
			}

			report, err := a.engine.Replace(m, sym, replacement)
			if err != nil {
				return err
			}
			planFormatter(cmd.OutOrStdout()).FormatReport(fmt.Sprintf("replaced %s with %s", sym, replacement), *report)
			return a.push(cmd, m, existing, opts)
		},
	}
	opts.register(cmd)
	return cmd
}

func newPruneCommand(a *app) *cobra.Command {
	var opts pushOptions
	cmd := &cobra.Command{
		Use:   "prune SYMBOL",
		Short: "Remove annotation references to a column or constraint",
		Long:  symbolHelp + "\n\nSource definitions built on a pruned reference are removed too.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sym, err := symbol.Parse(args[0])
			if err != nil {
				return err
			}
			m, err := a.loadModel(cmd.Context(), opts.dryRun)
			if err != nil {
				return err
			}
			existing, err := m.Clone()
			if err != nil {
				return err
			}

			report := a.engine.Prune(m, sym)
			planFormatter(cmd.OutOrStdout()).FormatReport(fmt.Sprintf("pruned %s", sym), *report)
			return a.push(cmd, m, existing, opts)
		},
	}
	opts.register(cmd)
	return cmd
}
