package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tordrt/catalogmodel"
)

func newDescribeCommand(a *app) *cobra.Command {
	var (
		format     string
		outputFile string
		outputDir  string
	)
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Describe the tables of a model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir != "" && outputFile != "" {
				return fmt.Errorf("cannot use both --output-dir and --output flags")
			}
			m, err := a.loadModel(cmd.Context(), false)
			if err != nil {
				return err
			}

			opts := &catalogmodel.OutputOptions{Writer: cmd.OutOrStdout(), OutputDir: outputDir, Format: format}
			if outputFile != "" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer func() {
					if err := f.Close(); err != nil {
						a.logger.Warn("failed to close output file", zap.Error(err))
					}
				}()
				opts.Writer = f
			}
			return catalogmodel.Describe(m, opts)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "Output format: text or markdown")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Output directory for one file per table")
	return cmd
}

func newIntrospectCommand(a *app) *cobra.Command {
	var (
		dbURL      string
		mysqlURL   string
		sqlitePath string
		tables     string
		exclude    string
		schemas    []string
		out        string
	)
	cmd := &cobra.Command{
		Use:   "introspect",
		Short: "Read a relational database schema as a model document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var databaseURL string
			switch {
			case dbURL != "":
				databaseURL = dbURL
			case mysqlURL != "":
				databaseURL = "mysql://" + strings.TrimPrefix(mysqlURL, "mysql://")
			case sqlitePath != "":
				databaseURL = "sqlite://" + sqlitePath
			}

			m, err := catalogmodel.Introspect(cmd.Context(), databaseURL, &catalogmodel.Options{
				Tables:        splitList(tables),
				ExcludeTables: splitList(exclude),
				Schemas:       schemas,
				ModelOptions:  a.modelOptions(),
			})
			if err != nil {
				return fmt.Errorf("failed to introspect database: %w", err)
			}
			for _, ref := range m.Unresolved() {
				a.logger.Warn("dropped unresolved foreign key",
					zap.String("table", ref.Schema+"."+ref.Table),
					zap.String("reason", ref.Reason),
				)
			}
			return writeDocument(out, cmd.OutOrStdout(), m.Document())
		},
	}
	cmd.Flags().StringVar(&dbURL, "db-url", "", "PostgreSQL connection string")
	cmd.Flags().StringVar(&mysqlURL, "mysql-url", "", "MySQL connection string")
	cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "SQLite database file path")
	cmd.Flags().StringVarP(&tables, "tables", "t", "", "Specific tables (comma-separated, optional)")
	cmd.Flags().StringVarP(&exclude, "exclude", "x", "", "Tables to leave out (comma-separated, optional)")
	cmd.Flags().StringSliceVarP(&schemas, "schema", "s", nil, "Database schemas to read (default: public for PostgreSQL)")
	cmd.Flags().StringVar(&out, "out", "-", "Write the model document to this file")
	cmd.MarkFlagsOneRequired("db-url", "mysql-url", "sqlite")
	cmd.MarkFlagsMutuallyExclusive("db-url", "mysql-url", "sqlite")
	return cmd
}

func newExportSQLiteCommand(a *app) *cobra.Command {
	var (
		out  string
		keys bool
	)
	cmd := &cobra.Command{
		Use:   "export-sqlite",
		Short: "Create one SQLite table per model table",
		Long: `export-sqlite writes an empty SQLite database with a table for every model
table, named schema:table. The result can be read back with introspect --sqlite.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadModel(cmd.Context(), false)
			if err != nil {
				return err
			}
			if err := catalogmodel.ExportSQLite(cmd.Context(), m, out, keys); err != nil {
				return err
			}
			a.logger.Info("exported model", zap.String("path", out))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "SQLite database file to create")
	cmd.Flags().BoolVar(&keys, "keys", true, "Export model keys as UNIQUE constraints")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// splitList parses a comma-separated flag value
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
