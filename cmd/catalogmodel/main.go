package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tordrt/catalogmodel/internal/catalog"
	"github.com/tordrt/catalogmodel/internal/formatter"
	"github.com/tordrt/catalogmodel/internal/logging"
	"github.com/tordrt/catalogmodel/internal/mmo"
	"github.com/tordrt/catalogmodel/internal/model"
	"github.com/tordrt/catalogmodel/internal/settings"
	"github.com/tordrt/catalogmodel/internal/snapshot"
)

// app holds the state shared by every command
type app struct {
	configPath string
	catalogURL string
	modelFile  string
	verbose    bool

	settings *settings.Settings
	logger   *zap.Logger
	engine   *mmo.Engine
}

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "catalogmodel",
		Short: "Inspect and edit catalog models",
		Long: `catalogmodel loads the model of a catalog, finds and rewrites the references
annotations hold to columns and constraints, syncs ACLs and annotations from
rule documents, and describes or introspects schemas.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default: .catalogmodel.yaml in the working or home directory)")
	flags.StringVar(&a.catalogURL, "catalog", "", "Catalog URL (overrides catalog.url)")
	flags.StringVar(&a.modelFile, "model-file", "", "Work offline on a saved model document instead of the catalog")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Log debug output")

	rootCmd.AddCommand(
		newFindCommand(a),
		newReplaceCommand(a),
		newPruneCommand(a),
		newApplyCommand(a),
		newACLConfigCommand(a),
		newAnnotationConfigCommand(a),
		newDescribeCommand(a),
		newIntrospectCommand(a),
		newExportSQLiteCommand(a),
		newSnapshotCommand(a),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	s, err := settings.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.catalogURL != "" {
		s.Catalog.URL = a.catalogURL
		if err := s.Validate(); err != nil {
			return err
		}
	}
	a.settings = s

	level := s.Log.Level
	if a.verbose {
		level = "debug"
	}
	if cmd.ErrOrStderr() != os.Stderr {
		a.logger, err = logging.NewWriter(cmd.ErrOrStderr(), level)
	} else {
		a.logger, err = logging.New(level, s.Log.Development)
	}
	if err != nil {
		return err
	}
	a.engine = mmo.New(a.logger)
	return nil
}

// client returns a client for the configured catalog. A dry-run client
// reads from the catalog and records writes instead of sending them.
func (a *app) client(dryRun bool) (catalog.Client, error) {
	if err := a.settings.RequireCatalog(); err != nil {
		return nil, err
	}
	var opts []catalog.HTTPOption
	if a.settings.Catalog.Token != "" {
		opts = append(opts, catalog.WithBearerToken(a.settings.Catalog.Token))
	}
	if a.settings.Catalog.Cookie != "" {
		opts = append(opts, catalog.WithCookie(a.settings.Catalog.Cookie))
	}
	client := catalog.NewHTTPClient(a.settings.Catalog.URL, a.settings.Catalog.Timeout, opts...)
	if dryRun {
		return catalog.NewDryRunClient(client), nil
	}
	return client, nil
}

func (a *app) modelOptions() []model.Option {
	return []model.Option{model.WithLogger(a.logger), model.WithMappingUpdater(a.engine)}
}

// loadModel reads the --model-file document, or fetches the catalog model
func (a *app) loadModel(ctx context.Context, dryRun bool) (*model.Model, error) {
	if a.modelFile != "" {
		return model.FromFile(a.modelFile, a.modelOptions()...)
	}
	client, err := a.client(dryRun)
	if err != nil {
		return nil, err
	}
	return model.FromCatalog(ctx, client, a.modelOptions()...)
}

// server returns the catalog host name
func (a *app) server() string {
	u, err := url.Parse(a.settings.Catalog.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// snapshotStore opens the configured snapshot store
func (a *app) snapshotStore(ctx context.Context) (snapshot.Store, func(), error) {
	cfg := a.settings.Snapshot
	if cfg.RedisAddr == "" {
		return snapshot.NewFileStore(cfg.Dir), func() {}, nil
	}
	store, err := snapshot.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPrefix)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func planFormatter(w io.Writer) *formatter.PlanFormatter {
	return formatter.NewPlanFormatter(w, w == os.Stdout && !color.NoColor)
}

// pushOptions control how edited models are sent back
type pushOptions struct {
	dryRun bool
	yes    bool
	out    string
}

func (o *pushOptions) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "Print the changes without sending them")
	cmd.Flags().BoolVarP(&o.yes, "yes", "y", false, "Send changes without asking")
	cmd.Flags().StringVar(&o.out, "out", "", "Write the edited model document to this file")
}

// push prints the changes between existing and m, then applies them to the
// catalog. Models read from a file are only written to --out. On a dry run
// the updates go to the dry-run client and the recorded requests are printed.
func (a *app) push(cmd *cobra.Command, m, existing *model.Model, opts pushOptions) error {
	out := cmd.OutOrStdout()
	changes := m.Plan(existing)
	planFormatter(out).FormatChanges(changes)

	if opts.out != "" {
		if err := writeDocument(opts.out, out, m.Document()); err != nil {
			return err
		}
	}
	if len(changes) == 0 || m.Client() == nil {
		return nil
	}
	if dry, ok := m.Client().(*catalog.DryRunClient); ok {
		if err := m.Apply(cmd.Context(), existing); err != nil {
			return err
		}
		for _, r := range dry.Requests() {
			_, _ = fmt.Fprintf(out, "would send %s %s\n", r.Method, r.Path)
		}
		return nil
	}
	if opts.dryRun {
		return nil
	}
	if !opts.yes {
		ok, err := confirm(fmt.Sprintf("Apply %d change(s) to %s?", len(changes), a.settings.Catalog.URL))
		if err != nil {
			return err
		}
		if !ok {
			_, _ = fmt.Fprintln(out, "aborted")
			return nil
		}
	}
	if err := m.Apply(cmd.Context(), existing); err != nil {
		return err
	}
	a.logger.Info("applied changes", zap.Int("count", len(changes)))
	return nil
}

func confirm(message string) (bool, error) {
	var ok bool
	prompt := &survey.Confirm{Message: message}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// writeDocument writes a model document as indented JSON to path, or to w
// when path is "-"
func writeDocument(path string, w io.Writer, doc *model.ModelDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model document: %w", err)
	}
	data = append(data, '\n')
	if path == "-" {
		_, err = w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model document: %w", err)
	}
	return nil
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
