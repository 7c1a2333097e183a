package main

import (
	"github.com/spf13/cobra"

	"github.com/tordrt/catalogmodel/internal/model"
	"github.com/tordrt/catalogmodel/internal/snapshot"
	"github.com/tordrt/catalogmodel/internal/syncconfig"
)

func newApplyCommand(a *app) *cobra.Command {
	var (
		from string
		name string
		opts pushOptions
	)
	cmd := &cobra.Command{
		Use:   "apply --from FILE",
		Short: "Push a saved model document to the catalog",
		Long: `Apply compares a saved model with the catalog's current model, or with a
snapshot, and sends the comments, annotations, ACLs and ACL bindings that differ.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client(opts.dryRun)
			if err != nil {
				return err
			}
			desired, err := model.FromFile(from, append(a.modelOptions(), model.WithClient(client))...)
			if err != nil {
				return err
			}

			var existing *model.Model
			if name != "" {
				store, closeStore, err := a.snapshotStore(cmd.Context())
				if err != nil {
					return err
				}
				defer closeStore()
				existing, err = snapshot.Restore(cmd.Context(), store, name, a.modelOptions()...)
				if err != nil {
					return err
				}
			} else {
				existing, err = model.FromCatalog(cmd.Context(), client, a.modelOptions()...)
				if err != nil {
					return err
				}
			}
			return a.push(cmd, desired, existing, opts)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Model document file to apply")
	cmd.Flags().StringVar(&name, "snapshot", "", "Compare against this snapshot instead of the catalog")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the changes without sending them")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Send changes without asking")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

// syncFlags are shared by the rule-driven sync commands
type syncFlags struct {
	push    pushOptions
	strict  bool
	lenient bool
	schema  string
	table   string
}

func (f *syncFlags) register(cmd *cobra.Command) {
	f.push.register(cmd)
	cmd.Flags().BoolVar(&f.strict, "strict", false, "Fail on ambiguous rule matches (overrides sync.strict)")
	cmd.Flags().BoolVar(&f.lenient, "lenient", false, "Skip nodes with ambiguous rule matches (overrides sync.strict)")
	cmd.Flags().StringVar(&f.schema, "schema", "", "Only configure this schema")
	cmd.Flags().StringVar(&f.table, "table", "", "Only configure this table (requires --schema)")
	cmd.MarkFlagsMutuallyExclusive("strict", "lenient")
}

func (f *syncFlags) options(a *app) syncconfig.Options {
	strict := a.settings.Sync.Strict
	switch {
	case f.strict:
		strict = true
	case f.lenient:
		strict = false
	}
	return syncconfig.Options{Strict: strict, Server: a.server(), Logger: a.logger}
}

// configurer rewrites part of a model from a rule document
type configurer interface {
	Configure(m *model.Model, scope syncconfig.Scope) error
}

// runSync loads the model, lets c rewrite it and pushes the result
func (a *app) runSync(cmd *cobra.Command, c configurer, f *syncFlags) error {
	m, err := a.loadModel(cmd.Context(), f.push.dryRun)
	if err != nil {
		return err
	}
	existing, err := m.Clone()
	if err != nil {
		return err
	}
	if err := c.Configure(m, syncconfig.Scope{Schema: f.schema, Table: f.table}); err != nil {
		return err
	}
	return a.push(cmd, m, existing, f.push)
}

func newACLConfigCommand(a *app) *cobra.Command {
	var f syncFlags
	cmd := &cobra.Command{
		Use:   "acl-config RULES",
		Short: "Set ACLs and ACL bindings from a rule document",
		Long: `acl-config reads a YAML or JSON document of groups, ACL definitions, ACL
binding definitions and per-level rules, then sets the ACLs and ACL bindings
of every node in scope from the best matching rule.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := syncconfig.LoadACL(args[0])
			if err != nil {
				return err
			}
			c, err := syncconfig.NewACLConfigurer(doc, f.options(a))
			if err != nil {
				return err
			}
			return a.runSync(cmd, c, &f)
		},
	}
	f.register(cmd)
	return cmd
}

func newAnnotationConfigCommand(a *app) *cobra.Command {
	var f syncFlags
	cmd := &cobra.Command{
		Use:   "annotation-config RULES",
		Short: "Set managed annotations from a rule document",
		Long: `annotation-config reads a YAML or JSON document listing the annotation keys it
manages and per-level rules, then sets or removes each managed key on every
node in scope.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := syncconfig.LoadAnnotations(args[0])
			if err != nil {
				return err
			}
			c, err := syncconfig.NewAnnotationConfigurer(doc, f.options(a))
			if err != nil {
				return err
			}
			return a.runSync(cmd, c, &f)
		},
	}
	f.register(cmd)
	return cmd
}
