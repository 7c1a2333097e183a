package model

import (
	"context"
	"fmt"

	"github.com/tordrt/catalogmodel/internal/catalog"
	"github.com/tordrt/catalogmodel/internal/jsondoc"
	"github.com/tordrt/catalogmodel/internal/symbol"
)

// Key is a set of columns that are jointly unique
type Key struct {
	Comment     *string
	Annotations map[string]any

	table      *Table
	constraint ConstraintName
	synthetic  bool
	columns    []*Column
}

// KeyAlter lists the key fields to change
type KeyAlter struct {
	Name           Update[string]
	Comment        Update[string]
	Annotations    Update[map[string]any]
	UpdateMappings UpdateMappings
}

func newKey(t *Table, doc *KeyDoc) (*Key, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil key document on %s", ErrInvalidArgument, t.name)
	}
	k := &Key{
		Comment:     doc.Comment,
		Annotations: jsondoc.CloneMap(doc.Annotations),
		table:       t,
	}
	k.constraint, k.synthetic = parseConstraintName(t, doc.Names)
	for _, cname := range doc.UniqueColumns {
		c, ok := t.columns.Get(cname)
		if !ok {
			return nil, fmt.Errorf("%w: key column %s.%s", ErrNotFound, t.name, cname)
		}
		k.columns = append(k.columns, c)
	}
	return k, nil
}

// Name returns the unqualified constraint name
func (k *Key) Name() string { return k.constraint.Name }

// Constraint returns the constraint name
func (k *Key) Constraint() ConstraintName { return k.constraint }

// Synthetic reports whether the name was made up because the document had none
func (k *Key) Synthetic() bool { return k.synthetic }

// Table returns the owning table
func (k *Key) Table() *Table { return k.table }

// Columns returns the key columns in order
func (k *Key) Columns() []*Column {
	return append([]*Column(nil), k.columns...)
}

// ColumnNames returns the key column names in order
func (k *Key) ColumnNames() []string {
	return columnNames(k.columns)
}

// NameInModel maps the constraint name onto another tree
func (k *Key) NameInModel(m *Model) (ConstraintName, bool) {
	return k.constraint.InModel(m)
}

// Symbol returns the constraint symbol used in annotation references
func (k *Key) Symbol() symbol.Constraint {
	return constraintSymbol(k.table, k.constraint)
}

// NodeKind returns KeyNode
func (k *Key) NodeKind() NodeKind { return KeyNode }

// Path returns the catalog resource path of the key
func (k *Key) Path() string {
	return k.table.Path() + "/key/" + catalog.JoinNames(k.ColumnNames())
}

func (k *Key) node() {}

// Document serializes the key
func (k *Key) Document() *KeyDoc {
	return &KeyDoc{
		UniqueColumns: k.ColumnNames(),
		Names:         constraintNamesDoc(k.constraint, k.synthetic),
		Comment:       k.Comment,
		Annotations:   jsondoc.CloneMap(k.Annotations),
	}
}

// Alter changes the key in the catalog and absorbs the values the catalog
// reports back. Renaming rewrites constraint references when mappings are
// updated.
func (k *Key) Alter(ctx context.Context, a KeyAlter) error {
	m := k.table.schema.model
	client, err := m.requireClient()
	if err != nil {
		return err
	}
	if err := m.checkMappings(a.UpdateMappings); err != nil {
		return err
	}

	changes := changeSet{}
	current := k.constraint.Name
	if k.synthetic {
		current = ""
	}
	if err := changes.name("names", a.Name, current); err != nil {
		return err
	}
	if newName, ok := changes["names"].(string); ok {
		if k.table.keys.Has(ConstraintName{Schema: k.constraint.Schema, Name: newName}) {
			return fmt.Errorf("%w: key %s", ErrDuplicateName, newName)
		}
		changes["names"] = renameNames(k.constraint, newName)
	}
	changes.nullableString("comment", a.Comment)
	changes.mapping("annotations", a.Annotations)

	var changed map[string]any
	if err := client.Put(ctx, k.Path(), changes, &changed); err != nil {
		return fmt.Errorf("failed to alter key %s: %w", k.constraint, err)
	}

	if changes.has("comment") {
		k.Comment = changes.responseNullableString(changed, "comment")
	}
	if changes.has("annotations") {
		k.Annotations = changes.responseMap(changed, "annotations")
	}

	if changes.has("names") {
		name, err := responseConstraintName(changes, changed)
		if err != nil {
			return err
		}
		old := k.constraint
		oldSymbol := k.Symbol()
		wasSynthetic := k.synthetic
		k.constraint.Name = name
		k.synthetic = false
		if err := k.table.keys.Rekey(old); err != nil {
			return err
		}
		if wasSynthetic {
			return nil
		}
		err = m.replaceMappings(a.UpdateMappings, oldSymbol, k.Symbol())
		if err != nil {
			return err
		}
		return m.finishMappings(ctx, a.UpdateMappings)
	}
	return nil
}

// Drop removes the key from the catalog. With cascade the foreign keys
// referencing exactly this key's columns are dropped first.
func (k *Key) Drop(ctx context.Context, opts DropOptions) error {
	m := k.table.schema.model
	client, err := m.requireClient()
	if err != nil {
		return err
	}
	if cur, ok := k.table.keys.Get(k.constraint); !ok || cur != k {
		return fmt.Errorf("%w: key %s", ErrNotMember, k.constraint)
	}
	if err := m.checkMappings(opts.UpdateMappings); err != nil {
		return err
	}

	if opts.Cascade {
		want := make(map[*Column]bool, len(k.columns))
		for _, c := range k.columns {
			want[c] = true
		}
		for _, fk := range k.table.ReferencedBy() {
			if sameColumnSet(want, fk.referenced) {
				if err := fk.Drop(ctx, DropOptions{UpdateMappings: opts.UpdateMappings}); err != nil {
					return err
				}
			}
		}
	}

	if err := client.Delete(ctx, k.Path()); err != nil {
		return fmt.Errorf("failed to drop key %s: %w", k.constraint, err)
	}
	k.table.keys.Remove(k.constraint)

	if k.synthetic {
		return nil
	}
	if err := m.pruneMappings(opts.UpdateMappings, k.Symbol()); err != nil {
		return err
	}
	return m.finishMappings(ctx, opts.UpdateMappings)
}

// Clear resets the key configuration
func (k *Key) Clear(opts ClearOptions) {
	if opts.Annotations {
		k.Annotations = map[string]any{}
	}
	if opts.Comment {
		k.Comment = nil
	}
}

// SQLiteDDL returns the unique constraint clause for this key
func (k *Key) SQLiteDDL() string {
	return "UNIQUE (" + joinIdentifiers(k.ColumnNames()) + ")"
}

func columnNames(cols []*Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}
