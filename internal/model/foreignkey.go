package model

import (
	"context"
	"fmt"

	"github.com/tordrt/catalogmodel/internal/catalog"
	"github.com/tordrt/catalogmodel/internal/jsondoc"
	"github.com/tordrt/catalogmodel/internal/symbol"
)

// DefaultForeignKeyACLs is the ACL set a foreign key falls back to when cleared
var DefaultForeignKeyACLs = map[string]any{
	"insert": []any{"*"},
	"update": []any{"*"},
}

// ForeignKey is a reference from columns of one table to columns of another
type ForeignKey struct {
	OnUpdate    *string
	OnDelete    *string
	Comment     *string
	ACLs        map[string]any
	ACLBindings map[string]any
	Annotations map[string]any

	table      *Table
	constraint ConstraintName
	synthetic  bool
	columns    []*Column

	// set by resolve
	pkTable    *Table
	referenced []*Column

	rawReferenced []ColumnRef
}

// ForeignKeyAlter lists the foreign key fields to change
type ForeignKeyAlter struct {
	Name           Update[string]
	OnUpdate       Update[string]
	OnDelete       Update[string]
	Comment        Update[string]
	ACLs           Update[map[string]any]
	ACLBindings    Update[map[string]any]
	Annotations    Update[map[string]any]
	UpdateMappings UpdateMappings
}

func newForeignKey(t *Table, doc *ForeignKeyDoc) (*ForeignKey, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil foreign key document on %s", ErrInvalidArgument, t.name)
	}
	fk := &ForeignKey{
		OnUpdate:      doc.OnUpdate,
		OnDelete:      doc.OnDelete,
		Comment:       doc.Comment,
		ACLs:          jsondoc.CloneMap(doc.ACLs),
		ACLBindings:   jsondoc.CloneMap(doc.ACLBindings),
		Annotations:   jsondoc.CloneMap(doc.Annotations),
		table:         t,
		rawReferenced: append([]ColumnRef(nil), doc.ReferencedColumns...),
	}
	fk.constraint, fk.synthetic = parseConstraintName(t, doc.Names)
	for _, ref := range doc.ForeignKeyColumns {
		c, ok := t.columns.Get(ref.ColumnName)
		if !ok {
			return nil, fmt.Errorf("%w: foreign key column %s.%s", ErrNotFound, t.name, ref.ColumnName)
		}
		fk.columns = append(fk.columns, c)
	}
	return fk, nil
}

// Name returns the unqualified constraint name
func (fk *ForeignKey) Name() string { return fk.constraint.Name }

// Constraint returns the constraint name
func (fk *ForeignKey) Constraint() ConstraintName { return fk.constraint }

// Synthetic reports whether the name was made up because the document had none
func (fk *ForeignKey) Synthetic() bool { return fk.synthetic }

// Table returns the referencing table
func (fk *ForeignKey) Table() *Table { return fk.table }

// PKTable returns the referenced table
func (fk *ForeignKey) PKTable() *Table { return fk.pkTable }

// Columns returns the referencing columns in order
func (fk *ForeignKey) Columns() []*Column {
	return append([]*Column(nil), fk.columns...)
}

// ReferencedColumns returns the referenced columns in order
func (fk *ForeignKey) ReferencedColumns() []*Column {
	return append([]*Column(nil), fk.referenced...)
}

// ColumnMap maps each referencing column to the column it references
func (fk *ForeignKey) ColumnMap() map[*Column]*Column {
	cm := make(map[*Column]*Column, len(fk.columns))
	for i, c := range fk.columns {
		if i < len(fk.referenced) {
			cm[c] = fk.referenced[i]
		}
	}
	return cm
}

// NameInModel maps the constraint name onto another tree
func (fk *ForeignKey) NameInModel(m *Model) (ConstraintName, bool) {
	return fk.constraint.InModel(m)
}

// Symbol returns the constraint symbol used in annotation references
func (fk *ForeignKey) Symbol() symbol.Constraint {
	return constraintSymbol(fk.table, fk.constraint)
}

// NodeKind returns ForeignKeyNode
func (fk *ForeignKey) NodeKind() NodeKind { return ForeignKeyNode }

// Path returns the catalog resource path of the foreign key
func (fk *ForeignKey) Path() string {
	return fmt.Sprintf("%s/foreignkey/%s/reference/%s:%s/%s",
		fk.table.Path(),
		catalog.JoinNames(columnNames(fk.columns)),
		catalog.Escape(fk.pkTable.schema.name),
		catalog.Escape(fk.pkTable.name),
		catalog.JoinNames(columnNames(fk.referenced)),
	)
}

func (fk *ForeignKey) node() {}

// Document serializes the foreign key
func (fk *ForeignKey) Document() *ForeignKeyDoc {
	doc := &ForeignKeyDoc{
		ForeignKeyColumns: make([]ColumnRef, 0, len(fk.columns)),
		ReferencedColumns: make([]ColumnRef, 0, len(fk.referenced)),
		Names:             constraintNamesDoc(fk.constraint, fk.synthetic),
		OnUpdate:          fk.OnUpdate,
		OnDelete:          fk.OnDelete,
		Comment:           fk.Comment,
		ACLs:              jsondoc.CloneMap(fk.ACLs),
		ACLBindings:       jsondoc.CloneMap(fk.ACLBindings),
		Annotations:       jsondoc.CloneMap(fk.Annotations),
	}
	for _, c := range fk.columns {
		doc.ForeignKeyColumns = append(doc.ForeignKeyColumns, c.Ref())
	}
	if fk.pkTable == nil {
		doc.ReferencedColumns = append(doc.ReferencedColumns, fk.rawReferenced...)
		return doc
	}
	for _, c := range fk.referenced {
		doc.ReferencedColumns = append(doc.ReferencedColumns, c.Ref())
	}
	return doc
}

// Alter changes the foreign key in the catalog and absorbs the values the
// catalog reports back. Renaming rewrites constraint references when
// mappings are updated.
func (fk *ForeignKey) Alter(ctx context.Context, a ForeignKeyAlter) error {
	m := fk.table.schema.model
	client, err := m.requireClient()
	if err != nil {
		return err
	}
	if err := m.checkMappings(a.UpdateMappings); err != nil {
		return err
	}

	changes := changeSet{}
	current := fk.constraint.Name
	if fk.synthetic {
		current = ""
	}
	if err := changes.name("names", a.Name, current); err != nil {
		return err
	}
	if newName, ok := changes["names"].(string); ok {
		if fk.table.foreignKeys.Has(ConstraintName{Schema: fk.constraint.Schema, Name: newName}) {
			return fmt.Errorf("%w: foreign key %s", ErrDuplicateName, newName)
		}
		changes["names"] = renameNames(fk.constraint, newName)
	}
	changes.nullableString("on_update", a.OnUpdate)
	changes.nullableString("on_delete", a.OnDelete)
	changes.nullableString("comment", a.Comment)
	changes.mapping("acls", a.ACLs)
	changes.mapping("acl_bindings", a.ACLBindings)
	changes.mapping("annotations", a.Annotations)

	var changed map[string]any
	if err := client.Put(ctx, fk.Path(), changes, &changed); err != nil {
		return fmt.Errorf("failed to alter foreign key %s: %w", fk.constraint, err)
	}

	if changes.has("on_update") {
		fk.OnUpdate = changes.responseNullableString(changed, "on_update")
	}
	if changes.has("on_delete") {
		fk.OnDelete = changes.responseNullableString(changed, "on_delete")
	}
	if changes.has("comment") {
		fk.Comment = changes.responseNullableString(changed, "comment")
	}
	if changes.has("acls") {
		fk.ACLs = changes.responseMap(changed, "acls")
	}
	if changes.has("acl_bindings") {
		fk.ACLBindings = changes.responseMap(changed, "acl_bindings")
	}
	if changes.has("annotations") {
		fk.Annotations = changes.responseMap(changed, "annotations")
	}

	if changes.has("names") {
		name, err := responseConstraintName(changes, changed)
		if err != nil {
			return err
		}
		old := fk.constraint
		oldSymbol := fk.Symbol()
		wasSynthetic := fk.synthetic
		m.unregisterForeignKey(fk)
		fk.constraint.Name = name
		fk.synthetic = false
		if err := fk.table.foreignKeys.Rekey(old); err != nil {
			return err
		}
		m.registerForeignKey(fk)
		if wasSynthetic {
			return nil
		}
		err = m.replaceMappings(a.UpdateMappings, oldSymbol, fk.Symbol())
		if err != nil {
			return err
		}
		return m.finishMappings(ctx, a.UpdateMappings)
	}
	return nil
}

// Drop removes the foreign key from the catalog. Cascade has no effect.
func (fk *ForeignKey) Drop(ctx context.Context, opts DropOptions) error {
	m := fk.table.schema.model
	client, err := m.requireClient()
	if err != nil {
		return err
	}
	if cur, ok := fk.table.foreignKeys.Get(fk.constraint); !ok || cur != fk {
		return fmt.Errorf("%w: foreign key %s", ErrNotMember, fk.constraint)
	}
	if err := m.checkMappings(opts.UpdateMappings); err != nil {
		return err
	}

	if err := client.Delete(ctx, fk.Path()); err != nil {
		return fmt.Errorf("failed to drop foreign key %s: %w", fk.constraint, err)
	}
	fk.table.foreignKeys.Remove(fk.constraint)
	fk.cleanup()

	if fk.synthetic {
		return nil
	}
	if err := m.pruneMappings(opts.UpdateMappings, fk.Symbol()); err != nil {
		return err
	}
	return m.finishMappings(ctx, opts.UpdateMappings)
}

// cleanup detaches the foreign key from the back-reference and name indexes
func (fk *ForeignKey) cleanup() {
	if fk.pkTable != nil {
		fk.pkTable.removeReferrer(fk)
	}
	fk.table.schema.model.unregisterForeignKey(fk)
}

// Clear resets the foreign key configuration. Cleared ACLs fall back to
// DefaultForeignKeyACLs.
func (fk *ForeignKey) Clear(opts ClearOptions) {
	if opts.ACLs {
		fk.ACLs = jsondoc.CloneMap(DefaultForeignKeyACLs)
	}
	if opts.ACLBindings {
		fk.ACLBindings = map[string]any{}
	}
	if opts.Annotations {
		fk.Annotations = map[string]any{}
	}
	if opts.Comment {
		fk.Comment = nil
	}
}
