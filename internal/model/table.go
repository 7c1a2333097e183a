package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tordrt/catalogmodel/internal/catalog"
	"github.com/tordrt/catalogmodel/internal/jsondoc"
	"github.com/tordrt/catalogmodel/internal/symbol"
)

// Table is a named table
type Table struct {
	ACLs        map[string]any
	ACLBindings map[string]any
	Annotations map[string]any
	Comment     *string
	Kind        string

	schema       *Schema
	name         string
	columns      *KeyedList[string, *Column]
	keys         *KeyedList[ConstraintName, *Key]
	foreignKeys  *KeyedList[ConstraintName, *ForeignKey]
	referencedBy []*ForeignKey
}

// TableAlter lists the table fields to change. Schema transfers the table
// to another existing schema.
type TableAlter struct {
	Schema         Update[string]
	Name           Update[string]
	Comment        Update[string]
	ACLs           Update[map[string]any]
	ACLBindings    Update[map[string]any]
	Annotations    Update[map[string]any]
	UpdateMappings UpdateMappings
}

func newTable(s *Schema, name string, doc *TableDoc) (*Table, error) {
	if doc == nil {
		doc = &TableDoc{}
	}
	t := &Table{
		ACLs:        jsondoc.CloneMap(doc.ACLs),
		ACLBindings: jsondoc.CloneMap(doc.ACLBindings),
		Annotations: jsondoc.CloneMap(doc.Annotations),
		Comment:     doc.Comment,
		Kind:        doc.Kind,
		schema:      s,
		name:        name,
		columns:     NewKeyedList(func(c *Column) string { return c.name }),
		keys:        NewKeyedList(func(k *Key) ConstraintName { return k.constraint }),
		foreignKeys: NewKeyedList(func(fk *ForeignKey) ConstraintName { return fk.constraint }),
	}

	for _, cdoc := range doc.ColumnDefinitions {
		c, err := newColumn(t, cdoc)
		if err != nil {
			return nil, err
		}
		if err := t.columns.Append(c); err != nil {
			return nil, fmt.Errorf("failed to add column %s: %w", c.name, err)
		}
	}
	for _, kdoc := range doc.Keys {
		k, err := newKey(t, kdoc)
		if err != nil {
			return nil, err
		}
		if err := t.keys.Append(k); err != nil {
			return nil, fmt.Errorf("failed to add key %s: %w", k.constraint, err)
		}
	}
	for _, fkdoc := range doc.ForeignKeys {
		fk, err := newForeignKey(t, fkdoc)
		if err != nil {
			return nil, err
		}
		if err := t.foreignKeys.Append(fk); err != nil {
			return nil, fmt.Errorf("failed to add foreign key %s: %w", fk.constraint, err)
		}
		s.model.registerForeignKey(fk)
	}
	return t, nil
}

// Name returns the table name
func (t *Table) Name() string { return t.name }

// Schema returns the owning schema
func (t *Table) Schema() *Schema { return t.schema }

// NodeKind returns TableNode
func (t *Table) NodeKind() NodeKind { return TableNode }

// Path returns the catalog resource path of the table
func (t *Table) Path() string {
	return t.schema.Path() + "/table/" + catalog.Escape(t.name)
}

func (t *Table) node() {}

// Columns returns the columns in order
func (t *Table) Columns() []*Column {
	return t.columns.Items()
}

// Column returns the named column
func (t *Table) Column(name string) (*Column, bool) {
	return t.columns.Get(name)
}

// Keys returns the keys in order
func (t *Table) Keys() []*Key {
	return t.keys.Items()
}

// Key returns the key with the given constraint name
func (t *Table) Key(name ConstraintName) (*Key, bool) {
	return t.keys.Get(name)
}

// ForeignKeys returns the outbound foreign keys in order
func (t *Table) ForeignKeys() []*ForeignKey {
	return t.foreignKeys.Items()
}

// ForeignKey returns the outbound foreign key with the given constraint name
func (t *Table) ForeignKey(name ConstraintName) (*ForeignKey, bool) {
	return t.foreignKeys.Get(name)
}

// ReferencedBy returns the foreign keys of other tables referencing this one
func (t *Table) ReferencedBy() []*ForeignKey {
	return append([]*ForeignKey(nil), t.referencedBy...)
}

// Document serializes the table
func (t *Table) Document() *TableDoc {
	doc := &TableDoc{
		SchemaName:        t.schema.name,
		TableName:         t.name,
		Kind:              t.Kind,
		ACLs:              jsondoc.CloneMap(t.ACLs),
		ACLBindings:       jsondoc.CloneMap(t.ACLBindings),
		Annotations:       jsondoc.CloneMap(t.Annotations),
		Comment:           t.Comment,
		ColumnDefinitions: make([]*ColumnDoc, 0, t.columns.Len()),
		Keys:              make([]*KeyDoc, 0, t.keys.Len()),
		ForeignKeys:       make([]*ForeignKeyDoc, 0, t.foreignKeys.Len()),
	}
	for _, c := range t.columns.items {
		doc.ColumnDefinitions = append(doc.ColumnDefinitions, c.Document())
	}
	for _, k := range t.keys.items {
		doc.Keys = append(doc.Keys, k.Document())
	}
	for _, fk := range t.foreignKeys.items {
		doc.ForeignKeys = append(doc.ForeignKeys, fk.Document())
	}
	return doc
}

// Alter changes the table in the catalog and absorbs the values the catalog
// reports back
func (t *Table) Alter(ctx context.Context, a TableAlter) error {
	m := t.schema.model
	client, err := m.requireClient()
	if err != nil {
		return err
	}
	if err := m.checkMappings(a.UpdateMappings); err != nil {
		return err
	}

	changes := changeSet{}
	if err := changes.name("table_name", a.Name, t.name); err != nil {
		return err
	}
	if err := changes.name("schema_name", a.Schema, t.schema.name); err != nil {
		return err
	}
	finalName := t.name
	if v, ok := changes["table_name"].(string); ok {
		finalName = v
	}
	dest := t.schema
	if v, ok := changes["schema_name"].(string); ok {
		s, found := m.schemas.Get(v)
		if !found {
			return fmt.Errorf("%w: schema %s", ErrNotFound, v)
		}
		dest = s
	}
	if (dest != t.schema || finalName != t.name) && dest.tables.Has(finalName) {
		return fmt.Errorf("%w: table %s.%s", ErrDuplicateName, dest.name, finalName)
	}
	changes.nullableString("comment", a.Comment)
	changes.mapping("acls", a.ACLs)
	changes.mapping("acl_bindings", a.ACLBindings)
	changes.mapping("annotations", a.Annotations)

	var changed map[string]any
	if err := client.Put(ctx, t.Path(), changes, &changed); err != nil {
		return fmt.Errorf("failed to alter table %s.%s: %w", t.schema.name, t.name, err)
	}

	if changes.has("comment") {
		t.Comment = changes.responseNullableString(changed, "comment")
	}
	if changes.has("acls") {
		t.ACLs = changes.responseMap(changed, "acls")
	}
	if changes.has("acl_bindings") {
		t.ACLBindings = changes.responseMap(changed, "acl_bindings")
	}
	if changes.has("annotations") {
		t.Annotations = changes.responseMap(changed, "annotations")
	}

	if changes.has("table_name") {
		old := t.name
		t.name = changes.responseString(changed, "table_name")
		if err := t.schema.tables.Rekey(old); err != nil {
			return err
		}
	}

	if changes.has("schema_name") {
		src := t.schema
		if name := changes.responseString(changed, "schema_name"); name != dest.name {
			if s, ok := m.schemas.Get(name); ok {
				dest = s
			}
		}
		if err := t.transfer(src, dest); err != nil {
			return err
		}
		for _, sym := range t.constraintSymbols() {
			err := m.replaceMappings(a.UpdateMappings,
				symbol.Constraint{Schema: src.name, Name: sym},
				symbol.Constraint{Schema: dest.name, Name: sym})
			if err != nil {
				return err
			}
		}
		return m.finishMappings(ctx, a.UpdateMappings)
	}
	return nil
}

// transfer moves the table and its schema-qualified constraints to dest
func (t *Table) transfer(src, dest *Schema) error {
	if _, ok := src.tables.Remove(t.name); !ok {
		return fmt.Errorf("%w: table %s.%s", ErrNotMember, src.name, t.name)
	}
	t.schema = dest

	for _, k := range t.keys.Items() {
		if k.constraint.Schema == nil {
			continue
		}
		old := k.constraint
		k.constraint.Schema = dest
		if err := t.keys.Rekey(old); err != nil {
			return err
		}
	}
	for _, fk := range t.foreignKeys.Items() {
		if fk.constraint.Schema == nil {
			continue
		}
		src.model.unregisterForeignKey(fk)
		old := fk.constraint
		fk.constraint.Schema = dest
		if err := t.foreignKeys.Rekey(old); err != nil {
			return err
		}
		src.model.registerForeignKey(fk)
	}
	return dest.tables.Append(t)
}

// constraintSymbols lists the names of the table's named keys and foreign keys
func (t *Table) constraintSymbols() []string {
	var names []string
	for _, k := range t.keys.items {
		if !k.synthetic {
			names = append(names, k.constraint.Name)
		}
	}
	for _, fk := range t.foreignKeys.items {
		if !fk.synthetic {
			names = append(names, fk.constraint.Name)
		}
	}
	return names
}

// CreateColumn creates a column in the catalog and adds the server's
// representation of it to the table
func (t *Table) CreateColumn(ctx context.Context, doc *ColumnDoc) (*Column, error) {
	if t.columns.Has(doc.Name) {
		return nil, fmt.Errorf("%w: column %s", ErrDuplicateName, doc.Name)
	}
	var created ColumnDoc
	if err := t.createPart(ctx, "column", doc, &created); err != nil {
		return nil, err
	}
	c, err := newColumn(t, &created)
	if err != nil {
		return nil, err
	}
	if err := t.columns.Append(c); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateKey creates a key in the catalog and adds the server's
// representation of it to the table
func (t *Table) CreateKey(ctx context.Context, doc *KeyDoc) (*Key, error) {
	var created KeyDoc
	if err := t.createPart(ctx, "key", doc, &created); err != nil {
		return nil, err
	}
	k, err := newKey(t, &created)
	if err != nil {
		return nil, err
	}
	if err := t.keys.Append(k); err != nil {
		return nil, err
	}
	return k, nil
}

// CreateForeignKey creates a foreign key in the catalog and adds the
// server's representation of it to the table
func (t *Table) CreateForeignKey(ctx context.Context, doc *ForeignKeyDoc) (*ForeignKey, error) {
	var raw json.RawMessage
	if err := t.createPart(ctx, "foreignkey", doc, &raw); err != nil {
		return nil, err
	}

	var created ForeignKeyDoc
	var list []*ForeignKeyDoc
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) != 1 {
			return nil, fmt.Errorf("failed to create foreign key on %s.%s: expected 1 foreign key in response, got %d",
				t.schema.name, t.name, len(list))
		}
		created = *list[0]
	} else if err := json.Unmarshal(raw, &created); err != nil {
		return nil, fmt.Errorf("failed to decode created foreign key: %w", err)
	}

	fk, err := newForeignKey(t, &created)
	if err != nil {
		return nil, err
	}
	if err := t.foreignKeys.Append(fk); err != nil {
		return nil, err
	}
	m := t.schema.model
	m.registerForeignKey(fk)
	if err := fk.resolve(m); err != nil {
		t.foreignKeys.Remove(fk.constraint)
		m.unregisterForeignKey(fk)
		return nil, fmt.Errorf("failed to resolve created foreign key: %w", err)
	}
	return fk, nil
}

func (t *Table) createPart(ctx context.Context, subAPI string, doc, result any) error {
	client, err := t.schema.model.requireClient()
	if err != nil {
		return err
	}
	if err := client.Post(ctx, t.Path()+"/"+subAPI, doc, result); err != nil {
		return fmt.Errorf("failed to create %s on %s.%s: %w", subAPI, t.schema.name, t.name, err)
	}
	return nil
}

// Drop removes the table from the catalog. With cascade the foreign keys
// referencing it are dropped first.
func (t *Table) Drop(ctx context.Context, opts DropOptions) error {
	m := t.schema.model
	client, err := m.requireClient()
	if err != nil {
		return err
	}
	if cur, ok := t.schema.tables.Get(t.name); !ok || cur != t {
		return fmt.Errorf("%w: table %s.%s", ErrNotMember, t.schema.name, t.name)
	}
	if err := m.checkMappings(opts.UpdateMappings); err != nil {
		return err
	}

	if opts.Cascade {
		for _, fk := range t.ReferencedBy() {
			if fk.table == t {
				continue
			}
			if err := fk.Drop(ctx, DropOptions{UpdateMappings: opts.UpdateMappings}); err != nil {
				return err
			}
		}
	}

	if err := client.Delete(ctx, t.Path()); err != nil {
		return fmt.Errorf("failed to drop table %s.%s: %w", t.schema.name, t.name, err)
	}
	t.schema.tables.Remove(t.name)
	for _, fk := range t.foreignKeys.items {
		fk.cleanup()
	}

	if opts.UpdateMappings == NoUpdate {
		return nil
	}
	for _, fk := range t.foreignKeys.items {
		if fk.synthetic {
			continue
		}
		if err := m.pruneMappings(opts.UpdateMappings, fk.Symbol()); err != nil {
			return err
		}
	}
	return m.finishMappings(ctx, opts.UpdateMappings)
}

// Clear resets the table configuration and that of its columns, keys and
// foreign keys
func (t *Table) Clear(opts ClearOptions) {
	if opts.ACLs {
		t.ACLs = map[string]any{}
	}
	if opts.ACLBindings {
		t.ACLBindings = map[string]any{}
	}
	if opts.Annotations {
		t.Annotations = map[string]any{}
	}
	if opts.Comment {
		t.Comment = nil
	}
	for _, c := range t.columns.items {
		c.Clear(opts)
	}
	for _, k := range t.keys.items {
		k.Clear(opts)
	}
	for _, fk := range t.foreignKeys.items {
		fk.Clear(opts)
	}
}

// KeyByColumns returns the key whose columns are exactly the named columns
func (t *Table) KeyByColumns(names []string) (*Key, error) {
	want, err := t.columnSet(names)
	if err != nil {
		return nil, err
	}
	for _, k := range t.keys.items {
		if sameColumnSet(want, k.columns) {
			return k, nil
		}
	}
	return nil, fmt.Errorf("%w: key on %s.%s columns %v", ErrNotFound, t.schema.name, t.name, names)
}

// ForeignKeysByColumns returns the foreign keys whose columns are exactly the
// named columns, or with partial a superset of them
func (t *Table) ForeignKeysByColumns(names []string, partial bool) ([]*ForeignKey, error) {
	want, err := t.columnSet(names)
	if err != nil {
		return nil, err
	}
	if len(want) == 0 {
		return nil, fmt.Errorf("%w: no columns given", ErrInvalidArgument)
	}

	var found []*ForeignKey
	for _, fk := range t.foreignKeys.items {
		if sameColumnSet(want, fk.columns) || partial && subsetOf(want, fk.columns) {
			found = append(found, fk)
		}
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: foreign key on %s.%s columns %v", ErrNotFound, t.schema.name, t.name, names)
	}
	return found, nil
}

func (t *Table) columnSet(names []string) (map[*Column]bool, error) {
	set := make(map[*Column]bool, len(names))
	for _, name := range names {
		c, ok := t.columns.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: column %s.%s.%s", ErrNotFound, t.schema.name, t.name, name)
		}
		set[c] = true
	}
	return set, nil
}

func sameColumnSet(set map[*Column]bool, cols []*Column) bool {
	if !subsetOf(set, cols) {
		return false
	}
	for _, c := range cols {
		if !set[c] {
			return false
		}
	}
	return true
}

func subsetOf(set map[*Column]bool, cols []*Column) bool {
	have := make(map[*Column]bool, len(cols))
	for _, c := range cols {
		have[c] = true
	}
	for c := range set {
		if !have[c] {
			return false
		}
	}
	return true
}

func (t *Table) removeReferrer(fk *ForeignKey) {
	for i, r := range t.referencedBy {
		if r == fk {
			t.referencedBy = append(t.referencedBy[:i:i], t.referencedBy[i+1:]...)
			return
		}
	}
}
