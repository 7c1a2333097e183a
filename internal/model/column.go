package model

import (
	"context"
	"fmt"

	"github.com/tordrt/catalogmodel/internal/catalog"
	"github.com/tordrt/catalogmodel/internal/jsondoc"
	"github.com/tordrt/catalogmodel/internal/symbol"
)

// Column is a named table column
type Column struct {
	Type        *Type
	NullOK      bool
	Default     any
	Comment     *string
	ACLs        map[string]any
	ACLBindings map[string]any
	Annotations map[string]any

	table *Table
	name  string
}

// ColumnAlter lists the column fields to change
type ColumnAlter struct {
	Name           Update[string]
	Type           Update[*Type]
	NullOK         Update[bool]
	Default        Update[any]
	Comment        Update[string]
	ACLs           Update[map[string]any]
	ACLBindings    Update[map[string]any]
	Annotations    Update[map[string]any]
	UpdateMappings UpdateMappings
}

func newColumn(t *Table, doc *ColumnDoc) (*Column, error) {
	if doc == nil || doc.Name == "" {
		return nil, fmt.Errorf("%w: column without a name in %s", ErrInvalidArgument, t.name)
	}
	typ, err := TypeFromDoc(doc.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to parse type of column %s: %w", doc.Name, err)
	}
	c := &Column{
		Type:        typ,
		NullOK:      true,
		Default:     jsondoc.Clone(doc.Default),
		Comment:     doc.Comment,
		ACLs:        jsondoc.CloneMap(doc.ACLs),
		ACLBindings: jsondoc.CloneMap(doc.ACLBindings),
		Annotations: jsondoc.CloneMap(doc.Annotations),
		table:       t,
		name:        doc.Name,
	}
	if doc.NullOK != nil {
		c.NullOK = *doc.NullOK
	}
	return c, nil
}

// Name returns the column name
func (c *Column) Name() string { return c.name }

// Table returns the owning table
func (c *Column) Table() *Table { return c.table }

// NodeKind returns ColumnNode
func (c *Column) NodeKind() NodeKind { return ColumnNode }

// Path returns the catalog resource path of the column
func (c *Column) Path() string {
	return c.table.Path() + "/column/" + catalog.Escape(c.name)
}

func (c *Column) node() {}

// Symbol returns the column symbol used in annotation references
func (c *Column) Symbol() symbol.Column {
	return symbol.Column{Schema: c.table.schema.name, Table: c.table.name, Name: c.name}
}

// Ref returns the qualified column reference
func (c *Column) Ref() ColumnRef {
	return ColumnRef{SchemaName: c.table.schema.name, TableName: c.table.name, ColumnName: c.name}
}

// Document serializes the column
func (c *Column) Document() *ColumnDoc {
	nullok := c.NullOK
	return &ColumnDoc{
		Name:        c.name,
		Type:        c.Type.Doc(),
		NullOK:      &nullok,
		Default:     jsondoc.Clone(c.Default),
		Comment:     c.Comment,
		ACLs:        jsondoc.CloneMap(c.ACLs),
		ACLBindings: jsondoc.CloneMap(c.ACLBindings),
		Annotations: jsondoc.CloneMap(c.Annotations),
	}
}

// Alter changes the column in the catalog and absorbs the values the
// catalog reports back. Renaming rewrites column references when mappings
// are updated.
func (c *Column) Alter(ctx context.Context, a ColumnAlter) error {
	m := c.table.schema.model
	client, err := m.requireClient()
	if err != nil {
		return err
	}
	if err := m.checkMappings(a.UpdateMappings); err != nil {
		return err
	}

	changes := changeSet{}
	if err := changes.name("name", a.Name, c.name); err != nil {
		return err
	}
	if newName, ok := changes["name"].(string); ok && c.table.columns.Has(newName) {
		return fmt.Errorf("%w: column %s", ErrDuplicateName, newName)
	}
	if a.Type.IsClear() || a.NullOK.IsClear() {
		return fmt.Errorf("%w: column type and nullok cannot be cleared", ErrInvalidArgument)
	}
	if typ, ok := a.Type.Value(); ok {
		if typ == nil {
			return fmt.Errorf("%w: nil column type", ErrInvalidArgument)
		}
		changes["type"] = typ.Doc()
	}
	if nullok, ok := a.NullOK.Value(); ok {
		changes["nullok"] = nullok
	}
	if a.Default.IsClear() {
		changes["default"] = nil
	} else if v, ok := a.Default.Value(); ok {
		changes["default"] = jsondoc.Clone(v)
	}
	changes.nullableString("comment", a.Comment)
	changes.mapping("acls", a.ACLs)
	changes.mapping("acl_bindings", a.ACLBindings)
	changes.mapping("annotations", a.Annotations)

	var changed map[string]any
	if err := client.Put(ctx, c.Path(), changes, &changed); err != nil {
		return fmt.Errorf("failed to alter column %s: %w", c.name, err)
	}

	if changes.has("type") {
		if raw, ok := changed["type"]; ok {
			var doc TypeDoc
			if err := jsondoc.Decode(raw, &doc); err == nil {
				if typ, err := TypeFromDoc(&doc); err == nil {
					c.Type = typ
				}
			}
		} else {
			typ, _ := a.Type.Value()
			c.Type = typ
		}
	}
	if changes.has("nullok") {
		if v, ok := changes.response(changed, "nullok").(bool); ok {
			c.NullOK = v
		}
	}
	if changes.has("default") {
		c.Default = jsondoc.Clone(changes.response(changed, "default"))
	}
	if changes.has("comment") {
		c.Comment = changes.responseNullableString(changed, "comment")
	}
	if changes.has("acls") {
		c.ACLs = changes.responseMap(changed, "acls")
	}
	if changes.has("acl_bindings") {
		c.ACLBindings = changes.responseMap(changed, "acl_bindings")
	}
	if changes.has("annotations") {
		c.Annotations = changes.responseMap(changed, "annotations")
	}

	if changes.has("name") {
		old := c.Symbol()
		c.name = changes.responseString(changed, "name")
		if err := c.table.columns.Rekey(old.Name); err != nil {
			return err
		}
		if err := m.replaceMappings(a.UpdateMappings, old, c.Symbol()); err != nil {
			return err
		}
		return m.finishMappings(ctx, a.UpdateMappings)
	}
	return nil
}

// Drop removes the column from the catalog. With cascade the foreign keys
// and keys that include it are dropped first.
func (c *Column) Drop(ctx context.Context, opts DropOptions) error {
	m := c.table.schema.model
	client, err := m.requireClient()
	if err != nil {
		return err
	}
	if cur, ok := c.table.columns.Get(c.name); !ok || cur != c {
		return fmt.Errorf("%w: column %s", ErrNotMember, c.name)
	}
	if err := m.checkMappings(opts.UpdateMappings); err != nil {
		return err
	}

	if opts.Cascade {
		for _, fk := range c.table.foreignKeys.Items() {
			if containsColumn(fk.columns, c) {
				if err := fk.Drop(ctx, DropOptions{UpdateMappings: opts.UpdateMappings}); err != nil {
					return err
				}
			}
		}
		for _, k := range c.table.keys.Items() {
			if containsColumn(k.columns, c) {
				if err := k.Drop(ctx, DropOptions{Cascade: true, UpdateMappings: opts.UpdateMappings}); err != nil {
					return err
				}
			}
		}
	}

	if err := client.Delete(ctx, c.Path()); err != nil {
		return fmt.Errorf("failed to drop column %s: %w", c.name, err)
	}
	c.table.columns.Remove(c.name)

	if err := m.pruneMappings(opts.UpdateMappings, c.Symbol()); err != nil {
		return err
	}
	return m.finishMappings(ctx, opts.UpdateMappings)
}

// Clear resets the column configuration
func (c *Column) Clear(opts ClearOptions) {
	if opts.ACLs {
		c.ACLs = map[string]any{}
	}
	if opts.ACLBindings {
		c.ACLBindings = map[string]any{}
	}
	if opts.Annotations {
		c.Annotations = map[string]any{}
	}
	if opts.Comment {
		c.Comment = nil
	}
}

func containsColumn(cols []*Column, c *Column) bool {
	for _, col := range cols {
		if col == c {
			return true
		}
	}
	return false
}
