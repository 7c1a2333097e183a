package model

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tordrt/catalogmodel/internal/jsondoc"
)

// Change is one combined update Apply sends for a node
type Change struct {
	Kind   NodeKind
	Node   string
	Path   string
	Fields map[string]any

	push func(ctx context.Context) error
}

// Plan lists the updates needed to turn existing into m, without sending
// them. A nil existing treats every mutable field as changed.
func (m *Model) Plan(existing *Model) []Change {
	var changes []Change

	if existing == nil || !jsondoc.Equivalent(m.Annotations, existing.Annotations, jsondoc.Plain) {
		value := jsondoc.CloneMap(m.Annotations)
		changes = append(changes, Change{
			Kind:   ModelNode,
			Node:   DisplayName(m),
			Path:   "/annotation",
			Fields: map[string]any{"annotations": value},
			push: func(ctx context.Context) error {
				return m.client.Put(ctx, "/annotation", value, nil)
			},
		})
	}
	if existing == nil || !jsondoc.Equivalent(m.ACLs, existing.ACLs, jsondoc.CatalogACLs) {
		value := jsondoc.CloneMap(m.ACLs)
		changes = append(changes, Change{
			Kind:   ModelNode,
			Node:   DisplayName(m),
			Path:   "/acl",
			Fields: map[string]any{"acls": value},
			push: func(ctx context.Context) error {
				return m.client.Put(ctx, "/acl", value, nil)
			},
		})
	}

	for _, s := range m.schemas.items {
		var other *Schema
		if existing != nil {
			other, _ = existing.schemas.Get(s.name)
		}
		changes = append(changes, s.plan(other)...)
	}
	return changes
}

// Apply pushes the updates listed by Plan. A nil existing fetches the
// catalog's current model first. Apply stops at the first failed update.
func (m *Model) Apply(ctx context.Context, existing *Model) error {
	client, err := m.requireClient()
	if err != nil {
		return err
	}
	if existing == nil {
		existing, err = FromCatalog(ctx, client, WithLogger(m.logger))
		if err != nil {
			return err
		}
	}

	for _, c := range m.Plan(existing) {
		m.logger.Debug("applying change",
			zap.Stringer("kind", c.Kind),
			zap.String("path", c.Path),
			zap.Strings("fields", jsondoc.SortedKeys(c.Fields)),
		)
		if err := c.push(ctx); err != nil {
			return fmt.Errorf("failed to apply %s %s: %w", c.Kind, c.Node, err)
		}
	}
	return nil
}

type fieldDiff struct {
	fields map[string]any
}

func (d *fieldDiff) compare(key string, local, remote any, method jsondoc.Method, isNew bool) {
	if isNew || !jsondoc.Equivalent(local, remote, method) {
		if d.fields == nil {
			d.fields = map[string]any{}
		}
		d.fields[key] = jsondoc.Clone(local)
	}
}

func (d *fieldDiff) comment(local, remote *string, isNew bool) {
	if isNew || !jsondoc.Equal(commentValue(local), commentValue(remote)) {
		if d.fields == nil {
			d.fields = map[string]any{}
		}
		d.fields["comment"] = commentValue(local)
	}
}

func commentValue(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func (d *fieldDiff) mapUpdate(key string) Update[map[string]any] {
	v, ok := d.fields[key]
	if !ok {
		return Keep[map[string]any]()
	}
	m, _ := v.(map[string]any)
	return Set(m)
}

func (d *fieldDiff) commentUpdate() Update[string] {
	v, ok := d.fields["comment"]
	if !ok {
		return Keep[string]()
	}
	if s, ok := v.(string); ok {
		return Set(s)
	}
	return Clear[string]()
}

func (s *Schema) plan(existing *Schema) []Change {
	isNew := existing == nil
	if isNew {
		existing = &Schema{}
	}
	var d fieldDiff
	d.comment(s.Comment, existing.Comment, isNew)
	d.compare("annotations", s.Annotations, existing.Annotations, jsondoc.Plain, isNew)
	d.compare("acls", s.ACLs, existing.ACLs, jsondoc.ACLs, isNew)

	var changes []Change
	if d.fields != nil {
		alter := SchemaAlter{
			Comment:     d.commentUpdate(),
			ACLs:        d.mapUpdate("acls"),
			Annotations: d.mapUpdate("annotations"),
		}
		changes = append(changes, Change{
			Kind:   SchemaNode,
			Node:   DisplayName(s),
			Path:   s.Path(),
			Fields: d.fields,
			push:   func(ctx context.Context) error { return s.Alter(ctx, alter) },
		})
	}

	for _, t := range s.tables.items {
		var other *Table
		if !isNew {
			other, _ = existing.tables.Get(t.name)
		}
		changes = append(changes, t.plan(other)...)
	}
	return changes
}

func (t *Table) plan(existing *Table) []Change {
	isNew := existing == nil
	if isNew {
		existing = &Table{}
	}
	var d fieldDiff
	d.comment(t.Comment, existing.Comment, isNew)
	d.compare("annotations", t.Annotations, existing.Annotations, jsondoc.Plain, isNew)
	d.compare("acls", t.ACLs, existing.ACLs, jsondoc.ACLs, isNew)
	d.compare("acl_bindings", t.ACLBindings, existing.ACLBindings, jsondoc.ACLBindings, isNew)

	var changes []Change
	if d.fields != nil {
		alter := TableAlter{
			Comment:     d.commentUpdate(),
			ACLs:        d.mapUpdate("acls"),
			ACLBindings: d.mapUpdate("acl_bindings"),
			Annotations: d.mapUpdate("annotations"),
		}
		changes = append(changes, Change{
			Kind:   TableNode,
			Node:   DisplayName(t),
			Path:   t.Path(),
			Fields: d.fields,
			push:   func(ctx context.Context) error { return t.Alter(ctx, alter) },
		})
	}

	for _, c := range t.columns.items {
		var other *Column
		if !isNew {
			other, _ = existing.columns.Get(c.name)
		}
		changes = append(changes, c.plan(other)...)
	}
	for _, k := range t.keys.items {
		var other *Key
		if !isNew && !k.synthetic {
			if name, ok := k.NameInModel(existing.schema.model); ok {
				other, _ = existing.keys.Get(name)
			}
		}
		changes = append(changes, k.plan(other)...)
	}
	for _, fk := range t.foreignKeys.items {
		var other *ForeignKey
		if !isNew && !fk.synthetic {
			if name, ok := fk.NameInModel(existing.schema.model); ok {
				other, _ = existing.foreignKeys.Get(name)
			}
		}
		changes = append(changes, fk.plan(other)...)
	}
	return changes
}

func (c *Column) plan(existing *Column) []Change {
	isNew := existing == nil
	if isNew {
		existing = &Column{}
	}
	var d fieldDiff
	d.comment(c.Comment, existing.Comment, isNew)
	d.compare("annotations", c.Annotations, existing.Annotations, jsondoc.Plain, isNew)
	d.compare("acls", c.ACLs, existing.ACLs, jsondoc.ACLs, isNew)
	d.compare("acl_bindings", c.ACLBindings, existing.ACLBindings, jsondoc.ACLBindings, isNew)
	if d.fields == nil {
		return nil
	}
	alter := ColumnAlter{
		Comment:     d.commentUpdate(),
		ACLs:        d.mapUpdate("acls"),
		ACLBindings: d.mapUpdate("acl_bindings"),
		Annotations: d.mapUpdate("annotations"),
	}
	return []Change{{
		Kind:   ColumnNode,
		Node:   DisplayName(c),
		Path:   c.Path(),
		Fields: d.fields,
		push:   func(ctx context.Context) error { return c.Alter(ctx, alter) },
	}}
}

func (k *Key) plan(existing *Key) []Change {
	isNew := existing == nil
	if isNew {
		existing = &Key{}
	}
	var d fieldDiff
	d.comment(k.Comment, existing.Comment, isNew)
	d.compare("annotations", k.Annotations, existing.Annotations, jsondoc.Plain, isNew)
	if d.fields == nil {
		return nil
	}
	alter := KeyAlter{
		Comment:     d.commentUpdate(),
		Annotations: d.mapUpdate("annotations"),
	}
	return []Change{{
		Kind:   KeyNode,
		Node:   DisplayName(k),
		Path:   k.Path(),
		Fields: d.fields,
		push:   func(ctx context.Context) error { return k.Alter(ctx, alter) },
	}}
}

func (fk *ForeignKey) plan(existing *ForeignKey) []Change {
	isNew := existing == nil
	if isNew {
		existing = &ForeignKey{}
	}
	var d fieldDiff
	d.comment(fk.Comment, existing.Comment, isNew)
	d.compare("annotations", fk.Annotations, existing.Annotations, jsondoc.Plain, isNew)
	d.compare("acls", fk.ACLs, existing.ACLs, jsondoc.ForeignKeyACLs, isNew)
	d.compare("acl_bindings", fk.ACLBindings, existing.ACLBindings, jsondoc.ACLBindings, isNew)
	if d.fields == nil {
		return nil
	}
	alter := ForeignKeyAlter{
		Comment:     d.commentUpdate(),
		ACLs:        d.mapUpdate("acls"),
		ACLBindings: d.mapUpdate("acl_bindings"),
		Annotations: d.mapUpdate("annotations"),
	}
	return []Change{{
		Kind:   ForeignKeyNode,
		Node:   DisplayName(fk),
		Path:   fk.Path(),
		Fields: d.fields,
		push:   func(ctx context.Context) error { return fk.Alter(ctx, alter) },
	}}
}
