package model

import (
	"context"
	"fmt"

	"github.com/tordrt/catalogmodel/internal/catalog"
	"github.com/tordrt/catalogmodel/internal/jsondoc"
	"github.com/tordrt/catalogmodel/internal/symbol"
)

// Schema is a named schema
type Schema struct {
	ACLs        map[string]any
	Annotations map[string]any
	Comment     *string

	model  *Model
	name   string
	tables *KeyedList[string, *Table]
	fkeys  map[string]*ForeignKey
}

// SchemaAlter lists the schema fields to change
type SchemaAlter struct {
	Name           Update[string]
	Comment        Update[string]
	ACLs           Update[map[string]any]
	Annotations    Update[map[string]any]
	UpdateMappings UpdateMappings
}

func newSchema(m *Model, name string, doc *SchemaDoc) (*Schema, error) {
	if doc == nil {
		doc = &SchemaDoc{}
	}
	s := &Schema{
		ACLs:        jsondoc.CloneMap(doc.ACLs),
		Annotations: jsondoc.CloneMap(doc.Annotations),
		Comment:     doc.Comment,
		model:       m,
		name:        name,
		tables:      NewKeyedList(func(t *Table) string { return t.name }),
		fkeys:       make(map[string]*ForeignKey),
	}
	for _, tname := range sortedNames(doc.Tables) {
		t, err := newTable(s, tname, doc.Tables[tname])
		if err != nil {
			return nil, fmt.Errorf("failed to build table %s: %w", tname, err)
		}
		if err := s.tables.Append(t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Name returns the schema name
func (s *Schema) Name() string { return s.name }

// Model returns the owning model
func (s *Schema) Model() *Model { return s.model }

// NodeKind returns SchemaNode
func (s *Schema) NodeKind() NodeKind { return SchemaNode }

// Path returns the catalog resource path of the schema
func (s *Schema) Path() string {
	return s.model.Path() + "/" + catalog.Escape(s.name)
}

func (s *Schema) node() {}

// Tables returns the tables in order
func (s *Schema) Tables() []*Table {
	return s.tables.Items()
}

// Table returns the named table
func (s *Schema) Table(name string) (*Table, bool) {
	return s.tables.Get(name)
}

// Document serializes the schema
func (s *Schema) Document() *SchemaDoc {
	doc := &SchemaDoc{
		SchemaName:  s.name,
		ACLs:        jsondoc.CloneMap(s.ACLs),
		Annotations: jsondoc.CloneMap(s.Annotations),
		Comment:     s.Comment,
		Tables:      make(map[string]*TableDoc, s.tables.Len()),
	}
	for _, t := range s.tables.items {
		doc.Tables[t.name] = t.Document()
	}
	return doc
}

// Alter changes the schema in the catalog and absorbs the values the
// catalog reports back. Renaming rewrites constraint references under the
// old schema name when mappings are updated.
func (s *Schema) Alter(ctx context.Context, a SchemaAlter) error {
	client, err := s.model.requireClient()
	if err != nil {
		return err
	}
	if err := s.model.checkMappings(a.UpdateMappings); err != nil {
		return err
	}

	changes := changeSet{}
	if err := changes.name("schema_name", a.Name, s.name); err != nil {
		return err
	}
	if newName, ok := changes["schema_name"].(string); ok && s.model.schemas.Has(newName) {
		return fmt.Errorf("%w: schema %s", ErrDuplicateName, newName)
	}
	changes.nullableString("comment", a.Comment)
	changes.mapping("acls", a.ACLs)
	changes.mapping("annotations", a.Annotations)

	var changed map[string]any
	if err := client.Put(ctx, s.Path(), changes, &changed); err != nil {
		return fmt.Errorf("failed to alter schema %s: %w", s.name, err)
	}

	if changes.has("comment") {
		s.Comment = changes.responseNullableString(changed, "comment")
	}
	if changes.has("acls") {
		s.ACLs = changes.responseMap(changed, "acls")
	}
	if changes.has("annotations") {
		s.Annotations = changes.responseMap(changed, "annotations")
	}

	if changes.has("schema_name") {
		old := s.name
		s.name = changes.responseString(changed, "schema_name")
		if err := s.model.schemas.Rekey(old); err != nil {
			return err
		}
		err := s.model.replaceMappings(a.UpdateMappings,
			symbol.Constraint{Schema: old}, symbol.Constraint{Schema: s.name})
		if err != nil {
			return err
		}
		return s.model.finishMappings(ctx, a.UpdateMappings)
	}
	return nil
}

// CreateTable creates a table in the catalog and adds the server's
// representation of it to the schema
func (s *Schema) CreateTable(ctx context.Context, doc *TableDoc) (*Table, error) {
	client, err := s.model.requireClient()
	if err != nil {
		return nil, err
	}
	if s.tables.Has(doc.TableName) {
		return nil, fmt.Errorf("%w: table %s.%s", ErrDuplicateName, s.name, doc.TableName)
	}

	var created TableDoc
	if err := client.Post(ctx, s.Path()+"/table", doc, &created); err != nil {
		return nil, fmt.Errorf("failed to create table %s.%s: %w", s.name, doc.TableName, err)
	}
	t, err := newTable(s, doc.TableName, &created)
	if err != nil {
		return nil, fmt.Errorf("failed to build table %s.%s: %w", s.name, doc.TableName, err)
	}
	if err := s.tables.Append(t); err != nil {
		return nil, err
	}
	s.model.resolveAll()
	return t, nil
}

// Drop removes the schema from the catalog. With cascade its tables are
// dropped first.
func (s *Schema) Drop(ctx context.Context, opts DropOptions) error {
	client, err := s.model.requireClient()
	if err != nil {
		return err
	}
	if cur, ok := s.model.schemas.Get(s.name); !ok || cur != s {
		return fmt.Errorf("%w: schema %s", ErrNotMember, s.name)
	}
	if err := s.model.checkMappings(opts.UpdateMappings); err != nil {
		return err
	}

	if opts.Cascade {
		for _, t := range s.tables.Items() {
			if err := t.Drop(ctx, opts); err != nil {
				return err
			}
		}
	}

	if err := client.Delete(ctx, s.Path()); err != nil {
		return fmt.Errorf("failed to drop schema %s: %w", s.name, err)
	}
	s.model.schemas.Remove(s.name)
	for _, t := range s.tables.items {
		for _, fk := range t.foreignKeys.items {
			fk.cleanup()
		}
	}
	return nil
}

// Clear resets the schema configuration and that of its tables
func (s *Schema) Clear(opts ClearOptions) {
	if opts.Annotations {
		s.Annotations = map[string]any{}
	}
	if opts.ACLs {
		s.ACLs = map[string]any{}
	}
	if opts.Comment {
		s.Comment = nil
	}
	for _, t := range s.tables.items {
		t.Clear(opts)
	}
}
