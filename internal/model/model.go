// Package model mirrors the schema configuration of a remote catalog as an
// in-memory tree of schemas, tables, columns, keys and foreign keys.
//
// A tree is parsed from a model document in two passes. The first pass builds
// every node top-down. The second pass resolves each foreign key against the
// finished tree, since documents may reference tables that appear later.
// Foreign keys whose target cannot be found are removed and reported through
// Unresolved.
//
// Edits made locally are pushed with Apply, which diffs the tree against the
// catalog's current state and sends one update per changed node.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/tordrt/catalogmodel/internal/catalog"
	"github.com/tordrt/catalogmodel/internal/jsondoc"
	"github.com/tordrt/catalogmodel/internal/symbol"
)

// MappingUpdater rewrites symbolic references held in annotation documents
// when a model element is renamed or dropped
type MappingUpdater interface {
	ReplaceMappings(m *Model, sym, replacement symbol.Symbol) error
	PruneMappings(m *Model, sym symbol.Symbol) error
}

// UnresolvedReference records a foreign key removed during resolution
type UnresolvedReference struct {
	Schema     string
	Table      string
	Names      [][]string
	Referenced []ColumnRef
	Reason     string
}

// Model is the root of a catalog model tree
type Model struct {
	ACLs        map[string]any
	Annotations map[string]any

	schemas     *KeyedList[string, *Schema]
	pseudoFKeys map[string]*ForeignKey
	unresolved  []UnresolvedReference

	client   catalog.Client
	logger   *zap.Logger
	mappings MappingUpdater
}

// Option configures a Model
type Option func(*Model)

// WithClient binds the model to a catalog client for remote operations
func WithClient(c catalog.Client) Option {
	return func(m *Model) { m.client = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMappingUpdater sets the component used to keep annotation references
// in step with renames and drops
func WithMappingUpdater(u MappingUpdater) Option {
	return func(m *Model) { m.mappings = u }
}

// New builds a resolved model tree from doc
func New(doc *ModelDoc, opts ...Option) (*Model, error) {
	if doc == nil {
		doc = &ModelDoc{}
	}
	m := &Model{
		ACLs:        jsondoc.CloneMap(doc.ACLs),
		Annotations: jsondoc.CloneMap(doc.Annotations),
		schemas:     NewKeyedList(func(s *Schema) string { return s.name }),
		pseudoFKeys: make(map[string]*ForeignKey),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, sname := range sortedNames(doc.Schemas) {
		s, err := newSchema(m, sname, doc.Schemas[sname])
		if err != nil {
			return nil, fmt.Errorf("failed to build schema %s: %w", sname, err)
		}
		if err := m.schemas.Append(s); err != nil {
			return nil, err
		}
	}

	m.resolveAll()
	return m, nil
}

// FromJSON parses a model document
func FromJSON(data []byte, opts ...Option) (*Model, error) {
	var doc ModelDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse model document: %w", err)
	}
	return New(&doc, opts...)
}

// FromFile reads and parses a model document file
func FromFile(path string, opts ...Option) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return FromJSON(data, opts...)
}

// FromCatalog fetches the current model from the catalog
func FromCatalog(ctx context.Context, client catalog.Client, opts ...Option) (*Model, error) {
	var doc ModelDoc
	if err := client.Get(ctx, "/schema", &doc); err != nil {
		return nil, fmt.Errorf("failed to fetch catalog model: %w", err)
	}
	return New(&doc, append([]Option{WithClient(client)}, opts...)...)
}

// Clone builds an independent copy of the tree sharing the same options
func (m *Model) Clone() (*Model, error) {
	return New(m.Document(), WithClient(m.client), WithLogger(m.logger), WithMappingUpdater(m.mappings))
}

// Document serializes the tree
func (m *Model) Document() *ModelDoc {
	doc := &ModelDoc{
		ACLs:        jsondoc.CloneMap(m.ACLs),
		Annotations: jsondoc.CloneMap(m.Annotations),
		Schemas:     make(map[string]*SchemaDoc, m.schemas.Len()),
	}
	for _, s := range m.schemas.items {
		doc.Schemas[s.name] = s.Document()
	}
	return doc
}

// Client returns the catalog client, which may be nil
func (m *Model) Client() catalog.Client {
	return m.client
}

// Logger returns the model logger
func (m *Model) Logger() *zap.Logger {
	return m.logger
}

// NodeKind returns ModelNode
func (m *Model) NodeKind() NodeKind { return ModelNode }

// Path returns the catalog resource path of the model
func (m *Model) Path() string { return "/schema" }

func (m *Model) node() {}

// Schemas returns the schemas in order
func (m *Model) Schemas() []*Schema {
	return m.schemas.Items()
}

// Schema returns the named schema
func (m *Model) Schema(name string) (*Schema, bool) {
	return m.schemas.Get(name)
}

// Table returns the named table
func (m *Model) Table(sname, tname string) (*Table, error) {
	s, ok := m.schemas.Get(sname)
	if !ok {
		return nil, fmt.Errorf("%w: schema %s", ErrNotFound, sname)
	}
	t, ok := s.tables.Get(tname)
	if !ok {
		return nil, fmt.Errorf("%w: table %s.%s", ErrNotFound, sname, tname)
	}
	return t, nil
}

// Column returns the named column
func (m *Model) Column(sname, tname, cname string) (*Column, error) {
	t, err := m.Table(sname, tname)
	if err != nil {
		return nil, err
	}
	c, ok := t.columns.Get(cname)
	if !ok {
		return nil, fmt.Errorf("%w: column %s.%s.%s", ErrNotFound, sname, tname, cname)
	}
	return c, nil
}

// ForeignKey returns the foreign key with the given constraint name. An
// empty schema part looks the name up among pseudo constraints.
func (m *Model) ForeignKey(name symbol.Constraint) (*ForeignKey, error) {
	if name.Schema == "" {
		fk, ok := m.pseudoFKeys[name.Name]
		if !ok {
			return nil, fmt.Errorf("%w: foreign key %s", ErrNotFound, name)
		}
		return fk, nil
	}
	s, ok := m.schemas.Get(name.Schema)
	if !ok {
		return nil, fmt.Errorf("%w: schema %s", ErrNotFound, name.Schema)
	}
	fk, ok := s.fkeys[name.Name]
	if !ok {
		return nil, fmt.Errorf("%w: foreign key %s", ErrNotFound, name)
	}
	return fk, nil
}

// Unresolved returns the foreign keys removed because their target was missing
func (m *Model) Unresolved() []UnresolvedReference {
	return append([]UnresolvedReference(nil), m.unresolved...)
}

// CreateSchema creates a schema in the catalog and adds the server's
// representation of it to the tree
func (m *Model) CreateSchema(ctx context.Context, doc *SchemaDoc) (*Schema, error) {
	client, err := m.requireClient()
	if err != nil {
		return nil, err
	}
	if m.schemas.Has(doc.SchemaName) {
		return nil, fmt.Errorf("%w: schema %s", ErrDuplicateName, doc.SchemaName)
	}

	var created []*SchemaDoc
	if err := client.Post(ctx, m.Path(), []*SchemaDoc{doc}, &created); err != nil {
		return nil, fmt.Errorf("failed to create schema %s: %w", doc.SchemaName, err)
	}
	if len(created) != 1 {
		return nil, fmt.Errorf("failed to create schema %s: expected 1 schema in response, got %d", doc.SchemaName, len(created))
	}

	s, err := newSchema(m, doc.SchemaName, created[0])
	if err != nil {
		return nil, fmt.Errorf("failed to build schema %s: %w", doc.SchemaName, err)
	}
	if err := m.schemas.Append(s); err != nil {
		return nil, err
	}
	m.resolveAll()
	return s, nil
}

func (m *Model) requireClient() (catalog.Client, error) {
	if m.client == nil {
		return nil, ErrNoClient
	}
	return m.client, nil
}

func (m *Model) checkMappings(um UpdateMappings) error {
	if um != NoUpdate && m.mappings == nil {
		return ErrNoMappingUpdater
	}
	return nil
}

func (m *Model) replaceMappings(um UpdateMappings, sym, replacement symbol.Symbol) error {
	if um == NoUpdate {
		return nil
	}
	if err := m.mappings.ReplaceMappings(m, sym, replacement); err != nil {
		return fmt.Errorf("failed to replace %s with %s in annotations: %w", sym, replacement, err)
	}
	return nil
}

func (m *Model) pruneMappings(um UpdateMappings, sym symbol.Symbol) error {
	if um == NoUpdate {
		return nil
	}
	if err := m.mappings.PruneMappings(m, sym); err != nil {
		return fmt.Errorf("failed to prune %s from annotations: %w", sym, err)
	}
	return nil
}

func (m *Model) finishMappings(ctx context.Context, um UpdateMappings) error {
	if um != Immediate {
		return nil
	}
	return m.Apply(ctx, nil)
}

func (m *Model) registerForeignKey(fk *ForeignKey) {
	if fk.synthetic {
		return
	}
	if fk.constraint.Schema != nil {
		fk.constraint.Schema.fkeys[fk.constraint.Name] = fk
		return
	}
	m.pseudoFKeys[fk.constraint.Name] = fk
}

func (m *Model) unregisterForeignKey(fk *ForeignKey) {
	if fk.synthetic {
		return
	}
	if s := fk.constraint.Schema; s != nil {
		if s.fkeys[fk.constraint.Name] == fk {
			delete(s.fkeys, fk.constraint.Name)
		}
		return
	}
	if m.pseudoFKeys[fk.constraint.Name] == fk {
		delete(m.pseudoFKeys, fk.constraint.Name)
	}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
