package syncconfig

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tordrt/catalogmodel/internal/jsondoc"
	"github.com/tordrt/catalogmodel/internal/model"
)

const (
	globusPrefix      = "https://auth.globus.org/"
	robotPrefixFormat = "https://%s/webauthn_robot/"
)

// ACLDocument is the rule document read by the ACL tool
type ACLDocument struct {
	Groups                map[string][]string       `yaml:"groups"`
	ACLDefinitions        map[string]map[string]any `yaml:"acl_definitions"`
	ACLBindings           map[string]any            `yaml:"acl_bindings"`
	CatalogACL            *ACLRule                  `yaml:"catalog_acl"`
	SchemaACLs            []*ACLRule                `yaml:"schema_acls" validate:"dive,required"`
	TableACLs             []*ACLRule                `yaml:"table_acls" validate:"dive,required"`
	ColumnACLs            []*ACLRule                `yaml:"column_acls" validate:"dive,required"`
	ForeignKeyACLs        []*ACLRule                `yaml:"foreign_key_acls" validate:"dive,required"`
	IgnoredSchemaPatterns []string                  `yaml:"ignored_schema_patterns" validate:"dive,required"`
}

// ACLRule sets a named ACL and bindings on the nodes its selector matches
type ACLRule struct {
	Selector           `yaml:",inline"`
	ACL                string   `yaml:"acl,omitempty"`
	NoACL              *bool    `yaml:"no_acl,omitempty"`
	ACLBindings        []string `yaml:"acl_bindings,omitempty"`
	InvalidateBindings []string `yaml:"invalidate_bindings,omitempty"`
}

func (r *ACLRule) validate() error {
	if err := r.compile(); err != nil {
		return err
	}
	if r.ACL != "" && r.NoACL != nil && *r.NoACL {
		return fmt.Errorf("%w: can't specify an acl and no_acl=true in the same rule", ErrInvalidRule)
	}
	if r.ACL == "" && r.NoACL != nil && !*r.NoACL {
		return fmt.Errorf("%w: if no_acl=false, an acl must be specified", ErrInvalidRule)
	}
	for _, b := range r.InvalidateBindings {
		for _, a := range r.ACLBindings {
			if a == b {
				return fmt.Errorf("%w: binding %s appears in both acl_bindings and invalidate_bindings", ErrInvalidRule, b)
			}
		}
	}
	return nil
}

var validate = validator.New()

// ParseACL reads an ACL rule document in YAML or JSON
func ParseACL(data []byte) (*ACLDocument, error) {
	var doc ACLDocument
	if err := decode(data, &doc); err != nil {
		return nil, err
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return &doc, nil
}

// LoadACL reads an ACL rule document from a file
func LoadACL(path string) (*ACLDocument, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ParseACL(data)
}

// ACLConfigurer sets ACLs and ACL bindings from an ACL document
type ACLConfigurer struct {
	doc         *ACLDocument
	groups      map[string][]string
	definitions map[string]map[string]any
	ignored     []*regexp.Regexp
	match       matcher
	server      string
	logger      *zap.Logger
}

// NewACLConfigurer validates the document, expands nested groups and
// resolves group names inside ACL definitions
func NewACLConfigurer(doc *ACLDocument, opts Options) (*ACLConfigurer, error) {
	c := &ACLConfigurer{
		doc:         doc,
		groups:      map[string][]string{},
		definitions: map[string]map[string]any{},
		match:       matcher{strict: opts.Strict, logger: opts.logger()},
		server:      opts.Server,
		logger:      opts.logger(),
	}

	for _, rules := range [][]*ACLRule{doc.SchemaACLs, doc.TableACLs, doc.ColumnACLs, doc.ForeignKeyACLs} {
		for _, r := range rules {
			if err := r.validate(); err != nil {
				return nil, err
			}
		}
	}
	if doc.CatalogACL != nil {
		if err := doc.CatalogACL.validate(); err != nil {
			return nil, err
		}
	}

	for _, name := range sortedGroupNames(doc.Groups) {
		if _, err := c.expandGroup(name, map[string]bool{}); err != nil {
			return nil, err
		}
	}
	for name, def := range doc.ACLDefinitions {
		expanded := make(map[string]any, len(def))
		for mode, raw := range def {
			members, err := c.resolveGroups(raw)
			if err != nil {
				return nil, fmt.Errorf("acl definition %s mode %s: %w", name, mode, err)
			}
			expanded[mode] = members
		}
		c.definitions[name] = expanded
	}

	ignored, err := ignoredSchemas(doc.IgnoredSchemaPatterns)
	if err != nil {
		return nil, err
	}
	c.ignored = ignored
	return c, nil
}

// Group returns the expanded members of a named group. A name that is not a
// group stands for itself.
func (c *ACLConfigurer) Group(name string) []string {
	if members, ok := c.groups[name]; ok {
		return members
	}
	return []string{name}
}

// expandGroup flattens nested group names into identities, in first-seen order
func (c *ACLConfigurer) expandGroup(name string, visiting map[string]bool) ([]string, error) {
	if members, ok := c.groups[name]; ok {
		return members, nil
	}
	if visiting[name] {
		return nil, fmt.Errorf("%w: group %s includes itself", ErrInvalidRule, name)
	}
	visiting[name] = true
	defer delete(visiting, name)

	seen := map[string]bool{}
	members := []string{}
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}
	for _, child := range c.doc.Groups[name] {
		if _, isGroup := c.doc.Groups[child]; !isGroup {
			if err := c.validateIdentity(child); err != nil {
				return nil, err
			}
			add(child)
			continue
		}
		nested, err := c.expandGroup(child, visiting)
		if err != nil {
			return nil, err
		}
		for _, id := range nested {
			add(id)
		}
	}
	c.groups[name] = members
	return members, nil
}

func sortedGroupNames(groups map[string][]string) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *ACLConfigurer) validateIdentity(id string) error {
	switch {
	case id == "*":
		return nil
	case strings.HasPrefix(id, globusPrefix):
		if _, err := uuid.Parse(strings.TrimPrefix(id, globusPrefix)); err != nil {
			return fmt.Errorf("%w: group %q appears to be a malformed Globus group", ErrInvalidRule, id)
		}
		return nil
	case c.server != "" && strings.HasPrefix(id, fmt.Sprintf(robotPrefixFormat, c.server)):
		if strings.TrimPrefix(id, fmt.Sprintf(robotPrefixFormat, c.server)) == "" {
			return fmt.Errorf("%w: group %q appears to be a malformed webauthn robot identity", ErrInvalidRule, id)
		}
		return nil
	}
	c.logger.Warn("can't determine format of group", zap.String("group", id))
	return nil
}

// resolveGroups expands a group name or a list of group names
func (c *ACLConfigurer) resolveGroups(raw any) ([]any, error) {
	var names []string
	switch v := raw.(type) {
	case string:
		names = []string{v}
	case []any:
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: group names must be strings, got %v", ErrInvalidRule, e)
			}
			names = append(names, s)
		}
	default:
		return nil, fmt.Errorf("%w: expected a group name or list of group names, got %v", ErrInvalidRule, raw)
	}
	out := []any{}
	for _, n := range names {
		for _, id := range c.Group(n) {
			out = append(out, id)
		}
	}
	return out, nil
}

// Configure rewrites the ACLs of every node in scope. Nodes no rule matches
// end up with empty ACLs and bindings.
func (c *ACLConfigurer) Configure(m *model.Model, scope Scope) error {
	schema, table, err := scope.resolve(m)
	if err != nil {
		return err
	}
	switch {
	case table != nil:
		return c.configureTable(table)
	case schema != nil:
		return c.configureSchema(schema)
	}

	if c.doc.CatalogACL != nil {
		acls, err := c.nodeACLs(c.doc.CatalogACL)
		if err != nil {
			return err
		}
		m.ACLs = acls
	}
	for _, s := range m.Schemas() {
		if err := c.configureSchema(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *ACLConfigurer) configureSchema(s *model.Schema) error {
	if isIgnored(c.ignored, s.Name()) {
		c.logger.Info("ignoring schema", zap.String("schema", s.Name()))
		return nil
	}
	r, ok, err := bestSchemaRule(c.match, c.doc.SchemaACLs, s.Name())
	if err != nil {
		return err
	}
	s.ACLs = map[string]any{}
	if ok {
		if s.ACLs, err = c.nodeACLs(r); err != nil {
			return err
		}
	}
	c.logger.Debug("set schema acls", zap.String("schema", s.Name()), zap.Any("acls", s.ACLs))

	for _, t := range s.Tables() {
		if err := c.configureTable(t); err != nil {
			return err
		}
	}
	return nil
}

func (c *ACLConfigurer) configureTable(t *model.Table) error {
	sname, tname := t.Schema().Name(), t.Name()
	r, ok, err := bestTableRule(c.match, c.doc.TableACLs, sname, tname)
	if err != nil {
		return err
	}
	if t.ACLs, t.ACLBindings, err = c.settings(r, ok, t); err != nil {
		return fmt.Errorf("table %s: %w", model.DisplayName(t), err)
	}
	c.logger.Debug("set table acls", zap.String("table", model.DisplayName(t)),
		zap.Any("acls", t.ACLs), zap.Any("acl_bindings", t.ACLBindings))

	for _, col := range t.Columns() {
		r, ok, err := bestColumnRule(c.match, c.doc.ColumnACLs, sname, tname, col.Name())
		if err != nil {
			return err
		}
		if col.ACLs, col.ACLBindings, err = c.settings(r, ok, t); err != nil {
			return fmt.Errorf("column %s: %w", model.DisplayName(col), err)
		}
	}
	for _, fk := range t.ForeignKeys() {
		r, ok, err := bestForeignKeyRule(c.match, c.doc.ForeignKeyACLs, fk)
		if err != nil {
			return err
		}
		if fk.ACLs, fk.ACLBindings, err = c.settings(r, ok, t); err != nil {
			return fmt.Errorf("foreign key %s: %w", model.DisplayName(fk), err)
		}
	}
	return nil
}

// settings computes the ACLs and bindings a rule gives a node of table t
func (c *ACLConfigurer) settings(r *ACLRule, ok bool, t *model.Table) (map[string]any, map[string]any, error) {
	if !ok {
		return map[string]any{}, map[string]any{}, nil
	}
	acls, err := c.nodeACLs(r)
	if err != nil {
		return nil, nil, err
	}
	bindings := map[string]any{}
	for _, name := range r.ACLBindings {
		raw, found := c.doc.ACLBindings[name]
		if !found {
			return nil, nil, fmt.Errorf("%w: no acl binding called %q", ErrInvalidRule, name)
		}
		b, err := c.expandBinding(raw, t)
		if err != nil {
			return nil, nil, fmt.Errorf("couldn't expand acl binding %s: %w", name, err)
		}
		bindings[name] = b
	}
	for _, name := range r.InvalidateBindings {
		bindings[name] = false
	}
	return acls, bindings, nil
}

func (c *ACLConfigurer) nodeACLs(r *ACLRule) (map[string]any, error) {
	acls := map[string]any{}
	if r.ACL == "" {
		return acls, nil
	}
	def, ok := c.definitions[r.ACL]
	if !ok {
		return nil, fmt.Errorf("%w: no acl set called %q", ErrInvalidRule, r.ACL)
	}
	for mode, members := range def {
		acls[mode] = jsondoc.Clone(members)
	}
	return acls, nil
}

// expandBinding resolves scope_acl group names and outbound_col projection
// steps for table t
func (c *ACLConfigurer) expandBinding(raw any, t *model.Table) (any, error) {
	binding, ok := jsondoc.Clone(raw).(map[string]any)
	if !ok {
		return jsondoc.Clone(raw), nil
	}
	if scope, ok := binding["scope_acl"]; ok {
		members, err := c.resolveGroups(scope)
		if err != nil {
			return nil, err
		}
		binding["scope_acl"] = members
	}
	projection, ok := binding["projection"].([]any)
	if !ok {
		return binding, nil
	}
	for i, step := range projection {
		stepMap, ok := step.(map[string]any)
		if !ok {
			continue
		}
		col, ok := stepMap["outbound_col"]
		if !ok {
			continue
		}
		if i != 0 {
			return nil, fmt.Errorf("%w: outbound_col is only allowed on the first projection step; use outbound instead", ErrInvalidRule)
		}
		name, ok := col.(string)
		if !ok {
			return nil, fmt.Errorf("%w: outbound_col must be a column name", ErrInvalidRule)
		}
		fk, err := singleColumnForeignKey(t, name)
		if err != nil {
			return nil, err
		}
		delete(stepMap, "outbound_col")
		stepMap["outbound"] = []any{fk.Constraint().SchemaName(), fk.Name()}
	}
	return binding, nil
}

func singleColumnForeignKey(t *model.Table, column string) (*model.ForeignKey, error) {
	for _, fk := range t.ForeignKeys() {
		cols := fk.Columns()
		if len(cols) == 1 && cols[0].Name() == column {
			return fk, nil
		}
	}
	return nil, fmt.Errorf("%w: %s(%s)", ErrNoForeignKey, model.DisplayName(t), column)
}
