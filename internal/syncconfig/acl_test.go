package syncconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/catalogmodel/internal/catalog/catalogtest"
	"github.com/tordrt/catalogmodel/internal/model"
)

const (
	adminID   = "https://auth.globus.org/0b6f7e2a-7a59-4a83-8b1b-52b5c51a1c8d"
	curatorID = "https://auth.globus.org/7c5d3b8a-1e5a-4d59-9c3a-2f6c7d1e0a41"
)

func loadModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.FromJSON(catalogtest.DeptPersonJSON())
	require.NoError(t, err)
	return m
}

func newACLConfigurer(t *testing.T, strict bool) *ACLConfigurer {
	t.Helper()
	doc, err := LoadACL("testdata/acl.yaml")
	require.NoError(t, err)
	c, err := NewACLConfigurer(doc, Options{Strict: strict})
	require.NoError(t, err)
	return c
}

func TestACLGroups(t *testing.T) {
	c := newACLConfigurer(t, true)
	assert.Equal(t, []string{adminID}, c.Group("admins"))
	assert.Equal(t, []string{adminID, curatorID}, c.Group("curators"))
	assert.Equal(t, []string{"*"}, c.Group("public"))
	assert.Equal(t, []string{"someone"}, c.Group("someone"))
}

func TestACLConfigure(t *testing.T) {
	m := loadModel(t)
	require.NoError(t, newACLConfigurer(t, true).Configure(m, Scope{}))

	assert.Equal(t, map[string]any{
		"owner":     []any{adminID},
		"enumerate": []any{"*"},
	}, m.ACLs)

	dept, _ := m.Schema("dept_schema")
	assert.Equal(t, map[string]any{
		"select": []any{adminID, curatorID},
		"insert": []any{adminID},
	}, dept.ACLs, "exact schema rule wins over pattern")

	person, _ := m.Schema("person_schema")
	assert.Equal(t, map[string]any{"select": []any{"*"}}, person.ACLs)

	personTable, err := m.Table("person_schema", "person")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"select": []any{adminID, curatorID},
		"insert": []any{adminID},
	}, personTable.ACLs)
	assert.Equal(t, map[string]any{
		"self_edit": map[string]any{
			"types":     []any{"update", "delete"},
			"scope_acl": []any{adminID, curatorID},
			"projection": []any{
				map[string]any{"outbound": []any{"person_schema", "person_dept_fkey"}},
				"RID",
			},
			"projection_type": "nonnull",
		},
		"legacy": false,
	}, personTable.ACLBindings)

	deptTable, err := m.Table("dept_schema", "dept")
	require.NoError(t, err)
	assert.Empty(t, deptTable.ACLs)
	assert.Empty(t, deptTable.ACLBindings)

	rid, _ := deptTable.Column("RID")
	assert.Equal(t, map[string]any{"select": []any{"*"}}, rid.ACLs, "exact column rule wins over pattern")
	rct, _ := deptTable.Column("RCT")
	assert.Empty(t, rct.ACLs)
	city, _ := deptTable.Column("city")
	assert.Empty(t, city.ACLs)

	fk := personTable.ForeignKeys()[0]
	assert.Equal(t, map[string]any{"select": []any{"*"}}, fk.ACLs)
	assert.Empty(t, fk.ACLBindings)
}

func TestACLConfigurePlan(t *testing.T) {
	m := loadModel(t)
	existing, err := m.Clone()
	require.NoError(t, err)

	require.NoError(t, newACLConfigurer(t, true).Configure(m, Scope{}))

	var nodes []string
	for _, c := range m.Plan(existing) {
		nodes = append(nodes, c.Node)
	}
	assert.Contains(t, nodes, "dept_schema")
	assert.Contains(t, nodes, "person_schema.person")
	assert.Contains(t, nodes, "dept_schema.dept.RID")
	assert.NotContains(t, nodes, "dept_schema.dept.city")
}

func TestACLConfigureScope(t *testing.T) {
	m := loadModel(t)
	catalogACLs := m.ACLs
	require.NoError(t, newACLConfigurer(t, true).Configure(m, Scope{Schema: "person_schema", Table: "person"}))

	assert.Equal(t, catalogACLs, m.ACLs)
	dept, _ := m.Schema("dept_schema")
	assert.Empty(t, dept.ACLs)
	person, _ := m.Schema("person_schema")
	assert.Empty(t, person.ACLs, "schema is outside a table scope")

	table, err := m.Table("person_schema", "person")
	require.NoError(t, err)
	assert.Contains(t, table.ACLBindings, "self_edit")

	c := newACLConfigurer(t, true)
	assert.ErrorIs(t, c.Configure(m, Scope{Table: "person"}), ErrInvalidRule)
	assert.ErrorIs(t, c.Configure(m, Scope{Schema: "missing"}), model.ErrNotFound)
	assert.ErrorIs(t, c.Configure(m, Scope{Schema: "dept_schema", Table: "missing"}), model.ErrNotFound)
}

func TestACLIgnoredSchemas(t *testing.T) {
	doc, err := ParseACL([]byte(`
acl_definitions:
  open: {select: "*"}
schema_acls:
  - schema_pattern: ".*"
    acl: open
ignored_schema_patterns: ["person"]
`))
	require.NoError(t, err)
	c, err := NewACLConfigurer(doc, Options{Strict: true})
	require.NoError(t, err)

	m := loadModel(t)
	require.NoError(t, c.Configure(m, Scope{}))
	dept, _ := m.Schema("dept_schema")
	assert.Equal(t, map[string]any{"select": []any{"*"}}, dept.ACLs)
	person, _ := m.Schema("person_schema")
	assert.Empty(t, person.ACLs)
}

func TestACLAmbiguousRules(t *testing.T) {
	doc := `
acl_definitions:
  open: {select: "*"}
schema_acls:
  - schema_pattern: "dept"
    acl: open
  - schema_pattern: ".*_schema"
    acl: open
`
	parsed, err := ParseACL([]byte(doc))
	require.NoError(t, err)
	strict, err := NewACLConfigurer(parsed, Options{Strict: true})
	require.NoError(t, err)
	assert.ErrorIs(t, strict.Configure(loadModel(t), Scope{}), ErrAmbiguousRule)

	parsed, err = ParseACL([]byte(doc))
	require.NoError(t, err)
	lenient, err := NewACLConfigurer(parsed, Options{Strict: false})
	require.NoError(t, err)
	m := loadModel(t)
	require.NoError(t, lenient.Configure(m, Scope{}))
	dept, _ := m.Schema("dept_schema")
	assert.Empty(t, dept.ACLs, "ambiguous node is skipped")
	person, _ := m.Schema("person_schema")
	assert.Equal(t, map[string]any{"select": []any{"*"}}, person.ACLs)
}

func TestACLDocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "exact and pattern for one level",
			doc:  "schema_acls:\n  - schema: a\n    schema_pattern: a\n",
		},
		{
			name: "acl with no_acl",
			doc:  "schema_acls:\n  - schema: a\n    acl: x\n    no_acl: true\n",
		},
		{
			name: "no_acl false without acl",
			doc:  "schema_acls:\n  - schema: a\n    no_acl: false\n",
		},
		{
			name: "no_acl not a bool",
			doc:  "schema_acls:\n  - schema: a\n    no_acl: maybe\n",
		},
		{
			name: "binding both set and invalidated",
			doc:  "table_acls:\n  - schema: a\n    table: b\n    acl_bindings: [x]\n    invalidate_bindings: [x]\n",
		},
		{
			name: "unknown rule key",
			doc:  "table_acls:\n  - schema: a\n    tabel: b\n",
		},
		{
			name: "bad pattern",
			doc:  "schema_acls:\n  - schema_pattern: \"(\"\n",
		},
		{
			name: "malformed globus group",
			doc:  "groups:\n  g: [\"https://auth.globus.org/not-a-uuid\"]\n",
		},
		{
			name: "malformed robot identity",
			doc:  "groups:\n  g: [\"https://example.org/webauthn_robot/\"]\n",
		},
		{
			name: "group cycle",
			doc:  "groups:\n  a: [b]\n  b: [a]\n",
		},
		{
			name: "bad ignored schema pattern",
			doc:  "ignored_schema_patterns: [\"[\"]\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseACL([]byte(tt.doc))
			if err == nil {
				_, err = NewACLConfigurer(doc, Options{Strict: true, Server: "example.org"})
			}
			assert.ErrorIs(t, err, ErrInvalidRule)
		})
	}
}

func TestACLConfigureErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{
			name:    "unknown acl",
			doc:     "schema_acls:\n  - schema: dept_schema\n    acl: nope\n",
			wantErr: ErrInvalidRule,
		},
		{
			name:    "unknown binding",
			doc:     "table_acls:\n  - schema: dept_schema\n    table: dept\n    acl_bindings: [nope]\n",
			wantErr: ErrInvalidRule,
		},
		{
			name: "outbound_col without foreign key",
			doc: `
acl_bindings:
  b:
    projection: [{outbound_col: name}, RID]
table_acls:
  - schema: person_schema
    table: person
    acl_bindings: [b]
`,
			wantErr: ErrNoForeignKey,
		},
		{
			name: "outbound_col past the first step",
			doc: `
acl_bindings:
  b:
    projection: [{outbound: [person_schema, person_dept_fkey]}, {outbound_col: dept}, RID]
table_acls:
  - schema: person_schema
    table: person
    acl_bindings: [b]
`,
			wantErr: ErrInvalidRule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseACL([]byte(tt.doc))
			require.NoError(t, err)
			c, err := NewACLConfigurer(doc, Options{Strict: true})
			require.NoError(t, err)
			assert.ErrorIs(t, c.Configure(loadModel(t), Scope{}), tt.wantErr)
		})
	}
}

func TestACLValidIdentities(t *testing.T) {
	doc, err := ParseACL([]byte(`
groups:
  robots: ["https://example.org/webauthn_robot/loader"]
  others: ["https://idp.example.org/some-group", "*"]
`))
	require.NoError(t, err)
	c, err := NewACLConfigurer(doc, Options{Strict: true, Server: "example.org"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.org/webauthn_robot/loader"}, c.Group("robots"))
	assert.Equal(t, []string{"https://idp.example.org/some-group", "*"}, c.Group("others"))
}
