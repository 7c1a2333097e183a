package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tordrt/catalogmodel/internal/catalog/catalogtest"
	"github.com/tordrt/catalogmodel/internal/symbol"
)

func loadFixture(t *testing.T, opts ...Option) *Model {
	t.Helper()
	m, err := FromJSON(catalogtest.DeptPersonJSON(), opts...)
	require.NoError(t, err)
	return m
}

func marshal(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestRoundTrip(t *testing.T) {
	m := loadFixture(t)
	assert.JSONEq(t, string(catalogtest.DeptPersonJSON()), marshal(t, m.Document()))

	clone, err := m.Clone()
	require.NoError(t, err)
	assert.JSONEq(t, marshal(t, m.Document()), marshal(t, clone.Document()))
}

func TestTreeStructure(t *testing.T) {
	m := loadFixture(t)

	require.Len(t, m.Schemas(), 2)
	assert.Equal(t, "dept_schema", m.Schemas()[0].Name())
	assert.Equal(t, "person_schema", m.Schemas()[1].Name())

	dept, err := m.Table("dept_schema", "dept")
	require.NoError(t, err)
	person, err := m.Table("person_schema", "person")
	require.NoError(t, err)

	assert.Equal(t, "RID", dept.Columns()[0].Name())
	assert.Len(t, dept.Columns(), 12)

	col, err := m.Column("dept_schema", "dept", "dept_no")
	require.NoError(t, err)
	assert.Equal(t, "int8", col.Type.Name)
	assert.True(t, col.NullOK)

	rid, _ := dept.Column("RID")
	assert.False(t, rid.NullOK)
	assert.Equal(t, DomainType, rid.Type.Kind)

	_, err = m.Table("dept_schema", "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.Column("nope", "dept", "RID")
	require.ErrorIs(t, err, ErrNotFound)

	fk, err := m.ForeignKey(symbol.Constraint{Schema: "person_schema", Name: "person_dept_fkey"})
	require.NoError(t, err)
	assert.Same(t, person, fk.Table())
	assert.Same(t, dept, fk.PKTable())
	assert.Equal(t, []string{"dept_no"}, columnNames(fk.ReferencedColumns()))
	assert.Equal(t, []*ForeignKey{fk}, dept.ReferencedBy())
	assert.Empty(t, person.ReferencedBy())

	deptCol, _ := person.Column("dept")
	deptNo, _ := dept.Column("dept_no")
	assert.Equal(t, map[*Column]*Column{deptCol: deptNo}, fk.ColumnMap())

	_, err = m.ForeignKey(symbol.Constraint{Schema: "person_schema", Name: "missing"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPaths(t *testing.T) {
	m := loadFixture(t)
	dept, _ := m.Table("dept_schema", "dept")
	fk, _ := m.ForeignKey(symbol.Constraint{Schema: "person_schema", Name: "person_dept_fkey"})
	key, err := dept.KeyByColumns([]string{"dept_no"})
	require.NoError(t, err)
	col, _ := dept.Column("postal_code")

	tests := []struct {
		node    Node
		path    string
		display string
	}{
		{m, "/schema", "catalog"},
		{dept.Schema(), "/schema/dept_schema", "dept_schema"},
		{dept, "/schema/dept_schema/table/dept", "dept_schema.dept"},
		{col, "/schema/dept_schema/table/dept/column/postal_code", "dept_schema.dept.postal_code"},
		{key, "/schema/dept_schema/table/dept/key/dept_no", "dept_schema.dept key dept_schema:dept_dept_no_key"},
		{fk, "/schema/person_schema/table/person/foreignkey/dept/reference/dept_schema:dept/dept_no",
			"person_schema.person foreign key person_schema:person_dept_fkey"},
	}
	for _, tt := range tests {
		t.Run(tt.node.NodeKind().String(), func(t *testing.T) {
			assert.Equal(t, tt.path, tt.node.Path())
			assert.Equal(t, tt.display, DisplayName(tt.node))
		})
	}
}

func TestEscapedPaths(t *testing.T) {
	doc := &ModelDoc{Schemas: map[string]*SchemaDoc{
		"my schema": {Tables: map[string]*TableDoc{
			"a/b": {ColumnDefinitions: []*ColumnDoc{{Name: "x:y", Type: &TypeDoc{TypeName: "text"}}}},
		}},
	}}
	m, err := New(doc)
	require.NoError(t, err)
	c, err := m.Column("my schema", "a/b", "x:y")
	require.NoError(t, err)
	assert.Equal(t, "/schema/my%20schema/table/a%2Fb/column/x%3Ay", c.Path())
}

func TestUnresolvedForeignKeys(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	doc := catalogtest.DeptPerson()
	schemas := doc["schemas"].(map[string]any)
	delete(schemas, "dept_schema")

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	m, err := FromJSON(data, WithLogger(zap.New(core)))
	require.NoError(t, err)

	person, err := m.Table("person_schema", "person")
	require.NoError(t, err)
	assert.Empty(t, person.ForeignKeys())

	_, err = m.ForeignKey(symbol.Constraint{Schema: "person_schema", Name: "person_dept_fkey"})
	require.ErrorIs(t, err, ErrNotFound)

	unresolved := m.Unresolved()
	require.Len(t, unresolved, 1)
	assert.Equal(t, "person_schema", unresolved[0].Schema)
	assert.Equal(t, "person", unresolved[0].Table)
	assert.Equal(t, [][]string{{"person_schema", "person_dept_fkey"}}, unresolved[0].Names)
	assert.Equal(t, "dept_schema", unresolved[0].Referenced[0].SchemaName)
	assert.Contains(t, unresolved[0].Reason, "schema dept_schema does not exist")

	assert.Equal(t, 1, logs.FilterMessage("dropping unresolved foreign key").Len())

	out := m.Document()
	assert.Empty(t, out.Schemas["person_schema"].Tables["person"].ForeignKeys)

	again, err := New(out)
	require.NoError(t, err)
	assert.Empty(t, again.Unresolved())
	assert.JSONEq(t, marshal(t, out), marshal(t, again.Document()))
}

func TestResolveFailures(t *testing.T) {
	ref := func(s, tbl, c string) ColumnRef { return ColumnRef{SchemaName: s, TableName: tbl, ColumnName: c} }
	tests := []struct {
		name   string
		refs   []ColumnRef
		reason string
	}{
		{"missing table", []ColumnRef{ref("s", "nope", "id")}, "table s.nope does not exist"},
		{"missing column", []ColumnRef{ref("s", "target", "nope")}, "column s.target.nope does not exist"},
		{"arity", []ColumnRef{ref("s", "target", "id"), ref("s", "target", "id")}, "1 referencing columns but 2"},
		{"no references", nil, "no referenced columns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := &TypeDoc{TypeName: "text"}
			doc := &ModelDoc{Schemas: map[string]*SchemaDoc{"s": {Tables: map[string]*TableDoc{
				"target": {ColumnDefinitions: []*ColumnDoc{{Name: "id", Type: text}}},
				"source": {
					ColumnDefinitions: []*ColumnDoc{{Name: "ref", Type: text}},
					ForeignKeys: []*ForeignKeyDoc{{
						ForeignKeyColumns: []ColumnRef{{ColumnName: "ref"}},
						ReferencedColumns: tt.refs,
						Names:             [][]string{{"s", "source_ref_fkey"}},
					}},
				},
			}}}}
			m, err := New(doc)
			require.NoError(t, err)
			require.Len(t, m.Unresolved(), 1)
			assert.Contains(t, m.Unresolved()[0].Reason, tt.reason)
		})
	}
}

func TestConstraintNames(t *testing.T) {
	text := &TypeDoc{TypeName: "text"}
	key := func(names [][]string) *KeyDoc { return &KeyDoc{UniqueColumns: []string{"id"}, Names: names} }
	doc := &ModelDoc{Schemas: map[string]*SchemaDoc{"s": {Tables: map[string]*TableDoc{
		"t": {
			Kind:              "table",
			ColumnDefinitions: []*ColumnDoc{{Name: "id", Type: text}},
			Keys: []*KeyDoc{
				key([][]string{{"s", "owned"}}),
				key([][]string{{"", "pseudo"}}),
				key(ConstraintNames("placeholder_owned")),
				key([][]string{{"elsewhere", "foreign"}}),
				key(nil),
			},
		},
		"v": {
			Kind:              "view",
			ColumnDefinitions: []*ColumnDoc{{Name: "id", Type: text}},
			Keys:              []*KeyDoc{key(ConstraintNames("view_key"))},
		},
	}}}}
	m, err := New(doc)
	require.NoError(t, err)
	tbl, _ := m.Table("s", "t")
	s, _ := m.Schema("s")

	keys := tbl.Keys()
	require.Len(t, keys, 5)

	assert.Equal(t, ConstraintName{Schema: s, Name: "owned"}, keys[0].Constraint())
	assert.Equal(t, ConstraintName{Name: "pseudo"}, keys[1].Constraint())
	assert.Equal(t, ConstraintName{Schema: s, Name: "placeholder_owned"}, keys[2].Constraint())
	for _, k := range keys[3:] {
		assert.True(t, k.Synthetic())
		assert.Nil(t, k.Constraint().Schema)
		assert.Equal(t, [][]string{}, k.Document().Names)
	}
	assert.NotEqual(t, keys[3].Name(), keys[4].Name())

	view, _ := m.Table("s", "v")
	assert.Equal(t, ConstraintName{Name: "view_key"}, view.Keys()[0].Constraint())

	assert.Equal(t, symbol.Constraint{Schema: "s", Name: "owned"}, keys[0].Symbol())
	assert.Equal(t, symbol.Constraint{Name: "pseudo"}, keys[1].Symbol())

	got, ok := tbl.Key(ConstraintName{Schema: s, Name: "owned"})
	require.True(t, ok)
	assert.Same(t, keys[0], got)
}

func TestKeyAndForeignKeyLookup(t *testing.T) {
	m := loadFixture(t)
	dept, _ := m.Table("dept_schema", "dept")
	person, _ := m.Table("person_schema", "person")

	key, err := dept.KeyByColumns([]string{"RID"})
	require.NoError(t, err)
	assert.Equal(t, "dept_RID_key", key.Name())

	_, err = dept.KeyByColumns([]string{"name"})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = dept.KeyByColumns([]string{"missing"})
	require.ErrorIs(t, err, ErrNotFound)

	fks, err := person.ForeignKeysByColumns([]string{"dept"}, false)
	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, "person_dept_fkey", fks[0].Name())

	_, err = person.ForeignKeysByColumns(nil, true)
	require.ErrorIs(t, err, ErrInvalidArgument)

	other, _ := m.Schema("dept_schema")
	name, ok := key.NameInModel(m)
	require.True(t, ok)
	assert.Same(t, other, name.Schema)

	empty, err := New(&ModelDoc{})
	require.NoError(t, err)
	_, ok = key.NameInModel(empty)
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	m := loadFixture(t)
	fk, _ := m.ForeignKey(symbol.Constraint{Schema: "person_schema", Name: "person_dept_fkey"})
	dept, _ := m.Table("dept_schema", "dept")
	comment := "kept"
	dept.Comment = &comment

	m.Clear(DefaultClearOptions())

	assert.Empty(t, m.ACLs)
	assert.Empty(t, dept.Annotations)
	assert.Equal(t, &comment, dept.Comment)
	assert.Equal(t, DefaultForeignKeyACLs, fk.ACLs)

	m.Clear(ClearOptions{Comment: true})
	assert.Nil(t, dept.Comment)
}

func TestNodeKindString(t *testing.T) {
	assert.Equal(t, "foreign key", ForeignKeyNode.String())
	assert.Equal(t, "catalog", ModelNode.String())
	assert.Equal(t, "NodeKind(42)", NodeKind(42).String())
}

func TestSQLiteDDL(t *testing.T) {
	m := loadFixture(t)
	person, _ := m.Table("person_schema", "person")

	want := `CREATE TABLE IF NOT EXISTS "person_schema:person" (
  "RID" text NOT NULL,
  "RCT" datetime NOT NULL,
  "RMT" datetime NOT NULL,
  "RCB" text,
  "RMB" text,
  "name" text,
  "dept" integer,
  "last_name" text,
  UNIQUE ("RID")
);
`
	assert.Equal(t, want, person.SQLiteDDL(true))
	assert.NotContains(t, person.SQLiteDDL(false), "UNIQUE")
}
