package mmo

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/catalogmodel/internal/catalog/catalogtest"
	"github.com/tordrt/catalogmodel/internal/model"
	"github.com/tordrt/catalogmodel/internal/symbol"
	"github.com/tordrt/catalogmodel/internal/tag"
)

func remoteModel(t *testing.T) (*model.Model, *catalogtest.Server, *Engine) {
	t.Helper()
	return remoteModelFrom(t, catalogtest.DeptPerson())
}

func remoteModelFrom(t *testing.T, doc map[string]any) (*model.Model, *catalogtest.Server, *Engine) {
	t.Helper()
	srv := catalogtest.NewServer(t, doc)
	e := New(nil)
	m, err := model.FromCatalog(context.Background(), srv.Client(), model.WithMappingUpdater(e))
	require.NoError(t, err)
	srv.ResetRequests()
	return m, srv, e
}

func fetch(t *testing.T, srv *catalogtest.Server) *model.Model {
	t.Helper()
	m, err := model.FromCatalog(context.Background(), srv.Client())
	require.NoError(t, err)
	return m
}

func writePaths(srv *catalogtest.Server) []string {
	var paths []string
	for _, w := range srv.Writes() {
		paths = append(paths, w.Method+" "+w.Path)
	}
	return paths
}

func TestColumnRenameDeferred(t *testing.T) {
	ctx := context.Background()
	m, srv, e := remoteModel(t)
	col, err := m.Column("dept_schema", "dept", "postal_code")
	require.NoError(t, err)

	require.NoError(t, col.Alter(ctx, model.ColumnAlter{Name: model.Set("zip"), UpdateMappings: model.Deferred}))

	assert.Len(t, e.Find(m, symbol.Column{Schema: "dept_schema", Table: "dept", Name: "zip"}), 1)
	assert.Equal(t, []string{"PUT /schema/dept_schema/table/dept/column/postal_code"}, writePaths(srv))

	remote := fetch(t, srv)
	assert.Len(t, e.Find(remote, symbol.Column{Schema: "dept_schema", Table: "dept", Name: "postal_code"}), 1)

	require.NoError(t, m.Apply(ctx, nil))
	remote = fetch(t, srv)
	assert.Empty(t, e.Find(remote, symbol.Column{Schema: "dept_schema", Table: "dept", Name: "postal_code"}))
	assert.Len(t, e.Find(remote, symbol.Column{Schema: "dept_schema", Table: "dept", Name: "zip"}), 1)
}

func TestColumnRenameImmediate(t *testing.T) {
	ctx := context.Background()
	m, srv, e := remoteModel(t)
	col, err := m.Column("dept_schema", "dept", "name")
	require.NoError(t, err)

	require.NoError(t, col.Alter(ctx, model.ColumnAlter{Name: model.Set("title"), UpdateMappings: model.Immediate}))

	assert.Equal(t, []string{
		"PUT /schema/dept_schema/table/dept/column/name",
		"PUT /schema/dept_schema/table/dept",
		"PUT /schema/person_schema/table/person",
	}, writePaths(srv))

	remote := fetch(t, srv)
	assert.Len(t, e.Find(remote, symbol.Column{Schema: "dept_schema", Table: "dept", Name: "title"}), 4)
	assert.Empty(t, m.Plan(remote))
}

func TestForeignKeyRenameImmediate(t *testing.T) {
	ctx := context.Background()
	m, srv, e := remoteModel(t)
	fk, err := m.ForeignKey(symbol.Constraint{Schema: "person_schema", Name: "person_dept_fkey"})
	require.NoError(t, err)

	require.NoError(t, fk.Alter(ctx, model.ForeignKeyAlter{Name: model.Set("works_in"), UpdateMappings: model.Immediate}))

	remote := fetch(t, srv)
	assert.Empty(t, e.Find(remote, symbol.Constraint{Schema: "person_schema", Name: "person_dept_fkey"}))
	assert.Len(t, e.Find(remote, symbol.Constraint{Schema: "person_schema", Name: "works_in"}), 9)
	assert.Len(t, e.Find(remote, symbol.Column{Schema: "dept_schema", Table: "dept", Name: "state"}), 1)
}

func TestForeignKeyRenameDeferred(t *testing.T) {
	ctx := context.Background()
	m, srv, e := remoteModel(t)
	fk, err := m.ForeignKey(symbol.Constraint{Schema: "person_schema", Name: "person_dept_fkey"})
	require.NoError(t, err)
	old := symbol.Constraint{Schema: "person_schema", Name: "person_dept_fkey"}
	renamed := symbol.Constraint{Schema: "person_schema", Name: "works_in"}

	require.NoError(t, fk.Alter(ctx, model.ForeignKeyAlter{Name: model.Set("works_in"), UpdateMappings: model.Deferred}))

	assert.Empty(t, e.Find(m, old))
	assert.Len(t, e.Find(m, renamed), 9)

	require.NoError(t, m.Apply(ctx, nil))
	remote := fetch(t, srv)
	assert.Empty(t, e.Find(remote, old))
	assert.Len(t, e.Find(remote, renamed), 9)
	assert.Empty(t, m.Plan(remote))
}

func TestKeyRenameDeferred(t *testing.T) {
	ctx := context.Background()
	m, srv, e := remoteModel(t)
	dept, err := m.Table("dept_schema", "dept")
	require.NoError(t, err)
	key, err := dept.KeyByColumns([]string{"RID"})
	require.NoError(t, err)
	old := symbol.Constraint{Schema: "dept_schema", Name: "dept_RID_key"}
	renamed := symbol.Constraint{Schema: "dept_schema", Name: "dept_rid_pk"}

	require.NoError(t, key.Alter(ctx, model.KeyAlter{Name: model.Set("dept_rid_pk"), UpdateMappings: model.Deferred}))

	assert.Empty(t, e.Find(m, old))
	assert.Len(t, e.Find(m, renamed), 1)

	require.NoError(t, m.Apply(ctx, nil))
	remote := fetch(t, srv)
	assert.Empty(t, e.Find(remote, old))
	assert.Len(t, e.Find(remote, renamed), 1)
	assert.Empty(t, m.Plan(remote))
}

func TestPseudoForeignKeyRenameDeferred(t *testing.T) {
	ctx := context.Background()
	doc := catalogtest.DeptPerson()
	person := doc["schemas"].(map[string]any)["person_schema"].(map[string]any)["tables"].(map[string]any)["person"].(map[string]any)
	person["foreign_keys"].([]any)[0].(map[string]any)["names"] = []any{[]any{"", "pseudo_dept"}}
	person["annotations"].(map[string]any)[tag.VisibleForeignKeys] = map[string]any{
		"*": []any{[]any{"", "pseudo_dept"}},
	}
	m, srv, e := remoteModelFrom(t, doc)

	old := symbol.Constraint{Name: "pseudo_dept"}
	renamed := symbol.Constraint{Name: "pseudo_renamed"}
	fk, err := m.ForeignKey(old)
	require.NoError(t, err)
	assert.Equal(t, old, fk.Symbol())
	require.Len(t, e.Find(m, old), 1)

	require.NoError(t, fk.Alter(ctx, model.ForeignKeyAlter{Name: model.Set("pseudo_renamed"), UpdateMappings: model.Deferred}))

	assert.Equal(t, renamed, fk.Symbol())
	assert.Empty(t, e.Find(m, old))
	assert.Len(t, e.Find(m, renamed), 1)

	require.NoError(t, m.Apply(ctx, nil))
	remote := fetch(t, srv)
	assert.Empty(t, e.Find(remote, old))
	assert.Len(t, e.Find(remote, renamed), 1)
	vfk := annotation(t, remote, "person_schema", "person", tag.VisibleForeignKeys)
	assert.Equal(t, []any{[]any{"", "pseudo_renamed"}}, vfk["*"])
}

func TestSchemaRenameDeferred(t *testing.T) {
	ctx := context.Background()
	m, _, e := remoteModel(t)
	s, ok := m.Schema("person_schema")
	require.True(t, ok)

	require.NoError(t, s.Alter(ctx, model.SchemaAlter{Name: model.Set("people"), UpdateMappings: model.Deferred}))

	assert.Empty(t, e.Find(m, symbol.Constraint{Schema: "person_schema"}))
	assert.Len(t, e.Find(m, symbol.Constraint{Schema: "people", Name: "person_dept_fkey"}), 9)
	assert.Len(t, e.Find(m, symbol.Column{Schema: "dept_schema", Table: "dept", Name: "city"}), 1)
}

func TestTableTransferDeferred(t *testing.T) {
	ctx := context.Background()
	m, _, e := remoteModel(t)
	person, err := m.Table("person_schema", "person")
	require.NoError(t, err)

	require.NoError(t, person.Alter(ctx, model.TableAlter{Schema: model.Set("dept_schema"), UpdateMappings: model.Deferred}))

	assert.Empty(t, e.Find(m, symbol.Constraint{Schema: "person_schema", Name: "person_dept_fkey"}))
	assert.Len(t, e.Find(m, symbol.Constraint{Schema: "dept_schema", Name: "person_dept_fkey"}), 9)
	assert.Len(t, e.Find(m, symbol.Constraint{Schema: "dept_schema", Name: "person_RID_key"}), 1)
}

func TestForeignKeyDropImmediate(t *testing.T) {
	ctx := context.Background()
	m, srv, e := remoteModel(t)
	fk, err := m.ForeignKey(symbol.Constraint{Schema: "person_schema", Name: "person_dept_fkey"})
	require.NoError(t, err)

	require.NoError(t, fk.Drop(ctx, model.DropOptions{UpdateMappings: model.Immediate}))

	assert.Equal(t, []string{
		"DELETE /schema/person_schema/table/person/foreignkey/dept/reference/dept_schema:dept/dept_no",
		"PUT /schema/dept_schema/table/dept",
		"PUT /schema/person_schema/table/person",
	}, writePaths(srv))

	remote := fetch(t, srv)
	assert.Empty(t, e.Find(remote, symbol.Constraint{Schema: "person_schema", Name: "person_dept_fkey"}))
	defs := annotation(t, remote, "person_schema", "person", tag.SourceDefinitions)
	assert.NotContains(t, defs["sources"], "dept_size")
	assert.Empty(t, m.Plan(remote))
}

func TestTableDropDeferred(t *testing.T) {
	ctx := context.Background()
	m, srv, e := remoteModel(t)
	person, err := m.Table("person_schema", "person")
	require.NoError(t, err)

	require.NoError(t, person.Drop(ctx, model.DropOptions{UpdateMappings: model.Deferred}))
	assert.Equal(t, []string{"DELETE /schema/person_schema/table/person"}, writePaths(srv))

	assert.Empty(t, e.Find(m, symbol.Constraint{Schema: "person_schema", Name: "person_dept_fkey"}))
	vfk := annotation(t, m, "dept_schema", "dept", tag.VisibleForeignKeys)
	assert.Equal(t, []any{}, vfk["*"])

	remote := fetch(t, srv)
	assert.Len(t, e.Find(remote, symbol.Constraint{Schema: "person_schema", Name: "person_dept_fkey"}), 3)
}

func TestColumnDropCascadeImmediate(t *testing.T) {
	ctx := context.Background()
	m, srv, e := remoteModel(t)
	col, err := m.Column("person_schema", "person", "dept")
	require.NoError(t, err)

	require.NoError(t, col.Drop(ctx, model.DropOptions{Cascade: true, UpdateMappings: model.Immediate}))

	remote := fetch(t, srv)
	assert.Empty(t, e.Find(remote, symbol.Constraint{Schema: "person_schema", Name: "person_dept_fkey"}))
	assert.Empty(t, e.Find(remote, symbol.Column{Schema: "person_schema", Table: "person", Name: "dept"}))
	defs := annotation(t, remote, "person_schema", "person", tag.SourceDefinitions)
	assert.Equal(t, []any{"RID", "name"}, defs["columns"])
}

func TestImmediateApplyFailure(t *testing.T) {
	ctx := context.Background()
	m, srv, _ := remoteModel(t)
	col, err := m.Column("dept_schema", "dept", "postal_code")
	require.NoError(t, err)
	srv.FailNext(http.MethodPut, "/schema/dept_schema/table/dept", http.StatusForbidden)

	err = col.Alter(ctx, model.ColumnAlter{Name: model.Set("zip"), UpdateMappings: model.Immediate})
	require.Error(t, err)
	assert.Equal(t, "zip", col.Name())
}
