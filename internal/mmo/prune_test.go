package mmo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/catalogmodel/internal/symbol"
	"github.com/tordrt/catalogmodel/internal/tag"
)

func TestPruneRemovesEveryReference(t *testing.T) {
	syms := []symbol.Symbol{
		symbol.Constraint{Schema: "dept_schema", Name: "dept_RID_key"},
		symbol.Constraint{Schema: "person_schema", Name: "person_dept_fkey"},
		symbol.Constraint{Schema: "person_schema"},
		symbol.Column{Schema: "dept_schema", Table: "dept", Name: "RCT"},
		symbol.Column{Schema: "dept_schema", Table: "dept", Name: "RMT"},
		symbol.Column{Schema: "dept_schema", Table: "dept", Name: "postal_code"},
		symbol.Column{Schema: "dept_schema", Table: "dept", Name: "street_address"},
		symbol.Column{Schema: "dept_schema", Table: "dept", Name: "country"},
		symbol.Column{Schema: "dept_schema", Table: "dept", Name: "state"},
		symbol.Column{Schema: "dept_schema", Table: "dept", Name: "city"},
		symbol.Column{Schema: "person_schema", Table: "person", Name: "last_name"},
		symbol.Column{Schema: "person_schema", Table: "person", Name: "RID"},
	}

	for _, sym := range syms {
		t.Run(sym.String(), func(t *testing.T) {
			m := loadModel(t)
			e := New(nil)
			require.NotEmpty(t, e.Find(m, sym))

			report := e.Prune(m, sym)
			assert.NotEmpty(t, report.Matches)
			assert.Empty(t, report.Unhandled)
			assert.Empty(t, e.Find(m, sym))
		})
	}
}

func TestPruneForeignKeyCascadesToSourcekeys(t *testing.T) {
	m := loadModel(t)
	e := New(nil)
	e.Prune(m, symbol.Constraint{Schema: "person_schema", Name: "person_dept_fkey"})

	person := annotation(t, m, "person_schema", "person", tag.VisibleColumns)
	assert.Equal(t, []any{"RID", "name"}, person["detailed"])
	assert.Equal(t, []any{[]any{"person_schema", "person_RID_key"}, "name"}, person["compact"])

	personDefs := annotation(t, m, "person_schema", "person", tag.SourceDefinitions)
	assert.Equal(t, map[string]any{}, personDefs["sources"])
	assert.Equal(t, []any{}, personDefs["fkeys"])
	assert.Equal(t, []any{"RID", "name", "dept"}, personDefs["columns"])

	dept := annotation(t, m, "dept_schema", "dept", tag.VisibleColumns)
	assert.Equal(t, []any{
		"RID",
		"RCT",
		map[string]any{"source": "RMT", "markdown_name": "Last Modified Time"},
		"dept_no",
		"name",
		map[string]any{"source": "street_address", "markdown_name": "Number and Street Name"},
		"postal_code",
	}, dept["detailed"])

	vfk := annotation(t, m, "dept_schema", "dept", tag.VisibleForeignKeys)
	assert.Equal(t, []any{}, vfk["*"])
	deptDefs := annotation(t, m, "dept_schema", "dept", tag.SourceDefinitions)
	assert.Equal(t, map[string]any{}, deptDefs["sources"])
}

func TestPruneSourceDefinitionColumn(t *testing.T) {
	m := loadModel(t)
	e := New(nil)

	e.Prune(m, symbol.Column{Schema: "dept_schema", Table: "dept", Name: "country"})
	defs := annotation(t, m, "dept_schema", "dept", tag.SourceDefinitions)
	assert.Equal(t, []any{"dept_no", "name", "RID"}, defs["columns"])

	e.Prune(m, symbol.Column{Schema: "person_schema", Table: "person", Name: "last_name"})
	box := annotation(t, m, "person_schema", "person", tag.SourceDefinitions)["search-box"].(map[string]any)
	assert.Equal(t, []any{}, box["or"])
}

func TestPruneDropsWaitingCitation(t *testing.T) {
	m := loadModel(t)
	dept, err := m.Table("dept_schema", "dept")
	require.NoError(t, err)
	dept.Annotations[tag.Citation] = map[string]any{
		"journal_pattern": "{{{$self.personnel}}}",
		"wait_for":        []any{"personnel"},
	}
	dept.Annotations[tag.Display] = map[string]any{"name": "Department"}

	New(nil).Prune(m, symbol.Constraint{Schema: "person_schema", Name: "person_dept_fkey"})
	assert.NotContains(t, dept.Annotations, tag.Citation)
	assert.Contains(t, dept.Annotations, tag.Display)
}

func TestPruneIsIdempotent(t *testing.T) {
	m := loadModel(t)
	e := New(nil)
	sym := symbol.Constraint{Schema: "person_schema", Name: "person_dept_fkey"}
	e.Prune(m, sym)
	snapshot, err := m.Clone()
	require.NoError(t, err)

	report := e.Prune(m, sym)
	assert.Empty(t, report.Matches)
	assert.Empty(t, m.Plan(snapshot))
}

func TestDependentSourcekeys(t *testing.T) {
	sources := map[string]any{
		"a": map[string]any{"sourcekey": "root"},
		"b": map[string]any{"source": []any{map[string]any{"sourcekey": "a"}, "RID"}},
		"c": map[string]any{"source": "x", "display": map[string]any{"wait_for": []any{"b"}}},
		"d": map[string]any{"sourcekey": "c", "display": map[string]any{"wait_for": []any{"a"}}},
		"e": map[string]any{"source": "unrelated"},
		"f": "not a definition",
		"search-box": map[string]any{"or": []any{
			map[string]any{"source": "name"},
			map[string]any{"sourcekey": "d"},
		}},
	}

	assert.Equal(t, []string{"a", "b", "c", "d", "search-box"}, dependentSourcekeys("root", sources))
	assert.Empty(t, dependentSourcekeys("e", sources))
	assert.Empty(t, dependentSourcekeys("root", nil))
}

func TestDependentSourcekeysCycle(t *testing.T) {
	sources := map[string]any{
		"a": map[string]any{"sourcekey": "root", "display": map[string]any{"wait_for": []any{"b"}}},
		"b": map[string]any{"sourcekey": "a"},
		"root": map[string]any{"display": map[string]any{"wait_for": []any{"b"}}},
	}

	assert.Equal(t, []string{"a", "b"}, dependentSourcekeys("root", sources))
}

func TestContainerRemove(t *testing.T) {
	parent := map[string]any{"list": []any{"a", []any{"s", "k"}, "a"}}
	c := Container{parent: parent, key: "list"}

	assert.True(t, c.remove([]any{"s", "k"}))
	assert.True(t, c.remove("a"))
	assert.Equal(t, []any{"a"}, parent["list"])
	assert.False(t, c.remove("missing"))

	assert.False(t, Container{parent: map[string]any{"m": map[string]any{}}, key: "m"}.remove("x"))
	assert.False(t, Container{}.remove("x"))
}
