package formatter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/catalogmodel/internal/catalog/catalogtest"
	"github.com/tordrt/catalogmodel/internal/mmo"
	"github.com/tordrt/catalogmodel/internal/model"
	"github.com/tordrt/catalogmodel/internal/symbol"
)

func loadModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.FromJSON(catalogtest.DeptPersonJSON())
	require.NoError(t, err)
	return m
}

func TestTextFormatterTable(t *testing.T) {
	m := loadModel(t)
	person, err := m.Table("person_schema", "person")
	require.NoError(t, err)

	var buf bytes.Buffer
	NewTextFormatter(&buf).formatTable(person)

	want := `TABLE person_schema.person
  RID: ermrest_rid NOT NULL DEFAULT "7-1"
  RCT: ermrest_rct NOT NULL DEFAULT "now()"
  RMT: ermrest_rmt NOT NULL DEFAULT "now()"
  RCB: ermrest_rcb
  RMB: ermrest_rmb
  name: text
  dept: int8
  last_name: text

  KEYS:
    person_RID_key (RID)

  REFERENCES:
    person_dept_fkey: dept → dept_schema.dept (dept_no)
`
	assert.Equal(t, want, buf.String())
}

func TestTextFormatterModel(t *testing.T) {
	m := loadModel(t)
	dept, err := m.Table("dept_schema", "dept")
	require.NoError(t, err)
	comment := "Departments"
	dept.Comment = &comment
	fk, err := m.ForeignKey(symbol.Constraint{Schema: "person_schema", Name: "person_dept_fkey"})
	require.NoError(t, err)
	cascade := "CASCADE"
	fk.OnDelete = &cascade

	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).Format(m))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "TABLE dept_schema.dept\n  -- Departments\n"))
	assert.Contains(t, out, "\n\nTABLE person_schema.person\n")
	assert.Contains(t, out, "  REFERENCED BY:\n    person_schema.person (dept) via person_dept_fkey\n")
	assert.Contains(t, out, "dept → dept_schema.dept (dept_no) ON DELETE CASCADE\n")
}

func TestMarkdownFormatter(t *testing.T) {
	m := loadModel(t)
	city, err := m.Column("dept_schema", "dept", "city")
	require.NoError(t, err)
	comment := "Where the department sits"
	city.Comment = &comment

	var buf bytes.Buffer
	require.NoError(t, NewMarkdownFormatter(&buf).Format(m))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# Catalog Model\n\n## dept_schema.dept\n\n### Columns\n\n"))
	assert.Contains(t, out, "- **RID:** ermrest_rid, UNIQUE, NOT NULL, DEFAULT \"7-1\"\n")
	assert.Contains(t, out, "- **dept_no:** int8, UNIQUE\n")
	assert.Contains(t, out, "- **city:** text, Where the department sits\n")
	assert.Contains(t, out, "### Keys\n\n- dept_RID_key on (RID)\n- dept_dept_no_key on (dept_no)\n")
	assert.Contains(t, out, "### Referenced by\n\n- person_schema.person (dept) via person_dept_fkey\n")
	assert.Contains(t, out, "### References\n\n- person_dept_fkey: dept → dept_schema.dept (dept_no)\n")
}

func TestMultiFileFormatter(t *testing.T) {
	tests := []struct {
		format   string
		ext      string
		overview string
		header   string
	}{
		{
			format:   "markdown",
			ext:      ".md",
			overview: "- **dept_schema.dept**\n- **person_schema.person** (references: dept_schema.dept)\n",
			header:   "## person_schema.person\n",
		},
		{
			format:   "text",
			ext:      ".txt",
			overview: "dept_schema.dept\nperson_schema.person (references: dept_schema.dept)\n",
			header:   "TABLE person_schema.person\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out")
			f, err := NewMultiFileFormatter(dir, tt.format)
			require.NoError(t, err)
			require.NoError(t, f.Format(loadModel(t)))

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			var names []string
			for _, e := range entries {
				names = append(names, e.Name())
			}
			assert.ElementsMatch(t, []string{
				"_overview" + tt.ext,
				"dept_schema.dept" + tt.ext,
				"person_schema.person" + tt.ext,
			}, names)

			overview, err := os.ReadFile(filepath.Join(dir, "_overview"+tt.ext))
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(string(overview), tt.overview), string(overview))

			person, err := os.ReadFile(filepath.Join(dir, "person_schema.person"+tt.ext))
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(string(person), tt.header))
		})
	}

	_, err := NewMultiFileFormatter(t.TempDir(), "html")
	assert.Error(t, err)
}

func TestPlanFormatterChanges(t *testing.T) {
	m := loadModel(t)
	existing, err := m.Clone()
	require.NoError(t, err)

	old := "old"
	other, _ := existing.Table("dept_schema", "dept")
	other.Comment = &old
	col, _ := m.Column("dept_schema", "dept", "city")
	col.ACLs = map[string]any{"select": []any{"*"}}

	var buf bytes.Buffer
	NewPlanFormatter(&buf, false).FormatChanges(m.Plan(existing))

	want := `~ table dept_schema.dept
  PUT /schema/dept_schema/table/dept
  - comment
~ column dept_schema.dept.city
  PUT /schema/dept_schema/table/dept/column/city
  + acls: {"select":["*"]}
2 change(s)
`
	assert.Equal(t, want, buf.String())

	buf.Reset()
	NewPlanFormatter(&buf, false).FormatChanges(nil)
	assert.Equal(t, "no changes\n", buf.String())
}

func TestPlanFormatterColor(t *testing.T) {
	m := loadModel(t)
	existing, err := m.Clone()
	require.NoError(t, err)
	comment := "new"
	dept, _ := m.Table("dept_schema", "dept")
	dept.Comment = &comment

	var buf bytes.Buffer
	NewPlanFormatter(&buf, true).FormatChanges(m.Plan(existing))
	assert.Contains(t, buf.String(), "\x1b[32m  + comment: \"new\"\n\x1b[0m")
}

func TestPlanFormatterMatches(t *testing.T) {
	m := loadModel(t)
	e := mmo.New(nil)

	var buf bytes.Buffer
	f := NewPlanFormatter(&buf, false)
	f.FormatMatches(e.Find(m, symbol.Constraint{Schema: "dept_schema", Name: "dept_RID_key"}))
	assert.Equal(t,
		"dept_schema.dept tag:isrd.isi.edu,2016:visible-columns [compact] [\"dept_schema\",\"dept_RID_key\"]\n1 match(es)\n",
		buf.String())

	buf.Reset()
	f.FormatReport("pruned", *e.Prune(m, symbol.Column{Schema: "dept_schema", Table: "dept", Name: "RCT"}))
	assert.Equal(t,
		"pruned:\ndept_schema.dept tag:isrd.isi.edu,2016:visible-columns [detailed] \"RCT\"\n1 match(es)\n",
		buf.String())
}
