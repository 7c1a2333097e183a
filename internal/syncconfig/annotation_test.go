package syncconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	displayTag        = "tag:misd.isi.edu,2015:display"
	visibleColumns    = "tag:isrd.isi.edu,2016:visible-columns"
	visibleFKeys      = "tag:isrd.isi.edu,2016:visible-foreign-keys"
	sourceDefinitions = "tag:isrd.isi.edu,2019:source-definitions"
)

func TestAnnotationConfigure(t *testing.T) {
	doc, err := LoadAnnotations("testdata/annotations.json")
	require.NoError(t, err)
	c, err := NewAnnotationConfigurer(doc, Options{Strict: true})
	require.NoError(t, err)

	m := loadModel(t)
	require.NoError(t, c.Configure(m, Scope{}))

	assert.Equal(t, map[string]any{"name": "Departments and People"}, m.Annotations[displayTag])
	for _, s := range m.Schemas() {
		assert.Equal(t, map[string]any{"name_style": map[string]any{"underline_space": true}},
			s.Annotations[displayTag], s.Name())
	}

	dept, err := m.Table("dept_schema", "dept")
	require.NoError(t, err)
	assert.NotContains(t, dept.Annotations, visibleColumns, "rule without a value removes the key")
	assert.NotContains(t, dept.Annotations, displayTag)
	assert.Contains(t, dept.Annotations, visibleFKeys, "ignored keys are kept")
	assert.Contains(t, dept.Annotations, sourceDefinitions)

	person, err := m.Table("person_schema", "person")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "People"}, person.Annotations[displayTag])
	assert.NotContains(t, person.Annotations, visibleColumns, "managed key with no rule is removed")
	assert.Contains(t, person.Annotations, sourceDefinitions)

	deptNo, _ := dept.Column("dept_no")
	assert.Equal(t, map[string]any{displayTag: map[string]any{"name": "Number"}}, deptNo.Annotations)
	city, _ := dept.Column("city")
	assert.Empty(t, city.Annotations)

	fk := person.ForeignKeys()[0]
	assert.Equal(t, map[string]any{displayTag: map[string]any{"name": "Department"}}, fk.Annotations)
}

func TestAnnotationConfigureScope(t *testing.T) {
	doc, err := LoadAnnotations("testdata/annotations.json")
	require.NoError(t, err)
	c, err := NewAnnotationConfigurer(doc, Options{Strict: true})
	require.NoError(t, err)

	m := loadModel(t)
	require.NoError(t, c.Configure(m, Scope{Schema: "dept_schema"}))

	assert.NotContains(t, m.Annotations, displayTag)
	dept, _ := m.Schema("dept_schema")
	assert.Contains(t, dept.Annotations, displayTag)
	person, err := m.Table("person_schema", "person")
	require.NoError(t, err)
	assert.Contains(t, person.Annotations, visibleColumns, "other schemas are untouched")
}

func TestAnnotationUnknownKeys(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{
			name: "unmanaged key present",
			doc: `
known_attributes:
  managed: ["tag:misd.isi.edu,2015:display"]
`,
			wantErr: ErrUnknownAnnotation,
		},
		{
			name: "unmanaged keys tolerated",
			doc: `
known_attributes:
  managed: ["tag:misd.isi.edu,2015:display"]
  ignore_all_unmanaged: true
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseAnnotations([]byte(tt.doc))
			require.NoError(t, err)
			c, err := NewAnnotationConfigurer(doc, Options{Strict: true})
			require.NoError(t, err)

			m := loadModel(t)
			err = c.Configure(m, Scope{})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			dept, err := m.Table("dept_schema", "dept")
			require.NoError(t, err)
			assert.Contains(t, dept.Annotations, visibleColumns)
		})
	}
}

func TestAnnotationValues(t *testing.T) {
	doc, err := ParseAnnotations([]byte(`
known_attributes:
  managed: ["tag:misd.isi.edu,2015:display"]
  ignore_all_unmanaged: true
table_annotations:
  - schema: dept_schema
    table: dept
    uri: "tag:misd.isi.edu,2015:display"
    value: {rows: 3, tags: [a, b]}
  - schema: person_schema
    table: person
    uri: "tag:misd.isi.edu,2015:display"
    value: null
`))
	require.NoError(t, err)
	c, err := NewAnnotationConfigurer(doc, Options{Strict: true})
	require.NoError(t, err)

	m := loadModel(t)
	require.NoError(t, c.Configure(m, Scope{}))

	dept, _ := m.Table("dept_schema", "dept")
	assert.Equal(t, map[string]any{"rows": float64(3), "tags": []any{"a", "b"}}, dept.Annotations[displayTag])
	person, _ := m.Table("person_schema", "person")
	value, ok := person.Annotations[displayTag]
	assert.True(t, ok, "an explicit null is a value")
	assert.Nil(t, value)
}

func TestAnnotationAmbiguousRules(t *testing.T) {
	doc := `
known_attributes:
  managed: ["tag:misd.isi.edu,2015:display"]
  ignore_all_unmanaged: true
table_annotations:
  - schema: dept_schema
    table_pattern: d
    uri: "tag:misd.isi.edu,2015:display"
    value: first
  - schema: dept_schema
    table_pattern: de
    uri: "tag:misd.isi.edu,2015:display"
    value: second
`
	parsed, err := ParseAnnotations([]byte(doc))
	require.NoError(t, err)
	strict, err := NewAnnotationConfigurer(parsed, Options{Strict: true})
	require.NoError(t, err)
	assert.ErrorIs(t, strict.Configure(loadModel(t), Scope{}), ErrAmbiguousRule)

	parsed, err = ParseAnnotations([]byte(doc))
	require.NoError(t, err)
	lenient, err := NewAnnotationConfigurer(parsed, Options{})
	require.NoError(t, err)
	m := loadModel(t)
	require.NoError(t, lenient.Configure(m, Scope{}))
	dept, _ := m.Table("dept_schema", "dept")
	assert.NotContains(t, dept.Annotations, displayTag)
}

func TestAnnotationDocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "missing managed list", doc: "known_attributes: {}\n"},
		{name: "rule without uri", doc: "known_attributes: {managed: [x]}\ntable_annotations:\n  - schema: s\n    table: t\n"},
		{name: "unknown top-level key", doc: "known_attributes: {managed: [x]}\ntable_annotation: []\n"},
		{name: "exact and pattern", doc: "known_attributes: {managed: [x]}\nschema_annotations:\n  - schema: s\n    schema_pattern: s\n    uri: x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseAnnotations([]byte(tt.doc))
			if err == nil {
				_, err = NewAnnotationConfigurer(doc, Options{})
			}
			assert.ErrorIs(t, err, ErrInvalidRule)
		})
	}
}
