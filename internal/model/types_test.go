package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeFromDoc(t *testing.T) {
	tests := []struct {
		name   string
		doc    *TypeDoc
		kind   TypeKind
		base   string
		sqlite string
	}{
		{"scalar", &TypeDoc{TypeName: "int8"}, ScalarType, "", "integer"},
		{"domain", &TypeDoc{TypeName: "ermrest_rct", IsDomain: true, BaseType: &TypeDoc{TypeName: "timestamptz"}}, DomainType, "timestamptz", "datetime"},
		{"array", &TypeDoc{TypeName: "text[]", IsArray: true, BaseType: &TypeDoc{TypeName: "text"}}, ArrayType, "text", "json"},
		{"unknown scalar", &TypeDoc{TypeName: "geometry"}, ScalarType, "", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, err := TypeFromDoc(tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, typ.Kind)
			if tt.base != "" {
				require.NotNil(t, typ.Base)
				assert.Equal(t, tt.base, typ.Base.Name)
			}
			assert.Equal(t, tt.doc, typ.Doc())
			assert.Equal(t, tt.sqlite, typ.SQLiteType())
		})
	}
}

func TestTypeFromDocErrors(t *testing.T) {
	_, err := TypeFromDoc(nil)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = TypeFromDoc(&TypeDoc{TypeName: "broken", IsDomain: true})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestBuiltinType(t *testing.T) {
	typ, ok := BuiltinType("markdown")
	require.True(t, ok)
	assert.Equal(t, DomainType, typ.Kind)
	assert.Equal(t, "text", typ.Base.Name)

	typ.Base.Name = "changed"
	again, _ := BuiltinType("markdown")
	assert.Equal(t, "text", again.Base.Name)

	arr, ok := BuiltinType("int4[]")
	require.True(t, ok)
	assert.Equal(t, ArrayType, arr.Kind)

	_, ok = BuiltinType("nope")
	assert.False(t, ok)

	names := BuiltinTypeNames()
	assert.Contains(t, names, "serial8")
	assert.Contains(t, names, "ermrest_rid")
	assert.IsIncreasing(t, names)
}

func TestMakeID(t *testing.T) {
	assert.Equal(t, "person_dept_fkey", MakeID("person", "dept", "fkey"))

	exact := strings.Repeat("a", 63)
	assert.Equal(t, exact, MakeID(exact))

	long := []string{strings.Repeat("table", 10), strings.Repeat("column", 10), "fkey"}
	id := MakeID(long...)
	assert.LessOrEqual(t, len(id), 63)
	assert.True(t, strings.HasSuffix(id, "_"+shortHash(strings.Join(long, "_"))), id)
	assert.Contains(t, id, "..")
	assert.Equal(t, id, MakeID(long...))

	unicode := MakeID(strings.Repeat("é", 40), strings.Repeat("ü", 40))
	assert.LessOrEqual(t, len(unicode), 63)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcdefghijk..", truncateID("abcdefghijklmnopqrstuvwxyz", 13))
	assert.Equal(t, "ab", truncateID("ab", 13))
}

func TestSQLIdentifier(t *testing.T) {
	assert.Equal(t, `"plain"`, SQLIdentifier("plain"))
	assert.Equal(t, `"say ""hi"""`, SQLIdentifier(`say "hi"`))
}
