package model

import (
	"fmt"
	"sort"
)

// TypeKind distinguishes scalar, domain and array column types
type TypeKind int

const (
	// ScalarType is a plain named type
	ScalarType TypeKind = iota
	// DomainType is a named restriction of a base type
	DomainType
	// ArrayType is an array of a base type
	ArrayType
)

// Type is a column type
type Type struct {
	Kind TypeKind
	Name string
	Base *Type
}

// TypeFromDoc builds a Type from its document form
func TypeFromDoc(d *TypeDoc) (*Type, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: missing column type", ErrInvalidArgument)
	}
	t := &Type{Name: d.TypeName}
	switch {
	case d.IsDomain:
		t.Kind = DomainType
	case d.IsArray:
		t.Kind = ArrayType
	default:
		return t, nil
	}
	base, err := TypeFromDoc(d.BaseType)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base type of %s: %w", d.TypeName, err)
	}
	t.Base = base
	return t, nil
}

// Doc returns the document form of the type
func (t *Type) Doc() *TypeDoc {
	d := &TypeDoc{TypeName: t.Name}
	switch t.Kind {
	case DomainType:
		d.IsDomain = true
		d.BaseType = t.Base.Doc()
	case ArrayType:
		d.IsArray = true
		d.BaseType = t.Base.Doc()
	}
	return d
}

var sqliteTypes = map[string]string{
	"boolean":     "boolean",
	"date":        "date",
	"float4":      "real",
	"float8":      "real",
	"int2":        "integer",
	"int4":        "integer",
	"int8":        "integer",
	"json":        "json",
	"jsonb":       "json",
	"timestamptz": "datetime",
	"timestamp":   "datetime",
}

// SQLiteType returns the SQLite column type used when exporting this type
func (t *Type) SQLiteType() string {
	switch t.Kind {
	case ArrayType:
		return "json"
	case DomainType:
		return t.Base.SQLiteType()
	}
	if s, ok := sqliteTypes[t.Name]; ok {
		return s
	}
	return "text"
}

var builtinTypes = func() map[string]*Type {
	types := map[string]*Type{}
	for _, name := range []string{
		"date", "float4", "float8", "json", "jsonb", "int2", "int4", "int8",
		"text", "timestamptz", "timestamp", "boolean",
	} {
		types[name] = &Type{Kind: ScalarType, Name: name}
	}
	for name, base := range types {
		types[name+"[]"] = &Type{Kind: ArrayType, Name: name + "[]", Base: base}
	}
	domains := map[string]string{
		"ermrest_rid":   "text",
		"ermrest_rcb":   "text",
		"ermrest_rmb":   "text",
		"ermrest_rct":   "timestamptz",
		"ermrest_rmt":   "timestamptz",
		"markdown":      "text",
		"longtext":      "text",
		"ermrest_curie": "text",
		"ermrest_uri":   "text",
		"color_rgb_hex": "text",
	}
	for name, base := range domains {
		types[name] = &Type{Kind: DomainType, Name: name, Base: types[base]}
	}
	for _, name := range []string{"serial2", "serial4", "serial8"} {
		types[name] = &Type{Kind: ScalarType, Name: name}
	}
	return types
}()

// BuiltinType returns a copy of the named builtin type
func BuiltinType(name string) (*Type, bool) {
	t, ok := builtinTypes[name]
	if !ok {
		return nil, false
	}
	return t.clone(), true
}

// BuiltinTypeNames lists the builtin type names in sorted order
func BuiltinTypeNames() []string {
	names := make([]string, 0, len(builtinTypes))
	for name := range builtinTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *Type) clone() *Type {
	c := *t
	if t.Base != nil {
		c.Base = t.Base.clone()
	}
	return &c
}
