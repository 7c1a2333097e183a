// Package jsondoc compares and copies JSON-shaped values: maps with string
// keys, ordered lists, strings, numbers, booleans and null.
package jsondoc

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Method selects a canonicalization applied before comparing two documents
type Method int

const (
	// Plain compares documents structurally with no canonicalization
	Plain Method = iota
	// ACLs sorts each principal list of an ACL map
	ACLs
	// CatalogACLs fills the catalog ACL modes with [] before comparing as ACLs
	CatalogACLs
	// ForeignKeyACLs compares foreign key ACLs the same way as ACLs
	ForeignKeyACLs
	// ACLBindings fills server-defaulted binding fields before comparing
	ACLBindings
)

var catalogACLModes = []string{"owner", "read", "write", "insert", "update", "delete"}

// Equivalent reports whether two documents are structurally equivalent.
//
// Mappings compare irrespective of key order, lists compare pairwise in
// order and scalars compare by value. The method fills in defaults the
// catalog service applies silently so they do not show up as differences.
func Equivalent(a, b any, method Method) bool {
	switch method {
	case ACLs, ForeignKeyACLs:
		ma, ok := asMap(a)
		if !ok {
			return false
		}
		mb, ok := asMap(b)
		if !ok {
			return false
		}
		return Equal(canonACLs(ma), canonACLs(mb))
	case CatalogACLs:
		ma, ok := asMap(a)
		if !ok {
			return false
		}
		mb, ok := asMap(b)
		if !ok {
			return false
		}
		return Equivalent(canonCatalogACLs(ma), canonCatalogACLs(mb), ACLs)
	case ACLBindings:
		ma, ok := asMap(a)
		if !ok {
			return false
		}
		mb, ok := asMap(b)
		if !ok {
			return false
		}
		return Equal(canonBindings(ma), canonBindings(mb))
	default:
		return Equal(a, b)
	}
}

// Equal reports plain structural equality of two documents
func Equal(a, b any) bool {
	a, b = Normalize(a), Normalize(b)

	switch va := a.(type) {
	case map[string]any:
		vb, ok := b.(map[string]any)
		if !ok || len(va) != len(vb) {
			return false
		}
		for k, ea := range va {
			eb, found := vb[k]
			if !found || !Equal(ea, eb) {
				return false
			}
		}
		return true
	case []any:
		vb, ok := b.([]any)
		if !ok || len(va) != len(vb) {
			return false
		}
		for i := range va {
			if !Equal(va[i], vb[i]) {
				return false
			}
		}
		return true
	case float64:
		vb, ok := b.(float64)
		return ok && va == vb
	case nil:
		return b == nil
	default:
		return a == b
	}
}

// Normalize converts Go container and numeric types into the shapes
// produced by encoding/json so documents built in code compare equal to
// decoded ones.
func Normalize(v any) any {
	switch tv := v.(type) {
	case nil, string, bool, float64, map[string]any, []any:
		return v
	case int:
		return float64(tv)
	case int64:
		return float64(tv)
	case int32:
		return float64(tv)
	case float32:
		return float64(tv)
	case []string:
		out := make([]any, len(tv))
		for i, s := range tv {
			out[i] = s
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(tv))
		for k, s := range tv {
			out[k] = s
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Convert(reflect.TypeOf(float64(0))).Float())
	case reflect.String:
		return rv.String()
	}
	return v
}

// Clone returns a deep copy of a document
func Clone(v any) any {
	switch tv := Normalize(v).(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			out[k] = Clone(e)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = Clone(e)
		}
		return out
	default:
		return tv
	}
}

// CloneMap deep-copies a mapping document, returning an empty map for nil
func CloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Clone(v)
	}
	return out
}

// Decode converts a generic document into a typed value through its JSON form
func Decode(v any, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// ToGeneric converts a typed value into its generic JSON document form
func ToGeneric(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return out, nil
}

// SortedKeys returns the keys of a mapping in lexical order
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asMap(v any) (map[string]any, bool) {
	m, ok := Normalize(v).(map[string]any)
	return m, ok
}

func canonACLs(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for mode, principals := range m {
		list, ok := Normalize(principals).([]any)
		if !ok {
			out[mode] = principals
			continue
		}
		sorted := append([]any(nil), list...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return fmt.Sprint(sorted[i]) < fmt.Sprint(sorted[j])
		})
		out[mode] = sorted
	}
	return out
}

func canonCatalogACLs(m map[string]any) map[string]any {
	out := make(map[string]any, len(catalogACLModes))
	for _, mode := range catalogACLModes {
		if v, ok := m[mode]; ok {
			out[mode] = v
		} else {
			out[mode] = []any{}
		}
	}
	return out
}

func canonBindings(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for name, binding := range m {
		b, ok := asMap(binding)
		if !ok {
			out[name] = binding
			continue
		}
		scope, found := b["scope_acl"]
		if !found {
			scope = []any{"*"}
		}
		out[name] = map[string]any{
			"projection":      b["projection"],
			"projection_type": b["projection_type"],
			"types":           b["types"],
			"scope_acl":       scope,
		}
	}
	return out
}
