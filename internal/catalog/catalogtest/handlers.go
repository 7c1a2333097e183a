package catalogtest

import (
	"context"
	"net/http"

	"github.com/tordrt/catalogmodel/internal/jsondoc"
)

type bodyKey struct{}

func withBody(ctx context.Context, body any) context.Context {
	return context.WithValue(ctx, bodyKey{}, body)
}

func bodyMap(r *http.Request) map[string]any {
	m, _ := r.Context().Value(bodyKey{}).(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func setDefault(m map[string]any, key string, value any) {
	if v, ok := m[key]; !ok || v == nil {
		m[key] = value
	}
}

func (s *Server) schemas() map[string]any {
	return asMap(s.doc["schemas"])
}

func (s *Server) lookupTable(sname, tname string) map[string]any {
	schema := asMap(s.schemas()[sname])
	if schema == nil {
		return nil
	}
	return asMap(asMap(schema["tables"])[tname])
}

// eachTable visits every table document with its schema name
func (s *Server) eachTable(fn func(sname string, table map[string]any)) {
	for sname, sdoc := range s.schemas() {
		for _, tdoc := range asMap(asMap(sdoc)["tables"]) {
			fn(sname, asMap(tdoc))
		}
	}
}

// eachReference visits every referenced column entry of every foreign key
func (s *Server) eachReference(fn func(ref map[string]any)) {
	s.eachTable(func(_ string, table map[string]any) {
		for _, fk := range asList(table["foreign_keys"]) {
			for _, ref := range asList(asMap(fk)["referenced_columns"]) {
				fn(asMap(ref))
			}
		}
	})
}

func constraintNames(names any, sname string) []any {
	out := []any{}
	for _, n := range asList(names) {
		pair := asList(n)
		if len(pair) != 2 {
			continue
		}
		if asString(pair[0]) == "placeholder" {
			pair = []any{sname, pair[1]}
		}
		out = append(out, pair)
	}
	return out
}

func renameConstraintSchema(table map[string]any, oldSchema, newSchema string) {
	for _, field := range []string{"keys", "foreign_keys"} {
		for _, c := range asList(table[field]) {
			for _, n := range asList(asMap(c)["names"]) {
				pair := asList(n)
				if len(pair) == 2 && asString(pair[0]) == oldSchema {
					pair[0] = newSchema
				}
			}
		}
	}
}

func normalizeTable(sname string, table map[string]any) {
	table["schema_name"] = sname
	setDefault(table, "kind", "table")
	setDefault(table, "comment", nil)
	for _, field := range []string{"acls", "acl_bindings", "annotations"} {
		setDefault(table, field, map[string]any{})
	}
	for _, field := range []string{"column_definitions", "keys", "foreign_keys"} {
		setDefault(table, field, []any{})
	}
	for _, c := range asList(table["column_definitions"]) {
		normalizeColumn(asMap(c))
	}
	for _, k := range asList(table["keys"]) {
		normalizeKey(sname, asMap(k))
	}
	for _, fk := range asList(table["foreign_keys"]) {
		normalizeForeignKey(sname, asString(table["table_name"]), asMap(fk))
	}
}

func normalizeColumn(col map[string]any) {
	setDefault(col, "nullok", true)
	setDefault(col, "default", nil)
	setDefault(col, "comment", nil)
	for _, field := range []string{"acls", "acl_bindings", "annotations"} {
		setDefault(col, field, map[string]any{})
	}
}

func normalizeKey(sname string, key map[string]any) {
	key["names"] = constraintNames(key["names"], sname)
	setDefault(key, "comment", nil)
	setDefault(key, "annotations", map[string]any{})
}

func normalizeForeignKey(sname, tname string, fk map[string]any) {
	fk["names"] = constraintNames(fk["names"], sname)
	for _, ref := range asList(fk["foreign_key_columns"]) {
		r := asMap(ref)
		r["schema_name"] = sname
		r["table_name"] = tname
	}
	setDefault(fk, "on_update", "NO ACTION")
	setDefault(fk, "on_delete", "NO ACTION")
	setDefault(fk, "comment", nil)
	for _, field := range []string{"acls", "acl_bindings", "annotations"} {
		setDefault(fk, field, map[string]any{})
	}
}

func (s *Server) getModel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.doc)
}

func (s *Server) putModelField(field string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value := jsondoc.Clone(r.Context().Value(bodyKey{}))
		if value == nil {
			value = map[string]any{}
		}
		s.doc[field] = value
		writeJSON(w, http.StatusOK, value)
	}
}

func (s *Server) createSchemas(w http.ResponseWriter, r *http.Request) {
	defs := asList(r.Context().Value(bodyKey{}))
	created := make([]any, 0, len(defs))
	for _, d := range defs {
		sdoc := asMap(jsondoc.Clone(d))
		sname := asString(sdoc["schema_name"])
		if sname == "" {
			http.Error(w, "schema_name is required", http.StatusBadRequest)
			return
		}
		if _, exists := s.schemas()[sname]; exists {
			conflict(w, "schema %s already exists", sname)
			return
		}
		setDefault(sdoc, "comment", nil)
		setDefault(sdoc, "acls", map[string]any{})
		setDefault(sdoc, "annotations", map[string]any{})
		setDefault(sdoc, "tables", map[string]any{})
		for _, tdoc := range asMap(sdoc["tables"]) {
			normalizeTable(sname, asMap(tdoc))
		}
		s.schemas()[sname] = sdoc
		created = append(created, sdoc)
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) alterSchema(w http.ResponseWriter, r *http.Request) {
	sname := param(r, "schema")
	sdoc := asMap(s.schemas()[sname])
	if sdoc == nil {
		notFound(w, "schema %s not found", sname)
		return
	}

	for field, value := range bodyMap(r) {
		if field != "schema_name" {
			sdoc[field] = jsondoc.Clone(value)
			continue
		}
		newName := asString(value)
		if newName == sname {
			continue
		}
		if _, exists := s.schemas()[newName]; exists {
			conflict(w, "schema %s already exists", newName)
			return
		}
		delete(s.schemas(), sname)
		s.schemas()[newName] = sdoc
		sdoc["schema_name"] = newName
		for _, tdoc := range asMap(sdoc["tables"]) {
			table := asMap(tdoc)
			table["schema_name"] = newName
			renameConstraintSchema(table, sname, newName)
			for _, fk := range asList(table["foreign_keys"]) {
				for _, ref := range asList(asMap(fk)["foreign_key_columns"]) {
					asMap(ref)["schema_name"] = newName
				}
			}
		}
		s.eachReference(func(ref map[string]any) {
			if asString(ref["schema_name"]) == sname {
				ref["schema_name"] = newName
			}
		})
	}
	writeJSON(w, http.StatusOK, sdoc)
}

func (s *Server) deleteSchema(w http.ResponseWriter, r *http.Request) {
	sname := param(r, "schema")
	if _, ok := s.schemas()[sname]; !ok {
		notFound(w, "schema %s not found", sname)
		return
	}
	delete(s.schemas(), sname)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createTable(w http.ResponseWriter, r *http.Request) {
	sname := param(r, "schema")
	sdoc := asMap(s.schemas()[sname])
	if sdoc == nil {
		notFound(w, "schema %s not found", sname)
		return
	}
	table := jsondoc.CloneMap(bodyMap(r))
	tname := asString(table["table_name"])
	tables := asMap(sdoc["tables"])
	if _, exists := tables[tname]; exists {
		conflict(w, "table %s.%s already exists", sname, tname)
		return
	}
	normalizeTable(sname, table)
	tables[tname] = table
	writeJSON(w, http.StatusCreated, table)
}

func (s *Server) alterTable(w http.ResponseWriter, r *http.Request) {
	sname, tname := param(r, "schema"), param(r, "table")
	table := s.lookupTable(sname, tname)
	if table == nil {
		notFound(w, "table %s.%s not found", sname, tname)
		return
	}

	body := bodyMap(r)
	for field, value := range body {
		switch field {
		case "table_name", "schema_name":
		default:
			table[field] = jsondoc.Clone(value)
		}
	}

	if v, ok := body["table_name"]; ok && asString(v) != tname {
		newName := asString(v)
		tables := asMap(asMap(s.schemas()[sname])["tables"])
		if _, exists := tables[newName]; exists {
			conflict(w, "table %s.%s already exists", sname, newName)
			return
		}
		delete(tables, tname)
		tables[newName] = table
		table["table_name"] = newName
		s.moveTable(table, sname, tname, sname, newName)
		tname = newName
	}

	if v, ok := body["schema_name"]; ok && asString(v) != sname {
		dest := asMap(s.schemas()[asString(v)])
		if dest == nil {
			notFound(w, "schema %s not found", asString(v))
			return
		}
		destTables := asMap(dest["tables"])
		if _, exists := destTables[tname]; exists {
			conflict(w, "table %s.%s already exists", asString(v), tname)
			return
		}
		delete(asMap(asMap(s.schemas()[sname])["tables"]), tname)
		destTables[tname] = table
		table["schema_name"] = asString(v)
		renameConstraintSchema(table, sname, asString(v))
		s.moveTable(table, sname, tname, asString(v), tname)
	}

	writeJSON(w, http.StatusOK, table)
}

// moveTable rewrites column references after a table rename or transfer
func (s *Server) moveTable(table map[string]any, oldSchema, oldTable, newSchema, newTable string) {
	for _, fk := range asList(table["foreign_keys"]) {
		for _, ref := range asList(asMap(fk)["foreign_key_columns"]) {
			asMap(ref)["schema_name"] = newSchema
			asMap(ref)["table_name"] = newTable
		}
	}
	s.eachReference(func(ref map[string]any) {
		if asString(ref["schema_name"]) == oldSchema && asString(ref["table_name"]) == oldTable {
			ref["schema_name"] = newSchema
			ref["table_name"] = newTable
		}
	})
}

func (s *Server) deleteTable(w http.ResponseWriter, r *http.Request) {
	sname, tname := param(r, "schema"), param(r, "table")
	if s.lookupTable(sname, tname) == nil {
		notFound(w, "table %s.%s not found", sname, tname)
		return
	}
	delete(asMap(asMap(s.schemas()[sname])["tables"]), tname)
	w.WriteHeader(http.StatusNoContent)
}
