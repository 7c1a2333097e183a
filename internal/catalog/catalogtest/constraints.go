package catalogtest

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tordrt/catalogmodel/internal/jsondoc"
)

func (s *Server) tableParam(w http.ResponseWriter, r *http.Request) (string, string, map[string]any) {
	sname, tname := param(r, "schema"), param(r, "table")
	table := s.lookupTable(sname, tname)
	if table == nil {
		notFound(w, "table %s.%s not found", sname, tname)
	}
	return sname, tname, table
}

func columnIndex(table map[string]any, name string) int {
	for i, c := range asList(table["column_definitions"]) {
		if asString(asMap(c)["name"]) == name {
			return i
		}
	}
	return -1
}

func sameNames(a []any, b []string, field string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		v := a[i]
		if field != "" {
			v = asMap(v)[field]
		}
		if asString(v) != b[i] {
			return false
		}
	}
	return true
}

func keyIndex(table map[string]any, cols []string) int {
	for i, k := range asList(table["keys"]) {
		if sameNames(asList(asMap(k)["unique_columns"]), cols, "") {
			return i
		}
	}
	return -1
}

func foreignKeyIndex(table map[string]any, cols []string, pkSchema, pkTable string, pkCols []string) int {
	for i, f := range asList(table["foreign_keys"]) {
		fk := asMap(f)
		refs := asList(fk["referenced_columns"])
		if len(refs) == 0 {
			continue
		}
		first := asMap(refs[0])
		if asString(first["schema_name"]) != pkSchema || asString(first["table_name"]) != pkTable {
			continue
		}
		if sameNames(asList(fk["foreign_key_columns"]), cols, "column_name") && sameNames(refs, pkCols, "column_name") {
			return i
		}
	}
	return -1
}

func removeAt(list []any, i int) []any {
	return append(list[:i:i], list[i+1:]...)
}

func mergeFields(dst, body map[string]any, skip ...string) {
	for field, value := range body {
		skipped := false
		for _, s := range skip {
			if field == s {
				skipped = true
			}
		}
		if !skipped {
			dst[field] = jsondoc.Clone(value)
		}
	}
}

func (s *Server) createColumn(w http.ResponseWriter, r *http.Request) {
	_, _, table := s.tableParam(w, r)
	if table == nil {
		return
	}
	col := jsondoc.CloneMap(bodyMap(r))
	name := asString(col["name"])
	if columnIndex(table, name) >= 0 {
		conflict(w, "column %s already exists", name)
		return
	}
	normalizeColumn(col)
	table["column_definitions"] = append(asList(table["column_definitions"]), col)
	writeJSON(w, http.StatusCreated, col)
}

func (s *Server) alterColumn(w http.ResponseWriter, r *http.Request) {
	sname, tname, table := s.tableParam(w, r)
	if table == nil {
		return
	}
	cname := param(r, "column")
	i := columnIndex(table, cname)
	if i < 0 {
		notFound(w, "column %s not found", cname)
		return
	}
	col := asMap(asList(table["column_definitions"])[i])
	body := bodyMap(r)
	mergeFields(col, body, "name")

	if v, ok := body["name"]; ok && asString(v) != cname {
		newName := asString(v)
		if columnIndex(table, newName) >= 0 {
			conflict(w, "column %s already exists", newName)
			return
		}
		col["name"] = newName
		for _, k := range asList(table["keys"]) {
			cols := asList(asMap(k)["unique_columns"])
			for j := range cols {
				if asString(cols[j]) == cname {
					cols[j] = newName
				}
			}
		}
		for _, fk := range asList(table["foreign_keys"]) {
			for _, ref := range asList(asMap(fk)["foreign_key_columns"]) {
				if asString(asMap(ref)["column_name"]) == cname {
					asMap(ref)["column_name"] = newName
				}
			}
		}
		s.eachReference(func(ref map[string]any) {
			if asString(ref["schema_name"]) == sname && asString(ref["table_name"]) == tname &&
				asString(ref["column_name"]) == cname {
				ref["column_name"] = newName
			}
		})
	}
	writeJSON(w, http.StatusOK, col)
}

func (s *Server) deleteColumn(w http.ResponseWriter, r *http.Request) {
	_, _, table := s.tableParam(w, r)
	if table == nil {
		return
	}
	cname := param(r, "column")
	i := columnIndex(table, cname)
	if i < 0 {
		notFound(w, "column %s not found", cname)
		return
	}
	table["column_definitions"] = removeAt(asList(table["column_definitions"]), i)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createKey(w http.ResponseWriter, r *http.Request) {
	sname, _, table := s.tableParam(w, r)
	if table == nil {
		return
	}
	key := jsondoc.CloneMap(bodyMap(r))
	cols := make([]string, 0)
	for _, c := range asList(key["unique_columns"]) {
		cols = append(cols, asString(c))
	}
	if keyIndex(table, cols) >= 0 {
		conflict(w, "key %s already exists", strings.Join(cols, ","))
		return
	}
	normalizeKey(sname, key)
	table["keys"] = append(asList(table["keys"]), key)
	writeJSON(w, http.StatusCreated, key)
}

func (s *Server) alterKey(w http.ResponseWriter, r *http.Request) {
	sname, _, table := s.tableParam(w, r)
	if table == nil {
		return
	}
	cols := paramList(r, "columns")
	i := keyIndex(table, cols)
	if i < 0 {
		notFound(w, "key %s not found", strings.Join(cols, ","))
		return
	}
	key := asMap(asList(table["keys"])[i])
	body := bodyMap(r)
	mergeFields(key, body, "names", "unique_columns")
	if v, ok := body["names"]; ok {
		key["names"] = constraintNames(jsondoc.Clone(v), sname)
	}
	writeJSON(w, http.StatusOK, key)
}

func (s *Server) deleteKey(w http.ResponseWriter, r *http.Request) {
	_, _, table := s.tableParam(w, r)
	if table == nil {
		return
	}
	cols := paramList(r, "columns")
	i := keyIndex(table, cols)
	if i < 0 {
		notFound(w, "key %s not found", strings.Join(cols, ","))
		return
	}
	table["keys"] = removeAt(asList(table["keys"]), i)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createForeignKey(w http.ResponseWriter, r *http.Request) {
	sname, tname, table := s.tableParam(w, r)
	if table == nil {
		return
	}
	var defs []any
	switch body := r.Context().Value(bodyKey{}).(type) {
	case []any:
		defs = body
	case map[string]any:
		defs = []any{body}
	}

	created := make([]any, 0, len(defs))
	for _, d := range defs {
		fk := asMap(jsondoc.Clone(d))
		normalizeForeignKey(sname, tname, fk)
		table["foreign_keys"] = append(asList(table["foreign_keys"]), fk)
		created = append(created, fk)
	}
	writeJSON(w, http.StatusCreated, created)
}

// foreignKeyParam locates the foreign key addressed by the request path
func (s *Server) foreignKeyParam(w http.ResponseWriter, r *http.Request) (string, map[string]any, int) {
	sname, _, table := s.tableParam(w, r)
	if table == nil {
		return "", nil, -1
	}
	rawTarget := chi.URLParam(r, "target")
	pkSchema, pkTable, ok := strings.Cut(rawTarget, ":")
	if !ok {
		notFound(w, "malformed reference target %s", rawTarget)
		return "", nil, -1
	}
	if v, err := url.PathUnescape(pkSchema); err == nil {
		pkSchema = v
	}
	if v, err := url.PathUnescape(pkTable); err == nil {
		pkTable = v
	}
	i := foreignKeyIndex(table, paramList(r, "columns"), pkSchema, pkTable, paramList(r, "pkcolumns"))
	if i < 0 {
		notFound(w, "foreign key not found")
		return "", nil, -1
	}
	return sname, table, i
}

func (s *Server) alterForeignKey(w http.ResponseWriter, r *http.Request) {
	sname, table, i := s.foreignKeyParam(w, r)
	if i < 0 {
		return
	}
	fk := asMap(asList(table["foreign_keys"])[i])
	body := bodyMap(r)
	mergeFields(fk, body, "names", "foreign_key_columns", "referenced_columns")
	if v, ok := body["names"]; ok {
		fk["names"] = constraintNames(jsondoc.Clone(v), sname)
	}
	writeJSON(w, http.StatusOK, fk)
}

func (s *Server) deleteForeignKey(w http.ResponseWriter, r *http.Request) {
	_, table, i := s.foreignKeyParam(w, r)
	if i < 0 {
		return
	}
	table["foreign_keys"] = removeAt(asList(table["foreign_keys"]), i)
	w.WriteHeader(http.StatusNoContent)
}
