package mmo

import (
	"github.com/tordrt/catalogmodel/internal/jsondoc"
	"github.com/tordrt/catalogmodel/internal/model"
	"github.com/tordrt/catalogmodel/internal/symbol"
	"github.com/tordrt/catalogmodel/internal/tag"
)

// Find returns every reference to sym in the table annotations of m.
//
// Searched tags are visible-columns, visible-foreign-keys and
// source-definitions. A constraint symbol matches constraint name pairs and
// path hops naming the constraint. A column symbol matches bare column names
// of the anchor table and source paths ending in the column after a hop that
// leads to the column's table.
func (e *Engine) Find(m *model.Model, sym symbol.Symbol) []Match {
	var matches []Match
	for _, s := range m.Schemas() {
		for _, t := range s.Tables() {
			for _, uri := range jsondoc.SortedKeys(t.Annotations) {
				doc, ok := t.Annotations[uri].(map[string]any)
				if !ok {
					continue
				}
				switch uri {
				case tag.VisibleColumns, tag.VisibleForeignKeys:
					matches = append(matches, findVisible(m, t, uri, doc, sym)...)
				case tag.SourceDefinitions:
					matches = append(matches, findSourceDefinitions(m, t, doc, sym)...)
				}
			}
		}
	}
	return matches
}

// visibleLists yields the entry list of each display context. A filter
// context nests its entries under "and".
func visibleLists(doc map[string]any, fn func(context string, c Container, entries []any)) {
	for _, context := range jsondoc.SortedKeys(doc) {
		c := Container{parent: doc, key: context}
		if context == "filter" {
			f, ok := doc[context].(map[string]any)
			if !ok {
				continue
			}
			c = Container{parent: f, key: "and"}
		}
		if entries, ok := c.List(); ok {
			fn(context, c, entries)
		}
	}
}

func findVisible(m *model.Model, t *model.Table, uri string, doc map[string]any, sym symbol.Symbol) []Match {
	var matches []Match
	visibleLists(doc, func(context string, c Container, entries []any) {
		for _, entry := range entries {
			found := false
			switch v := entry.(type) {
			case []any:
				found = isConstraintMatch(v, sym)
			case map[string]any:
				if source, ok := v["source"]; ok {
					found = isSymbolInSource(m, t, source, sym)
				}
			case string:
				found = isTableColumn(t, v, sym)
			}
			if found {
				matches = append(matches, Match{Anchor: t, Tag: uri, Context: context, Container: c, Mapping: entry})
			}
		}
	})
	return matches
}

func findSourceDefinitions(m *model.Model, t *model.Table, doc map[string]any, sym symbol.Symbol) []Match {
	var matches []Match
	uri := tag.SourceDefinitions

	if cols, ok := doc["columns"].([]any); ok {
		if col, ok := sym.(symbol.Column); ok && col.Schema == t.Schema().Name() && col.Table == t.Name() {
			for _, c := range cols {
				if c == any(col.Name) {
					matches = append(matches, Match{
						Anchor: t, Tag: uri, Context: "columns",
						Container: Container{parent: doc, key: "columns"}, Mapping: col.Name,
					})
					break
				}
			}
		}
	}

	if fkeys, ok := doc["fkeys"].([]any); ok {
		for _, fk := range fkeys {
			if isConstraintMatch(fk, sym) {
				matches = append(matches, Match{
					Anchor: t, Tag: uri, Context: "fkeys",
					Container: Container{parent: doc, key: "fkeys"}, Mapping: fk,
				})
			}
		}
	}

	if sources, ok := doc["sources"].(map[string]any); ok {
		for _, alias := range jsondoc.SortedKeys(sources) {
			def, ok := sources[alias].(map[string]any)
			if !ok {
				continue
			}
			if isSymbolInSource(m, t, def["source"], sym) {
				matches = append(matches, Match{
					Anchor: t, Tag: uri, Context: "sources",
					Container: Container{parent: doc, key: "sources"}, Mapping: alias,
				})
			}
		}
	}

	if box, ok := doc[searchBox].(map[string]any); ok {
		if entries, ok := box["or"].([]any); ok {
			for _, entry := range entries {
				def, ok := entry.(map[string]any)
				if ok && isSymbolInSource(m, t, def["source"], sym) {
					matches = append(matches, Match{
						Anchor: t, Tag: uri, Context: searchBox,
						Container: Container{parent: box, key: "or"}, Mapping: entry,
					})
				}
			}
		}
	}
	return matches
}

// constraintPair reads a [schema, name] constraint name
func constraintPair(v any) (schema, name string, ok bool) {
	pair, isList := v.([]any)
	if !isList || len(pair) != 2 {
		return "", "", false
	}
	schema, ok1 := pair[0].(string)
	name, ok2 := pair[1].(string)
	return schema, name, ok1 && ok2
}

func isConstraintMatch(v any, sym symbol.Symbol) bool {
	c, ok := sym.(symbol.Constraint)
	if !ok {
		return false
	}
	schema, name, ok := constraintPair(v)
	if !ok {
		return false
	}
	if c.Wildcard() {
		return schema == c.Schema
	}
	return schema == c.Schema && name == c.Name
}

func isTableColumn(t *model.Table, name string, sym symbol.Symbol) bool {
	c, ok := sym.(symbol.Column)
	return ok && c == symbol.Column{Schema: t.Schema().Name(), Table: t.Name(), Name: name}
}

// hop returns the constraint name of an inbound or outbound path element
func hop(elem any) (any, bool) {
	h, ok := elem.(map[string]any)
	if !ok {
		return nil, false
	}
	if isInbound(h) {
		return h["inbound"], true
	}
	v, ok := h["outbound"]
	return v, ok
}

// isInbound reports whether a path element names an inbound hop; a null
// inbound entry counts as absent
func isInbound(h map[string]any) bool {
	return h["inbound"] != nil
}

func isSymbolInSource(m *model.Model, t *model.Table, source any, sym symbol.Symbol) bool {
	switch src := source.(type) {
	case string:
		return isTableColumn(t, src, sym)
	case []any:
		switch s := sym.(type) {
		case symbol.Constraint:
			for _, elem := range src {
				if name, ok := hop(elem); ok && isConstraintMatch(name, s) {
					return true
				}
			}
		case symbol.Column:
			if len(src) < 2 || src[len(src)-1] != any(s.Name) {
				return false
			}
			return hopLeadsTo(m, src[len(src)-2], s.Schema, s.Table)
		}
	}
	return false
}

// hopLeadsTo reports whether the hop ends at the named table: the owning
// table for an inbound hop, the referenced table for an outbound one
func hopLeadsTo(m *model.Model, elem any, schema, table string) bool {
	h, ok := elem.(map[string]any)
	if !ok {
		return false
	}
	name, ok := hop(elem)
	if !ok {
		return false
	}
	end := (*model.ForeignKey).PKTable
	if isInbound(h) {
		end = (*model.ForeignKey).Table
	}

	sname, cname, ok := constraintPair(name)
	if !ok {
		return false
	}
	fk, err := m.ForeignKey(symbol.Constraint{Schema: sname, Name: cname})
	if err != nil {
		return false
	}
	target := end(fk)
	return target != nil && target.Schema().Name() == schema && target.Name() == table
}
