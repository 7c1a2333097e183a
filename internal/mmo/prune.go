package mmo

import (
	"go.uber.org/zap"

	"github.com/tordrt/catalogmodel/internal/jsondoc"
	"github.com/tordrt/catalogmodel/internal/model"
	"github.com/tordrt/catalogmodel/internal/symbol"
	"github.com/tordrt/catalogmodel/internal/tag"
)

// Prune removes every reference to sym.
//
// Removing a source definition also removes the source definitions that
// depend on its alias, directly or transitively, along with the visible
// column entries referring to any removed alias. A citation waiting for a
// removed alias is dropped from the table.
func (e *Engine) Prune(m *model.Model, sym symbol.Symbol) *Report {
	e.logger.Debug("pruning symbol", zap.Stringer("symbol", sym))

	report := &Report{}
	for _, match := range e.Find(m, sym) {
		report.Matches = append(report.Matches, match)
		switch match.Tag {
		case tag.VisibleColumns, tag.VisibleForeignKeys:
			match.Container.remove(match.Mapping)
		case tag.SourceDefinitions:
			if _, ok := match.Container.List(); ok {
				match.Container.remove(match.Mapping)
				continue
			}
			sources, ok := match.Container.Map()
			alias, isAlias := match.Mapping.(string)
			if !ok || !isAlias {
				e.unhandled(report, "prune", match)
				continue
			}
			delete(sources, alias)
			e.pruneDependents(report, match.Anchor, alias)
		default:
			e.unhandled(report, "prune", match)
		}
	}
	return report
}

func (e *Engine) pruneDependents(report *Report, t *model.Table, alias string) {
	for _, dep := range findSourcekey(t, alias) {
		e.logger.Debug("removing sourcekey dependency",
			zap.String("sourcekey", alias),
			zap.String("tag", dep.Tag),
			zap.Any("mapping", dep.Mapping),
		)
		report.Matches = append(report.Matches, dep)
		switch dep.Tag {
		case tag.VisibleColumns, tag.VisibleForeignKeys:
			dep.Container.remove(dep.Mapping)
		case tag.Citation:
			delete(t.Annotations, tag.Citation)
		case tag.SourceDefinitions:
			if sources, ok := dep.Container.Map(); ok {
				delete(sources, dep.Mapping.(string))
			}
		default:
			e.unhandled(report, "prune", dep)
		}
	}
}

// findSourcekey returns the uses of a source definition alias in the
// annotations of t, including those of aliases depending on it
func findSourcekey(t *model.Table, alias string) []Match {
	var matches []Match

	defs, _ := t.Annotations[tag.SourceDefinitions].(map[string]any)
	sources, _ := defs["sources"].(map[string]any)
	deps := dependentSourcekeys(alias, sources)
	for _, dep := range deps {
		matches = append(matches, Match{
			Anchor: t, Tag: tag.SourceDefinitions,
			Container: Container{parent: defs, key: "sources"}, Mapping: dep,
		})
	}

	keys := append([]string{alias}, deps...)

	if citation, ok := t.Annotations[tag.Citation].(map[string]any); ok {
		if waitsFor(citation, keys) {
			matches = append(matches, Match{Anchor: t, Tag: tag.Citation})
		}
	}

	for _, uri := range []string{tag.VisibleColumns, tag.VisibleForeignKeys} {
		doc, ok := t.Annotations[uri].(map[string]any)
		if !ok {
			continue
		}
		visibleLists(doc, func(context string, c Container, entries []any) {
			for _, entry := range entries {
				for _, key := range keys {
					if dependsOn(key, entry) {
						matches = append(matches, Match{Anchor: t, Tag: uri, Context: context, Container: c, Mapping: entry})
						break
					}
				}
			}
		})
	}
	return matches
}

// dependentSourcekeys returns the aliases in sources that depend on alias,
// directly or through other aliases, in discovery order
func dependentSourcekeys(alias string, sources map[string]any) []string {
	seen := map[string]bool{alias: true}
	var deps []string

	var visit func(key string)
	visit = func(key string) {
		for _, candidate := range jsondoc.SortedKeys(sources) {
			if seen[candidate] {
				continue
			}
			if candidate == searchBox {
				box, _ := sources[candidate].(map[string]any)
				entries, _ := box["or"].([]any)
				for _, def := range entries {
					if dependsOn(key, def) {
						seen[candidate] = true
						deps = append(deps, candidate)
						break
					}
				}
				continue
			}
			if dependsOn(key, sources[candidate]) {
				seen[candidate] = true
				deps = append(deps, candidate)
				visit(candidate)
			}
		}
	}
	visit(alias)
	return deps
}

// dependsOn reports whether a pseudo-column or source definition refers to
// alias by sourcekey, as the first element of its path, or in wait_for
func dependsOn(alias string, def any) bool {
	d, ok := def.(map[string]any)
	if !ok {
		return false
	}
	if d["sourcekey"] == any(alias) {
		return true
	}
	if path, ok := d["source"].([]any); ok && len(path) > 0 {
		if first, ok := path[0].(map[string]any); ok && first["sourcekey"] == any(alias) {
			return true
		}
	}
	if display, ok := d["display"].(map[string]any); ok {
		return waitsFor(display, []string{alias})
	}
	return false
}

func waitsFor(doc map[string]any, aliases []string) bool {
	waits, _ := doc["wait_for"].([]any)
	for _, w := range waits {
		for _, a := range aliases {
			if w == any(a) {
				return true
			}
		}
	}
	return false
}
