package mmo

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tordrt/catalogmodel/internal/jsondoc"
	"github.com/tordrt/catalogmodel/internal/model"
	"github.com/tordrt/catalogmodel/internal/symbol"
)

// Replace rewrites every reference to sym so it names replacement instead.
//
// Both symbols must be of the same kind. Column symbols may differ only in
// the column name. For constraint symbols an empty replacement name keeps
// the existing name and moves only the schema part. The arguments are
// checked before anything is modified.
func (e *Engine) Replace(m *model.Model, sym, replacement symbol.Symbol) (*Report, error) {
	if err := checkReplacement(sym, replacement); err != nil {
		return nil, err
	}
	e.logger.Debug("replacing symbol",
		zap.Stringer("symbol", sym),
		zap.Stringer("replacement", replacement),
	)

	report := &Report{}
	for _, match := range e.Find(m, sym) {
		report.Matches = append(report.Matches, match)
		if !replaceMatch(m, match, sym, replacement) {
			e.unhandled(report, "replace", match)
		}
	}
	return report, nil
}

func checkReplacement(sym, replacement symbol.Symbol) error {
	switch s := sym.(type) {
	case symbol.Column:
		r, ok := replacement.(symbol.Column)
		if !ok {
			return fmt.Errorf("%w: cannot replace column %s with %s", ErrInvalidArgument, sym, replacement)
		}
		if s.Schema != r.Schema || s.Table != r.Table {
			return fmt.Errorf("%w: column symbols may differ only in the column name: %s and %s",
				ErrInvalidArgument, sym, replacement)
		}
	case symbol.Constraint:
		r, ok := replacement.(symbol.Constraint)
		if !ok {
			return fmt.Errorf("%w: cannot replace constraint %s with %s", ErrInvalidArgument, sym, replacement)
		}
		if s.Wildcard() && !r.Wildcard() {
			return fmt.Errorf("%w: schema wildcard %s can only be replaced by another schema wildcard",
				ErrInvalidArgument, sym)
		}
	default:
		return fmt.Errorf("%w: unknown symbol %v", ErrInvalidArgument, sym)
	}
	return nil
}

// lastPart is the element name carried by a column symbol
func lastPart(s symbol.Symbol) string {
	if c, ok := s.(symbol.Column); ok {
		return c.Name
	}
	return ""
}

func replaceMatch(m *model.Model, match Match, sym, replacement symbol.Symbol) bool {
	switch mapping := match.Mapping.(type) {
	case string:
		if list, ok := match.Container.List(); ok {
			if _, isColumn := sym.(symbol.Column); !isColumn || mapping != lastPart(sym) {
				return false
			}
			for i, v := range list {
				if v == any(mapping) {
					list[i] = lastPart(replacement)
				}
			}
			return true
		}
		if sources, ok := match.Container.Map(); ok {
			def, ok := sources[mapping].(map[string]any)
			if !ok {
				return false
			}
			return replaceInSource(m, match.Anchor, def, sym, replacement)
		}
	case map[string]any:
		return replaceInSource(m, match.Anchor, mapping, sym, replacement)
	case []any:
		list, ok := match.Container.List()
		if !ok || !isConstraintMatch(mapping, sym) {
			return false
		}
		for i, v := range list {
			if jsondoc.Equal(v, mapping) {
				list[i] = rewriteConstraintName(v.([]any), replacement)
			}
		}
		return true
	}
	return false
}

// replaceInSource rewrites the source field of a pseudo-column or source
// definition
func replaceInSource(m *model.Model, t *model.Table, def map[string]any, sym, replacement symbol.Symbol) bool {
	switch source := def["source"].(type) {
	case string:
		if _, isColumn := sym.(symbol.Column); !isColumn || source != lastPart(sym) {
			return false
		}
		def["source"] = lastPart(replacement)
		return true
	case []any:
		return replaceInPath(m, t, source, sym, replacement)
	}
	return false
}

func replaceInPath(m *model.Model, t *model.Table, path []any, sym, replacement symbol.Symbol) bool {
	if len(path) == 0 {
		return false
	}
	switch s := sym.(type) {
	case symbol.Column:
		if path[len(path)-1] != any(s.Name) {
			return false
		}
		path[len(path)-1] = lastPart(replacement)
		return true
	case symbol.Constraint:
		if !isSymbolInSource(m, t, path, s) {
			return false
		}
		for _, elem := range path {
			h, ok := elem.(map[string]any)
			if !ok {
				continue
			}
			direction := "outbound"
			if isInbound(h) {
				direction = "inbound"
			}
			if isConstraintMatch(h[direction], s) {
				h[direction] = rewriteConstraintName(h[direction].([]any), replacement)
			}
		}
		return true
	}
	return false
}

func rewriteConstraintName(old []any, replacement symbol.Symbol) []any {
	r := replacement.(symbol.Constraint)
	var name any = r.Name
	if r.Name == "" && len(old) == 2 {
		name = old[1]
	}
	return []any{r.Schema, name}
}
