package model

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/tordrt/catalogmodel/internal/symbol"
)

// ConstraintName identifies a key or foreign key. A nil Schema marks a
// pseudo constraint that does not belong to any schema.
type ConstraintName struct {
	Schema *Schema
	Name   string
}

func (c ConstraintName) String() string {
	return c.SchemaName() + ":" + c.Name
}

// SchemaName returns the schema part of the name, or "" for pseudo constraints
func (c ConstraintName) SchemaName() string {
	if c.Schema == nil {
		return ""
	}
	return c.Schema.name
}

// InModel maps the name onto the schema of the same name in another tree
func (c ConstraintName) InModel(m *Model) (ConstraintName, bool) {
	if c.Schema == nil {
		return ConstraintName{Name: c.Name}, true
	}
	s, ok := m.schemas.Get(c.Schema.name)
	if !ok {
		return ConstraintName{}, false
	}
	return ConstraintName{Schema: s, Name: c.Name}, true
}

// parseConstraintName interprets the names field of a key or foreign key
// declared on t. Documents without a usable name get a synthetic one that is
// unique but not registered for lookup.
func parseConstraintName(t *Table, names [][]string) (ConstraintName, bool) {
	if len(names) > 0 && len(names[0]) == 2 && names[0][1] != "" {
		sname, name := names[0][0], names[0][1]
		switch {
		case sname == "":
			return ConstraintName{Name: name}, false
		case sname == t.schema.name:
			return ConstraintName{Schema: t.schema, Name: name}, false
		case sname == "placeholder":
			if t.Kind == "table" {
				return ConstraintName{Schema: t.schema, Name: name}, false
			}
			return ConstraintName{Name: name}, false
		}
	}
	return ConstraintName{Name: "synthetic:" + uuid.NewString()}, true
}

// constraintNamesDoc renders the names field of a constraint
func constraintNamesDoc(c ConstraintName, synthetic bool) [][]string {
	if synthetic {
		return [][]string{}
	}
	return [][]string{{c.SchemaName(), c.Name}}
}

func constraintSymbol(t *Table, c ConstraintName) symbol.Constraint {
	if c.Schema == nil {
		return symbol.Constraint{Name: c.Name}
	}
	return symbol.Constraint{Schema: t.schema.name, Name: c.Name}
}

// renameNames builds the names field sent when renaming a constraint
func renameNames(c ConstraintName, name string) [][]string {
	return [][]string{{c.SchemaName(), name}}
}

func responseConstraintName(changes changeSet, changed map[string]any) (string, error) {
	raw, ok := changed["names"].([]any)
	if !ok {
		sent, _ := changes["names"].([][]string)
		if len(sent) == 0 || len(sent[0]) != 2 {
			return "", fmt.Errorf("%w: malformed constraint names", ErrInvalidArgument)
		}
		return sent[0][1], nil
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: catalog returned no constraint names", ErrInvalidArgument)
	}
	pair, _ := raw[0].([]any)
	if len(pair) != 2 {
		return "", fmt.Errorf("%w: malformed constraint names %v", ErrInvalidArgument, raw[0])
	}
	name, _ := pair[1].(string)
	return name, nil
}
