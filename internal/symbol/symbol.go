// Package symbol defines the names used to refer to schema elements from
// inside annotation documents.
package symbol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument is returned for malformed symbols
var ErrInvalidArgument = errors.New("invalid argument")

// Symbol is either a Constraint or a Column
type Symbol interface {
	fmt.Stringer
	// Parts returns the symbol as the name list used in annotation documents
	Parts() []any
	isSymbol()
}

// Constraint names a key or foreign key by (schema, name). An empty Name
// matches every constraint of the schema.
type Constraint struct {
	Schema string
	Name   string
}

// Column names a column by (schema, table, column)
type Column struct {
	Schema string
	Table  string
	Name   string
}

func (Constraint) isSymbol() {}
func (Column) isSymbol()     {}

// Wildcard reports whether the constraint matches any name in its schema
func (c Constraint) Wildcard() bool { return c.Name == "" }

// Parts returns [schema, name], with nil for a wildcard name
func (c Constraint) Parts() []any {
	if c.Wildcard() {
		return []any{c.Schema, nil}
	}
	return []any{c.Schema, c.Name}
}

func (c Constraint) String() string {
	if c.Wildcard() {
		return c.Schema + ":*"
	}
	return c.Schema + ":" + c.Name
}

// Parts returns [schema, table, column]
func (c Column) Parts() []any {
	return []any{c.Schema, c.Table, c.Name}
}

func (c Column) String() string {
	return c.Schema + ":" + c.Table + ":" + c.Name
}

// Parse reads a symbol from "schema:name", "schema:*", "schema:table:column"
// or a JSON array such as ["schema", null].
func Parse(s string) (Symbol, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		return parseJSON(s)
	}

	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
		name := parts[1]
		if name == "*" {
			name = ""
		}
		return Constraint{Schema: parts[0], Name: name}, nil
	case 3:
		if parts[2] == "" {
			return nil, fmt.Errorf("%w: empty column name in %q", ErrInvalidArgument, s)
		}
		return Column{Schema: parts[0], Table: parts[1], Name: parts[2]}, nil
	default:
		return nil, fmt.Errorf("%w: %q must have 2 or 3 parts", ErrInvalidArgument, s)
	}
}

func parseJSON(s string) (Symbol, error) {
	var raw []*string
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %q: %v", ErrInvalidArgument, s, err)
	}
	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	switch len(raw) {
	case 2:
		return Constraint{Schema: str(raw[0]), Name: str(raw[1])}, nil
	case 3:
		if str(raw[2]) == "" {
			return nil, fmt.Errorf("%w: empty column name in %q", ErrInvalidArgument, s)
		}
		return Column{Schema: str(raw[0]), Table: str(raw[1]), Name: str(raw[2])}, nil
	default:
		return nil, fmt.Errorf("%w: %q must have 2 or 3 parts", ErrInvalidArgument, s)
	}
}
