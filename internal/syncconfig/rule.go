// Package syncconfig sets ACLs and annotations across a model from a rule
// document. Rules select schemas, tables, columns and foreign keys by exact
// name or by regular expression; each node takes the settings of its best
// matching rule. The caller then plans or applies the edited model against
// the catalog.
package syncconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tordrt/catalogmodel/internal/model"
)

var (
	// ErrAmbiguousRule is returned in strict mode when no single rule wins for a node
	ErrAmbiguousRule = errors.New("ambiguous rule match")
	// ErrInvalidRule is returned for malformed rule documents
	ErrInvalidRule = errors.New("invalid rule")
	// ErrUnknownAnnotation is returned for node annotations that are neither managed nor ignored
	ErrUnknownAnnotation = errors.New("annotation is neither managed nor ignored")
	// ErrNoForeignKey is returned when a binding projection names a column without a single-column foreign key
	ErrNoForeignKey = errors.New("no foreign key for column")
)

// Options control rule matching
type Options struct {
	// Strict turns ambiguous matches into errors; otherwise the node is skipped
	Strict bool
	// Server is the catalog host, used to recognise webauthn robot identities
	Server string
	Logger *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Scope narrows a run to one schema or one table. The zero Scope covers
// the whole catalog.
type Scope struct {
	Schema string
	Table  string
}

func (s Scope) String() string {
	switch {
	case s.Table != "":
		return s.Schema + "." + s.Table
	case s.Schema != "":
		return s.Schema
	}
	return "catalog"
}

// resolve finds the top-level node a scope names
func (s Scope) resolve(m *model.Model) (*model.Schema, *model.Table, error) {
	if s.Table != "" && s.Schema == "" {
		return nil, nil, fmt.Errorf("%w: table %q given without a schema", ErrInvalidRule, s.Table)
	}
	if s.Schema == "" {
		return nil, nil, nil
	}
	schema, ok := m.Schema(s.Schema)
	if !ok {
		return nil, nil, fmt.Errorf("schema %q: %w", s.Schema, model.ErrNotFound)
	}
	if s.Table == "" {
		return schema, nil, nil
	}
	table, ok := schema.Table(s.Table)
	if !ok {
		return nil, nil, fmt.Errorf("table %s.%s: %w", s.Schema, s.Table, model.ErrNotFound)
	}
	return schema, table, nil
}

// Selector names the nodes a rule applies to. Each level is given either
// exactly or as a pattern anchored at the start of the name, never both.
type Selector struct {
	Schema                  string `yaml:"schema,omitempty"`
	SchemaPattern           string `yaml:"schema_pattern,omitempty"`
	Table                   string `yaml:"table,omitempty"`
	TablePattern            string `yaml:"table_pattern,omitempty"`
	Column                  string `yaml:"column,omitempty"`
	ColumnPattern           string `yaml:"column_pattern,omitempty"`
	ForeignKey              string `yaml:"foreign_key,omitempty"`
	ForeignKeyPattern       string `yaml:"foreign_key_pattern,omitempty"`
	ForeignKeySchema        string `yaml:"foreign_key_schema,omitempty"`
	ForeignKeySchemaPattern string `yaml:"foreign_key_schema_pattern,omitempty"`

	patterns map[level]*regexp.Regexp
}

type level int

const (
	schemaLevel level = iota
	tableLevel
	columnLevel
	foreignKeyLevel
	foreignKeySchemaLevel
)

var levelNames = map[level]string{
	schemaLevel:           "schema",
	tableLevel:            "table",
	columnLevel:           "column",
	foreignKeyLevel:       "foreign_key",
	foreignKeySchemaLevel: "foreign_key_schema",
}

func (s *Selector) fields(l level) (exact, pattern string) {
	switch l {
	case schemaLevel:
		return s.Schema, s.SchemaPattern
	case tableLevel:
		return s.Table, s.TablePattern
	case columnLevel:
		return s.Column, s.ColumnPattern
	case foreignKeyLevel:
		return s.ForeignKey, s.ForeignKeyPattern
	case foreignKeySchemaLevel:
		return s.ForeignKeySchema, s.ForeignKeySchemaPattern
	}
	return "", ""
}

// compile checks the selector and prepares its patterns
func (s *Selector) compile() error {
	s.patterns = map[level]*regexp.Regexp{}
	for l := schemaLevel; l <= foreignKeySchemaLevel; l++ {
		exact, pattern := s.fields(l)
		if pattern == "" {
			continue
		}
		name := levelNames[l]
		if exact != "" {
			return fmt.Errorf("%w: can't have both %q and %q in the same rule", ErrInvalidRule, name, name+"_pattern")
		}
		re, err := regexp.Compile("^(?:" + pattern + ")")
		if err != nil {
			return fmt.Errorf("%w: bad %s_pattern: %v", ErrInvalidRule, name, err)
		}
		s.patterns[l] = re
	}
	return nil
}

// exact reports whether the selector uses no patterns at all
func (s *Selector) exact() bool {
	return len(s.patterns) == 0
}

func (s *Selector) matches(l level, value string, exact bool) bool {
	if e, _ := s.fields(l); e != "" && e == value {
		return true
	}
	if exact {
		return false
	}
	re := s.patterns[l]
	return re != nil && re.MatchString(value)
}

func (s *Selector) matchesSchema(schema string, exact bool) bool {
	return s.matches(schemaLevel, schema, exact)
}

func (s *Selector) matchesTable(schema, table string, exact bool) bool {
	return s.matchesSchema(schema, exact) && s.matches(tableLevel, table, exact)
}

func (s *Selector) matchesColumn(schema, table, column string, exact bool) bool {
	return s.matchesTable(schema, table, exact) && s.matches(columnLevel, column, exact)
}

func (s *Selector) matchesForeignKey(schema, table, fkSchema, fkName string, exact bool) bool {
	return s.matchesTable(schema, table, exact) &&
		s.matches(foreignKeySchemaLevel, fkSchema, exact) &&
		s.matches(foreignKeyLevel, fkName, exact)
}

type rule interface {
	selector() *Selector
}

func (s *Selector) selector() *Selector { return s }

// matcher picks the best rule for each node
type matcher struct {
	strict bool
	logger *zap.Logger
}

// ambiguous reports a tie: an error in strict mode, a logged skip otherwise
func (mt matcher) ambiguous(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if mt.strict {
		return fmt.Errorf("%w: %s", ErrAmbiguousRule, msg)
	}
	mt.logger.Warn("skipping ambiguous rule match", zap.String("detail", msg))
	return nil
}

// pick returns the only candidate, a zero value with no candidates, or
// reports ambiguity
func pick[R rule](mt matcher, candidates []R, format string, args ...any) (R, bool, error) {
	var zero R
	switch len(candidates) {
	case 0:
		return zero, false, nil
	case 1:
		return candidates[0], true, nil
	}
	return zero, false, mt.ambiguous(format, args...)
}

func filter[R rule](rules []R, keep func(*Selector) bool) []R {
	var out []R
	for _, r := range rules {
		if keep(r.selector()) {
			out = append(out, r)
		}
	}
	return out
}

func bestSchemaRule[R rule](mt matcher, rules []R, schema string) (R, bool, error) {
	results := filter(rules, func(s *Selector) bool { return s.matchesSchema(schema, false) })
	if len(results) <= 1 {
		return pick(mt, results, "")
	}
	exact := filter(results, func(s *Selector) bool { return s.matchesSchema(schema, true) })
	if len(exact) == 0 {
		var zero R
		return zero, false, mt.ambiguous("more than one pattern and no exact rule for schema %s", schema)
	}
	return pick(mt, exact, "more than one exact rule for schema %s", schema)
}

func bestTableRule[R rule](mt matcher, rules []R, schema, table string) (R, bool, error) {
	results := filter(rules, func(s *Selector) bool { return s.matchesTable(schema, table, false) })
	if len(results) <= 1 {
		return pick(mt, results, "")
	}
	exact := filter(results, func(s *Selector) bool { return s.matchesTable(schema, table, true) })
	if len(exact) > 0 {
		return pick(mt, exact, "more than one exact rule for table %s.%s", schema, table)
	}
	exactSchema := filter(results, func(s *Selector) bool { return s.matchesSchema(schema, true) })
	return pick(mt, exactSchema, "more than one exact-schema and no exact-table rule for %s.%s", schema, table)
}

func bestColumnRule[R rule](mt matcher, rules []R, schema, table, column string) (R, bool, error) {
	results := filter(rules, func(s *Selector) bool { return s.matchesColumn(schema, table, column, false) })
	if len(results) <= 1 {
		return pick(mt, results, "")
	}
	exact := filter(results, func(s *Selector) bool { return s.exact() })
	if len(exact) > 0 {
		return pick(mt, exact, "more than one exact rule for column %s.%s.%s", schema, table, column)
	}
	exactTable := filter(results, func(s *Selector) bool { return s.matchesTable(schema, table, true) })
	return pick(mt, exactTable, "more than one exact-table and no exact-column rule for %s.%s.%s", schema, table, column)
}

func bestForeignKeyRule[R rule](mt matcher, rules []R, fk *model.ForeignKey) (R, bool, error) {
	schema, table := fk.Table().Schema().Name(), fk.Table().Name()
	fkSchema, fkName := fk.Constraint().SchemaName(), fk.Name()
	results := filter(rules, func(s *Selector) bool {
		return s.matchesForeignKey(schema, table, fkSchema, fkName, false)
	})
	if len(results) <= 1 {
		return pick(mt, results, "")
	}
	exact := filter(results, func(s *Selector) bool {
		return s.matchesForeignKey(schema, table, fkSchema, fkName, true)
	})
	if len(exact) == 0 {
		var zero R
		return zero, false, mt.ambiguous("more than one pattern and no exact rule for foreign key %s:%s on %s.%s",
			fkSchema, fkName, schema, table)
	}
	return pick(mt, exact, "more than one exact rule for foreign key %s:%s on %s.%s", fkSchema, fkName, schema, table)
}

// ignoredSchemas compiles ignored_schema_patterns
func ignoredSchemas(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("^(?:" + p + ")")
		if err != nil {
			return nil, fmt.Errorf("%w: bad ignored schema pattern %q: %v", ErrInvalidRule, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func isIgnored(patterns []*regexp.Regexp, schema string) bool {
	for _, re := range patterns {
		if re.MatchString(schema) {
			return true
		}
	}
	return false
}

// decode reads a YAML or JSON rule document, rejecting unknown keys
func decode(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	return data, nil
}
