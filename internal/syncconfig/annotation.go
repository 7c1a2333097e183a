package syncconfig

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tordrt/catalogmodel/internal/jsondoc"
	"github.com/tordrt/catalogmodel/internal/model"
)

// AnnotationDocument is the rule document read by the annotation tool
type AnnotationDocument struct {
	KnownAttributes       KnownAttributes   `yaml:"known_attributes"`
	CatalogAnnotations    []*AnnotationRule `yaml:"catalog_annotations" validate:"dive,required"`
	SchemaAnnotations     []*AnnotationRule `yaml:"schema_annotations" validate:"dive,required"`
	TableAnnotations      []*AnnotationRule `yaml:"table_annotations" validate:"dive,required"`
	ColumnAnnotations     []*AnnotationRule `yaml:"column_annotations" validate:"dive,required"`
	ForeignKeyAnnotations []*AnnotationRule `yaml:"foreign_key_annotations" validate:"dive,required"`
	IgnoredSchemaPatterns []string          `yaml:"ignored_schema_patterns" validate:"dive,required"`
}

// KnownAttributes lists the annotation keys the tool owns. Managed keys are
// set or removed to match the rules; ignored keys are left alone.
type KnownAttributes struct {
	Managed            []string `yaml:"managed" validate:"required,dive,required"`
	Ignored            []string `yaml:"ignored" validate:"dive,required"`
	IgnoreAllUnmanaged bool     `yaml:"ignore_all_unmanaged"`
}

// AnnotationRule sets one annotation on the nodes its selector matches.
// A rule without a value removes the annotation.
type AnnotationRule struct {
	Selector `yaml:",inline"`
	URI      string    `yaml:"uri" validate:"required"`
	Value    yaml.Node `yaml:"value,omitempty"`

	value    any
	hasValue bool
}

func (r *AnnotationRule) prepare() error {
	if err := r.compile(); err != nil {
		return err
	}
	if r.Value.Kind == 0 {
		return nil
	}
	var v any
	if err := r.Value.Decode(&v); err != nil {
		return fmt.Errorf("%w: value of %s: %v", ErrInvalidRule, r.URI, err)
	}
	r.value = jsondoc.Clone(v)
	r.hasValue = true
	return nil
}

// ParseAnnotations reads an annotation rule document in YAML or JSON
func ParseAnnotations(data []byte) (*AnnotationDocument, error) {
	var doc AnnotationDocument
	if err := decode(data, &doc); err != nil {
		return nil, err
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return &doc, nil
}

// LoadAnnotations reads an annotation rule document from a file
func LoadAnnotations(path string) (*AnnotationDocument, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ParseAnnotations(data)
}

// AnnotationConfigurer sets managed annotations from an annotation document
type AnnotationConfigurer struct {
	doc     *AnnotationDocument
	managed []string
	known   map[string]bool
	ignored []*regexp.Regexp
	match   matcher
	logger  *zap.Logger
}

// NewAnnotationConfigurer validates the document's rules
func NewAnnotationConfigurer(doc *AnnotationDocument, opts Options) (*AnnotationConfigurer, error) {
	c := &AnnotationConfigurer{
		doc:     doc,
		managed: doc.KnownAttributes.Managed,
		known:   map[string]bool{},
		match:   matcher{strict: opts.Strict, logger: opts.logger()},
		logger:  opts.logger(),
	}
	for _, k := range doc.KnownAttributes.Managed {
		c.known[k] = true
	}
	for _, k := range doc.KnownAttributes.Ignored {
		c.known[k] = true
	}

	managed := map[string]bool{}
	for _, k := range doc.KnownAttributes.Managed {
		managed[k] = true
	}
	for _, rules := range [][]*AnnotationRule{
		doc.CatalogAnnotations, doc.SchemaAnnotations, doc.TableAnnotations,
		doc.ColumnAnnotations, doc.ForeignKeyAnnotations,
	} {
		for _, r := range rules {
			if err := r.prepare(); err != nil {
				return nil, err
			}
			if !managed[r.URI] {
				c.logger.Warn("rule names an unmanaged annotation and will never apply", zap.String("uri", r.URI))
			}
		}
	}

	ignored, err := ignoredSchemas(doc.IgnoredSchemaPatterns)
	if err != nil {
		return nil, err
	}
	c.ignored = ignored
	return c, nil
}

// Configure rewrites the managed annotations of every node in scope
func (c *AnnotationConfigurer) Configure(m *model.Model, scope Scope) error {
	schema, table, err := scope.resolve(m)
	if err != nil {
		return err
	}
	switch {
	case table != nil:
		return c.configureTable(table)
	case schema != nil:
		return c.configureSchema(schema)
	}

	rules := map[string]*AnnotationRule{}
	for _, key := range c.managed {
		for _, r := range c.doc.CatalogAnnotations {
			if r.URI == key {
				rules[key] = r
				break
			}
		}
	}
	if m.Annotations, err = c.annotations(m, m.Annotations, rules); err != nil {
		return err
	}
	for _, s := range m.Schemas() {
		if err := c.configureSchema(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *AnnotationConfigurer) configureSchema(s *model.Schema) error {
	if isIgnored(c.ignored, s.Name()) {
		c.logger.Info("ignoring schema", zap.String("schema", s.Name()))
		return nil
	}
	rules, err := bestPerKey(c, c.doc.SchemaAnnotations, func(rs []*AnnotationRule) (*AnnotationRule, bool, error) {
		return bestSchemaRule(c.match, rs, s.Name())
	})
	if err != nil {
		return err
	}
	if s.Annotations, err = c.annotations(s, s.Annotations, rules); err != nil {
		return err
	}
	for _, t := range s.Tables() {
		if err := c.configureTable(t); err != nil {
			return err
		}
	}
	return nil
}

func (c *AnnotationConfigurer) configureTable(t *model.Table) error {
	sname, tname := t.Schema().Name(), t.Name()
	rules, err := bestPerKey(c, c.doc.TableAnnotations, func(rs []*AnnotationRule) (*AnnotationRule, bool, error) {
		return bestTableRule(c.match, rs, sname, tname)
	})
	if err != nil {
		return err
	}
	if t.Annotations, err = c.annotations(t, t.Annotations, rules); err != nil {
		return err
	}

	for _, col := range t.Columns() {
		rules, err := bestPerKey(c, c.doc.ColumnAnnotations, func(rs []*AnnotationRule) (*AnnotationRule, bool, error) {
			return bestColumnRule(c.match, rs, sname, tname, col.Name())
		})
		if err != nil {
			return err
		}
		if col.Annotations, err = c.annotations(col, col.Annotations, rules); err != nil {
			return err
		}
	}
	for _, fk := range t.ForeignKeys() {
		rules, err := bestPerKey(c, c.doc.ForeignKeyAnnotations, func(rs []*AnnotationRule) (*AnnotationRule, bool, error) {
			return bestForeignKeyRule(c.match, rs, fk)
		})
		if err != nil {
			return err
		}
		if fk.Annotations, err = c.annotations(fk, fk.Annotations, rules); err != nil {
			return err
		}
	}
	return nil
}

// bestPerKey runs best-match selection separately for each managed key
func bestPerKey(c *AnnotationConfigurer, rules []*AnnotationRule,
	best func([]*AnnotationRule) (*AnnotationRule, bool, error)) (map[string]*AnnotationRule, error) {
	out := map[string]*AnnotationRule{}
	for _, key := range c.managed {
		var keyed []*AnnotationRule
		for _, r := range rules {
			if r.URI == key {
				keyed = append(keyed, r)
			}
		}
		r, ok, err := best(keyed)
		if err != nil {
			return nil, fmt.Errorf("annotation %s: %w", key, err)
		}
		if ok {
			out[key] = r
		}
	}
	return out, nil
}

// annotations returns a node's annotations with every managed key set from
// its rule or removed
func (c *AnnotationConfigurer) annotations(n model.Node, current map[string]any,
	rules map[string]*AnnotationRule) (map[string]any, error) {
	out := jsondoc.CloneMap(current)
	for _, key := range c.managed {
		r, ok := rules[key]
		switch {
		case ok && r.hasValue:
			c.logger.Debug("setting annotation", zap.String("node", model.DisplayName(n)), zap.String("key", key))
			out[key] = jsondoc.Clone(r.value)
		default:
			if _, present := out[key]; present {
				c.logger.Debug("clearing annotation", zap.String("node", model.DisplayName(n)), zap.String("key", key))
				delete(out, key)
			}
		}
	}
	if !c.doc.KnownAttributes.IgnoreAllUnmanaged {
		for _, key := range jsondoc.SortedKeys(out) {
			if !c.known[key] {
				return nil, fmt.Errorf("%s: %w: %s", model.DisplayName(n), ErrUnknownAnnotation, key)
			}
		}
	}
	return out, nil
}
