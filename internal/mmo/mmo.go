// Package mmo finds, rewrites and prunes the references to schema elements
// held inside table annotation documents.
//
// Annotation documents refer to columns and constraints by name rather than
// by identity, so renaming or dropping an element leaves stale references
// behind. The engine locates those references (Find), renames them
// (Replace) or removes them together with every source definition that
// depends on them (Prune).
package mmo

import (
	"go.uber.org/zap"

	"github.com/tordrt/catalogmodel/internal/jsondoc"
	"github.com/tordrt/catalogmodel/internal/model"
	"github.com/tordrt/catalogmodel/internal/symbol"
)

// ErrInvalidArgument is returned when a symbol and its replacement do not fit
var ErrInvalidArgument = symbol.ErrInvalidArgument

const searchBox = "search-box"

// Match is one reference to a symbol inside a table annotation
type Match struct {
	// Anchor is the table whose annotations hold the reference
	Anchor *model.Table
	// Tag is the annotation tag URI
	Tag string
	// Context is the display context, or the source-definitions section
	Context string
	// Container directly encloses Mapping
	Container Container
	// Mapping is the matched element. For source definitions it is the alias.
	Mapping any
}

// Container addresses the list or mapping holding a match through its
// parent, so list edits can be stored back
type Container struct {
	parent map[string]any
	key    string
}

// List returns the container as a list
func (c Container) List() ([]any, bool) {
	if c.parent == nil {
		return nil, false
	}
	l, ok := c.parent[c.key].([]any)
	return l, ok
}

// Map returns the container as a mapping
func (c Container) Map() (map[string]any, bool) {
	if c.parent == nil {
		return nil, false
	}
	m, ok := c.parent[c.key].(map[string]any)
	return m, ok
}

// remove deletes the first element equal to v. Elements already gone are
// ignored.
func (c Container) remove(v any) bool {
	l, ok := c.List()
	if !ok {
		return false
	}
	for i, e := range l {
		if jsondoc.Equal(e, v) {
			c.parent[c.key] = append(l[:i:i], l[i+1:]...)
			return true
		}
	}
	return false
}

// Report lists what a Replace or Prune call touched
type Report struct {
	Matches   []Match
	Unhandled []Match
}

// Engine runs symbol operations over a model tree
type Engine struct {
	logger *zap.Logger
}

// New creates an Engine
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

var _ model.MappingUpdater = (*Engine)(nil)

// ReplaceMappings rewrites references after a rename
func (e *Engine) ReplaceMappings(m *model.Model, sym, replacement symbol.Symbol) error {
	_, err := e.Replace(m, sym, replacement)
	return err
}

// PruneMappings removes references after a drop
func (e *Engine) PruneMappings(m *model.Model, sym symbol.Symbol) error {
	e.Prune(m, sym)
	return nil
}

func (e *Engine) unhandled(r *Report, op string, match Match) {
	r.Unhandled = append(r.Unhandled, match)
	e.logger.Warn("unhandled annotation shape",
		zap.String("operation", op),
		zap.String("table", model.DisplayName(match.Anchor)),
		zap.String("tag", match.Tag),
		zap.String("context", match.Context),
		zap.Any("mapping", match.Mapping),
	)
}
