package model

import (
	"fmt"

	"github.com/tordrt/catalogmodel/internal/jsondoc"
)

type updateState int

const (
	keepState updateState = iota
	clearState
	setState
)

// Update is a per-field alter instruction: keep the current value, clear it
// or set it. The zero value keeps the field unchanged.
type Update[T any] struct {
	state updateState
	value T
}

// Keep leaves a field unchanged
func Keep[T any]() Update[T] {
	return Update[T]{}
}

// Clear resets a field to null, or to an empty mapping for map fields
func Clear[T any]() Update[T] {
	return Update[T]{state: clearState}
}

// Set replaces a field with v
func Set[T any](v T) Update[T] {
	return Update[T]{state: setState, value: v}
}

// IsKeep reports whether the field is left unchanged
func (u Update[T]) IsKeep() bool { return u.state == keepState }

// IsClear reports whether the field is cleared
func (u Update[T]) IsClear() bool { return u.state == clearState }

// Value returns the value to set and whether one is set
func (u Update[T]) Value() (T, bool) {
	return u.value, u.state == setState
}

// UpdateMappings selects how annotation references follow renames and drops
type UpdateMappings int

const (
	// NoUpdate leaves annotation references untouched
	NoUpdate UpdateMappings = iota
	// Deferred rewrites references in the local tree only
	Deferred
	// Immediate rewrites references and applies the tree to the catalog
	Immediate
)

func (u UpdateMappings) String() string {
	switch u {
	case NoUpdate:
		return "no-update"
	case Deferred:
		return "deferred"
	case Immediate:
		return "immediate"
	default:
		return fmt.Sprintf("UpdateMappings(%d)", int(u))
	}
}

// ParseUpdateMappings parses the String form of an UpdateMappings value
func ParseUpdateMappings(s string) (UpdateMappings, error) {
	for _, u := range []UpdateMappings{NoUpdate, Deferred, Immediate} {
		if u.String() == s {
			return u, nil
		}
	}
	return NoUpdate, fmt.Errorf("%w: unknown mapping update mode %q", ErrInvalidArgument, s)
}

// changeSet collects the fields of one alter request
type changeSet map[string]any

func (c changeSet) name(key string, u Update[string], current string) error {
	if u.IsClear() {
		return fmt.Errorf("%w: %s cannot be cleared", ErrInvalidArgument, key)
	}
	if v, ok := u.Value(); ok {
		if v == "" {
			return fmt.Errorf("%w: %s cannot be empty", ErrInvalidArgument, key)
		}
		if v != current {
			c[key] = v
		}
	}
	return nil
}

func (c changeSet) nullableString(key string, u Update[string]) {
	if u.IsClear() {
		c[key] = nil
	} else if v, ok := u.Value(); ok {
		c[key] = v
	}
}

func (c changeSet) mapping(key string, u Update[map[string]any]) {
	if u.IsClear() {
		c[key] = map[string]any{}
	} else if v, ok := u.Value(); ok {
		c[key] = jsondoc.CloneMap(v)
	}
}

func (c changeSet) has(key string) bool {
	_, ok := c[key]
	return ok
}

// response returns the server-digested value of an altered field, falling
// back to the value that was sent
func (c changeSet) response(changed map[string]any, key string) any {
	if v, ok := changed[key]; ok {
		return v
	}
	return c[key]
}

func (c changeSet) responseString(changed map[string]any, key string) string {
	s, _ := c.response(changed, key).(string)
	return s
}

func (c changeSet) responseNullableString(changed map[string]any, key string) *string {
	if s, ok := c.response(changed, key).(string); ok {
		return &s
	}
	return nil
}

func (c changeSet) responseMap(changed map[string]any, key string) map[string]any {
	m, _ := jsondoc.Clone(c.response(changed, key)).(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m
}
