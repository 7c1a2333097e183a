// Package catalog is the boundary to the remote catalog service. The model
// tree talks to the service only through the Client interface.
package catalog

import (
	"context"
	"strings"
)

// Client performs JSON requests against catalog resource paths such as
// "/schema/isa/table/dataset". Bodies are marshaled as JSON and responses
// are decoded into result when it is non-nil.
type Client interface {
	Get(ctx context.Context, path string, result any) error
	Put(ctx context.Context, path string, body, result any) error
	Post(ctx context.Context, path string, body, result any) error
	Delete(ctx context.Context, path string) error
}

// Request is a recorded catalog call
type Request struct {
	Method string
	Path   string
	Body   any
}

const unreserved = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_.~"

// Escape quotes a model element name for use as one path segment. Only
// unreserved characters pass through, so names containing ':' ',' or '/'
// cannot be confused with path syntax.
func Escape(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if strings.IndexByte(unreserved, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte("0123456789ABCDEF"[c>>4])
		b.WriteByte("0123456789ABCDEF"[c&15])
	}
	return b.String()
}

// JoinNames escapes each name and joins them with commas
func JoinNames(names []string) string {
	escaped := make([]string, len(names))
	for i, n := range names {
		escaped[i] = Escape(n)
	}
	return strings.Join(escaped, ",")
}
