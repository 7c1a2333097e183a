// Package snapshot keeps named copies of model documents so a later apply
// can reconcile against a known tree instead of a fresh fetch.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/tordrt/catalogmodel/internal/model"
)

// ErrSnapshotNotFound is returned when no snapshot has the requested name
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Store saves and loads model documents by name
type Store interface {
	Save(ctx context.Context, name string, doc *model.ModelDoc) error
	Load(ctx context.Context, name string) (*model.ModelDoc, error)
	List(ctx context.Context) ([]string, error)
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

func checkName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid snapshot name %q", name)
	}
	return nil
}

func encode(doc *model.ModelDoc) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

func decode(name string, data []byte) (*model.ModelDoc, error) {
	var doc model.ModelDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", name, err)
	}
	return &doc, nil
}

// Capture saves the current document of a model
func Capture(ctx context.Context, s Store, name string, m *model.Model) error {
	return s.Save(ctx, name, m.Document())
}

// Restore loads a snapshot as a model, passing opts to model.New
func Restore(ctx context.Context, s Store, name string, opts ...model.Option) (*model.Model, error) {
	doc, err := s.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	return model.New(doc, opts...)
}
