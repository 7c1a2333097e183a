// Package tag lists the annotation tag identifiers understood by the
// catalog tooling and provides typed accessors for them.
package tag

import (
	"fmt"
	"sort"
)

// Annotation tag identifiers
const (
	Display                   = "tag:misd.isi.edu,2015:display"
	TableAlternatives         = "tag:isrd.isi.edu,2016:table-alternatives"
	ColumnDisplay             = "tag:isrd.isi.edu,2016:column-display"
	KeyDisplay                = "tag:isrd.isi.edu,2017:key-display"
	ForeignKey                = "tag:isrd.isi.edu,2016:foreign-key"
	Generated                 = "tag:isrd.isi.edu,2016:generated"
	Immutable                 = "tag:isrd.isi.edu,2016:immutable"
	NonDeletable              = "tag:isrd.isi.edu,2016:non-deletable"
	AppLinks                  = "tag:isrd.isi.edu,2016:app-links"
	TableDisplay              = "tag:isrd.isi.edu,2016:table-display"
	VisibleColumns            = "tag:isrd.isi.edu,2016:visible-columns"
	VisibleForeignKeys        = "tag:isrd.isi.edu,2016:visible-foreign-keys"
	Export                    = "tag:isrd.isi.edu,2016:export"
	Export2019                = "tag:isrd.isi.edu,2019:export"
	ExportFragmentDefinitions = "tag:isrd.isi.edu,2021:export-fragment-definitions"
	Asset                     = "tag:isrd.isi.edu,2017:asset"
	Citation                  = "tag:isrd.isi.edu,2018:citation"
	Required                  = "tag:isrd.isi.edu,2018:required"
	IndexingPreferences       = "tag:isrd.isi.edu,2018:indexing-preferences"
	BulkUpload                = "tag:isrd.isi.edu,2017:bulk-upload"
	ChaiseConfig              = "tag:isrd.isi.edu,2019:chaise-config"
	SourceDefinitions         = "tag:isrd.isi.edu,2019:source-definitions"
	GoogleDataset             = "tag:isrd.isi.edu,2021:google-dataset"
	ColumnDefaults            = "tag:isrd.isi.edu,2023:column-defaults"
	Viz3DDisplay              = "tag:isrd.isi.edu,2021:viz-3d-display"
)

// Kind tells whether a tag carries a document or only marks presence
type Kind int

const (
	// Object tags hold a mapping document
	Object Kind = iota
	// Presence tags hold null and matter only by being present
	Presence
)

// Node is a bit set of the model node kinds a tag applies to
type Node uint8

const (
	OnModel Node = 1 << iota
	OnSchema
	OnTable
	OnColumn
	OnKey
	OnForeignKey
)

// Accessor is a typed view of one tag on an annotation map
type Accessor struct {
	Name  string
	URI   string
	Kind  Kind
	Nodes Node
}

// Accessors is the declarative tag table, keyed by short name
var Accessors = map[string]Accessor{
	"display":                     {"display", Display, Object, OnModel | OnSchema | OnTable | OnColumn},
	"table_alternatives":          {"table_alternatives", TableAlternatives, Object, OnTable},
	"column_display":              {"column_display", ColumnDisplay, Object, OnColumn},
	"key_display":                 {"key_display", KeyDisplay, Object, OnKey},
	"foreign_key":                 {"foreign_key", ForeignKey, Object, OnForeignKey},
	"generated":                   {"generated", Generated, Presence, OnModel | OnSchema | OnTable | OnColumn},
	"immutable":                   {"immutable", Immutable, Presence, OnModel | OnSchema | OnTable | OnColumn},
	"non_deletable":               {"non_deletable", NonDeletable, Presence, OnModel | OnSchema | OnTable},
	"app_links":                   {"app_links", AppLinks, Object, OnTable},
	"table_display":               {"table_display", TableDisplay, Object, OnTable},
	"visible_columns":             {"visible_columns", VisibleColumns, Object, OnTable},
	"visible_foreign_keys":        {"visible_foreign_keys", VisibleForeignKeys, Object, OnTable},
	"export":                      {"export", Export, Object, OnTable},
	"export_2019":                 {"export_2019", Export2019, Object, OnModel | OnSchema | OnTable},
	"export_fragment_definitions": {"export_fragment_definitions", ExportFragmentDefinitions, Object, OnModel | OnSchema | OnTable},
	"asset":                       {"asset", Asset, Object, OnColumn},
	"citation":                    {"citation", Citation, Object, OnTable},
	"required":                    {"required", Required, Presence, OnColumn},
	"indexing_preferences":        {"indexing_preferences", IndexingPreferences, Object, OnTable},
	"bulk_upload":                 {"bulk_upload", BulkUpload, Object, OnModel},
	"chaise_config":               {"chaise_config", ChaiseConfig, Object, OnModel},
	"source_definitions":          {"source_definitions", SourceDefinitions, Object, OnTable},
	"google_dataset":              {"google_dataset", GoogleDataset, Object, OnTable},
	"column_defaults":             {"column_defaults", ColumnDefaults, Object, OnModel | OnSchema},
	"viz_3d_display":              {"viz_3d_display", Viz3DDisplay, Object, OnTable},
}

// Lookup returns the accessor for a short name such as "visible_columns"
func Lookup(name string) (Accessor, bool) {
	a, ok := Accessors[name]
	return a, ok
}

// ByURI returns the accessor for a full tag identifier
func ByURI(uri string) (Accessor, bool) {
	for _, a := range Accessors {
		if a.URI == uri {
			return a, true
		}
	}
	return Accessor{}, false
}

// Names returns the short names of every known tag, sorted
func Names() []string {
	names := make([]string, 0, len(Accessors))
	for n := range Accessors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AppliesTo reports whether the tag is meaningful on the given node kind
func (a Accessor) AppliesTo(n Node) bool {
	return a.Nodes&n != 0
}

// Present reports whether the tag is set on the annotation map
func (a Accessor) Present(annotations map[string]any) bool {
	_, ok := annotations[a.URI]
	return ok
}

// SetPresent adds or removes a presence tag
func (a Accessor) SetPresent(annotations map[string]any, present bool) {
	if present {
		annotations[a.URI] = nil
	} else {
		delete(annotations, a.URI)
	}
}

// Get returns the mapping document stored under an object tag
func (a Accessor) Get(annotations map[string]any) (map[string]any, bool) {
	v, ok := annotations[a.URI].(map[string]any)
	return v, ok
}

// Set stores a mapping document under an object tag
func (a Accessor) Set(annotations map[string]any, value map[string]any) error {
	if a.Kind != Object {
		return fmt.Errorf("tag %s does not hold a document", a.Name)
	}
	if value == nil {
		return fmt.Errorf("tag %s requires a mapping value", a.Name)
	}
	annotations[a.URI] = value
	return nil
}

// Delete removes the tag from the annotation map
func (a Accessor) Delete(annotations map[string]any) {
	delete(annotations, a.URI)
}
