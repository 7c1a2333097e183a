package db

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tordrt/catalogmodel/internal/model"
)

// Extractor reads the structure of a live database into a catalog document
type Extractor interface {
	ExtractModel(ctx context.Context, tables []string) (*model.ModelDoc, error)
}

// tableInfo names one table found during extraction
type tableInfo struct {
	schema  string
	name    string
	comment *string
	// source is the name in the database when it differs from name
	source string
}

func newModelDoc() *model.ModelDoc {
	return &model.ModelDoc{
		ACLs:        map[string]any{},
		Annotations: map[string]any{},
		Schemas:     map[string]*model.SchemaDoc{},
	}
}

// addTable places a table document in its schema, creating the schema on first use
func addTable(doc *model.ModelDoc, t *model.TableDoc) {
	s, ok := doc.Schemas[t.SchemaName]
	if !ok {
		s = &model.SchemaDoc{
			SchemaName:  t.SchemaName,
			ACLs:        map[string]any{},
			Annotations: map[string]any{},
			Tables:      map[string]*model.TableDoc{},
		}
		doc.Schemas[t.SchemaName] = s
	}
	s.Tables[t.TableName] = t
}

func newTableDoc(info tableInfo) *model.TableDoc {
	return &model.TableDoc{
		SchemaName:        info.schema,
		TableName:         info.name,
		Kind:              "table",
		ACLs:              map[string]any{},
		ACLBindings:       map[string]any{},
		Annotations:       map[string]any{},
		Comment:           info.comment,
		ColumnDefinitions: []*model.ColumnDoc{},
		Keys:              []*model.KeyDoc{},
		ForeignKeys:       []*model.ForeignKeyDoc{},
	}
}

func newColumnDoc(name string, typ *model.TypeDoc, nullable bool, def any, comment *string) *model.ColumnDoc {
	return &model.ColumnDoc{
		Name:        name,
		Type:        typ,
		NullOK:      &nullable,
		Default:     def,
		Comment:     comment,
		ACLs:        map[string]any{},
		ACLBindings: map[string]any{},
		Annotations: map[string]any{},
	}
}

func newKeyDoc(schemaName, name string, columns []string, comment *string) *model.KeyDoc {
	return &model.KeyDoc{
		UniqueColumns: columns,
		Names:         [][]string{{schemaName, name}},
		Comment:       comment,
		Annotations:   map[string]any{},
	}
}

// foreignKeyInfo collects the rows of one foreign key constraint
type foreignKeyInfo struct {
	name     string
	pkSchema string
	pkTable  string
	columns  []string
	refs     []string
	onUpdate string
	onDelete string
	comment  *string
}

func newForeignKeyDoc(t *model.TableDoc, fk foreignKeyInfo) *model.ForeignKeyDoc {
	doc := &model.ForeignKeyDoc{
		Names:       [][]string{{t.SchemaName, fk.name}},
		Comment:     fk.comment,
		ACLs:        map[string]any{},
		ACLBindings: map[string]any{},
		Annotations: map[string]any{},
	}
	for i, c := range fk.columns {
		doc.ForeignKeyColumns = append(doc.ForeignKeyColumns, model.ColumnRef{
			SchemaName: t.SchemaName, TableName: t.TableName, ColumnName: c,
		})
		doc.ReferencedColumns = append(doc.ReferencedColumns, model.ColumnRef{
			SchemaName: fk.pkSchema, TableName: fk.pkTable, ColumnName: fk.refs[i],
		})
	}
	if fk.onUpdate != "" {
		doc.OnUpdate = &fk.onUpdate
	}
	if fk.onDelete != "" {
		doc.OnDelete = &fk.onDelete
	}
	return doc
}

// typeDoc returns the document form of a builtin type, or a plain named type
func typeDoc(name string) *model.TypeDoc {
	if t, ok := model.BuiltinType(name); ok {
		return t.Doc()
	}
	return &model.TypeDoc{TypeName: name}
}

func arrayTypeDoc(base *model.TypeDoc) *model.TypeDoc {
	return &model.TypeDoc{TypeName: base.TypeName + "[]", IsArray: true, BaseType: base}
}

func domainTypeDoc(name string, base *model.TypeDoc) *model.TypeDoc {
	return &model.TypeDoc{TypeName: name, IsDomain: true, BaseType: base}
}

// filterTables keeps the requested tables in request order
func filterTables(found []tableInfo, requested []string) ([]tableInfo, error) {
	if len(requested) == 0 {
		return found, nil
	}
	byName := make(map[string]tableInfo, len(found))
	for _, t := range found {
		byName[t.name] = t
	}
	out := make([]tableInfo, 0, len(requested))
	for _, name := range requested {
		t, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("table %s not found", name)
		}
		out = append(out, t)
	}
	return out, nil
}

var castSuffix = regexp.MustCompile(`::[A-Za-z_][A-Za-z0-9_ ."\[\]]*$`)

// parseDefault converts a column default expression into a literal value.
// Expressions that are not literals yield nil.
func parseDefault(raw string) any {
	s := strings.TrimSpace(raw)
	for castSuffix.MatchString(s) {
		s = strings.TrimSpace(castSuffix.ReplaceAllString(s, ""))
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	switch {
	case s == "" || strings.EqualFold(s, "null"):
		return nil
	case len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'':
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	case strings.EqualFold(s, "true"):
		return true
	case strings.EqualFold(s, "false"):
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
