package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/catalogmodel/internal/model"
)

// TextFormatter formats a model as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes every table of the model in compact text format
func (f *TextFormatter) Format(m *model.Model) error {
	for i, table := range tables(m) {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer) // Blank line between tables
		}
		f.formatTable(table)
	}
	return nil
}

func (f *TextFormatter) formatTable(table *model.Table) {
	_, _ = fmt.Fprintf(f.writer, "TABLE %s\n", model.DisplayName(table))
	if table.Comment != nil {
		_, _ = fmt.Fprintf(f.writer, "  -- %s\n", *table.Comment)
	}

	for _, col := range table.Columns() {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", formatColumn(col))
	}

	if keys := table.Keys(); len(keys) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  KEYS:")
		for _, k := range keys {
			_, _ = fmt.Fprintf(f.writer, "    %s (%s)\n", k.Name(), strings.Join(k.ColumnNames(), ", "))
		}
	}

	if fkeys := table.ForeignKeys(); len(fkeys) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  REFERENCES:")
		for _, fk := range fkeys {
			_, _ = fmt.Fprintf(f.writer, "    %s: %s\n", fk.Name(), formatReference(fk))
		}
	}

	if refs := table.ReferencedBy(); len(refs) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  REFERENCED BY:")
		for _, fk := range refs {
			_, _ = fmt.Fprintf(f.writer, "    %s (%s) via %s\n",
				model.DisplayName(fk.Table()), strings.Join(columnNames(fk.Columns()), ", "), fk.Name())
		}
	}
}

func formatColumn(col *model.Column) string {
	parts := []string{col.Name() + ":", col.Type.Name}

	if !col.NullOK {
		parts = append(parts, "NOT NULL")
	}

	if col.Default != nil {
		parts = append(parts, "DEFAULT "+formatValue(col.Default))
	}

	if col.Comment != nil {
		parts = append(parts, "-- "+*col.Comment)
	}

	return strings.Join(parts, " ")
}

// formatReference renders "cols → schema.table (cols)" plus any actions
func formatReference(fk *model.ForeignKey) string {
	target := "?"
	if fk.PKTable() != nil {
		target = model.DisplayName(fk.PKTable())
	}
	s := fmt.Sprintf("%s → %s (%s)",
		strings.Join(columnNames(fk.Columns()), ", "),
		target,
		strings.Join(columnNames(fk.ReferencedColumns()), ", "))
	if action := referenceAction(fk.OnUpdate); action != "" {
		s += " ON UPDATE " + action
	}
	if action := referenceAction(fk.OnDelete); action != "" {
		s += " ON DELETE " + action
	}
	return s
}

// referenceAction hides the default NO ACTION
func referenceAction(action *string) string {
	if action == nil || *action == "NO ACTION" {
		return ""
	}
	return *action
}

func formatValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func columnNames(cols []*model.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name()
	}
	return names
}

// tables lists every table of the model in schema then table order
func tables(m *model.Model) []*model.Table {
	var out []*model.Table
	for _, s := range m.Schemas() {
		out = append(out, s.Tables()...)
	}
	return out
}
