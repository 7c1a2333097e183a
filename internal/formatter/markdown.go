package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/catalogmodel/internal/model"
)

// MarkdownFormatter formats a model as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the model in markdown format
func (f *MarkdownFormatter) Format(m *model.Model) error {
	_, _ = fmt.Fprintln(f.writer, "# Catalog Model")
	_, _ = fmt.Fprintln(f.writer)

	for _, table := range tables(m) {
		f.FormatTable(table)
	}
	return nil
}

// FormatTable formats a single table (exported for use by multifile formatter)
func (f *MarkdownFormatter) FormatTable(table *model.Table) {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", model.DisplayName(table))
	if table.Comment != nil {
		_, _ = fmt.Fprintf(f.writer, "%s\n\n", *table.Comment)
	}

	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)
	for _, col := range table.Columns() {
		if constraints := f.formatConstraints(col); constraints != "" {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s, %s\n", col.Name(), col.Type.Name, constraints)
		} else {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", col.Name(), col.Type.Name)
		}
	}
	_, _ = fmt.Fprintln(f.writer)

	if keys := table.Keys(); len(keys) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Keys")
		_, _ = fmt.Fprintln(f.writer)
		for _, k := range keys {
			_, _ = fmt.Fprintf(f.writer, "- %s on (%s)\n", k.Name(), strings.Join(k.ColumnNames(), ", "))
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if fkeys := table.ForeignKeys(); len(fkeys) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### References")
		_, _ = fmt.Fprintln(f.writer)
		for _, fk := range fkeys {
			_, _ = fmt.Fprintf(f.writer, "- %s: %s\n", fk.Name(), formatReference(fk))
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	if refs := table.ReferencedBy(); len(refs) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Referenced by")
		_, _ = fmt.Fprintln(f.writer)
		for _, fk := range refs {
			_, _ = fmt.Fprintf(f.writer, "- %s (%s) via %s\n",
				model.DisplayName(fk.Table()), strings.Join(columnNames(fk.Columns()), ", "), fk.Name())
		}
		_, _ = fmt.Fprintln(f.writer)
	}
}

func (f *MarkdownFormatter) formatConstraints(col *model.Column) string {
	var constraints []string

	for _, k := range col.Table().Keys() {
		if names := k.ColumnNames(); len(names) == 1 && names[0] == col.Name() {
			constraints = append(constraints, "UNIQUE")
			break
		}
	}

	if !col.NullOK {
		constraints = append(constraints, "NOT NULL")
	}

	if col.Default != nil {
		constraints = append(constraints, "DEFAULT "+formatValue(col.Default))
	}

	if col.Comment != nil {
		constraints = append(constraints, *col.Comment)
	}

	return strings.Join(constraints, ", ")
}
