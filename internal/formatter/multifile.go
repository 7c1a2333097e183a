package formatter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tordrt/catalogmodel/internal/model"
)

const (
	formatMarkdown = "markdown"
	formatText     = "text"
)

// MultiFileFormatter writes a model to multiple files in a directory: an
// overview plus one file per schema.table
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) (*MultiFileFormatter, error) {
	if format != formatMarkdown && format != formatText {
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}, nil
}

// Format writes the model to multiple files
func (f *MultiFileFormatter) Format(m *model.Model) error {
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeFile("_overview", func(w io.Writer) { f.writeOverview(w, m) }); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, table := range tables(m) {
		if err := f.writeFile(model.DisplayName(table), func(w io.Writer) { f.writeTable(w, table) }); err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", model.DisplayName(table), err)
		}
	}

	return nil
}

func (f *MultiFileFormatter) writeFile(name string, write func(io.Writer)) error {
	file, err := os.Create(filepath.Join(f.OutputDir, name+f.getFileExtension()))
	if err != nil {
		return err
	}
	write(file)
	return file.Close()
}

// writeOverview lists tables alphabetically with the tables they reference
func (f *MultiFileFormatter) writeOverview(w io.Writer, m *model.Model) {
	ext := f.getFileExtension()
	if f.OutputFormat == formatMarkdown {
		_, _ = fmt.Fprintf(w, "# Catalog Overview\n\n")
		_, _ = fmt.Fprintf(w, "Each table has a corresponding file: `<schema>.<table>%s`\n\n", ext)
		_, _ = fmt.Fprintf(w, "## Tables\n\n")
	} else {
		_, _ = fmt.Fprintf(w, "CATALOG OVERVIEW\n")
		_, _ = fmt.Fprintf(w, "Each table has a file: <schema>.<table>%s\n\n", ext)
	}

	sorted := tables(m)
	sort.Slice(sorted, func(i, j int) bool {
		return model.DisplayName(sorted[i]) < model.DisplayName(sorted[j])
	})

	for _, table := range sorted {
		if f.OutputFormat == formatMarkdown {
			_, _ = fmt.Fprintf(w, "- **%s**", model.DisplayName(table))
		} else {
			_, _ = fmt.Fprintf(w, "%s", model.DisplayName(table))
		}
		if targets := referencedTables(table); len(targets) > 0 {
			_, _ = fmt.Fprintf(w, " (references: %s)", strings.Join(targets, ", "))
		}
		_, _ = fmt.Fprintf(w, "\n")
	}
}

func (f *MultiFileFormatter) writeTable(w io.Writer, table *model.Table) {
	if f.OutputFormat == formatMarkdown {
		NewMarkdownFormatter(w).FormatTable(table)
		return
	}
	NewTextFormatter(w).formatTable(table)
}

// referencedTables names the distinct tables a table's foreign keys point at
func referencedTables(table *model.Table) []string {
	seen := map[string]bool{}
	var targets []string
	for _, fk := range table.ForeignKeys() {
		if fk.PKTable() == nil {
			continue
		}
		name := model.DisplayName(fk.PKTable())
		if !seen[name] {
			seen[name] = true
			targets = append(targets, name)
		}
	}
	return targets
}

func (f *MultiFileFormatter) getFileExtension() string {
	if f.OutputFormat == formatMarkdown {
		return ".md"
	}
	return ".txt"
}
