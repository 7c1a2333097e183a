package formatter

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/tordrt/catalogmodel/internal/jsondoc"
	"github.com/tordrt/catalogmodel/internal/mmo"
	"github.com/tordrt/catalogmodel/internal/model"
)

// PlanFormatter prints pending changes and symbol matches. Fields being set
// are green; fields being cleared are red.
type PlanFormatter struct {
	writer io.Writer
	header *color.Color
	set    *color.Color
	clear  *color.Color
	dim    *color.Color
}

// NewPlanFormatter creates a plan formatter. Without useColor the output
// carries no escape codes.
func NewPlanFormatter(w io.Writer, useColor bool) *PlanFormatter {
	f := &PlanFormatter{
		writer: w,
		header: color.New(color.Bold),
		set:    color.New(color.FgGreen),
		clear:  color.New(color.FgRed),
		dim:    color.New(color.Faint),
	}
	for _, c := range []*color.Color{f.header, f.set, f.clear, f.dim} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return f
}

// FormatChanges writes one block per change
func (f *PlanFormatter) FormatChanges(changes []model.Change) {
	if len(changes) == 0 {
		_, _ = fmt.Fprintln(f.writer, "no changes")
		return
	}
	for _, c := range changes {
		_, _ = f.header.Fprintf(f.writer, "~ %s %s\n", c.Kind, c.Node)
		_, _ = f.dim.Fprintf(f.writer, "  PUT %s\n", c.Path)
		for _, field := range jsondoc.SortedKeys(c.Fields) {
			value := c.Fields[field]
			if value == nil {
				_, _ = f.clear.Fprintf(f.writer, "  - %s\n", field)
				continue
			}
			_, _ = f.set.Fprintf(f.writer, "  + %s: %s\n", field, formatValue(value))
		}
	}
	_, _ = fmt.Fprintf(f.writer, "%d change(s)\n", len(changes))
}

// FormatMatches writes one line per symbol match
func (f *PlanFormatter) FormatMatches(matches []mmo.Match) {
	for _, m := range matches {
		_, _ = f.header.Fprintf(f.writer, "%s", model.DisplayName(m.Anchor))
		_, _ = f.dim.Fprintf(f.writer, " %s", m.Tag)
		if m.Context != "" {
			_, _ = f.dim.Fprintf(f.writer, " [%s]", m.Context)
		}
		_, _ = fmt.Fprintf(f.writer, " %s\n", formatValue(m.Mapping))
	}
	_, _ = fmt.Fprintf(f.writer, "%d match(es)\n", len(matches))
}

// FormatReport writes the matches of a replace or prune, then any shapes
// that were left untouched
func (f *PlanFormatter) FormatReport(action string, report mmo.Report) {
	_, _ = fmt.Fprintf(f.writer, "%s:\n", action)
	f.FormatMatches(report.Matches)
	if len(report.Unhandled) > 0 {
		_, _ = f.clear.Fprintf(f.writer, "unhandled:\n")
		f.FormatMatches(report.Unhandled)
	}
}
