package output

import (
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/pinmap/pinmap/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatDraw renders a composed view as a table.
func (f *TableFormatter) FormatDraw(view *core.MapView, batch *core.BatchResult) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Marker", "Source", "Status", "Notes"})

	if batch != nil {
		for _, r := range batch.Results {
			if r == nil {
				continue
			}
			t.AppendRow(table.Row{
				markerName(r),
				r.Provenance.Source,
				statusLabel(r),
				formatNotes(r),
			})
		}
	}

	if batch != nil && (batch.Added > 0 || batch.Failed > 0) {
		t.AppendFooter(table.Row{"", "", batchSummary(batch), ""})
	}

	rendered := t.Render()
	if view != nil {
		rendered += "\n" + viewSummary(view)
	}
	return rendered, nil
}
