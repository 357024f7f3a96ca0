package output

import (
	"fmt"
	"strings"

	"github.com/pinmap/pinmap/internal/core"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// FormatDraw renders a composed view as Markdown.
func (f *MarkdownFormatter) FormatDraw(view *core.MapView, batch *core.BatchResult) (string, error) {
	var sb strings.Builder
	sb.WriteString("## Map markers\n\n")
	if view != nil {
		sb.WriteString(fmt.Sprintf("%s\n\n", viewSummary(view)))
	}
	sb.WriteString("| Marker | Source | Status | Notes |\n")
	sb.WriteString("|--------|--------|--------|-------|\n")

	if batch != nil {
		for _, r := range batch.Results {
			if r == nil {
				continue
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				escapeMarkdownCell(markerName(r)),
				escapeMarkdownCell(r.Provenance.Source),
				escapeMarkdownCell(statusLabel(r)),
				escapeMarkdownCell(formatNotes(r)),
			))
		}

		if batch.Added > 0 || batch.Failed > 0 {
			sb.WriteString(fmt.Sprintf("\n**Summary**: %s\n", batchSummary(batch)))
		}
	}

	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
