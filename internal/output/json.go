package output

import (
	"encoding/json"

	"github.com/pinmap/pinmap/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

type drawDocument struct {
	View  *core.MapView     `json:"view,omitempty"`
	Batch *core.BatchResult `json:"batch,omitempty"`
}

// FormatDraw renders a composed view as JSON.
func (f *JSONFormatter) FormatDraw(view *core.MapView, batch *core.BatchResult) (string, error) {
	doc := drawDocument{View: view, Batch: batch}

	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
