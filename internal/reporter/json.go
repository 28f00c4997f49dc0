package reporter

import (
	"encoding/json"
	"io"

	"github.com/ppiankov/codespectre/internal/models"
)

// JSONReporter writes an audit run as JSON, one document per call.
type JSONReporter struct {
	writer io.Writer
	pretty bool
}

func NewJSONReporter(writer io.Writer, pretty bool) *JSONReporter {
	return &JSONReporter{
		writer: writer,
		pretty: pretty,
	}
}

// Generate writes the whole run, every finding included.
func (r *JSONReporter) Generate(run *models.AuditRun) error {
	enc := json.NewEncoder(r.writer)
	if r.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(run)
}
