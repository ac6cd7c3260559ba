package report

import (
	"encoding/json"
	"io"
)

// JSONReporter renders reports as JSON.
type JSONReporter struct {
	pretty bool
}

// NewJSONReporter creates a JSON reporter. When pretty is true,
// output is indented.
func NewJSONReporter(pretty bool) *JSONReporter {
	return &JSONReporter{pretty: pretty}
}

// Generate renders r as JSON.
func (j *JSONReporter) Generate(r *BoardReport) ([]byte, error) {
	if j.pretty {
		return json.MarshalIndent(r, "", "  ")
	}
	return json.Marshal(r)
}

// Write renders r to w.
func (j *JSONReporter) Write(w io.Writer, r *BoardReport) error {
	data, err := j.Generate(r)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
