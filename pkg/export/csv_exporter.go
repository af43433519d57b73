package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

// Dataset is tabular export content. Rows are keyed by header name and
// a missing key renders as an empty cell, so sparse rows are fine.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders a Dataset as RFC 4180 CSV.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render returns the dataset encoded as CSV bytes.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.WriteTo(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo streams the dataset as CSV onto w.
func (e *CSVExporter) WriteTo(w io.Writer, data Dataset) error {
	if len(data.Headers) == 0 {
		return fmt.Errorf("csv export: dataset has no headers")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(data.Headers); err != nil {
		return fmt.Errorf("csv export: header row: %w", err)
	}

	cells := make([]string, len(data.Headers))
	for i, row := range data.Rows {
		for j, header := range data.Headers {
			cells[j] = row[header]
		}
		if err := cw.Write(cells); err != nil {
			return fmt.Errorf("csv export: row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csv export: flush: %w", err)
	}
	return nil
}
