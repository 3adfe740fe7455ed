package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
)

// ParseCSV reads a comma-separated broker export.
func ParseCSV(r io.Reader, name string) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // tolerate ragged rows
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ingest: read csv %s: %w", name, err)
	}
	return Normalize(records, name)
}
