package report

import (
	"fmt"
	"strings"
)

// SchemaError reports mandatory columns missing from a report header.
// Ingestion stops and no store state is touched.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "report missing mandatory columns: " + strings.Join(e.Missing, ", ")
}

// RowError describes one report row that was dropped.
type RowError struct {
	// Line is the 1-based line of a CSV row, or the 1-based row ordinal in a Parquet file.
	Line   int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Line, e.Reason)
}
