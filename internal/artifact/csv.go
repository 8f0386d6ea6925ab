package artifact

import (
	"encoding/csv"
	"strings"
)

// csvHeader is the column layout of a downloadable mismatch table.
var csvHeader = []string{
	"DirectoryID", "ExternalID", "Email", "MismatchType",
	"SourceValue", "TargetValue", "Timestamp", "Details",
}

// CSVBuilder accumulates mismatch rows and serializes them as RFC 4180 CSV.
// Not safe for concurrent use; each run owns exactly one builder.
type CSVBuilder struct {
	buf    strings.Builder
	writer *csv.Writer
	rows   int
}

// NewCSVBuilder creates a builder with the header row already written.
func NewCSVBuilder() *CSVBuilder {
	b := &CSVBuilder{}
	b.writer = csv.NewWriter(&b.buf)
	_ = b.writer.Write(csvHeader)
	return b
}

// Append adds one mismatch row.
func (b *CSVBuilder) Append(directoryID, externalID, email, mismatchType, sourceValue, targetValue, timestamp, details string) {
	_ = b.writer.Write([]string{
		directoryID, externalID, email, mismatchType,
		sourceValue, targetValue, timestamp, details,
	})
	b.rows++
}

// Rows reports how many mismatch rows have been appended.
func (b *CSVBuilder) Rows() int { return b.rows }

// String flushes and returns the full CSV document.
func (b *CSVBuilder) String() string {
	b.writer.Flush()
	return b.buf.String()
}
