package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bloodagent/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the CSV header row, one row per analyte.
var columns = []string{
	"Document ID",
	"Filename",
	"State",
	"Panel",
	"Analyte",
	"Value",
	"Unit",
	"Reference Range",
	"Flag",
	"LOINC Code",
	"LOINC Display",
	"LOINC Tier",
	"LOINC Confidence",
	"Error Kind",
	"Completed At",
}

// Writer wraps csv.Writer for exporting pipeline results as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteResults writes one row per analyte. A result without analytes still
// gets a single row carrying its state and error.
func (w *Writer) WriteResults(results []*domain.PipelineResult) error {
	for _, r := range results {
		for _, row := range resultRows(r) {
			if err := w.csv.Write(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

func resultRows(r *domain.PipelineResult) [][]string {
	base := make([]string, len(columns))
	base[0] = r.DocumentID
	base[1] = r.Filename
	base[2] = string(r.State)
	if r.Error != nil {
		base[13] = string(r.Error.Kind)
	}
	base[14] = formatTime(r.CompletedAt)

	if r.LabResult == nil || len(r.LabResult.Analytes) == 0 {
		return [][]string{base}
	}
	base[3] = r.LabResult.PanelName

	rows := make([][]string, 0, len(r.LabResult.Analytes))
	for i := range r.LabResult.Analytes {
		a := &r.LabResult.Analytes[i]
		row := append([]string(nil), base...)
		row[4] = a.Name
		row[5] = a.Value.String()
		row[6] = a.Unit
		row[7] = a.ReferenceRange
		row[8] = a.Flag
		if a.LOINCCode != nil {
			row[9] = *a.LOINCCode
		}
		row[10] = a.LOINCDisplay
		row[11] = a.LOINCTier
		row[12] = strconv.FormatFloat(a.LOINCConfidence, 'f', 2, 64)
		rows = append(rows, row)
	}
	return rows
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a report name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition header.
// Format: {sanitized_report_name}_{YYYY-MM-DD}.csv
func BuildFilename(reportName string, now time.Time) string {
	return fmt.Sprintf("%s_%s.csv", SanitizeFilename(reportName), now.Format("2006-01-02"))
}
