package csvexport

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodagent/internal/domain"
)

func readAll(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	rows, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader())
	w.Flush()
	require.NoError(t, w.Error())

	rows := readAll(t, &buf)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], len(columns))
	assert.Equal(t, "Document ID", rows[0][0])
	assert.Equal(t, "LOINC Code", rows[0][9])
}

func TestWriteResults_OneRowPerAnalyte(t *testing.T) {
	code := "2345-7"
	done := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	res := &domain.PipelineResult{
		DocumentID:  "doc-1",
		Filename:    "chem, basic.pdf",
		State:       domain.StateCompleted,
		CompletedAt: &done,
		LabResult: &domain.LabResult{
			PanelName: "BMP",
			Analytes: []domain.Analyte{
				{Name: "Glucose", Value: domain.NumberValue(98), Unit: "mg/dL", ReferenceRange: "70-99", LOINCCode: &code, LOINCDisplay: "Glucose [Mass/volume] in Serum or Plasma", LOINCTier: domain.LOINCTierExact, LOINCConfidence: 1},
				{Name: "Urine color", Value: domain.TextValue("yellow"), LOINCTier: domain.LOINCTierNone},
			},
		},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteResults([]*domain.PipelineResult{res}))
	w.Flush()
	require.NoError(t, w.Error())

	rows := readAll(t, &buf)
	require.Len(t, rows, 2)
	assert.Equal(t, "chem, basic.pdf", rows[0][1])
	assert.Equal(t, "BMP", rows[0][3])
	assert.Equal(t, "98", rows[0][5])
	assert.Equal(t, "2345-7", rows[0][9])
	assert.Equal(t, "1.00", rows[0][12])
	assert.Equal(t, "2026-03-01T10:00:00Z", rows[0][14])
	assert.Equal(t, "yellow", rows[1][5])
	assert.Empty(t, rows[1][9])
	assert.Equal(t, "0.00", rows[1][12])
}

func TestWriteResults_FailedDocumentGetsOneRow(t *testing.T) {
	res := &domain.PipelineResult{
		DocumentID: "doc-2",
		Filename:   "scan.png",
		State:      domain.StateFailed,
		Error:      &domain.ErrorDetail{Stage: domain.StageExtraction, Kind: domain.ErrorKindExtractionGap},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteResults([]*domain.PipelineResult{res}))
	w.Flush()

	rows := readAll(t, &buf)
	require.Len(t, rows, 1)
	assert.Equal(t, "failed", rows[0][2])
	assert.Equal(t, "extraction_gap", rows[0][13])
	assert.Empty(t, rows[0][4])
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"cbc report.pdf", "cbc_report_pdf"},
		{"  __a//b__ ", "a_b"},
		{"Лаборатория", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}
}

func TestBuildFilename(t *testing.T) {
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "panel_pdf_2026-01-02.csv", BuildFilename("panel.pdf", now))
}
