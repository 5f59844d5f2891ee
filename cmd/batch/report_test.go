package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bloodagent/internal/domain"
)

func sampleResults() []*domain.PipelineResult {
	code := "718-7"
	return []*domain.PipelineResult{
		{
			DocumentID: "doc-1",
			Filename:   "cbc.pdf",
			State:      domain.StateCompleted,
			LabResult: &domain.LabResult{
				DocumentID: "doc-1",
				PanelName:  "CBC",
				Analytes: []domain.Analyte{
					{Name: "Hgb", Value: domain.NumberValue(13.5), Unit: "g/dL", LOINCCode: &code, LOINCTier: domain.LOINCTierSynonym, LOINCConfidence: 0.9},
					{Name: "Mystery", Value: domain.TextValue("negative"), LOINCTier: domain.LOINCTierNone},
				},
			},
			Coverage: &domain.Coverage{Total: 2, Matched: 1, Unmatched: 1, Percentage: 50},
		},
		{
			DocumentID: "doc-2",
			Filename:   "ferritin.png",
			State:      domain.StateFailed,
			Error:      &domain.ErrorDetail{Stage: domain.StageExtraction, Kind: domain.ErrorKindProviderUnavailable, Message: "503"},
		},
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, sampleResults())

	out := buf.String()
	assert.Contains(t, out, "documents: 2")
	assert.Contains(t, out, "completed  1")
	assert.Contains(t, out, "failed     1")
	assert.Contains(t, out, "loinc coverage: 1/2 (50.0%)")
	assert.Contains(t, out, "ferritin.png: failed at extraction (provider_unavailable)")
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.xlsx")
	require.NoError(t, writeWorkbook(path, sampleResults()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	docs, err := f.GetRows(sheetDocuments)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "cbc.pdf", docs[1][1])
	assert.Equal(t, "completed", docs[1][2])
	assert.Equal(t, "provider_unavailable", docs[2][10])

	analytes, err := f.GetRows(sheetAnalytes)
	require.NoError(t, err)
	require.Len(t, analytes, 3)
	assert.Equal(t, "Hgb", analytes[1][2])
	assert.Equal(t, "718-7", analytes[1][7])
	assert.Equal(t, "negative", analytes[2][3])
}

func TestCollect_SkipsRejectsAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("Hemoglobin 13.5 g/dL"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("Hemoglobin 13.5 g/dL"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.docx"), []byte("PK"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d.txt"), []byte("Glucose 5.4 mmol/L"), 0o600))

	docs, err := collect(dir, 1<<20, newDeduper())

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.txt", docs[0].Filename)
	assert.Equal(t, "d.txt", docs[1].Filename)
}

func TestParseFlags_CLILayer(t *testing.T) {
	o, err := parseFlags([]string{"-d", "/tmp/reports", "--provider", "ollama", "--base-url", "http://localhost:11434/v1", "-c", "4", "-l", "mkd+eng"})
	require.NoError(t, err)

	layer := o.cliLayer()
	assert.Equal(t, "/tmp/reports", o.dir)
	assert.Equal(t, 4, o.concurrency)
	assert.Equal(t, "mkd+eng", o.language)
	assert.Equal(t, "ollama", layer.Provider)
	assert.Equal(t, "http://localhost:11434/v1", layer.BaseURL)
}

func TestWriteReport_CSVAndUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.csv")
	require.NoError(t, writeReport(path, sampleResults()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}))
	assert.Contains(t, string(data), "cbc.pdf")
	assert.Contains(t, string(data), "718-7")

	assert.Error(t, writeReport(filepath.Join(dir, "results.json"), sampleResults()))
}
