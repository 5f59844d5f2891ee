package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"bloodagent/internal/csvexport"
	"bloodagent/internal/domain"
)

const (
	sheetDocuments = "Documents"
	sheetAnalytes  = "Analytes"
)

var stateOrder = []domain.DocumentState{domain.StateCompleted, domain.StateFailed, domain.StateCancelled}

func printSummary(w io.Writer, results []*domain.PipelineResult) {
	counts := make(map[domain.DocumentState]int)
	var coverage domain.Coverage
	for _, r := range results {
		counts[r.State]++
		if r.Coverage != nil {
			coverage = coverage.Add(*r.Coverage)
		}
	}

	fmt.Fprintf(w, "documents: %d\n", len(results))
	for _, s := range stateOrder {
		fmt.Fprintf(w, "  %-10s %d\n", s, counts[s])
	}
	fmt.Fprintf(w, "loinc coverage: %d/%d (%.1f%%)\n", coverage.Matched, coverage.Total, coverage.Percentage)

	failed := make([]*domain.PipelineResult, 0)
	for _, r := range results {
		if r.Error != nil {
			failed = append(failed, r)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Filename < failed[j].Filename })
	for _, r := range failed {
		fmt.Fprintf(w, "  %s: %s at %s (%s)\n", r.Filename, r.State, r.Error.Stage, r.Error.Kind)
	}
}

// writeReport picks the output format from the file extension.
func writeReport(path string, results []*domain.PipelineResult) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return writeWorkbook(path, results)
	case ".csv":
		return writeCSV(path, results)
	default:
		return fmt.Errorf("unsupported report format %q: use .xlsx or .csv", filepath.Ext(path))
	}
}

func writeCSV(path string, results []*domain.PipelineResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(csvexport.BOM); err != nil {
		return err
	}
	w := csvexport.NewWriter(f)
	if err := w.WriteHeader(); err != nil {
		return err
	}
	if err := w.WriteResults(results); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// writeWorkbook saves one row per document and one row per analyte.
func writeWorkbook(path string, results []*domain.PipelineResult) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetDocuments); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetAnalytes); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	docHeader := []interface{}{"Document ID", "Filename", "State", "Provider", "Model", "Panel", "Analytes", "LOINC Matched", "Coverage %", "Error Stage", "Error Kind", "Error"}
	if err := f.SetSheetRow(sheetDocuments, "A1", &docHeader); err != nil {
		return err
	}
	analyteHeader := []interface{}{"Document ID", "Filename", "Analyte", "Value", "Unit", "Reference Range", "Flag", "LOINC Code", "LOINC Display", "Tier", "Confidence"}
	if err := f.SetSheetRow(sheetAnalytes, "A1", &analyteHeader); err != nil {
		return err
	}

	analyteRow := 2
	for i, r := range results {
		if err := f.SetSheetRow(sheetDocuments, cell(1, i+2), documentRow(r)); err != nil {
			return err
		}
		if r.LabResult == nil {
			continue
		}
		for _, a := range r.LabResult.Analytes {
			code := ""
			if a.LOINCCode != nil {
				code = *a.LOINCCode
			}
			row := []interface{}{r.DocumentID, r.Filename, a.Name, a.Value.String(), a.Unit, a.ReferenceRange, a.Flag, code, a.LOINCDisplay, a.LOINCTier, a.LOINCConfidence}
			if err := f.SetSheetRow(sheetAnalytes, cell(1, analyteRow), &row); err != nil {
				return err
			}
			analyteRow++
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func documentRow(r *domain.PipelineResult) *[]interface{} {
	var panel string
	var analytes int
	if r.LabResult != nil {
		panel = r.LabResult.PanelName
		analytes = len(r.LabResult.Analytes)
	}
	var matched int
	var pct float64
	if r.Coverage != nil {
		matched = r.Coverage.Matched
		pct = r.Coverage.Percentage
	}
	var stage, kind, msg string
	if r.Error != nil {
		stage, kind, msg = string(r.Error.Stage), string(r.Error.Kind), r.Error.Message
	}
	row := []interface{}{r.DocumentID, r.Filename, string(r.State), string(r.ModelProvider), r.ModelName, panel, analytes, matched, pct, stage, kind, msg}
	return &row
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
