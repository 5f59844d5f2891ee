// Package loinc maps analyte names onto LOINC codes using an in-memory
// reference table and reports coverage for each lab result.
package loinc

import (
	"log/slog"

	"bloodagent/internal/domain"
)

// Validator assigns LOINC codes to analytes. It holds no mutable state.
type Validator struct {
	table     *Table
	threshold float64
}

// NewValidator creates a validator over table. A non-positive threshold
// falls back to DefaultFuzzyThreshold.
func NewValidator(table *Table, threshold float64) *Validator {
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	if table == nil {
		table = NewTable(nil)
	}
	return &Validator{table: table, threshold: threshold}
}

// Table returns the reference table in use.
func (v *Validator) Table() *Table {
	return v.table
}

// Validate returns a copy of result with LOINC fields filled for every
// analyte. The input is not modified, so validating the output again yields
// the same analytes.
func (v *Validator) Validate(result *domain.LabResult) (*domain.LabResult, domain.Coverage) {
	out := *result
	out.Analytes = make([]domain.Analyte, len(result.Analytes))

	var cov domain.Coverage
	for i, a := range result.Analytes {
		m := v.table.Lookup(a.Name, v.threshold)
		a.LOINCTier = m.Tier
		a.LOINCConfidence = m.Confidence
		if m.Entry != nil {
			code := m.Entry.Code
			a.LOINCCode = &code
			a.LOINCDisplay = m.Entry.LongName
			if a.LOINCDisplay == "" {
				a.LOINCDisplay = m.Entry.Component
			}
			cov.Matched++
		} else {
			a.LOINCCode = nil
			a.LOINCDisplay = ""
			cov.Unmatched++
		}
		out.Analytes[i] = a
	}
	cov = cov.Add(domain.Coverage{Total: len(out.Analytes)})

	out.Status.Validation = domain.StageStatusSuccess
	if v.table.Len() == 0 {
		out.Status.Validation = domain.StageStatusPartial
		slog.Warn("loinc.table.empty", "document_id", result.DocumentID)
	}

	slog.Debug("loinc.validated",
		"document_id", result.DocumentID,
		"matched", cov.Matched,
		"total", cov.Total,
	)
	return &out, cov
}

// Flags returns the stage flags for the current table.
func (v *Validator) Flags() []string {
	if v.table.Len() == 0 {
		return []string{domain.FlagLOINCTableEmpty}
	}
	return nil
}
