// Package convert maps anonymized report text onto the canonical LabResult.
package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"bloodagent/internal/domain"
	"bloodagent/internal/port"
)

// Conversion is the outcome of the conversion stage.
type Conversion struct {
	Result   *domain.LabResult
	Status   domain.StageStatus
	Flags    []string
	Warnings []string
	Attempts int
}

// Converter runs the structured conversion stage.
type Converter struct{}

// NewConverter creates a Converter.
func NewConverter() *Converter {
	return &Converter{}
}

type wireResult struct {
	PanelName *string       `json:"panel_name"`
	Analytes  []wireAnalyte `json:"analytes"`
}

type wireAnalyte struct {
	Name           *string      `json:"name"`
	Value          domain.Value `json:"value"`
	Unit           *string      `json:"unit"`
	ReferenceRange *string      `json:"reference_range"`
	Flag           *string      `json:"flag"`
}

// Convert asks the model for a schema-valid LabResult and cleans it up.
// Analytes without a name or value are dropped with a warning. Provider and
// malformed-response errors fail the stage.
func (c *Converter) Convert(ctx context.Context, client port.ProviderClient, anonymized *domain.AnonymizedText, instruction string) (*Conversion, error) {
	out, err := client.CompleteStructured(ctx, buildPrompt(instruction, anonymized.Text), LabResultSchema)
	if err != nil {
		return &Conversion{Status: domain.StageStatusFailed}, fmt.Errorf("converting to lab result: %w", err)
	}

	var wire wireResult
	if err := json.Unmarshal(out.Value, &wire); err != nil {
		return &Conversion{Status: domain.StageStatusFailed, Attempts: out.Attempts}, fmt.Errorf("decoding lab result: %w", err)
	}

	conv := &Conversion{
		Result: &domain.LabResult{
			DocumentID: anonymized.DocumentID,
			PanelName:  strings.TrimSpace(deref(wire.PanelName)),
			Analytes:   make([]domain.Analyte, 0, len(wire.Analytes)),
		},
		Attempts: out.Attempts,
	}

	for i, w := range wire.Analytes {
		a, reason := cleanAnalyte(w)
		if reason != "" {
			msg := fmt.Sprintf("analyte %d dropped: %s", i+1, reason)
			conv.Warnings = append(conv.Warnings, msg)
			conv.Flags = domain.AddFlag(conv.Flags, domain.FlagAnalyteDropped)
			slog.Warn("convert.analyte.dropped", "document_id", anonymized.DocumentID, "index", i, "reason", reason)
			continue
		}
		conv.Result.Analytes = append(conv.Result.Analytes, a)
	}

	conv.Status = domain.StageStatusSuccess
	if len(conv.Result.Analytes) == 0 {
		conv.Flags = domain.AddFlag(conv.Flags, domain.FlagNoAnalytes)
		conv.Warnings = append(conv.Warnings, "no analytes found")
	}
	if len(conv.Flags) > 0 {
		conv.Status = domain.StageStatusPartial
	}
	return conv, nil
}

func cleanAnalyte(w wireAnalyte) (domain.Analyte, string) {
	name := strings.TrimSpace(deref(w.Name))
	if name == "" {
		return domain.Analyte{}, "empty name"
	}
	value := w.Value.Normalize()
	if value.IsZero() {
		return domain.Analyte{}, fmt.Sprintf("%s has no value", name)
	}

	a := domain.Analyte{
		Name:           name,
		Value:          value,
		Unit:           strings.TrimSpace(deref(w.Unit)),
		ReferenceRange: strings.TrimSpace(deref(w.ReferenceRange)),
		Flag:           normalizeFlag(deref(w.Flag)),
		LOINCTier:      domain.LOINCTierNone,
	}
	if a.Flag == "" && value.IsNumeric() {
		if r, ok := ParseRange(a.ReferenceRange); ok {
			a.Flag = r.Flag(*value.Number)
		}
	}
	return a, ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
