package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// LOINC match tiers, strongest first.
const (
	LOINCTierExact   = "exact"
	LOINCTierSynonym = "synonym"
	LOINCTierFuzzy   = "fuzzy"
	LOINCTierNone    = "none"
)

// LabResult is the structured form of one lab report.
type LabResult struct {
	DocumentID string      `json:"document_id"`
	PanelName  string      `json:"panel_name"`
	Analytes   []Analyte   `json:"analytes"`
	Status     LabStatuses `json:"status"`
}

// LabStatuses carries the stage outcomes that shaped a LabResult.
type LabStatuses struct {
	Extraction    StageStatus `json:"extraction"`
	Anonymization StageStatus `json:"anonymization"`
	Validation    StageStatus `json:"validation"`
}

// Analyte is one measured quantity in a panel.
type Analyte struct {
	Name            string  `json:"name"`
	Value           Value   `json:"value"`
	Unit            string  `json:"unit,omitempty"`
	ReferenceRange  string  `json:"reference_range,omitempty"`
	Flag            string  `json:"flag,omitempty"`
	LOINCCode       *string `json:"loinc_code"`
	LOINCDisplay    string  `json:"loinc_display,omitempty"`
	LOINCTier       string  `json:"loinc_tier,omitempty"`
	LOINCConfidence float64 `json:"loinc_confidence"`
}

// Value is either a number or a qualitative string such as "negative" or "<5".
type Value struct {
	Number *float64
	Text   string
}

// NumberValue returns a numeric Value.
func NumberValue(f float64) Value {
	return Value{Number: &f}
}

// TextValue returns a qualitative Value.
func TextValue(s string) Value {
	return Value{Text: s}
}

// IsZero reports whether neither a number nor text is present.
func (v Value) IsZero() bool {
	return v.Number == nil && strings.TrimSpace(v.Text) == ""
}

// IsNumeric reports whether the value is a number.
func (v Value) IsNumeric() bool {
	return v.Number != nil
}

func (v Value) String() string {
	if v.Number != nil {
		return strconv.FormatFloat(*v.Number, 'f', -1, 64)
	}
	return v.Text
}

var (
	numberRe  = regexp.MustCompile(`^[+-]?[\d.,]*\d(?:[eE][+-]?\d+)?$`)
	commaThou = regexp.MustCompile(`^[+-]?\d{1,3}(?:,\d{3})+$`)
	dotThou   = regexp.MustCompile(`^[+-]?\d{1,3}(?:\.\d{3}){2,}$`)
)

// Normalize turns a numeric-looking text value into a number. A lone comma
// is a decimal separator unless exactly three digits follow it, in which
// case it groups thousands ("250,000"). NaN and infinities stay text.
func (v Value) Normalize() Value {
	if v.Number != nil {
		return v
	}
	s := strings.TrimSpace(v.Text)
	if s == "" {
		return Value{}
	}
	if f, ok := parseNumber(s); ok {
		return NumberValue(f)
	}
	return TextValue(s)
}

func parseNumber(s string) (float64, bool) {
	if !numberRe.MatchString(s) {
		return 0, false
	}
	hasComma, hasDot := strings.Contains(s, ","), strings.Contains(s, ".")
	switch {
	case hasComma && hasDot:
		// The later separator is the decimal one.
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		if commaThou.MatchString(s) {
			s = strings.ReplaceAll(s, ",", "")
		} else if strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			return 0, false
		}
	case hasDot && dotThou.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.Number != nil {
		return json.Marshal(*v.Number)
	}
	if v.Text == "" {
		return []byte("null"), nil
	}
	return json.Marshal(v.Text)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*v = Value{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &v.Text)
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("analyte value must be a number or string: %w", err)
	}
	v.Number = &f
	return nil
}

// Coverage summarizes LOINC matching over a set of analytes.
type Coverage struct {
	Total      int     `json:"total"`
	Matched    int     `json:"matched"`
	Unmatched  int     `json:"unmatched"`
	Percentage float64 `json:"coverage_percentage"`
}

// Add merges another coverage summary into c.
func (c Coverage) Add(o Coverage) Coverage {
	out := Coverage{Total: c.Total + o.Total, Matched: c.Matched + o.Matched, Unmatched: c.Unmatched + o.Unmatched}
	if out.Total > 0 {
		out.Percentage = float64(out.Matched) * 100 / float64(out.Total)
	}
	return out
}
