package domain_test

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodagent/internal/domain"
)

func TestLabResult_RoundTrip(t *testing.T) {
	code := "718-7"
	in := domain.LabResult{
		DocumentID: "doc-1",
		PanelName:  "Complete Blood Count",
		Analytes: []domain.Analyte{
			{
				Name:            "Hemoglobin",
				Value:           domain.NumberValue(13.5),
				Unit:            "g/dL",
				ReferenceRange:  "12.0-16.0",
				LOINCCode:       &code,
				LOINCDisplay:    "Hemoglobin [Mass/volume] in Blood",
				LOINCTier:       domain.LOINCTierExact,
				LOINCConfidence: 1,
			},
			{
				Name:      "HIV 1+2 Ab",
				Value:     domain.TextValue("negative"),
				LOINCTier: domain.LOINCTierNone,
			},
		},
		Status: domain.LabStatuses{
			Extraction:    domain.StageStatusSuccess,
			Anonymization: domain.StageStatusPartial,
			Validation:    domain.StageStatusSuccess,
		},
	}

	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out domain.LabResult
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}

func TestValue_UnmarshalAcceptsNumberOrString(t *testing.T) {
	var a struct {
		V domain.Value `json:"v"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"v": 4.2}`), &a))
	require.True(t, a.V.IsNumeric())
	assert.InDelta(t, 4.2, *a.V.Number, 1e-9)

	require.NoError(t, json.Unmarshal([]byte(`{"v": "<5"}`), &a))
	assert.False(t, a.V.IsNumeric())
	assert.Equal(t, "<5", a.V.Text)

	require.NoError(t, json.Unmarshal([]byte(`{"v": null}`), &a))
	assert.True(t, a.V.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"v": true}`), &a))
}

func TestValue_Normalize(t *testing.T) {
	v := domain.TextValue(" 13,5 ").Normalize()
	require.True(t, v.IsNumeric())
	assert.InDelta(t, 13.5, *v.Number, 1e-9)

	assert.Equal(t, "positive", domain.TextValue("positive").Normalize().Text)
	assert.True(t, domain.TextValue("   ").Normalize().IsZero())
}

func TestValue_Normalize_Separators(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"250,000", 250000},
		{"1,250,000", 1250000},
		{"4,5", 4.5},
		{"0,25", 0.25},
		{"12,3456", 12.3456},
		{"1.234,5", 1234.5},
		{"1,234.5", 1234.5},
		{"1.025", 1.025},
		{"1.250.000", 1250000},
		{"-0,8", -0.8},
		{"3.2e3", 3200},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v := domain.TextValue(tt.in).Normalize()
			require.True(t, v.IsNumeric())
			assert.InDelta(t, tt.want, *v.Number, 1e-9)
		})
	}
}

func TestValue_Normalize_NonFiniteStaysText(t *testing.T) {
	for _, in := range []string{"NaN", "nan", "Inf", "-Inf", "+Infinity", "1e999", "0x1p3", "1,2,3"} {
		t.Run(in, func(t *testing.T) {
			v := domain.TextValue(in).Normalize()
			assert.False(t, v.IsNumeric())
			assert.Equal(t, in, v.Text)

			b, err := json.Marshal(v)
			require.NoError(t, err)
			assert.JSONEq(t, strconv.Quote(in), string(b))
		})
	}
}

func TestCoverage_Add(t *testing.T) {
	c := domain.Coverage{Total: 2, Matched: 1, Unmatched: 1}.Add(domain.Coverage{Total: 2, Matched: 2})
	assert.Equal(t, 4, c.Total)
	assert.Equal(t, 3, c.Matched)
	assert.InDelta(t, 75.0, c.Percentage, 1e-9)
}
