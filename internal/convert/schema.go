package convert

import "bloodagent/internal/port"

// LabResultSchema is the canonical structured-output schema. Every property
// is required and optional fields are nullable, which keeps it valid for
// strict native modes.
var LabResultSchema = port.Schema{
	Name: "lab_result",
	Definition: map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"panel_name", "analytes"},
		"properties": map[string]any{
			"panel_name": map[string]any{
				"type":        []any{"string", "null"},
				"description": "Panel or report title, e.g. Complete Blood Count",
			},
			"analytes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"name", "value", "unit", "reference_range", "flag"},
					"properties": map[string]any{
						"name": map[string]any{
							"type":        "string",
							"description": "Analyte name as printed, e.g. Hemoglobin",
						},
						"value": map[string]any{
							"type":        []any{"number", "string", "null"},
							"description": "Numeric result when possible, otherwise the qualitative text such as negative or <5",
						},
						"unit": map[string]any{
							"type": []any{"string", "null"},
						},
						"reference_range": map[string]any{
							"type":        []any{"string", "null"},
							"description": "Reference interval as printed, e.g. 12.0-16.0",
						},
						"flag": map[string]any{
							"type":        []any{"string", "null"},
							"description": "H or L when the report marks the value as high or low",
						},
					},
				},
			},
		},
	},
}
