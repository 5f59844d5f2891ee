package port

import (
	"context"
	"encoding/json"

	"bloodagent/internal/domain"
)

// Schema is a named JSON schema for structured completions.
type Schema struct {
	Name       string
	Definition map[string]any
}

// StructuredOutput is a schema-valid completion.
type StructuredOutput struct {
	Value json.RawMessage
	Raw   string
	// Native is true when the backend enforced the schema itself.
	Native   bool
	Attempts int
}

// ProviderClient is the capability surface every model backend offers.
type ProviderClient interface {
	CompleteText(ctx context.Context, prompt, text string) (string, error)
	CompleteVision(ctx context.Context, prompt string, image domain.Image) (string, error)
	CompleteStructured(ctx context.Context, prompt string, schema Schema) (*StructuredOutput, error)
}
