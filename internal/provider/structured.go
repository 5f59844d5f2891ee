package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"bloodagent/internal/port"
)

// structuredAttempts is the initial request plus one corrective re-prompt.
const structuredAttempts = 2

// CompleteStructured asks for output matching schema. Backends without native
// structured output receive the schema as an instruction. Output that fails to
// parse or validate triggers one corrective re-prompt before MalformedResponse.
func (c *Client) CompleteStructured(ctx context.Context, prompt string, schema port.Schema) (*port.StructuredOutput, error) {
	compiled, err := c.schemas.get(schema)
	if err != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", schema.Name, err)
	}

	native := c.backend.Capabilities().NativeStructured
	req := Request{
		System:   structuredInstruction(schema, native),
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	}
	if native {
		req.Schema = &schema
	}

	var raw string
	var lastErr error
	for attempt := 1; attempt <= structuredAttempts; attempt++ {
		var verr error
		raw, _, err = c.call(ctx, req)
		if err != nil {
			// Truncated or empty completions get the same corrective turn
			// as output that fails to decode.
			var mErr *MalformedResponseError
			if !errors.As(err, &mErr) {
				return nil, err
			}
			raw, verr = mErr.Raw, mErr.Err
		} else {
			var value json.RawMessage
			value, verr = decodeAgainst(compiled, raw)
			if verr == nil {
				return &port.StructuredOutput{Value: value, Raw: raw, Native: native, Attempts: attempt}, nil
			}
		}

		lastErr = verr
		slog.Warn("provider.structured.invalid", "provider", c.backend.Name(), "schema", schema.Name, "attempt", attempt, "error", verr)
		if strings.TrimSpace(raw) != "" {
			req.Messages = append(req.Messages, Message{Role: RoleAssistant, Content: raw})
		}
		req.Messages = append(req.Messages, Message{Role: RoleUser, Content: correctionPrompt(verr)})
	}

	return nil, &MalformedResponseError{Provider: c.backend.Name(), Raw: raw, Attempts: structuredAttempts, Err: lastErr}
}

func structuredInstruction(schema port.Schema, native bool) string {
	if native {
		return "Respond only with a JSON object that conforms to the " + schema.Name + " response schema."
	}
	b, _ := json.MarshalIndent(schema.Definition, "", "  ")
	return "Respond only with a single JSON object, with no markdown fences and no commentary, " +
		"that validates against this JSON schema:\n" + string(b)
}

func correctionPrompt(err error) string {
	return fmt.Sprintf("Your previous reply was not valid JSON matching the schema (%v). "+
		"Return valid data matching the schema: only the JSON object, nothing before or after it.", err)
}

// ExtractJSON pulls the outermost JSON object out of a completion, tolerating
// code fences and surrounding prose.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func decodeAgainst(schema *jsonschema.Schema, raw string) (json.RawMessage, error) {
	candidate := ExtractJSON(raw)
	var v any
	if err := json.Unmarshal([]byte(candidate), &v); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("json does not match schema: %w", err)
	}
	return json.RawMessage(candidate), nil
}

// schemaCache compiles each named schema once per client.
type schemaCache struct {
	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

func newSchemaCache() *schemaCache {
	return &schemaCache{compiled: map[string]*jsonschema.Schema{}}
}

func (s *schemaCache) get(schema port.Schema) (*jsonschema.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.compiled[schema.Name]; ok {
		return c, nil
	}
	c, err := CompileSchema(schema)
	if err != nil {
		return nil, err
	}
	s.compiled[schema.Name] = c
	return c, nil
}

// CompileSchema compiles a schema definition for validation.
func CompileSchema(schema port.Schema) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	url := schema.Name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}
