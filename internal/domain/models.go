package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ModelConfig selects the provider, model, endpoint and credential for a run.
// It is resolved once and passed by value.
type ModelConfig struct {
	Provider Provider `json:"provider"`
	Model    string   `json:"model_name"`
	BaseURL  string   `json:"base_url,omitempty"`
	APIKey   string   `json:"-"`
}

// String renders the config with the credential masked.
func (m ModelConfig) String() string {
	key := "unset"
	if m.APIKey != "" {
		key = "set"
	}
	return fmt.Sprintf("provider=%s model=%s base_url=%q api_key=%s", m.Provider, m.Model, m.BaseURL, key)
}

// Document is an ingested report. It is not mutated after ingestion.
type Document struct {
	Filename    string
	Kind        MediaKind
	ContentType string
	Data        []byte
	ContentHash string
	// Language is an optional hint such as "mkd+eng" for the extraction prompt.
	Language    string
}

// NewDocument builds a Document and computes its content hash.
func NewDocument(filename string, kind MediaKind, contentType string, data []byte) Document {
	sum := sha256.Sum256(data)
	return Document{
		Filename:    filename,
		Kind:        kind,
		ContentType: contentType,
		Data:        data,
		ContentHash: hex.EncodeToString(sum[:]),
	}
}

// Image is a single page payload handed to a vision completion.
type Image struct {
	Data      []byte
	MediaType string
}

// PageText holds the text extracted from one page.
type PageText struct {
	Number   int      `json:"number"`
	Text     string   `json:"text"`
	Flags    []string `json:"flags,omitempty"`
	Attempts int      `json:"attempts"`
	Error    string   `json:"error,omitempty"`
}

// Usable reports whether the page yielded text.
func (p PageText) Usable() bool {
	return strings.TrimSpace(p.Text) != "" && !HasFlag(p.Flags, FlagExtractionGap)
}

// ExtractedText is the output of the extraction stage.
type ExtractedText struct {
	DocumentID string      `json:"document_id"`
	Pages      []PageText  `json:"pages"`
	Status     StageStatus `json:"status"`
}

// UsablePages counts pages that yielded text.
func (e *ExtractedText) UsablePages() int {
	n := 0
	for i := range e.Pages {
		if e.Pages[i].Usable() {
			n++
		}
	}
	return n
}

// Text joins the usable pages in page order.
func (e *ExtractedText) Text() string {
	parts := make([]string, 0, len(e.Pages))
	for i := range e.Pages {
		if e.Pages[i].Usable() {
			parts = append(parts, strings.TrimSpace(e.Pages[i].Text))
		}
	}
	return strings.Join(parts, "\n\n")
}

// AnonymizedText is extracted text with identifier spans replaced by placeholders.
type AnonymizedText struct {
	DocumentID string      `json:"document_id"`
	Text       string      `json:"text"`
	Status     StageStatus `json:"status"`
	Flags      []string    `json:"flags,omitempty"`
	Attempts   int         `json:"attempts"`
}

// HasFlag reports whether flag is present in flags.
func HasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

// AddFlag appends flag when it is not already present.
func AddFlag(flags []string, flag string) []string {
	if HasFlag(flags, flag) {
		return flags
	}
	return append(flags, flag)
}
