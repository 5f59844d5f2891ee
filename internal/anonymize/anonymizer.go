package anonymize

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"bloodagent/internal/config"
	"bloodagent/internal/domain"
	"bloodagent/internal/extract"
	"bloodagent/internal/port"
)

// Anonymizer runs the anonymization stage: a model pass checked by the local
// Detector, one corrective pass, then deterministic redaction as the floor.
type Anonymizer struct {
	detector *Detector
}

// NewAnonymizer builds an Anonymizer from configuration.
func NewAnonymizer(cfg config.AnonymizeConfig) (*Anonymizer, error) {
	extra, err := ParsePatterns(cfg.Patterns)
	if err != nil {
		return nil, &config.ConfigurationError{Field: "anonymize.patterns", Reason: err.Error()}
	}
	return &Anonymizer{detector: NewDetector(extra, cfg.Names)}, nil
}

// NewAnonymizerWithDetector builds an Anonymizer around an existing detector.
func NewAnonymizerWithDetector(d *Detector) *Anonymizer {
	return &Anonymizer{detector: d}
}

// Detector returns the local detector.
func (a *Anonymizer) Detector() *Detector {
	return a.detector
}

// Anonymize never fails the document: when the model cannot produce clean
// output the result is redacted locally and marked partial.
func (a *Anonymizer) Anonymize(ctx context.Context, client port.ProviderClient, extracted *domain.ExtractedText) (*domain.AnonymizedText, error) {
	if extracted == nil {
		return nil, fmt.Errorf("anonymize: %w", domain.ErrEmptyDocument)
	}
	source := extracted.Text()
	out := &domain.AnonymizedText{DocumentID: extracted.DocumentID}

	prompt := anonymizePrompt
	for attempt := 1; attempt <= 2; attempt++ {
		out.Attempts = attempt
		text, err := client.CompleteText(ctx, prompt, source)
		if err != nil {
			slog.Warn("anonymize.model.failed", "document_id", out.DocumentID, "attempt", attempt, "error", err)
			out.Text = a.detector.Redact(source)
			out.Status = domain.StageStatusPartial
			out.Flags = domain.AddFlag(out.Flags, domain.FlagModelUnavailable)
			return out, nil
		}

		result := a.check(source, text)
		if result.ok() {
			out.Text = text
			out.Status = domain.StageStatusSuccess
			return out, nil
		}

		slog.Warn("anonymize.check.failed",
			"document_id", out.DocumentID,
			"attempt", attempt,
			"leaked", result.leaked,
			"lost_values", len(result.lost),
			"refused", result.refused,
		)
		if attempt == 2 {
			out.Status = domain.StageStatusPartial
			out.Flags = domain.AddFlag(out.Flags, domain.FlagAnonymizationResidualRisk)
			if len(result.lost) > 0 || result.refused {
				out.Flags = domain.AddFlag(out.Flags, domain.FlagNumericDrift)
				out.Text = a.detector.Redact(source)
			} else {
				out.Text = a.detector.Redact(text)
			}
			return out, nil
		}
		prompt = correctivePrompt(result)
	}
	return out, nil
}

type checkResult struct {
	leaked  []Class
	lost    []string
	refused bool
}

func (r checkResult) ok() bool {
	return len(r.leaked) == 0 && len(r.lost) == 0 && !r.refused
}

func (a *Anonymizer) check(source, output string) checkResult {
	var r checkResult
	trimmed := strings.TrimSpace(output)
	if trimmed == "" || extract.IsRefusal(trimmed) || len(trimmed) < len(strings.TrimSpace(source))/10 {
		r.refused = true
		return r
	}
	r.leaked = Classes(a.detector.Find(output))
	r.lost = LostNumerics(source, output, a.detector.Find(source))
	return r
}

var numericRe = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// LostNumerics returns numeric tokens of source, outside the given
// identifier spans, that occur fewer times in output.
func LostNumerics(source, output string, identifiers []Finding) []string {
	want := map[string]int{}
	var order []string
	for _, m := range numericRe.FindAllStringIndex(source, -1) {
		if insideAny(m[0], m[1], identifiers) {
			continue
		}
		tok := source[m[0]:m[1]]
		if want[tok] == 0 {
			order = append(order, tok)
		}
		want[tok]++
	}

	have := map[string]int{}
	for _, tok := range numericRe.FindAllString(output, -1) {
		have[tok]++
	}

	var lost []string
	for _, tok := range order {
		if have[tok] < want[tok] {
			lost = append(lost, tok)
		}
	}
	return lost
}

func insideAny(start, end int, spans []Finding) bool {
	for _, f := range spans {
		if start < f.End && f.Start < end {
			return true
		}
	}
	return false
}
