// Package anonymize removes identifying fields from extracted report text.
package anonymize

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Class is an identifier category with its own placeholder.
type Class string

const (
	ClassName       Class = "NAME"
	ClassDOB        Class = "DOB"
	ClassDate       Class = "DATE"
	ClassNationalID Class = "NATIONAL_ID"
	ClassMRN        Class = "MRN"
	ClassEmail      Class = "EMAIL"
	ClassPhone      Class = "PHONE"
	ClassAddress    Class = "ADDRESS"
)

var knownClasses = map[Class]bool{
	ClassName: true, ClassDOB: true, ClassDate: true, ClassNationalID: true,
	ClassMRN: true, ClassEmail: true, ClassPhone: true, ClassAddress: true,
}

// Placeholder returns the token that replaces spans of this class.
func (c Class) Placeholder() string {
	return "[" + string(c) + "]"
}

// placeholderRe matches any placeholder token.
var placeholderRe = regexp.MustCompile(`\[(?:NAME|DOB|DATE|NATIONAL_ID|MRN|EMAIL|PHONE|ADDRESS)\]`)

// Pattern detects one identifier class. When the expression has a capture
// group only the first group is the identifier; the rest is context.
type Pattern struct {
	Class Class
	Re    *regexp.Regexp
}

const datePart = `(?:\d{4}-\d{1,2}-\d{1,2}|\d{1,2}\.\d{1,2}\.\d{4}|\d{1,2}/\d{1,2}/\d{2,4}|\d{1,2}-\d{1,2}-\d{4})`

// DefaultPatterns returns the built-in detectors, highest priority first.
// Go's \b is ASCII-only, so Cyrillic keywords sit outside it.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{ClassDOB, regexp.MustCompile(`(?i)(?:\b(?:DOB|D\.O\.B\.?|date\s+of\s+birth|birth\s*date|born)|датум\s+на\s+раѓање)\s*[:\-]?\s*(` + datePart + `)`)},
		{ClassName, regexp.MustCompile(`(?i)(?:\b(?:patient(?:'s)?\s+name|patient|full\s+name)|пациент|име\s+и\s+презиме)\s*[:\-–]\s*([^\n,;\[]*[^\s\n,;\[])`)},
		{ClassName, regexp.MustCompile(`(?im)^\s*(?:name|име)\s*[:\-–]\s*([^\n,;\[]*[^\s\n,;\[])`)},
		{ClassEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
		{ClassNationalID, regexp.MustCompile(`(?i)(?:\b(?:SSN|national\s+id|EMBG|personal\s+(?:id|number))|ЕМБГ)\s*(?:no\.?)?\s*[:#]?\s*(\d[\d -]{4,}\d)`)},
		{ClassNationalID, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
		{ClassNationalID, regexp.MustCompile(`\b\d{13}\b`)},
		{ClassMRN, regexp.MustCompile(`(?i)(?:\b(?:MRN|EMR|patient\s*id|record\s*(?:no\.?|number|#)?|ID)|досие)\s*[:#№]?\s*([A-Z0-9-]*\d[A-Z0-9-]*)`)},
		{ClassPhone, regexp.MustCompile(`(?i)(?:\b(?:tel|phone|mob(?:ile)?)|тел)\.?\s*[:#]?\s*(\+?[\d()][\d\s()/-]{5,}\d)`)},
		{ClassPhone, regexp.MustCompile(`(?:\+\d{1,3}[\s-]?)\(?\d{1,4}\)?[\s-]?\d{3}[\s-]?\d{3,4}\b`)},
		{ClassPhone, regexp.MustCompile(`\b0\d{2}\s?\d{3}\s?\d{3}\b`)},
		{ClassPhone, regexp.MustCompile(`\(\d{3}\)\s?\d{3}-\d{4}\b`)},
		{ClassAddress, regexp.MustCompile(`(?i)(?:\b(?:address|addr\.)|адреса)\s*[:\-]\s*([^\n]*[^\s\n])`)},
		{ClassDate, regexp.MustCompile(`\b` + datePart + `\b`)},
		{ClassDate, regexp.MustCompile(`(?i)\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}\b`)},
	}
}

// ParsePatterns parses "CLASS=regexp" entries.
func ParsePatterns(specs []string) ([]Pattern, error) {
	out := make([]Pattern, 0, len(specs))
	for _, s := range specs {
		class, expr, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("pattern %q: expected CLASS=regexp", s)
		}
		c := Class(strings.ToUpper(strings.TrimSpace(class)))
		if !knownClasses[c] {
			return nil, fmt.Errorf("pattern %q: unknown class %s", s, c)
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", s, err)
		}
		out = append(out, Pattern{Class: c, Re: re})
	}
	return out, nil
}

// Finding is one detected identifier span.
type Finding struct {
	Class Class
	Start int
	End   int
	Value string
}

// Detector finds and redacts identifiers deterministically.
type Detector struct {
	patterns []Pattern
}

// NewDetector builds a detector from the defaults, configured patterns and
// exact names. Configured patterns take priority over the defaults.
func NewDetector(extra []Pattern, names []string) *Detector {
	var patterns []Pattern
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		patterns = append(patterns, Pattern{
			Class: ClassName,
			Re:    regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(` + regexp.QuoteMeta(n) + `)(?:[^\p{L}\p{N}]|$)`),
		})
	}
	patterns = append(patterns, extra...)
	patterns = append(patterns, DefaultPatterns()...)
	return &Detector{patterns: patterns}
}

// Find returns non-overlapping identifier spans in text order. Spans that
// hold only placeholders are not findings.
func (d *Detector) Find(text string) []Finding {
	var all []Finding
	for _, p := range d.patterns {
		for _, m := range p.Re.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[0], m[1]
			if len(m) >= 4 && m[2] >= 0 {
				start, end = m[2], m[3]
			}
			if start == end {
				continue
			}
			value := text[start:end]
			if strings.TrimSpace(placeholderRe.ReplaceAllString(value, "")) == "" {
				continue
			}
			all = append(all, Finding{Class: p.Class, Start: start, End: end, Value: value})
		}
	}
	kept := resolveOverlaps(all)
	for i := range kept {
		kept[i].Value = text[kept[i].Start:kept[i].End]
	}
	return kept
}

// resolveOverlaps merges overlapping spans into one. The merged span takes
// the class of its longest member, ties going to pattern priority; all is
// in priority order.
func resolveOverlaps(all []Finding) []Finding {
	idx := make([]int, len(all))
	for i := range all {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return all[idx[a]].Start < all[idx[b]].Start })

	var kept []Finding
	var owner []int
	for _, i := range idx {
		f := all[i]
		if n := len(kept); n > 0 && f.Start < kept[n-1].End {
			last := &kept[n-1]
			if f.End > last.End {
				last.End = f.End
			}
			o := all[owner[n-1]]
			if l, ol := f.End-f.Start, o.End-o.Start; l > ol || (l == ol && i < owner[n-1]) {
				last.Class = f.Class
				owner[n-1] = i
			}
			continue
		}
		kept = append(kept, f)
		owner = append(owner, i)
	}
	return kept
}

// Redact replaces every finding with its placeholder. It repeats until no
// finding remains, since a replacement can expose a new match.
func (d *Detector) Redact(text string) string {
	for i := 0; i < 3; i++ {
		findings := d.Find(text)
		if len(findings) == 0 {
			return text
		}
		text = apply(text, findings)
	}
	return text
}

func apply(text string, findings []Finding) string {
	var sb strings.Builder
	last := 0
	for _, f := range findings {
		sb.WriteString(text[last:f.Start])
		sb.WriteString(f.Class.Placeholder())
		last = f.End
	}
	sb.WriteString(text[last:])
	return sb.String()
}

// Classes lists the distinct classes among findings.
func Classes(findings []Finding) []Class {
	seen := map[Class]bool{}
	var out []Class
	for _, f := range findings {
		if !seen[f.Class] {
			seen[f.Class] = true
			out = append(out, f.Class)
		}
	}
	return out
}
