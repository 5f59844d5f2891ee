package loinc

import (
	"slices"
	"strings"
	"unicode"
)

// qualifiers are dropped before synonym and fuzzy comparison.
var qualifiers = map[string]bool{
	"serum":  true,
	"plasma": true,
	"blood":  true,
	"total":  true,
	"level":  true,
	"count":  true,
	"whole":  true,
}

// markers change what is measured, so they stay in the key. They are
// appended in sorted order so "Absolute neutrophils" and "Neutrophils #"
// share a key.
var markers = map[string]string{
	"#":          "abs",
	"abs":        "abs",
	"absolute":   "abs",
	"%":          "pct",
	"pct":        "pct",
	"percent":    "pct",
	"percentage": "pct",
	"non":        "non",
	"free":       "free",
	"direct":     "direct",
	"indirect":   "indirect",
}

// Normalize lowercases name, drops qualifier words, then strips punctuation
// and whitespace: "Hemoglobin, whole blood" and "HEMOGLOBIN" both become "hemoglobin".
func Normalize(name string) string {
	base, marks := splitKey(name)
	return base + strings.Join(marks, "")
}

func splitKey(name string) (string, []string) {
	s := strings.NewReplacer("#", " # ", "%", " % ").Replace(strings.ToLower(name))
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '#' && r != '%'
	})
	var sb strings.Builder
	var marks []string
	for _, w := range words {
		if qualifiers[w] {
			continue
		}
		if m, ok := markers[w]; ok {
			if !slices.Contains(marks, m) {
				marks = append(marks, m)
			}
			continue
		}
		sb.WriteString(w)
	}
	slices.Sort(marks)
	return sb.String(), marks
}
