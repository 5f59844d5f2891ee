package loinc

import (
	"strings"

	"github.com/agext/levenshtein"

	"bloodagent/internal/domain"
	"bloodagent/internal/port"
)

// Tier confidences. Fuzzy confidence is fuzzyWeight times the similarity,
// which keeps every fuzzy match below a synonym match.
const (
	confidenceExact   = 1.0
	confidenceSynonym = 0.9
	fuzzyWeight       = 0.85

	// DefaultFuzzyThreshold is the minimum normalized Levenshtein similarity.
	DefaultFuzzyThreshold = 0.80
)

// Match is the outcome of looking up one analyte name.
type Match struct {
	Entry      *port.LOINCEntry
	Tier       string
	Confidence float64
	Similarity float64
}

type candidate struct {
	key   string
	marks string
	entry int
}

// Table provides in-memory LOINC lookups. It is immutable after construction
// and safe for concurrent access.
type Table struct {
	entries    []port.LOINCEntry
	exact      map[string]int
	synonyms   map[string]int
	candidates []candidate
}

// NewTable indexes entries. When two entries share a name the earlier one wins.
func NewTable(entries []port.LOINCEntry) *Table {
	t := &Table{
		entries:  make([]port.LOINCEntry, len(entries)),
		exact:    make(map[string]int),
		synonyms: make(map[string]int),
	}
	copy(t.entries, entries)

	for idx := range t.entries {
		e := &t.entries[idx]
		for _, name := range []string{e.Component, e.LongName, e.ShortName} {
			key := strings.ToLower(strings.TrimSpace(name))
			if key == "" {
				continue
			}
			if _, ok := t.exact[key]; !ok {
				t.exact[key] = idx
			}
		}
		for _, name := range append([]string{e.Component, e.LongName, e.ShortName}, splitSynonyms(e.Synonyms)...) {
			base, marks := splitKey(name)
			key := base + strings.Join(marks, "")
			if key == "" {
				continue
			}
			if _, ok := t.synonyms[key]; !ok {
				t.synonyms[key] = idx
				t.candidates = append(t.candidates, candidate{key: key, marks: strings.Join(marks, ","), entry: idx})
			}
		}
	}
	return t
}

func splitSynonyms(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Lookup finds the best entry for name using the highest matching tier:
// exact, then normalized synonym, then fuzzy at or above threshold.
func (t *Table) Lookup(name string, threshold float64) Match {
	none := Match{Tier: domain.LOINCTierNone}
	if len(t.entries) == 0 || strings.TrimSpace(name) == "" {
		return none
	}

	if idx, ok := t.exact[strings.ToLower(strings.TrimSpace(name))]; ok {
		return Match{Entry: &t.entries[idx], Tier: domain.LOINCTierExact, Confidence: confidenceExact, Similarity: 1}
	}

	base, marks := splitKey(name)
	key := base + strings.Join(marks, "")
	if key == "" {
		return none
	}
	if idx, ok := t.synonyms[key]; ok {
		return Match{Entry: &t.entries[idx], Tier: domain.LOINCTierSynonym, Confidence: confidenceSynonym, Similarity: 1}
	}

	// A fuzzy match never crosses a marker difference: "Non-HDL" is not
	// "HDL", and an absolute count is not a percentage.
	want := strings.Join(marks, ",")
	best, bestIdx := 0.0, -1
	for _, c := range t.candidates {
		if c.marks != want {
			continue
		}
		sim := levenshtein.Similarity(key, c.key, nil)
		if sim > best || (sim == best && bestIdx >= 0 && c.entry < bestIdx) {
			best, bestIdx = sim, c.entry
		}
	}
	if bestIdx < 0 || best < threshold {
		return none
	}
	return Match{Entry: &t.entries[bestIdx], Tier: domain.LOINCTierFuzzy, Confidence: fuzzyWeight * best, Similarity: best}
}
