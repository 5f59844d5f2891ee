package convert

import (
	"regexp"
	"strconv"
	"strings"
)

// Range is a parsed reference interval. A nil bound is open.
type Range struct {
	Low  *float64
	High *float64
}

var (
	betweenRe = regexp.MustCompile(`^\s*(-?\d+(?:[.,]\d+)?)\s*(?:-|–|—|to)\s*(-?\d+(?:[.,]\d+)?)`)
	belowRe   = regexp.MustCompile(`^\s*(?:<|≤|<=|up to)\s*(\d+(?:[.,]\d+)?)`)
	aboveRe   = regexp.MustCompile(`^\s*(?:>|≥|>=)\s*(\d+(?:[.,]\d+)?)`)
)

// ParseRange parses "a-b", "<b" and ">a" forms. ok is false for anything else.
func ParseRange(s string) (Range, bool) {
	s = strings.TrimSpace(s)
	if m := betweenRe.FindStringSubmatch(s); m != nil {
		lo, hi := parseNum(m[1]), parseNum(m[2])
		if lo == nil || hi == nil || *lo > *hi {
			return Range{}, false
		}
		return Range{Low: lo, High: hi}, true
	}
	if m := belowRe.FindStringSubmatch(s); m != nil {
		if hi := parseNum(m[1]); hi != nil {
			return Range{High: hi}, true
		}
	}
	if m := aboveRe.FindStringSubmatch(s); m != nil {
		if lo := parseNum(m[1]); lo != nil {
			return Range{Low: lo}, true
		}
	}
	return Range{}, false
}

func parseNum(s string) *float64 {
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return nil
	}
	return &f
}

// Flag returns "H", "L" or "" for v against the range.
func (r Range) Flag(v float64) string {
	switch {
	case r.Low != nil && v < *r.Low:
		return "L"
	case r.High != nil && v > *r.High:
		return "H"
	}
	return ""
}

// normalizeFlag maps model flag spellings onto H, L or "".
func normalizeFlag(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "H", "HIGH", "HI", "↑":
		return "H"
	case "L", "LOW", "LO", "↓":
		return "L"
	}
	return ""
}
