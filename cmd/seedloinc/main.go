// Command seedloinc converts a LOINC table export (CSV or XLSX) into a SQL seed
// file for the loinc_codes table. Without -in it writes the built-in subset.
// Usage: go run ./cmd/seedloinc -in Loinc.csv
// Output: db/seeds/loinc_codes.sql
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/pflag"

	"bloodagent/internal/config"
	"bloodagent/internal/logging"
	"bloodagent/internal/loinc"
	"bloodagent/internal/port"
)

const batchSize = 500

var codePattern = regexp.MustCompile(`^\d{1,7}-\d$`)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("seedloinc.failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("seedloinc", pflag.ContinueOnError)
	in := fs.String("in", "", "LOINC table export (.csv or .xlsx); empty writes the built-in subset")
	outPath := fs.String("out", "db/seeds/loinc_codes.sql", "output SQL file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logging.Setup(config.LogConfig{Level: "info"})

	var entries []port.LOINCEntry
	if *in == "" {
		entries = loinc.BuiltinEntries()
	} else {
		var err error
		if entries, err = loinc.LoadFile(*in); err != nil {
			return fmt.Errorf("load %s: %w", *in, err)
		}
	}

	entries, skipped := dedupe(entries)
	if skipped > 0 {
		slog.Warn("seedloinc.rows.skipped", "count", skipped)
	}

	out, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() { _ = out.Close() }()

	if err := writeSeed(out, entries); err != nil {
		return err
	}

	slog.Info("seedloinc.generated",
		"entries", len(entries),
		"batches", (len(entries)+batchSize-1)/batchSize,
		"path", *outPath,
	)
	return nil
}

// dedupe drops malformed codes and repeated codes, keeping the first occurrence.
func dedupe(entries []port.LOINCEntry) ([]port.LOINCEntry, int) {
	seen := make(map[string]bool, len(entries))
	kept := entries[:0:0]
	skipped := 0
	for _, e := range entries {
		if !codePattern.MatchString(e.Code) || seen[e.Code] {
			skipped++
			continue
		}
		seen[e.Code] = true
		kept = append(kept, e)
	}
	return kept, skipped
}

func writeSeed(out io.Writer, entries []port.LOINCEntry) error {
	w := func(s string) error { _, werr := fmt.Fprintln(out, s); return werr }

	for _, line := range []string{
		"-- LOINC reference seed data.",
		fmt.Sprintf("-- %d entries in batches of %d. rank preserves source order for tie-breaks.", len(entries), batchSize),
		"BEGIN;",
		"",
	} {
		if werr := w(line); werr != nil {
			return fmt.Errorf("write header: %w", werr)
		}
	}

	for i := 0; i < len(entries); i += batchSize {
		end := i + batchSize
		if end > len(entries) {
			end = len(entries)
		}
		if err := writeBatch(out, i, entries[i:end]); err != nil {
			return fmt.Errorf("write batch at offset %d: %w", i, err)
		}
	}

	for _, line := range []string{"", "COMMIT;"} {
		if werr := w(line); werr != nil {
			return fmt.Errorf("write footer: %w", werr)
		}
	}
	return nil
}

func writeBatch(out io.Writer, offset int, batch []port.LOINCEntry) error {
	if len(batch) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO loinc_codes (code, rank, component, long_common_name, short_name, class, example_units, synonyms) VALUES\n")
	for i := range batch {
		e := &batch[i]
		if i > 0 {
			b.WriteString(",\n")
		}
		fmt.Fprintf(&b, "  ('%s', %d, '%s', '%s', '%s', '%s', '%s', '%s')",
			escapeSQL(e.Code), offset+i,
			escapeSQL(e.Component), escapeSQL(e.LongName), escapeSQL(e.ShortName),
			escapeSQL(e.Class), escapeSQL(e.Units), escapeSQL(e.Synonyms))
	}
	b.WriteString("\nON CONFLICT (code) DO UPDATE SET rank = EXCLUDED.rank, component = EXCLUDED.component,\n")
	b.WriteString("  long_common_name = EXCLUDED.long_common_name, short_name = EXCLUDED.short_name,\n")
	b.WriteString("  class = EXCLUDED.class, example_units = EXCLUDED.example_units, synonyms = EXCLUDED.synonyms;\n")

	_, err := io.WriteString(out, b.String())
	return err
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
