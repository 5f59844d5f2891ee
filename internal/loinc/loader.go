package loinc

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"bloodagent/internal/config"
	"bloodagent/internal/port"
)

// Column names of the LOINC distribution table.
const (
	colCode      = "LOINC_NUM"
	colComponent = "COMPONENT"
	colLongName  = "LONG_COMMON_NAME"
	colShortName = "SHORTNAME"
	colClass     = "CLASS"
	colUnits     = "EXAMPLE_UCUM_UNITS"
	colSynonyms  = "RELATEDNAMES2"
)

// Load builds the reference table from the configured source.
func Load(ctx context.Context, cfg config.LOINCConfig, repo port.LOINCRepository) (*Table, error) {
	switch cfg.Source {
	case "", "builtin":
		return NewTable(BuiltinEntries()), nil
	case "file":
		entries, err := LoadFile(cfg.TablePath)
		if err != nil {
			return nil, err
		}
		return NewTable(entries), nil
	case "db":
		if repo == nil {
			return nil, &config.ConfigurationError{Field: "loinc.source", Reason: "db source requires a database"}
		}
		entries, err := repo.LoadAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading loinc codes: %w", err)
		}
		return NewTable(entries), nil
	default:
		return nil, &config.ConfigurationError{Field: "loinc.source", Reason: fmt.Sprintf("unknown source %q", cfg.Source)}
	}
}

// LoadFile reads a CSV or XLSX table, chosen by extension.
func LoadFile(path string) ([]port.LOINCEntry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return LoadXLSX(path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open loinc table: %w", err)
		}
		defer func() { _ = f.Close() }()
		return LoadCSV(f)
	default:
		return nil, &config.ConfigurationError{Field: "loinc.table_path", Reason: "expected a .csv or .xlsx file"}
	}
}

// LoadCSV parses the LOINC distribution CSV layout.
func LoadCSV(r io.Reader) ([]port.LOINCEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read loinc header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var entries []port.LOINCEntry
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read loinc row %d: %w", len(entries)+2, err)
		}
		if e, ok := cols.entry(row); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// LoadXLSX parses the first sheet of a workbook with the same columns as the CSV.
func LoadXLSX(path string) ([]port.LOINCEntry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open loinc workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read loinc sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("loinc workbook %s is empty", path)
	}
	cols, err := columnIndex(rows[0])
	if err != nil {
		return nil, err
	}

	var entries []port.LOINCEntry
	for _, row := range rows[1:] {
		if e, ok := cols.entry(row); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

type columns map[string]int

func columnIndex(header []string) (columns, error) {
	cols := columns{}
	for i, h := range header {
		cols[strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := cols[colCode]; !ok {
		return nil, fmt.Errorf("loinc table missing %s column", colCode)
	}
	_, hasComponent := cols[colComponent]
	_, hasLong := cols[colLongName]
	if !hasComponent && !hasLong {
		return nil, fmt.Errorf("loinc table needs %s or %s", colComponent, colLongName)
	}
	return cols, nil
}

func (c columns) cell(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (c columns) entry(row []string) (port.LOINCEntry, bool) {
	e := port.LOINCEntry{
		Code:      c.cell(row, colCode),
		Component: c.cell(row, colComponent),
		LongName:  c.cell(row, colLongName),
		ShortName: c.cell(row, colShortName),
		Class:     c.cell(row, colClass),
		Units:     c.cell(row, colUnits),
		Synonyms:  c.cell(row, colSynonyms),
	}
	if e.Code == "" || (e.Component == "" && e.LongName == "") {
		return port.LOINCEntry{}, false
	}
	return e, true
}
