package loinc_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bloodagent/internal/config"
	"bloodagent/internal/loinc"
	"bloodagent/internal/port"
	"bloodagent/mocks"
)

const sampleCSV = `"LOINC_NUM","COMPONENT","SYSTEM","LONG_COMMON_NAME","SHORTNAME","CLASS","EXAMPLE_UCUM_UNITS","RELATEDNAMES2"
"718-7","Hemoglobin","Bld","Hemoglobin [Mass/volume] in Blood","Hgb Bld-mCnc","HEM/BC","g/dL","Hgb; HGB; Haemoglobin"
"","Orphan","Bld","","","","",""
"2345-7","Glucose","Ser/Plas","Glucose [Mass/volume] in Serum or Plasma","Glucose SerPl-mCnc","CHEM","mg/dL","GLU"
`

func TestLoadCSV(t *testing.T) {
	entries, err := loinc.LoadCSV(strings.NewReader(sampleCSV))

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "718-7", entries[0].Code)
	assert.Equal(t, "Hemoglobin [Mass/volume] in Blood", entries[0].LongName)
	assert.Equal(t, "g/dL", entries[0].Units)
	assert.Equal(t, "Hgb; HGB; Haemoglobin", entries[0].Synonyms)

	table := loinc.NewTable(entries)
	m := table.Lookup("HGB", loinc.DefaultFuzzyThreshold)
	require.NotNil(t, m.Entry)
	assert.Equal(t, "718-7", m.Entry.Code)
}

func TestLoadCSV_MissingCodeColumn(t *testing.T) {
	_, err := loinc.LoadCSV(strings.NewReader("COMPONENT,LONG_COMMON_NAME\nHemoglobin,x\n"))

	assert.ErrorContains(t, err, "LOINC_NUM")
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loinc.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"LOINC_NUM", "COMPONENT", "LONG_COMMON_NAME", "SHORTNAME", "RELATEDNAMES2"},
		{"2160-0", "Creatinine", "Creatinine [Mass/volume] in Serum or Plasma", "Creat SerPl-mCnc", "CREA"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	entries, err := loinc.LoadFile(path)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2160-0", entries[0].Code)
	assert.Equal(t, "CREA", entries[0].Synonyms)
}

func TestLoadFile_RejectsUnknownExtension(t *testing.T) {
	_, err := loinc.LoadFile("/tmp/loinc.json")

	var cfgErr *config.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestLoad_Sources(t *testing.T) {
	ctx := context.Background()

	table, err := loinc.Load(ctx, config.LOINCConfig{Source: "builtin"}, nil)
	require.NoError(t, err)
	assert.Equal(t, len(loinc.BuiltinEntries()), table.Len())

	repo := new(mocks.MockLOINCRepo)
	repo.On("LoadAll", mock.Anything).Return([]port.LOINCEntry{{Code: "718-7", Component: "Hemoglobin"}}, nil)
	table, err = loinc.Load(ctx, config.LOINCConfig{Source: "db"}, repo)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
	repo.AssertExpectations(t)

	_, err = loinc.Load(ctx, config.LOINCConfig{Source: "db"}, nil)
	var cfgErr *config.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))

	_, err = loinc.Load(ctx, config.LOINCConfig{Source: "carrier-pigeon"}, nil)
	assert.True(t, errors.As(err, &cfgErr))
}
