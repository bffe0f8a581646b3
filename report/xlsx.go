package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/alexshd/tts"
)

// WriteXLSX writes the tables as a workbook with three sheets. Numeric
// cells are stored as numbers; parameter values as text.
func WriteXLSX(w io.Writer, tables tts.ExportTables) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetSamples); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	for _, name := range []string{SheetFactors, SheetParams} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("creating sheet %q: %w", name, err)
		}
	}

	samples := make([][]any, 0, len(tables.Samples)+1)
	samples = append(samples, header(SampleHeader))
	for _, r := range tables.Samples {
		samples = append(samples, []any{r.Temperature, r.Omega, r.Modulus, r.AT, r.LogAT, r.ShiftedOmega})
	}

	factors := make([][]any, 0, len(tables.Factors)+1)
	factors = append(factors, header(FactorHeader))
	for _, r := range tables.Factors {
		factors = append(factors, []any{r.Temperature, r.AT, r.LogAT})
	}

	params := make([][]any, 0, len(tables.Params)+1)
	params = append(params, header(ParamHeader))
	for _, p := range tables.Params {
		params = append(params, []any{p.Key, p.Value})
	}

	for _, sheet := range []struct {
		name string
		rows [][]any
	}{
		{SheetSamples, samples},
		{SheetFactors, factors},
		{SheetParams, params},
	} {
		if err := writeRows(f, sheet.name, sheet.rows); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// ReadXLSX reads a workbook written by WriteXLSX.
func ReadXLSX(r io.Reader) (tts.ExportTables, error) {
	var tables tts.ExportTables

	f, err := excelize.OpenReader(r)
	if err != nil {
		return tables, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheet := func(name string) ([][]string, error) {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", name, err)
		}
		return rows, nil
	}

	rows, err := sheet(SheetSamples)
	if err != nil {
		return tables, err
	}
	if tables.Samples, err = readTable(SheetSamples, rows, parseSample); err != nil {
		return tables, err
	}

	if rows, err = sheet(SheetFactors); err != nil {
		return tables, err
	}
	if tables.Factors, err = readTable(SheetFactors, rows, parseFactor); err != nil {
		return tables, err
	}

	if rows, err = sheet(SheetParams); err != nil {
		return tables, err
	}
	if tables.Params, err = readTable(SheetParams, rows, parseParam); err != nil {
		return tables, err
	}
	return tables, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func header(cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return out
}
