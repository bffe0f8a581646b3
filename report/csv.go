package report

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alexshd/tts"
)

// CSV file names, one per table.
const (
	SamplesFile = "samples.csv"
	FactorsFile = "shift_factors.csv"
	ParamsFile  = "parameters.csv"
)

// WriteSamplesCSV writes the per-sample table with its header.
func WriteSamplesCSV(w io.Writer, rows []tts.SampleRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SampleHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(sampleRecord(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFactorsCSV writes the shift-factor table with its header.
func WriteFactorsCSV(w io.Writer, rows []tts.FactorRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(FactorHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(factorRecord(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteParamsCSV writes the parameter block with its header.
func WriteParamsCSV(w io.Writer, params []tts.Param) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ParamHeader); err != nil {
		return err
	}
	for _, p := range params {
		if err := cw.Write([]string{p.Key, p.Value}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// csvWriters pairs each CSV file with the function that fills it.
func csvWriters(tables tts.ExportTables) []struct {
	name  string
	write func(io.Writer) error
} {
	return []struct {
		name  string
		write func(io.Writer) error
	}{
		{SamplesFile, func(w io.Writer) error { return WriteSamplesCSV(w, tables.Samples) }},
		{FactorsFile, func(w io.Writer) error { return WriteFactorsCSV(w, tables.Factors) }},
		{ParamsFile, func(w io.Writer) error { return WriteParamsCSV(w, tables.Params) }},
	}
}

// WriteCSV writes the three tables into dir, creating it if needed.
func WriteCSV(dir string, tables tts.ExportTables) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	for _, cw := range csvWriters(tables) {
		path := filepath.Join(dir, cw.name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		if err := cw.write(f); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", path, err)
		}
	}
	return nil
}

// WriteCSVArchive writes the three CSV files into a single zip stream,
// for transports that return one body.
func WriteCSVArchive(w io.Writer, tables tts.ExportTables) error {
	zw := zip.NewWriter(w)
	for _, cw := range csvWriters(tables) {
		fw, err := zw.Create(cw.name)
		if err != nil {
			return fmt.Errorf("adding %s: %w", cw.name, err)
		}
		if err := cw.write(fw); err != nil {
			return fmt.Errorf("writing %s: %w", cw.name, err)
		}
	}
	return zw.Close()
}

// ReadCSV reads the three tables from a directory written by WriteCSV.
func ReadCSV(dir string) (tts.ExportTables, error) {
	var tables tts.ExportTables

	read := func(name string) ([][]string, error) {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return csv.NewReader(f).ReadAll()
	}

	rows, err := read(SamplesFile)
	if err != nil {
		return tables, err
	}
	if tables.Samples, err = readTable(SamplesFile, rows, parseSample); err != nil {
		return tables, err
	}

	if rows, err = read(FactorsFile); err != nil {
		return tables, err
	}
	if tables.Factors, err = readTable(FactorsFile, rows, parseFactor); err != nil {
		return tables, err
	}

	if rows, err = read(ParamsFile); err != nil {
		return tables, err
	}
	if tables.Params, err = readTable(ParamsFile, rows, parseParam); err != nil {
		return tables, err
	}
	return tables, nil
}

// ReadFactorsCSV reads a shift-factor table, e.g. to seed manual overrides
// from an earlier export.
func ReadFactorsCSV(r io.Reader) ([]tts.FactorRow, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FactorsFile, err)
	}
	return readTable(FactorsFile, rows, parseFactor)
}
