// Package report writes and re-reads the three export tables of an
// analysis (per-sample rows, shift factors, parameters) as an Excel
// workbook, a set of CSV files or a SQLite database.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alexshd/tts"
)

// Format names an export format.
type Format string

const (
	FormatXLSX   Format = "xlsx"
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

// ParseFormat accepts a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatXLSX, FormatCSV, FormatSQLite:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want xlsx, csv or sqlite)", s)
	}
}

// Workbook sheet names.
const (
	SheetSamples = "Master Curve Data"
	SheetFactors = "Shift Factors"
	SheetParams  = "Parameters"
)

// Column headers, in column order.
var (
	SampleHeader = []string{"Temperature [°C]", "ω [rad/s]", "G' [Pa]", "aT", "log(aT)", "ω·aT [rad/s]"}
	FactorHeader = []string{"Temperature [°C]", "aT", "log(aT)"}
	ParamHeader  = []string{"Parameter", "Value"}
)

func sampleRecord(r tts.SampleRow) []string {
	return []string{
		formatFloat(r.Temperature),
		formatFloat(r.Omega),
		formatFloat(r.Modulus),
		formatFloat(r.AT),
		formatFloat(r.LogAT),
		formatFloat(r.ShiftedOmega),
	}
}

func factorRecord(r tts.FactorRow) []string {
	return []string{formatFloat(r.Temperature), formatFloat(r.AT), formatFloat(r.LogAT)}
}

func parseSample(rec []string) (tts.SampleRow, error) {
	v, err := parseFloats(rec, len(SampleHeader))
	if err != nil {
		return tts.SampleRow{}, err
	}
	return tts.SampleRow{
		Temperature:  v[0],
		Omega:        v[1],
		Modulus:      v[2],
		AT:           v[3],
		LogAT:        v[4],
		ShiftedOmega: v[5],
	}, nil
}

func parseFactor(rec []string) (tts.FactorRow, error) {
	v, err := parseFloats(rec, len(FactorHeader))
	if err != nil {
		return tts.FactorRow{}, err
	}
	return tts.FactorRow{Temperature: v[0], AT: v[1], LogAT: v[2]}, nil
}

func parseParam(rec []string) (tts.Param, error) {
	if len(rec) < 2 {
		return tts.Param{}, fmt.Errorf("parameter row has %d columns, want 2", len(rec))
	}
	return tts.Param{Key: rec[0], Value: rec[1]}, nil
}

func parseFloats(rec []string, n int) ([]float64, error) {
	if len(rec) < n {
		return nil, fmt.Errorf("row has %d columns, want %d", len(rec), n)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// readTable parses the data rows that follow a header row.
func readTable[T any](name string, rows [][]string, parse func([]string) (T, error)) ([]T, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: missing header", name)
	}
	out := make([]T, 0, len(rows)-1)
	for i, rec := range rows[1:] {
		if blank(rec) {
			continue
		}
		v, err := parse(rec)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", name, i+2, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
