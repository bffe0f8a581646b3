package loader

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/alexshd/tts"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeWorkbook(t *testing.T, dir, name string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(dir, name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestRead_CSVWithHeader(t *testing.T) {
	rec := Read(strings.NewReader("omega,G'\n0.1,100\n1,200\n10,400\n"), "40C.csv")

	require.NoError(t, rec.Err)
	assert.Equal(t, "40C", rec.Label)
	assert.Equal(t, []float64{0.1, 1, 10}, rec.Omega)
	assert.Equal(t, []float64{100, 200, 400}, rec.Modulus)
}

func TestRead_CSVWithoutHeader(t *testing.T) {
	rec := Read(strings.NewReader("1,10\n2,20\n"), "sample_25.5.CSV")

	require.NoError(t, rec.Err)
	assert.Equal(t, "sample_25.5", rec.Label)
	assert.Len(t, rec.Omega, 2)
}

func TestRead_BadCellsBecomeNaN(t *testing.T) {
	rec := Read(strings.NewReader("w,g\n1,10\nx,20\n3,\n4,40\n"), "30.csv")

	require.NoError(t, rec.Err)
	require.Len(t, rec.Omega, 4)
	assert.True(t, math.IsNaN(rec.Omega[1]))
	assert.True(t, math.IsNaN(rec.Modulus[2]))

	// Ingestion drops the NaN rows and keeps the rest.
	ds, err := tts.Ingest([]tts.RawRecord{rec})
	require.NoError(t, err)
	c, ok := ds.Curve(30)
	require.True(t, ok)
	assert.Equal(t, []float64{1, 4}, c.Omega)
}

func TestRead_SingleColumnFails(t *testing.T) {
	rec := Read(strings.NewReader("1\n2\n3\n"), "25.csv")
	assert.Error(t, rec.Err)
}

func TestRead_HeaderOnlyFails(t *testing.T) {
	rec := Read(strings.NewReader("omega,modulus\n"), "25.csv")
	assert.Error(t, rec.Err)
}

func TestRead_UnsupportedExtension(t *testing.T) {
	rec := Read(strings.NewReader("1,2\n"), "25.txt")
	assert.Error(t, rec.Err)
	assert.Equal(t, "25", rec.Label)
}

func TestRead_XLSX(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkbook(t, dir, "60C.xlsx", [][]any{
		{"ω [rad/s]", "G' [Pa]"},
		{0.1, 1000.0},
		{1.0, 2500.0},
	})

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rec := Read(f, filepath.Base(path))
	require.NoError(t, rec.Err)
	assert.Equal(t, "60C", rec.Label)
	assert.Equal(t, []float64{0.1, 1}, rec.Omega)
	assert.Equal(t, []float64{1000, 2500}, rec.Modulus)
}

func TestRead_CorruptXLSX(t *testing.T) {
	rec := Read(strings.NewReader("not a zip"), "25.xlsx")
	assert.Error(t, rec.Err)
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "40.csv", "1,2\n")
	writeFile(t, dir, "20.csv", "1,2\n")
	writeFile(t, dir, "notes.txt", "ignore me")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
	writeFile(t, filepath.Join(dir, "nested"), "30.csv", "1,2\n")

	extra := writeFile(t, t.TempDir(), "10.csv", "1,2\n")

	files, err := Expand([]string{dir, extra})
	require.NoError(t, err)

	want := []string{extra, filepath.Join(dir, "20.csv"), filepath.Join(dir, "40.csv")}
	assert.ElementsMatch(t, want, files)
	assert.IsIncreasing(t, files)
}

func TestExpand_MissingPath(t *testing.T) {
	_, err := Expand([]string{filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

func TestLoadFiles_KeepsOrderAndSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFile(t, dir, "20C.csv", "w,g\n1,10\n10,100\n"),
		writeFile(t, dir, "broken.csv", "only\n"),
		filepath.Join(dir, "vanished.csv"),
		writeFile(t, dir, "40C.csv", "w,g\n1,5\n10,50\n"),
	}

	l := New(nil, 2)
	records, err := l.LoadFiles(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, "20C", records[0].Label)
	assert.NoError(t, records[0].Err)
	assert.Error(t, records[1].Err)
	assert.Error(t, records[2].Err)
	assert.Equal(t, "40C", records[3].Label)

	ds, err := tts.Ingest(records)
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 40}, ds.Temperatures())
	assert.Len(t, ds.Skipped(), 2)
}

func TestLoadFiles_Cancelled(t *testing.T) {
	dir := t.TempDir()
	files := []string{writeFile(t, dir, "20.csv", "1,2\n")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil, 1).LoadFiles(ctx, files)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.csv"))
	assert.True(t, Supported("a.XLSX"))
	assert.False(t, Supported("a.xls"))
	assert.False(t, Supported("csv"))
}
