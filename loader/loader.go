// Package loader reads isothermal frequency-sweep files into raw records
// for tts.Ingest.
//
// Each file holds one curve: angular frequency in the first column and
// storage modulus in the second. The temperature is taken from the file
// name. A leading header row is skipped; cells that do not parse become
// NaN so ingestion drops those rows.
package loader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/alexshd/tts"
)

// Extensions lists the accepted file extensions, lower case.
var Extensions = []string{".csv", ".xlsx"}

// Supported reports whether name has an accepted extension.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Loader reads curve files with bounded parallelism.
type Loader struct {
	logger      *slog.Logger
	concurrency int
}

// New creates a loader. concurrency <= 0 means 4 parallel reads.
func New(logger *slog.Logger, concurrency int) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Loader{logger: logger, concurrency: concurrency}
}

// Expand turns a mix of files and directories into a sorted list of
// supported files. Directories are not walked recursively.
func Expand(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", p, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !Supported(entry.Name()) {
				continue
			}
			files = append(files, filepath.Join(p, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadFiles reads every file in parallel. A file that cannot be read
// yields a record with Err set instead of failing the batch; only context
// cancellation aborts. Records come back in input order.
func (l *Loader) LoadFiles(ctx context.Context, files []string) ([]tts.RawRecord, error) {
	records := make([]tts.RawRecord, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec := l.loadFile(path)
			records[i] = rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

func (l *Loader) loadFile(path string) tts.RawRecord {
	label := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	f, err := os.Open(path)
	if err != nil {
		l.logger.Warn("skipping unreadable file", "path", path, "error", err)
		return tts.RawRecord{Label: label, Err: err}
	}
	defer f.Close()

	rec := Read(f, filepath.Base(path))
	if rec.Err != nil {
		l.logger.Warn("skipping unparseable file", "path", path, "error", rec.Err)
		return rec
	}

	l.logger.Debug("loaded curve", "path", path, "label", rec.Label, "rows", len(rec.Omega))
	return rec
}

// Read parses one curve from r. name supplies both the format (by
// extension) and the temperature label (the base name without extension).
func Read(r io.Reader, name string) tts.RawRecord {
	label := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		rows, err = readCSV(r)
	case ".xlsx":
		rows, err = readXLSX(r)
	default:
		err = fmt.Errorf("unsupported file type %q", filepath.Ext(name))
	}
	if err != nil {
		return tts.RawRecord{Label: label, Err: err}
	}

	omega, modulus, err := columns(rows)
	if err != nil {
		return tts.RawRecord{Label: label, Err: err}
	}
	return tts.RawRecord{Label: label, Omega: omega, Modulus: modulus}
}

// columns takes the first two cells of every row. A first row whose
// cells are not both numeric is treated as a header.
func columns(rows [][]string) ([]float64, []float64, error) {
	if len(rows) > 0 {
		if _, ok := parseCell(cell(rows[0], 0)); !ok {
			rows = rows[1:]
		} else if _, ok := parseCell(cell(rows[0], 1)); !ok {
			rows = rows[1:]
		}
	}

	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("no data rows")
	}

	wide := false
	omega := make([]float64, 0, len(rows))
	modulus := make([]float64, 0, len(rows))
	for _, row := range rows {
		if len(row) >= 2 {
			wide = true
		}
		w, _ := parseCell(cell(row, 0))
		g, _ := parseCell(cell(row, 1))
		omega = append(omega, w)
		modulus = append(modulus, g)
	}
	if !wide {
		return nil, nil, fmt.Errorf("need at least 2 columns")
	}
	return omega, modulus, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// parseCell converts a cell to a float; blanks and text become NaN.
func parseCell(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}
