package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/alexshd/tts"
	"github.com/alexshd/tts/config"
	"github.com/alexshd/tts/loader"
	"github.com/alexshd/tts/report"
)

var (
	analyzeRef       float64
	analyzeMethod    string
	analyzeC1        float64
	analyzeC2        float64
	analyzeEa        float64
	analyzeFit       bool
	analyzeOverrides []string
	analyzeOut       string
	analyzeFormat    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file or directory>...",
	Short: "Shift a set of curve files and print or export the result",
	Long: `Loads one .csv or .xlsx file per temperature (the temperature is read from
the file name), applies the chosen shift model and prints the shift factors.
With --out the master curve data, shift factors and parameters are exported.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.Float64Var(&analyzeRef, "ref", 25, "Reference temperature [°C]")
	f.StringVar(&analyzeMethod, "method", "WLF", "Shift model: WLF or Arrhenius")
	f.Float64Var(&analyzeC1, "c1", tts.DefaultWLF.C1, "WLF C1")
	f.Float64Var(&analyzeC2, "c2", tts.DefaultWLF.C2, "WLF C2 [°C]")
	f.Float64Var(&analyzeEa, "ea", tts.DefaultArrhenius.Ea, "Arrhenius activation energy [J/mol]")
	f.BoolVar(&analyzeFit, "fit", false, "Fit the model constants to shifts estimated from the curves")
	f.StringArrayVar(&analyzeOverrides, "override", nil, "Manual shift factor as T=logaT (repeatable)")
	f.StringVarP(&analyzeOut, "out", "o", "", "Export path (file for xlsx/sqlite, directory for csv)")
	f.StringVar(&analyzeFormat, "format", "xlsx", "Export format: xlsx, csv or sqlite")
}

// applyAnalyzeFlags lays explicitly set flags over the configuration.
func applyAnalyzeFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("ref") {
		c.Analysis.ReferenceTemperature = analyzeRef
	}
	if flags.Changed("method") {
		c.Analysis.Method = analyzeMethod
	}
	if flags.Changed("c1") {
		c.Analysis.C1 = analyzeC1
	}
	if flags.Changed("c2") {
		c.Analysis.C2 = analyzeC2
	}
	if flags.Changed("ea") {
		c.Analysis.Ea = analyzeEa
	}
	if flags.Changed("fit") {
		c.Fit.Enabled = analyzeFit
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	applyAnalyzeFlags(cmd, cfg)

	method, err := cfg.ShiftMethod()
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(analyzeFormat)
	if err != nil {
		return err
	}
	overrides, err := parseOverrides(analyzeOverrides)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	files, err := loader.Expand(args)
	if err != nil {
		return err
	}
	logger.Info("loading curves", "files", len(files))

	records, err := loader.New(logger, 0).LoadFiles(ctx, files)
	if err != nil {
		return err
	}
	ds, err := tts.Ingest(records)
	if err != nil {
		return err
	}
	for _, sk := range ds.Skipped() {
		logger.Warn("record skipped", "label", sk.Label, "reason", sk.Reason)
	}

	tref := cfg.Analysis.ReferenceTemperature
	engine := tts.NewEngine(ds, tref)
	for _, o := range overrides {
		if err := engine.ApplyManualOverride(o.T, o.LogAT); err != nil {
			return err
		}
	}

	shift, err := engine.Apply(method, tts.ShiftOptions{
		Fit:     cfg.Fit.Enabled,
		Fitting: cfg.FitOptions(),
	})
	if err != nil {
		return err
	}
	if shift.FitErr != nil {
		logger.Warn("fit fell back to supplied constants", "error", shift.FitErr)
	}

	factors, err := engine.EffectiveFactors()
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), tref, shift, factors, engine.Overrides())

	if analyzeOut == "" {
		return nil
	}
	tables, err := engine.Export()
	if err != nil {
		return err
	}
	if err := export(ctx, format, analyzeOut, tables); err != nil {
		return err
	}
	logger.Info("exported", "format", format, "path", analyzeOut)
	return nil
}

type override struct {
	T, LogAT float64
}

// parseOverrides reads "T=logaT" pairs.
func parseOverrides(specs []string) ([]override, error) {
	out := make([]override, 0, len(specs))
	for _, s := range specs {
		left, right, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("invalid override %q: want T=logaT", s)
		}
		T, err := strconv.ParseFloat(strings.TrimSpace(left), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid override %q: temperature: %w", s, err)
		}
		logAT, err := strconv.ParseFloat(strings.TrimSpace(right), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid override %q: log aT: %w", s, err)
		}
		out = append(out, override{T: T, LogAT: logAT})
	}
	return out, nil
}

func export(ctx context.Context, format report.Format, path string, tables tts.ExportTables) error {
	switch format {
	case report.FormatCSV:
		return report.WriteCSV(path, tables)
	case report.FormatSQLite:
		return report.WriteSQLite(ctx, path, tables)
	default:
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := report.WriteXLSX(f, tables); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
}

// printSummary writes the shift-factor table and fit status.
func printSummary(w io.Writer, tref float64, shift tts.Shift, factors, manual tts.ShiftFactorTable) {
	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)
	ok := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)
	hand := color.New(color.FgCyan)

	bold.Fprintf(w, "Shift method: %s  (Tref = %g °C)\n", shift.Method.Name(), tref)
	switch m := shift.Method.(type) {
	case tts.WLF:
		fmt.Fprintf(w, "  C1 = %.4g   C2 = %.4g\n", m.C1, m.C2)
	case tts.Arrhenius:
		fmt.Fprintf(w, "  Ea = %.4g kJ/mol\n", m.Ea/1000)
	}

	switch {
	case shift.Fit != nil:
		ok.Fprintf(w, "  fitted in %d iterations, R² = %.5f\n", shift.Fit.Iterations, shift.Fit.Quality.RSquared)
	case shift.FitErr != nil:
		warn.Fprintf(w, "  fit fell back: %v\n", shift.FitErr)
	default:
		dim.Fprintln(w, "  fit not requested")
	}

	fmt.Fprintln(w)
	bold.Fprintf(w, "%12s  %14s  %10s  %s\n", "T [°C]", "aT", "log aT", "source")
	for _, T := range factors.Temperatures() {
		aT := factors[T]
		line := fmt.Sprintf("%12g  %14.6e  %10.4f", T, aT, math.Log10(aT))
		switch _, isManual := manual[T]; {
		case isManual:
			hand.Fprintf(w, "%s  %s\n", line, "manual")
		case T == tref:
			dim.Fprintf(w, "%s  %s\n", line, "reference")
		default:
			fmt.Fprintf(w, "%s  %s\n", line, "model")
		}
	}
}
