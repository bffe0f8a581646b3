package tts

import (
	"fmt"
	"math"
	"strings"
	"testing"
)

// AssertionConfig contains thresholds for shift-factor properties.
type AssertionConfig struct {
	// Relative tolerance when comparing fitted constants to known ones
	RelTolerance float64

	// Minimum R² for model fit quality
	MinRSquared float64

	// Maximum RMS log-modulus mismatch between adjacent shifted curves
	MaxCollapseRMS float64
}

// DefaultAssertionConfig returns conservative thresholds.
func DefaultAssertionConfig() AssertionConfig {
	return AssertionConfig{
		RelTolerance:   1e-3, // 0.1% of each constant
		MinRSquared:    0.99,
		MaxCollapseRMS: 0.05, // decades of modulus
	}
}

// AssertReferenceUnity verifies the reference temperature maps to aT = 1
// exactly.
//
// Mathematical property:
//
//	aT(Tref) = 1  ⇔  log10(aT(Tref)) = 0
func AssertReferenceUnity(t testing.TB, table ShiftFactorTable, tref float64) {
	t.Helper()

	aT, ok := table[tref]
	if !ok {
		t.Fatalf("Reference temperature %g °C missing from shift table", tref)
	}
	if aT != 1.0 {
		t.Errorf("Reference shift factor not unity: aT(%g) = %.17g", tref, aT)
	}

	t.Logf("✓ Reference unity: aT(%g °C) = 1", tref)
}

// AssertRecovered verifies a fit reproduced known model constants within
// cfg.RelTolerance.
func AssertRecovered(t testing.TB, got FitResult, want ShiftMethod, cfg AssertionConfig) {
	t.Helper()

	var failures []string
	check := func(name string, g, w float64) {
		if relErr(g, w) > cfg.RelTolerance {
			failures = append(failures, fmt.Sprintf("  %s: got %.6g, want %.6g (rel err %.2e)",
				name, g, w, relErr(g, w)))
		}
	}

	switch w := want.(type) {
	case WLF:
		g, ok := got.Method.(WLF)
		if !ok {
			t.Fatalf("Expected WLF fit, got %T", got.Method)
		}
		check("C1", g.C1, w.C1)
		check("C2", g.C2, w.C2)
	case Arrhenius:
		g, ok := got.Method.(Arrhenius)
		if !ok {
			t.Fatalf("Expected Arrhenius fit, got %T", got.Method)
		}
		check("Ea", g.Ea, w.Ea)
	default:
		t.Fatalf("Unsupported method %T", want)
	}

	if len(failures) > 0 {
		t.Errorf("Fit did not recover constants:\n%s", strings.Join(failures, "\n"))
	}

	if got.Quality.RSquared < cfg.MinRSquared {
		t.Errorf("Poor model fit: R² = %.4f (min: %.4f)", got.Quality.RSquared, cfg.MinRSquared)
	}

	t.Logf("✓ Recovered %s constants in %d iterations", want.Name(), got.Iterations)
	t.Logf("  Model fit: R² = %.6f, RSS = %.3e", got.Quality.RSquared, got.Quality.RSS)
}

// AssertCollapse verifies the shifted curves superpose: every adjacent
// temperature pair overlaps with an RMS log-modulus mismatch below
// cfg.MaxCollapseRMS.
func AssertCollapse(t testing.TB, mc MasterCurve, cfg AssertionConfig) {
	t.Helper()

	var temps []float64
	for _, T := range mc.Temperatures {
		if _, ok := mc.Shifted[T]; ok {
			temps = append(temps, T)
		}
	}

	var failures []string
	for i := 1; i < len(temps); i++ {
		a := toLogCurve(mc.Shifted[temps[i-1]])
		b := toLogCurve(mc.Shifted[temps[i]])
		mse := overlapMismatch(a, b, 0, 2)
		rms := math.Sqrt(mse)
		if math.IsInf(mse, 1) {
			failures = append(failures, fmt.Sprintf("  %g→%g °C: no overlap", temps[i-1], temps[i]))
			continue
		}
		if rms > cfg.MaxCollapseRMS {
			failures = append(failures, fmt.Sprintf("  %g→%g °C: RMS %.4f (max: %.4f)",
				temps[i-1], temps[i], rms, cfg.MaxCollapseRMS))
		}
	}

	if len(failures) > 0 {
		t.Errorf("Curves do not collapse onto a master curve:\n%s", strings.Join(failures, "\n"))
	}

	t.Logf("✓ Master curve collapse across %d temperatures", len(temps))
}

// PrintAnalysis outputs the shift-factor table of an engine to the test log.
func PrintAnalysis(t testing.TB, e *Engine) {
	t.Helper()

	shift, ok := e.LastShift()
	if !ok {
		t.Fatalf("Engine has no shift: %v", ErrNoShiftComputed)
	}
	factors, err := e.EffectiveFactors()
	if err != nil {
		t.Fatalf("EffectiveFactors failed: %v", err)
	}

	t.Logf("\n=== TTS Analysis (Tref = %g °C) ===", e.ReferenceTemperature())
	t.Logf("Method: %s %+v", shift.Method.Name(), shift.Method)
	switch {
	case shift.Fitted():
		t.Logf("Fit: R² = %.6f after %d iterations", shift.Fit.Quality.RSquared, shift.Fit.Iterations)
	case shift.FitErr != nil:
		t.Logf("Fit: fell back (%v)", shift.FitErr)
	}

	overrides := e.Overrides()
	t.Logf("  T [°C]    aT            log(aT)   source")
	t.Logf("  --------  ------------  --------  ------")
	for _, T := range factors.Temperatures() {
		source := "model"
		if _, ok := overrides[T]; ok {
			source = "manual"
		}
		logAT, _ := factors.LogAT(T)
		t.Logf("  %8.2f  %12.5g  %8.4f  %s", T, factors[T], logAT, source)
	}
}

func relErr(got, want float64) float64 {
	if want == 0 {
		return math.Abs(got)
	}
	return math.Abs(got-want) / math.Abs(want)
}
