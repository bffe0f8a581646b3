package tts

import (
	"errors"
	"testing"
)

func TestArrhenius_ClosedForm(t *testing.T) {
	a := Arrhenius{Ea: 80000}

	// (80000/8.314)·(1/308.15 - 1/298.15)/ln(10)
	got := a.LogAT(35, 25)
	if !approxEqual(got, -0.45485, 1e-4) {
		t.Errorf("log aT(35): expected ≈ -0.45485, got %.6f", got)
	}

	if a.LogAT(25, 25) != 0 {
		t.Errorf("log aT at Tref must be exactly 0, got %g", a.LogAT(25, 25))
	}

	t.Logf("Arrhenius Ea=80 kJ/mol, T=35, Tref=25: log aT = %.4f", got)
}

func TestComputeArrhenius_ReferenceIsUnity(t *testing.T) {
	ds := syntheticDataSet(t, []float64{60, 80, 100}, 80, DefaultArrhenius)

	table := ComputeArrhenius(ds, 80, 80000)
	AssertReferenceUnity(t, table, 80)
}

func TestFitArrhenius_RecoversKnownEa(t *testing.T) {
	truth := Arrhenius{Ea: 120000}
	ds := syntheticDataSet(t, []float64{60, 75, 90, 105, 120}, 90, truth)

	fit, err := FitArrhenius(ds, 90, Compute(ds, 90, truth), DefaultArrhenius)
	if err != nil {
		t.Fatalf("FitArrhenius failed: %v", err)
	}

	AssertRecovered(t, fit, truth, DefaultAssertionConfig())
}

func TestFitArrhenius_OnlyReferenceTemperature(t *testing.T) {
	ds := syntheticDataSet(t, []float64{90}, 90, DefaultArrhenius)

	_, err := FitArrhenius(ds, 90, nil, DefaultArrhenius)
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Expected ErrInsufficientData, got %v", err)
	}
}

func TestFitLine_Exact(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	y := []float64{3, 5, 7, 9}

	line, err := FitLine(x, y)
	if err != nil {
		t.Fatalf("FitLine failed: %v", err)
	}
	if !approxEqual(line.Slope, 2, 1e-12) || !approxEqual(line.Intercept, 1, 1e-12) {
		t.Errorf("Expected y = 2x + 1, got y = %gx + %g", line.Slope, line.Intercept)
	}
	if !approxEqual(line.RSquared, 1, 1e-12) {
		t.Errorf("Expected R² = 1, got %g", line.RSquared)
	}
}

func TestFitLine_Singular(t *testing.T) {
	_, err := FitLine([]float64{2, 2, 2}, []float64{1, 2, 3})
	if !errors.Is(err, ErrFitConvergence) {
		t.Errorf("Expected ErrFitConvergence for constant x, got %v", err)
	}
}

func TestCalculateQuality(t *testing.T) {
	q := CalculateQuality([]float64{1, 2, 3}, []float64{1, 2, 4})

	if q.N != 3 {
		t.Errorf("Expected N=3, got %d", q.N)
	}
	if !approxEqual(q.RSS, 1, 1e-12) {
		t.Errorf("Expected RSS=1, got %g", q.RSS)
	}
	if !approxEqual(q.RSquared, 0.5, 1e-12) {
		t.Errorf("Expected R²=0.5, got %g", q.RSquared)
	}
	if !approxEqual(q.MaxAbsResidual, 1, 1e-12) {
		t.Errorf("Expected max |residual| = 1, got %g", q.MaxAbsResidual)
	}
}
