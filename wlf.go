package tts

import "fmt"

// WLF is the Williams-Landel-Ferry model:
//
//	log10(aT) = -C1·(T - Tref) / (C2 + (T - Tref))
//
// It describes shift behaviour near the glass transition.
type WLF struct {
	C1 float64
	C2 float64 // [°C]
}

// DefaultWLF holds the "universal" constants used as the starting guess.
var DefaultWLF = WLF{C1: 8.86, C2: 101.6}

func (WLF) Name() string { return "WLF" }

func (WLF) isShiftMethod() {}

// LogAT evaluates the WLF equation. It is exactly 0 at T == tref.
func (w WLF) LogAT(T, tref float64) float64 {
	if T == tref {
		return 0
	}
	d := T - tref
	return -w.C1 * d / (w.C2 + d)
}

// ComputeWLF returns the closed-form shift factors for every dataset
// temperature.
func ComputeWLF(ds *DataSet, tref, c1, c2 float64) ShiftFactorTable {
	return Compute(ds, tref, WLF{C1: c1, C2: c2})
}

// wlfModel is the WLF equation in (C1, C2) with x = T - Tref.
func wlfModel(d float64, p [2]float64) (float64, [2]float64, bool) {
	den := p[1] + d
	if den == 0 {
		return 0, [2]float64{}, false
	}
	f := -p[0] * d / den
	grad := [2]float64{
		-d / den,
		p[0] * d / (den * den),
	}
	return f, grad, true
}

// FitWLF estimates C1 and C2 by nonlinear least squares against target, an
// already known shift-factor table (typically EstimateShifts output or a
// user-adjusted table). Only non-reference dataset temperatures present in
// target take part.
//
// A nil target reproduces the legacy self-referential behaviour: the target
// is generated from guess itself, so the fit returns guess.
//
// Returns ErrInsufficientData with fewer than 2 usable temperatures and
// ErrFitConvergence when the solver exceeds opts.MaxIterations.
func FitWLF(ds *DataSet, tref float64, target ShiftFactorTable, guess WLF, opts FitOptions) (FitResult, error) {
	if target == nil {
		target = Compute(ds, tref, guess)
	}

	temps, logAT := fitTarget(ds, tref, target)
	if len(temps) < 2 {
		return FitResult{}, fmt.Errorf("WLF fit with %d temperatures: %w", len(temps), ErrInsufficientData)
	}

	offsets := make([]float64, len(temps))
	for i, T := range temps {
		offsets[i] = T - tref
	}

	p, iters, err := levenbergMarquardt(offsets, logAT, [2]float64{guess.C1, guess.C2}, wlfModel, opts)
	if err != nil {
		return FitResult{}, err
	}

	fitted := WLF{C1: p[0], C2: p[1]}
	predicted := make([]float64, len(temps))
	for i, T := range temps {
		predicted[i] = fitted.LogAT(T, tref)
	}

	return FitResult{
		Method:     fitted,
		Iterations: iters,
		Quality:    CalculateQuality(logAT, predicted),
	}, nil
}
