package tts

import (
	"math"
	"sort"
)

// ShiftMethod is the shift model applied by an Engine, carrying its own
// constants. The zero state of an Engine has no method (nil).
//
// Implementations: WLF, Arrhenius.
type ShiftMethod interface {
	// Name returns "WLF" or "Arrhenius".
	Name() string

	// LogAT evaluates log10(aT) at T [°C] for reference tref [°C].
	LogAT(T, tref float64) float64

	isShiftMethod()
}

// ShiftFactorTable maps temperature [°C] to the linear shift factor aT.
// log10(aT) is derived, never stored.
type ShiftFactorTable map[float64]float64

// LogAT returns log10(aT) for T.
func (t ShiftFactorTable) LogAT(T float64) (float64, bool) {
	aT, ok := t[T]
	if !ok {
		return 0, false
	}
	return math.Log10(aT), true
}

// Temperatures returns the table keys in ascending order.
func (t ShiftFactorTable) Temperatures() []float64 {
	out := make([]float64, 0, len(t))
	for T := range t {
		out = append(out, T)
	}
	sort.Float64s(out)
	return out
}

// Clone returns an independent copy.
func (t ShiftFactorTable) Clone() ShiftFactorTable {
	out := make(ShiftFactorTable, len(t))
	for T, aT := range t {
		out[T] = aT
	}
	return out
}

// Compute evaluates m at every dataset temperature. The reference
// temperature, when present, gets aT = 1.0 exactly. Temperatures where the
// model has no finite positive aT (the WLF pole at T-Tref = -C2, or
// overflow) are left out of the table.
func Compute(ds *DataSet, tref float64, m ShiftMethod) ShiftFactorTable {
	table := make(ShiftFactorTable, ds.Len())
	for _, T := range ds.temps {
		if T == tref {
			table[T] = 1.0
			continue
		}
		if aT, ok := shiftFactor(m.LogAT(T, tref)); ok {
			table[T] = aT
		}
	}
	return table
}

// shiftFactor converts log10 aT to aT, reporting false unless the result
// is finite and strictly positive.
func shiftFactor(logAT float64) (float64, bool) {
	if math.IsNaN(logAT) || math.IsInf(logAT, 0) {
		return 0, false
	}
	aT := math.Pow(10, logAT)
	if aT <= 0 || math.IsInf(aT, 0) {
		return 0, false
	}
	return aT, true
}

// FitOptions bounds the nonlinear solver.
type FitOptions struct {
	MaxIterations int     // Iteration cap; exceeding it is a convergence failure
	Tolerance     float64 // Relative step/RSS change treated as converged
}

// DefaultFitOptions mirrors the reference solver budget.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		MaxIterations: 5000,
		Tolerance:     1e-12,
	}
}

// FitResult holds fitted model constants and how well they explain the
// target shift factors.
type FitResult struct {
	Method     ShiftMethod // WLF or Arrhenius with fitted constants
	Iterations int         // Solver iterations (1 for the closed-form regression)
	Quality    FitQuality
}

// fitTarget collects the non-reference dataset temperatures present in
// target, paired with their log10(aT).
func fitTarget(ds *DataSet, tref float64, target ShiftFactorTable) (temps, logAT []float64) {
	for _, T := range ds.nonReference(tref) {
		aT, ok := target[T]
		if !ok || aT <= 0 || math.IsInf(aT, 0) || math.IsNaN(aT) {
			continue
		}
		temps = append(temps, T)
		logAT = append(logAT, math.Log10(aT))
	}
	return temps, logAT
}
