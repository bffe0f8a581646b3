package tts

import (
	"fmt"
	"math"
)

const (
	// GasConstant R [J/(mol·K)].
	GasConstant = 8.314

	// KelvinOffset converts °C to K.
	KelvinOffset = 273.15
)

// Arrhenius is the activation-energy model:
//
//	log10(aT) = (Ea/R)·(1/T_K - 1/Tref_K) / ln(10)
//
// It describes shift behaviour well above the glass transition.
type Arrhenius struct {
	Ea float64 // Activation energy [J/mol]
}

// DefaultArrhenius is the activation energy used when none is supplied.
var DefaultArrhenius = Arrhenius{Ea: 80000}

func (Arrhenius) Name() string { return "Arrhenius" }

func (Arrhenius) isShiftMethod() {}

// LogAT evaluates the Arrhenius equation. It is exactly 0 at T == tref.
func (a Arrhenius) LogAT(T, tref float64) float64 {
	if T == tref {
		return 0
	}
	return (a.Ea / GasConstant) * inverseKelvinOffset(T, tref) / math.Ln10
}

// inverseKelvinOffset is 1/T_K - 1/Tref_K.
func inverseKelvinOffset(T, tref float64) float64 {
	return 1/(T+KelvinOffset) - 1/(tref+KelvinOffset)
}

// ComputeArrhenius returns the closed-form shift factors for every dataset
// temperature.
func ComputeArrhenius(ds *DataSet, tref, ea float64) ShiftFactorTable {
	return Compute(ds, tref, Arrhenius{Ea: ea})
}

// FitArrhenius estimates Ea by ordinary least squares of
//
//	y = log10(aT)·ln(10)  against  x = 1/T_K - 1/Tref_K
//
// so that slope·R = Ea. Only non-reference dataset temperatures present in
// target take part. A nil target is generated from guess (legacy
// behaviour, returns guess).
func FitArrhenius(ds *DataSet, tref float64, target ShiftFactorTable, guess Arrhenius) (FitResult, error) {
	if target == nil {
		target = Compute(ds, tref, guess)
	}

	temps, logAT := fitTarget(ds, tref, target)
	if len(temps) < 2 {
		return FitResult{}, fmt.Errorf("Arrhenius fit with %d temperatures: %w", len(temps), ErrInsufficientData)
	}

	x := make([]float64, len(temps))
	y := make([]float64, len(temps))
	for i, T := range temps {
		x[i] = inverseKelvinOffset(T, tref)
		y[i] = logAT[i] * math.Ln10
	}

	line, err := FitLine(x, y)
	if err != nil {
		return FitResult{}, err
	}

	fitted := Arrhenius{Ea: line.Slope * GasConstant}
	predicted := make([]float64, len(temps))
	for i, T := range temps {
		predicted[i] = fitted.LogAT(T, tref)
	}

	return FitResult{
		Method:     fitted,
		Iterations: 1,
		Quality:    CalculateQuality(logAT, predicted),
	}, nil
}
