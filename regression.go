package tts

import (
	"fmt"
	"math"
)

// FitQuality summarises residuals between observed and model log10(aT).
type FitQuality struct {
	N              int     // Points used in the fit
	RSS            float64 // Residual sum of squares
	RSquared       float64 // R²: Goodness of fit (1.0 = perfect)
	MeanResidual   float64
	StdDevResidual float64
	MaxAbsResidual float64
}

// LineFit is an ordinary least-squares straight line y = Slope·x + Intercept.
type LineFit struct {
	Slope     float64
	Intercept float64
	RSquared  float64
}

// FitLine performs a degree-1 least-squares fit.
//
// Normal equations for [b, m]:
//
//	[n    Σx ] [b]   [Σy ]
//	[Σx   Σx²] [m] = [Σxy]
//
// solved with Cramer's rule.
func FitLine(x, y []float64) (LineFit, error) {
	if len(x) != len(y) {
		return LineFit{}, fmt.Errorf("length mismatch: %d x vs %d y", len(x), len(y))
	}
	if len(x) < 2 {
		return LineFit{}, fmt.Errorf("need at least 2 data points, got %d", len(x))
	}

	var sumOne, sumX, sumY, sumXX, sumXY float64
	for i := range x {
		sumOne++
		sumX += x[i]
		sumY += y[i]
		sumXX += x[i] * x[i]
		sumXY += x[i] * y[i]
	}

	det := sumOne*sumXX - sumX*sumX
	if math.Abs(det) <= 1e-300 || math.IsNaN(det) {
		return LineFit{}, fmt.Errorf("singular normal equations (all x equal): %w", ErrFitConvergence)
	}

	intercept := (sumXX*sumY - sumX*sumXY) / det
	slope := (sumOne*sumXY - sumX*sumY) / det

	predicted := make([]float64, len(x))
	for i := range x {
		predicted[i] = slope*x[i] + intercept
	}

	return LineFit{
		Slope:     slope,
		Intercept: intercept,
		RSquared:  CalculateQuality(y, predicted).RSquared,
	}, nil
}

// CalculateQuality computes residual statistics of predicted against
// observed. R² is 1 when observed has no variance and is matched exactly.
func CalculateQuality(observed, predicted []float64) FitQuality {
	n := len(observed)
	if n == 0 || len(predicted) != n {
		return FitQuality{}
	}

	var mean float64
	for _, v := range observed {
		mean += v
	}
	mean /= float64(n)

	var ssRes, ssTot, sumRes, maxAbs float64
	residuals := make([]float64, n)
	for i := range observed {
		r := observed[i] - predicted[i]
		residuals[i] = r
		ssRes += r * r
		ssTot += (observed[i] - mean) * (observed[i] - mean)
		sumRes += r
		if math.Abs(r) > maxAbs {
			maxAbs = math.Abs(r)
		}
	}
	meanRes := sumRes / float64(n)

	var variance float64
	for _, r := range residuals {
		diff := r - meanRes
		variance += diff * diff
	}

	rSquared := 1.0
	if ssTot > 0 {
		rSquared = 1 - ssRes/ssTot
	} else if ssRes > 0 {
		rSquared = 0
	}

	return FitQuality{
		N:              n,
		RSS:            ssRes,
		RSquared:       rSquared,
		MeanResidual:   meanRes,
		StdDevResidual: math.Sqrt(variance / float64(n)),
		MaxAbsResidual: maxAbs,
	}
}
