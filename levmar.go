package tts

import (
	"fmt"
	"math"
)

// model2 evaluates a two-parameter model and its gradient with respect to
// the parameters at x. ok is false where the model is undefined.
type model2 func(x float64, p [2]float64) (f float64, grad [2]float64, ok bool)

const (
	lmInitialLambda = 1e-3
	lmMaxLambda     = 1e16
)

// levenbergMarquardt minimises Σ(y - f(x; p))² starting from p0.
//
// Each iteration solves the damped 2x2 normal equations
//
//	(JᵀJ + λ·diag(JᵀJ)) δ = Jᵀr
//
// with Cramer's rule. λ shrinks tenfold on an accepted step and grows
// tenfold on a rejected one. Returns the number of iterations used.
// Exceeding opts.MaxIterations is reported as ErrFitConvergence.
func levenbergMarquardt(xs, ys []float64, p0 [2]float64, f model2, opts FitOptions) ([2]float64, int, error) {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultFitOptions().MaxIterations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultFitOptions().Tolerance
	}

	p := p0
	sse, ok := sumSquares(xs, ys, p, f)
	if !ok {
		return p0, 0, fmt.Errorf("model undefined at initial guess %v: %w", p0, ErrFitConvergence)
	}

	lambda := lmInitialLambda

	for iter := 1; iter <= opts.MaxIterations; iter++ {
		var a00, a01, a11, g0, g1 float64
		for i := range xs {
			fx, grad, _ := f(xs[i], p)
			r := ys[i] - fx
			a00 += grad[0] * grad[0]
			a01 += grad[0] * grad[1]
			a11 += grad[1] * grad[1]
			g0 += grad[0] * r
			g1 += grad[1] * r
		}

		if sse == 0 || (g0 == 0 && g1 == 0) {
			return p, iter, nil
		}

		accepted := false
		var step [2]float64
		var trialSSE float64
		for lambda <= lmMaxLambda {
			b00 := a00 * (1 + lambda)
			b11 := a11 * (1 + lambda)
			det := b00*b11 - a01*a01
			if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
				lambda *= 10
				continue
			}

			step = [2]float64{
				(g0*b11 - a01*g1) / det,
				(b00*g1 - a01*g0) / det,
			}
			trial := [2]float64{p[0] + step[0], p[1] + step[1]}

			s, ok := sumSquares(xs, ys, trial, f)
			if ok && s <= sse {
				trialSSE = s
				p = trial
				accepted = true
				lambda = math.Max(lambda/10, 1e-12)
				break
			}
			lambda *= 10
		}

		if !accepted {
			// No descent direction left: p is a numerical minimum.
			return p, iter, nil
		}

		prev := sse
		sse = trialSSE

		smallStep := math.Abs(step[0]) <= opts.Tolerance*(math.Abs(p[0])+opts.Tolerance) &&
			math.Abs(step[1]) <= opts.Tolerance*(math.Abs(p[1])+opts.Tolerance)
		smallGain := prev-sse <= opts.Tolerance*prev
		if smallStep || smallGain {
			return p, iter, nil
		}
	}

	return p, opts.MaxIterations, fmt.Errorf("exceeded %d iterations: %w", opts.MaxIterations, ErrFitConvergence)
}

// sumSquares returns Σ(y - f)². ok is false if the model is undefined or
// non-finite at any point.
func sumSquares(xs, ys []float64, p [2]float64, f model2) (float64, bool) {
	var s float64
	for i := range xs {
		fx, _, ok := f(xs[i], p)
		if !ok || math.IsNaN(fx) || math.IsInf(fx, 0) {
			return 0, false
		}
		r := ys[i] - fx
		s += r * r
	}
	return s, true
}
