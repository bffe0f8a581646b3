package tts

import (
	"fmt"
	"math"
	"sort"
)

// EstimateOptions controls empirical shift estimation.
type EstimateOptions struct {
	SearchDecades float64 // Pairwise log10 shift scanned in [-SearchDecades, +SearchDecades]
	GridStep      float64 // Coarse scan step in decades
	Tolerance     float64 // Golden-section stopping width in decades
	MinOverlap    int     // Minimum overlapping points for a shift to count
}

// DefaultEstimateOptions returns defaults suited to sweeps of a few decades.
func DefaultEstimateOptions() EstimateOptions {
	return EstimateOptions{
		SearchDecades: 10,
		GridStep:      0.02,
		Tolerance:     1e-10,
		MinOverlap:    2,
	}
}

// logCurve is a curve in log10-log10 space, sorted by X.
type logCurve struct {
	X []float64 // log10 ω
	Y []float64 // log10 G'
}

func toLogCurve(c Curve) logCurve {
	type pt struct{ x, y float64 }
	pts := make([]pt, 0, c.Len())
	for i := range c.Omega {
		if c.Omega[i] <= 0 || c.Modulus[i] <= 0 {
			continue
		}
		pts = append(pts, pt{math.Log10(c.Omega[i]), math.Log10(c.Modulus[i])})
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].x < pts[j].x })

	lc := logCurve{X: make([]float64, len(pts)), Y: make([]float64, len(pts))}
	for i, p := range pts {
		lc.X[i] = p.x
		lc.Y[i] = p.y
	}
	return lc
}

// at linearly interpolates the curve at x. ok is false outside its range.
func (lc logCurve) at(x float64) (float64, bool) {
	n := len(lc.X)
	if n == 0 || x < lc.X[0] || x > lc.X[n-1] {
		return 0, false
	}
	i := sort.SearchFloat64s(lc.X, x)
	if i < n && lc.X[i] == x {
		return lc.Y[i], true
	}
	x0, x1 := lc.X[i-1], lc.X[i]
	y0, y1 := lc.Y[i-1], lc.Y[i]
	if x1 == x0 {
		return y0, true
	}
	return y0 + (y1-y0)*(x-x0)/(x1-x0), true
}

// overlapMismatch is the mean squared log-modulus difference after moving
// b by s decades along log ω, evaluated symmetrically on both sample sets.
// It returns +Inf with fewer than minOverlap overlapping points.
func overlapMismatch(a, b logCurve, s float64, minOverlap int) float64 {
	var sum float64
	var n int
	for i := range b.X {
		if ya, ok := a.at(b.X[i] + s); ok {
			d := b.Y[i] - ya
			sum += d * d
			n++
		}
	}
	for i := range a.X {
		if yb, ok := b.at(a.X[i] - s); ok {
			d := a.Y[i] - yb
			sum += d * d
			n++
		}
	}
	if n < minOverlap || n == 0 {
		return math.Inf(1)
	}
	return sum / float64(n)
}

// pairShift finds the log10 shift s that best lays b onto a: a coarse scan
// followed by golden-section refinement around the best grid point.
func pairShift(a, b logCurve, opts EstimateOptions) (float64, error) {
	best := math.Inf(1)
	bestS := 0.0
	for s := -opts.SearchDecades; s <= opts.SearchDecades; s += opts.GridStep {
		if v := overlapMismatch(a, b, s, opts.MinOverlap); v < best {
			best, bestS = v, s
		}
	}
	if math.IsInf(best, 1) {
		return 0, ErrNoOverlap
	}

	const invPhi = 0.6180339887498949
	lo, hi := bestS-opts.GridStep, bestS+opts.GridStep
	c := hi - invPhi*(hi-lo)
	d := lo + invPhi*(hi-lo)
	fc := overlapMismatch(a, b, c, opts.MinOverlap)
	fd := overlapMismatch(a, b, d, opts.MinOverlap)
	for hi-lo > opts.Tolerance {
		if fc < fd {
			hi, d, fd = d, c, fc
			c = hi - invPhi*(hi-lo)
			fc = overlapMismatch(a, b, c, opts.MinOverlap)
		} else {
			lo, c, fc = c, d, fd
			d = lo + invPhi*(hi-lo)
			fd = overlapMismatch(a, b, d, opts.MinOverlap)
		}
	}

	s := (lo + hi) / 2
	if overlapMismatch(a, b, s, opts.MinOverlap) > best {
		s = bestS
	}
	return s, nil
}

// EstimateShifts derives shift factors directly from the measured curves,
// independent of any model. Adjacent temperatures are aligned pairwise in
// log-log space and the pairwise shifts are chained, then zeroed at tref.
// When tref is not a dataset temperature the chain is linearly
// interpolated (or extrapolated from the nearest pair) at tref.
//
// Returns ErrNoOverlap, wrapped with the offending temperatures, when two
// adjacent curves cannot be aligned.
func EstimateShifts(ds *DataSet, tref float64, opts EstimateOptions) (ShiftFactorTable, error) {
	def := DefaultEstimateOptions()
	if opts.SearchDecades <= 0 {
		opts.SearchDecades = def.SearchDecades
	}
	if opts.GridStep <= 0 {
		opts.GridStep = def.GridStep
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	if opts.MinOverlap <= 0 {
		opts.MinOverlap = def.MinOverlap
	}

	temps := ds.temps
	chain := make([]float64, len(temps))
	prev := toLogCurve(ds.curves[temps[0]])
	for i := 1; i < len(temps); i++ {
		next := toLogCurve(ds.curves[temps[i]])
		s, err := pairShift(prev, next, opts)
		if err != nil {
			return nil, fmt.Errorf("aligning %g °C onto %g °C: %w", temps[i], temps[i-1], err)
		}
		chain[i] = chain[i-1] + s
		prev = next
	}

	offset := interpolateChain(temps, chain, tref)

	table := make(ShiftFactorTable, len(temps))
	for i, T := range temps {
		if T == tref {
			table[T] = 1.0
			continue
		}
		table[T] = math.Pow(10, chain[i]-offset)
	}
	return table, nil
}

// interpolateChain evaluates the piecewise-linear chain at t.
func interpolateChain(temps, chain []float64, t float64) float64 {
	n := len(temps)
	if n == 1 {
		return chain[0]
	}
	i := sort.SearchFloat64s(temps, t)
	if i < n && temps[i] == t {
		return chain[i]
	}
	switch {
	case i == 0:
		i = 1
	case i == n:
		i = n - 1
	}
	t0, t1 := temps[i-1], temps[i]
	return chain[i-1] + (chain[i]-chain[i-1])*(t-t0)/(t1-t0)
}
