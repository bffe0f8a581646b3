package tts

import "math"

// Series is a list of (X, Y) points.
type Series struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// ModelPlot is the linearised view of shift factors against a model,
// ready for a plotting collaborator.
type ModelPlot struct {
	XLabel string `json:"x_label"`
	YLabel string `json:"y_label"`
	Points Series `json:"points"`
	Theory Series `json:"theory"`
}

// WLFPlot linearises the WLF equation:
//
//	-log10(aT)/(T - Tref) = C1·x / (C2·x + 1),  x = 1/(T - Tref)
//
// Points come from the non-reference factors; the theory line spans the
// point range padded by 10% of its span on each side and skips its pole.
func WLFPlot(factors ShiftFactorTable, tref float64, w WLF, n int) ModelPlot {
	plot := ModelPlot{
		XLabel: "1/(T-Tref) [1/°C]",
		YLabel: "-log(aT)/(T-Tref)",
	}

	for _, T := range factors.Temperatures() {
		if T == tref {
			continue
		}
		logAT, _ := factors.LogAT(T)
		d := T - tref
		plot.Points.X = append(plot.Points.X, 1/d)
		plot.Points.Y = append(plot.Points.Y, -logAT/d)
	}

	if len(plot.Points.X) == 0 {
		return plot
	}

	lo, hi := minMax(plot.Points.X)
	pad := 0.1 * (hi - lo)
	if pad == 0 {
		pad = 0.1 * math.Abs(lo)
	}
	for _, x := range linspace(lo-pad, hi+pad, n) {
		den := w.C2*x + 1
		if den == 0 {
			continue
		}
		plot.Theory.X = append(plot.Theory.X, x)
		plot.Theory.Y = append(plot.Theory.Y, w.C1*x/den)
	}
	return plot
}

// ArrheniusPlot plots log10(aT) against 1000/T_K for every factor, with
// the theory line spanning the temperature range widened by 20 °C.
func ArrheniusPlot(factors ShiftFactorTable, tref float64, a Arrhenius, n int) ModelPlot {
	plot := ModelPlot{
		XLabel: "1000/T [1/K]",
		YLabel: "log(aT)",
	}

	temps := factors.Temperatures()
	for _, T := range temps {
		logAT, _ := factors.LogAT(T)
		plot.Points.X = append(plot.Points.X, 1000/(T+KelvinOffset))
		plot.Points.Y = append(plot.Points.Y, logAT)
	}

	if len(temps) == 0 {
		return plot
	}

	for _, T := range linspace(temps[0]-20, temps[len(temps)-1]+20, n) {
		if T+KelvinOffset <= 0 {
			continue
		}
		plot.Theory.X = append(plot.Theory.X, 1000/(T+KelvinOffset))
		plot.Theory.Y = append(plot.Theory.Y, a.LogAT(T, tref))
	}
	return plot
}

func linspace(lo, hi float64, n int) []float64 {
	if n < 2 {
		n = 2
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

func minMax(xs []float64) (float64, float64) {
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}
