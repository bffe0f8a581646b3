package tts

import (
	"fmt"
	"time"
)

// State is the engine's position in its two-state lifecycle.
type State int

const (
	Unshifted State = iota // No model applied yet
	Shifted                // A model has populated the computed table
)

func (s State) String() string {
	switch s {
	case Unshifted:
		return "UNSHIFTED"
	case Shifted:
		return "SHIFTED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ShiftOptions controls a single shift run.
type ShiftOptions struct {
	// Fit refines the supplied constants by regression. A failed fit never
	// fails the shift; it is reported in Shift.FitErr.
	Fit bool

	// Target is the known shift-factor table to fit against. When nil the
	// engine estimates one from the curves (EstimateShifts) and lays the
	// manual overrides over it.
	Target ShiftFactorTable

	Fitting  FitOptions
	Estimate EstimateOptions
}

// Shift is the outcome of one shift run.
type Shift struct {
	Supplied ShiftMethod      // Constants passed by the caller
	Method   ShiftMethod      // Constants in effect: fitted if the fit succeeded, else Supplied
	Computed ShiftFactorTable // Closed-form factors under Method
	Fit      *FitResult       // Nil unless a fit was requested and succeeded
	FitErr   error            // Non-nil (a *FitError) when a requested fit fell back
	At       time.Time
}

// Fitted reports whether Method came out of a successful regression.
func (s Shift) Fitted() bool {
	return s.Fit != nil
}

// Engine computes shift factors for one analysis run: one dataset and one
// reference temperature. It is not safe for concurrent use; callers keep
// one engine per session and serialise access to it.
//
// Lifecycle:
//   - Unshifted: no computed table, EffectiveFactors fails
//   - Shifted:   every ShiftWLF/ShiftArrhenius call replaces the computed
//     table and fit outcome; manual overrides survive re-runs
type Engine struct {
	data *DataSet
	tref float64

	state     State
	last      Shift
	overrides ShiftFactorTable

	now func() time.Time
}

// NewEngine creates an engine in the Unshifted state.
func NewEngine(ds *DataSet, tref float64) *Engine {
	return &Engine{
		data:      ds,
		tref:      tref,
		state:     Unshifted,
		overrides: make(ShiftFactorTable),
		now:       time.Now,
	}
}

// DataSet returns the dataset under analysis.
func (e *Engine) DataSet() *DataSet { return e.data }

// ReferenceTemperature returns T_ref [°C].
func (e *Engine) ReferenceTemperature() float64 { return e.tref }

// State returns the lifecycle state.
func (e *Engine) State() State { return e.state }

// LastShift returns the most recent shift outcome.
func (e *Engine) LastShift() (Shift, bool) {
	if e.state != Shifted {
		return Shift{}, false
	}
	return e.last, true
}

// ShiftWLF applies the WLF model with the given constants.
func (e *Engine) ShiftWLF(c1, c2 float64, opts ShiftOptions) Shift {
	return e.apply(WLF{C1: c1, C2: c2}, opts)
}

// ShiftArrhenius applies the Arrhenius model with the given activation
// energy [J/mol].
func (e *Engine) ShiftArrhenius(ea float64, opts ShiftOptions) Shift {
	return e.apply(Arrhenius{Ea: ea}, opts)
}

// Apply runs the shift for an arbitrary method value. It fails only for a
// nil or foreign ShiftMethod.
func (e *Engine) Apply(m ShiftMethod, opts ShiftOptions) (Shift, error) {
	switch m.(type) {
	case WLF, Arrhenius:
		return e.apply(m, opts), nil
	default:
		return Shift{}, fmt.Errorf("unsupported shift method %T", m)
	}
}

func (e *Engine) apply(supplied ShiftMethod, opts ShiftOptions) Shift {
	shift := Shift{
		Supplied: supplied,
		Method:   supplied,
		At:       e.now(),
	}

	if opts.Fit {
		fit, err := e.fit(supplied, opts)
		if err != nil {
			shift.FitErr = &FitError{Model: supplied.Name(), Err: err}
		} else {
			shift.Fit = &fit
			shift.Method = fit.Method
		}
	}

	shift.Computed = Compute(e.data, e.tref, shift.Method)

	e.last = shift
	e.state = Shifted
	return shift
}

func (e *Engine) fit(supplied ShiftMethod, opts ShiftOptions) (FitResult, error) {
	if n := len(e.data.nonReference(e.tref)); n < 2 {
		return FitResult{}, fmt.Errorf("%d non-reference temperatures: %w", n, ErrInsufficientData)
	}

	target := opts.Target
	if target == nil {
		estimated, err := EstimateShifts(e.data, e.tref, opts.Estimate)
		if err != nil {
			return FitResult{}, fmt.Errorf("estimating empirical shifts: %w", err)
		}
		for T, aT := range e.overrides {
			estimated[T] = aT
		}
		target = estimated
	}

	switch m := supplied.(type) {
	case WLF:
		return FitWLF(e.data, e.tref, target, m, opts.Fitting)
	case Arrhenius:
		return FitArrhenius(e.data, e.tref, target, m)
	default:
		return FitResult{}, fmt.Errorf("unsupported shift method %T", supplied)
	}
}

// ApplyManualOverride records aT = 10^logAT for T in the manual table.
// Overrides may be set before the first shift and survive later shifts.
// Returns ErrUnknownTemperature if T is not a dataset temperature and
// ErrInvalidShiftFactor if 10^logAT is not finite and positive.
func (e *Engine) ApplyManualOverride(T, logAT float64) error {
	if err := e.CheckManualOverride(T, logAT); err != nil {
		return err
	}
	e.overrides[T], _ = shiftFactor(logAT)
	return nil
}

// CheckManualOverride validates an override without storing it.
func (e *Engine) CheckManualOverride(T, logAT float64) error {
	if !e.data.Has(T) {
		return fmt.Errorf("manual override at %g °C: %w", T, ErrUnknownTemperature)
	}
	if _, ok := shiftFactor(logAT); !ok {
		return fmt.Errorf("manual override at %g °C: log aT %g: %w", T, logAT, ErrInvalidShiftFactor)
	}
	return nil
}

// ClearOverride removes the override at T and reports whether one existed.
func (e *Engine) ClearOverride(T float64) bool {
	_, ok := e.overrides[T]
	delete(e.overrides, T)
	return ok
}

// ClearOverrides drops every manual override.
func (e *Engine) ClearOverrides() {
	e.overrides = make(ShiftFactorTable)
}

// Overrides returns a copy of the manual table.
func (e *Engine) Overrides() ShiftFactorTable {
	return e.overrides.Clone()
}

// ComputedFactors returns a copy of the model-computed table.
func (e *Engine) ComputedFactors() (ShiftFactorTable, error) {
	if e.state != Shifted {
		return nil, ErrNoShiftComputed
	}
	return e.last.Computed.Clone(), nil
}

// EffectiveFactors returns the computed table with manual overrides merged
// over it per temperature: an overridden temperature takes the manual
// value, every other temperature keeps its computed value.
func (e *Engine) EffectiveFactors() (ShiftFactorTable, error) {
	if e.state != Shifted {
		return nil, ErrNoShiftComputed
	}
	effective := e.last.Computed.Clone()
	for T, aT := range e.overrides {
		effective[T] = aT
	}
	return effective, nil
}

// MasterCurve assembles original and shifted curves under the effective
// factors.
func (e *Engine) MasterCurve() (MasterCurve, error) {
	factors, err := e.EffectiveFactors()
	if err != nil {
		return MasterCurve{}, err
	}
	mc := Assemble(e.data, factors)
	mc.ReferenceTemperature = e.tref
	return mc, nil
}

// Export flattens the current analysis into the three export tables.
func (e *Engine) Export() (ExportTables, error) {
	factors, err := e.EffectiveFactors()
	if err != nil {
		return ExportTables{}, err
	}
	return Export(e.data, factors, ExportMeta{
		ReferenceTemperature: e.tref,
		Method:               e.last.Method,
		Fit:                  e.last.Fit,
		FitErr:               e.last.FitErr,
		ManualOverrides:      len(e.overrides),
		Timestamp:            e.now(),
	}), nil
}

// ModelPlot returns linearised shift-factor points and the theory line of
// the current method, sampled at n points.
func (e *Engine) ModelPlot(n int) (ModelPlot, error) {
	factors, err := e.EffectiveFactors()
	if err != nil {
		return ModelPlot{}, err
	}
	switch m := e.last.Method.(type) {
	case WLF:
		return WLFPlot(factors, e.tref, m, n), nil
	case Arrhenius:
		return ArrheniusPlot(factors, e.tref, m, n), nil
	default:
		return ModelPlot{}, fmt.Errorf("unsupported shift method %T", m)
	}
}
