package tts

import (
	"math"
	"strconv"
	"time"
)

// Factor is one shift-factor table entry with its derived logarithm.
type Factor struct {
	AT    float64 `json:"aT"`
	LogAT float64 `json:"log_aT"`
}

// MasterCurve is the assembled view consumed by plotting and export
// collaborators. Temperatures without a factor appear in Original only.
type MasterCurve struct {
	ReferenceTemperature float64
	Temperatures         []float64 // ascending, all dataset temperatures
	Original             map[float64]Curve
	Shifted              map[float64]Curve
	Factors              map[float64]Factor
}

// Assemble applies factors to every curve: shifted ω = ω·aT, modulus
// unchanged. Only horizontal shifting is modelled. Returned slices are
// fresh copies.
func Assemble(ds *DataSet, factors ShiftFactorTable) MasterCurve {
	mc := MasterCurve{
		Temperatures: ds.Temperatures(),
		Original:     make(map[float64]Curve, ds.Len()),
		Shifted:      make(map[float64]Curve, len(factors)),
		Factors:      make(map[float64]Factor, len(factors)),
	}

	for _, T := range ds.temps {
		c := ds.curves[T]
		mc.Original[T] = Curve{
			Omega:   append([]float64(nil), c.Omega...),
			Modulus: append([]float64(nil), c.Modulus...),
		}

		aT, ok := factors[T]
		if !ok {
			continue
		}
		shifted := make([]float64, len(c.Omega))
		for i, w := range c.Omega {
			shifted[i] = w * aT
		}
		mc.Shifted[T] = Curve{
			Omega:   shifted,
			Modulus: append([]float64(nil), c.Modulus...),
		}
		mc.Factors[T] = Factor{AT: aT, LogAT: math.Log10(aT)}
	}

	return mc
}

// SampleRow is one measured point in the master-curve table.
type SampleRow struct {
	Temperature  float64
	Omega        float64
	Modulus      float64
	AT           float64
	LogAT        float64
	ShiftedOmega float64
}

// FactorRow is one temperature in the shift-factor table.
type FactorRow struct {
	Temperature float64
	AT          float64
	LogAT       float64
}

// Param is one entry of the key/value parameter block.
type Param struct {
	Key   string
	Value string
}

// Parameter block keys.
const (
	ParamReferenceTemperature = "Reference Temperature [°C]"
	ParamMethod               = "Shift Method"
	ParamWLFC1                = "WLF C1"
	ParamWLFC2                = "WLF C2"
	ParamEa                   = "Ea [kJ/mol]"
	ParamFitStatus            = "Fit Status"
	ParamFitRSquared          = "Fit R²"
	ParamManualOverrides      = "Manual Overrides"
	ParamExportedAt           = "Exported At"
)

// Fit status values.
const (
	FitStatusFitted       = "fitted"
	FitStatusNotRequested = "not requested"
	FitStatusFallback     = "fallback"
)

// ExportMeta describes the analysis behind an export.
type ExportMeta struct {
	ReferenceTemperature float64
	Method               ShiftMethod // nil when no model was run
	Fit                  *FitResult
	FitErr               error
	ManualOverrides      int
	Timestamp            time.Time
}

// ExportTables is the tabular form of an analysis: per-sample rows,
// per-temperature factor rows and the parameter block.
type ExportTables struct {
	Samples []SampleRow
	Factors []FactorRow
	Params  []Param
}

// Export flattens ds under factors. Rows are grouped by ascending
// temperature and keep the original sample order within a temperature.
// A temperature missing from factors is exported with aT = 1.
func Export(ds *DataSet, factors ShiftFactorTable, meta ExportMeta) ExportTables {
	var out ExportTables

	for _, T := range ds.temps {
		aT, ok := factors[T]
		if !ok {
			aT = 1.0
		}
		logAT := math.Log10(aT)
		c := ds.curves[T]
		for i := range c.Omega {
			out.Samples = append(out.Samples, SampleRow{
				Temperature:  T,
				Omega:        c.Omega[i],
				Modulus:      c.Modulus[i],
				AT:           aT,
				LogAT:        logAT,
				ShiftedOmega: c.Omega[i] * aT,
			})
		}
	}

	for _, T := range factors.Temperatures() {
		aT := factors[T]
		out.Factors = append(out.Factors, FactorRow{
			Temperature: T,
			AT:          aT,
			LogAT:       math.Log10(aT),
		})
	}

	out.Params = exportParams(meta)
	return out
}

func exportParams(meta ExportMeta) []Param {
	params := []Param{
		{Key: ParamReferenceTemperature, Value: formatFloat(meta.ReferenceTemperature)},
	}

	if meta.Method != nil {
		params = append(params, Param{Key: ParamMethod, Value: meta.Method.Name()})
		switch m := meta.Method.(type) {
		case WLF:
			params = append(params,
				Param{Key: ParamWLFC1, Value: formatFloat(m.C1)},
				Param{Key: ParamWLFC2, Value: formatFloat(m.C2)},
			)
		case Arrhenius:
			params = append(params, Param{Key: ParamEa, Value: formatFloat(m.Ea / 1000)})
		}

		switch {
		case meta.Fit != nil:
			params = append(params,
				Param{Key: ParamFitStatus, Value: FitStatusFitted},
				Param{Key: ParamFitRSquared, Value: formatFloat(meta.Fit.Quality.RSquared)},
			)
		case meta.FitErr != nil:
			params = append(params, Param{Key: ParamFitStatus, Value: FitStatusFallback + ": " + meta.FitErr.Error()})
		default:
			params = append(params, Param{Key: ParamFitStatus, Value: FitStatusNotRequested})
		}
	}

	params = append(params,
		Param{Key: ParamManualOverrides, Value: strconv.Itoa(meta.ManualOverrides)},
		Param{Key: ParamExportedAt, Value: meta.Timestamp.UTC().Format(time.RFC3339)},
	)
	return params
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// FactorTable rebuilds a ShiftFactorTable from exported factor rows, e.g.
// after re-reading an export to seed manual overrides.
func FactorTable(rows []FactorRow) ShiftFactorTable {
	table := make(ShiftFactorTable, len(rows))
	for _, r := range rows {
		table[r.Temperature] = r.AT
	}
	return table
}
