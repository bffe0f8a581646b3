package tts

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
)

// Curve is one isothermal frequency sweep: angular frequency ω [rad/s]
// against storage modulus G' [Pa]. Omega and Modulus always have the same
// length and contain no NaN.
type Curve struct {
	Omega   []float64
	Modulus []float64
}

// Len returns the number of sample points.
func (c Curve) Len() int {
	return len(c.Omega)
}

// RawRecord is an unvalidated curve as handed over by a file parser.
//
// When Label is non-empty the temperature is parsed from it with
// ParseTemperature and the Temperature field is ignored. Err marks a record
// whose source could not be read at all.
type RawRecord struct {
	Label       string
	Temperature float64
	Omega       []float64
	Modulus     []float64
	Err         error
}

// SkippedRecord explains why a raw record did not make it into a DataSet.
type SkippedRecord struct {
	Label  string
	Reason string
}

// DataSet maps temperature [°C] to its measured curve. It is built once per
// analysis run by Ingest and never mutated afterwards.
type DataSet struct {
	curves  map[float64]Curve
	temps   []float64 // ascending
	skipped []SkippedRecord
}

// Ingest validates raw records and builds a DataSet.
//
// Records are processed in order. A record is skipped (not fatal) when its
// source failed to parse, its label carries no number, its ω and modulus
// arrays differ in length, or nothing remains after dropping NaN pairs.
// A later record for an already seen temperature replaces the earlier one.
// Ingest returns ErrNoData if no record survives.
func Ingest(records []RawRecord) (*DataSet, error) {
	ds := &DataSet{curves: make(map[float64]Curve)}

	for _, rec := range records {
		label := rec.Label
		temp := rec.Temperature

		if rec.Err != nil {
			ds.skip(label, fmt.Sprintf("unreadable: %v", rec.Err))
			continue
		}

		if label != "" {
			t, ok := ParseTemperature(label)
			if !ok {
				ds.skip(label, "no temperature in label")
				continue
			}
			temp = t
		} else {
			label = strconv.FormatFloat(temp, 'g', -1, 64)
		}

		if math.IsNaN(temp) || math.IsInf(temp, 0) {
			ds.skip(label, "temperature is not finite")
			continue
		}

		if len(rec.Omega) != len(rec.Modulus) {
			ds.skip(label, fmt.Sprintf("length mismatch: %d omega vs %d modulus",
				len(rec.Omega), len(rec.Modulus)))
			continue
		}

		curve := dropNaN(rec.Omega, rec.Modulus)
		if curve.Len() == 0 {
			ds.skip(label, "no valid samples")
			continue
		}

		if _, dup := ds.curves[temp]; dup {
			ds.skip(label, fmt.Sprintf("replaces earlier curve at %g °C", temp))
		}
		ds.curves[temp] = curve
	}

	if len(ds.curves) == 0 {
		return nil, ErrNoData
	}

	ds.temps = make([]float64, 0, len(ds.curves))
	for t := range ds.curves {
		ds.temps = append(ds.temps, t)
	}
	sort.Float64s(ds.temps)

	return ds, nil
}

func (ds *DataSet) skip(label, reason string) {
	ds.skipped = append(ds.skipped, SkippedRecord{Label: label, Reason: reason})
}

// dropNaN removes every index where either value is NaN and returns fresh
// slices.
func dropNaN(omega, modulus []float64) Curve {
	c := Curve{
		Omega:   make([]float64, 0, len(omega)),
		Modulus: make([]float64, 0, len(modulus)),
	}
	for i := range omega {
		if math.IsNaN(omega[i]) || math.IsNaN(modulus[i]) {
			continue
		}
		c.Omega = append(c.Omega, omega[i])
		c.Modulus = append(c.Modulus, modulus[i])
	}
	return c
}

// Temperatures returns the dataset temperatures in ascending order.
func (ds *DataSet) Temperatures() []float64 {
	out := make([]float64, len(ds.temps))
	copy(out, ds.temps)
	return out
}

// Len returns the number of temperatures.
func (ds *DataSet) Len() int {
	return len(ds.temps)
}

// Has reports whether T is a key of the dataset.
func (ds *DataSet) Has(T float64) bool {
	_, ok := ds.curves[T]
	return ok
}

// Curve returns the measured curve at T. The returned slices are shared and
// must not be modified.
func (ds *DataSet) Curve(T float64) (Curve, bool) {
	c, ok := ds.curves[T]
	return c, ok
}

// Skipped lists the records Ingest dropped, in input order.
func (ds *DataSet) Skipped() []SkippedRecord {
	out := make([]SkippedRecord, len(ds.skipped))
	copy(out, ds.skipped)
	return out
}

// nonReference returns the ascending temperatures that differ from tref.
func (ds *DataSet) nonReference(tref float64) []float64 {
	out := make([]float64, 0, len(ds.temps))
	for _, t := range ds.temps {
		if t != tref {
			out = append(out, t)
		}
	}
	return out
}

var temperaturePattern = regexp.MustCompile(`[-+]?\d+(?:\.\d*)?`)

// ParseTemperature extracts the first signed decimal number in label, e.g.
// "PP_-10.5C_sweep" → -10.5. It reports false when the label has no
// numeric substring.
func ParseTemperature(label string) (float64, bool) {
	m := temperaturePattern.FindString(label)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
