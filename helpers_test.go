package tts

import (
	"math"
	"testing"
)

// syntheticRecords builds curves that are exact horizontal shifts of one
// power-law master curve, log10 G' = 3 + 0.5·log10(ω·aT), under m.
func syntheticRecords(temps []float64, tref float64, m ShiftMethod) []RawRecord {
	const n = 21
	records := make([]RawRecord, 0, len(temps))
	for _, T := range temps {
		logAT := m.LogAT(T, tref)
		rec := RawRecord{
			Temperature: T,
			Omega:       make([]float64, n),
			Modulus:     make([]float64, n),
		}
		for i := 0; i < n; i++ {
			x := -2 + 4*float64(i)/float64(n-1)
			rec.Omega[i] = math.Pow(10, x)
			rec.Modulus[i] = math.Pow(10, 3+0.5*(x+logAT))
		}
		records = append(records, rec)
	}
	return records
}

func syntheticDataSet(t *testing.T, temps []float64, tref float64, m ShiftMethod) *DataSet {
	t.Helper()

	ds, err := Ingest(syntheticRecords(temps, tref, m))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	return ds
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
