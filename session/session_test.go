package session

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexshd/tts"
)

func testDataSet(t *testing.T) *tts.DataSet {
	t.Helper()
	var records []tts.RawRecord
	for _, T := range []float64{15, 25, 35} {
		rec := tts.RawRecord{Temperature: T}
		for i := 0; i < 5; i++ {
			w := math.Pow(10, float64(i-2))
			rec.Omega = append(rec.Omega, w)
			rec.Modulus = append(rec.Modulus, 1e4*w)
		}
		records = append(records, rec)
	}
	ds, err := tts.Ingest(records)
	require.NoError(t, err)
	return ds
}

func TestStore_CreateGetDelete(t *testing.T) {
	s := NewStore(Options{}, nil)

	sess := s.Create(testDataSet(t), 25)
	require.NotEmpty(t, sess.ID)

	got, err := s.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)

	assert.True(t, s.Delete(sess.ID))
	assert.False(t, s.Delete(sess.ID))

	_, err = s.Get(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UniqueIDs(t *testing.T) {
	s := NewStore(Options{MaxSessions: 10}, nil)
	ds := testDataSet(t)

	a := s.Create(ds, 25)
	b := s.Create(ds, 25)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSession_DoSerialisesEngineAccess(t *testing.T) {
	s := NewStore(Options{}, nil)
	sess := s.Create(testDataSet(t), 25)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = sess.Do(func(e *tts.Engine) error {
				if i%2 == 0 {
					e.ShiftWLF(8.86, 101.6, tts.ShiftOptions{})
				} else {
					e.ShiftArrhenius(80000, tts.ShiftOptions{})
				}
				return e.ApplyManualOverride(35, float64(i)/100)
			})
		}(i)
	}
	wg.Wait()

	err := sess.Do(func(e *tts.Engine) error {
		assert.Equal(t, tts.Shifted, e.State())
		assert.Len(t, e.Overrides(), 1)
		return nil
	})
	require.NoError(t, err)
}

func TestSession_DoPropagatesError(t *testing.T) {
	s := NewStore(Options{}, nil)
	sess := s.Create(testDataSet(t), 25)

	err := sess.Do(func(e *tts.Engine) error {
		_, err := e.EffectiveFactors()
		return err
	})
	assert.ErrorIs(t, err, tts.ErrNoShiftComputed)
}
