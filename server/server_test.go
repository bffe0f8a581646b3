package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexshd/tts"
	"github.com/alexshd/tts/config"
	"github.com/alexshd/tts/report"
	"github.com/alexshd/tts/session"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultConfig()
	store := session.NewStore(session.Options{MaxSessions: 100}, logger)
	ts := httptest.NewServer(New(cfg, store, logger).Handler())
	t.Cleanup(ts.Close)
	return ts
}

// wlfRecords builds curves that superpose exactly under the default WLF
// constants at 25 °C.
func wlfRecords(temps ...float64) []recordJSON {
	var out []recordJSON
	for _, T := range temps {
		logAT := tts.DefaultWLF.LogAT(T, 25)
		rec := recordJSON{Temperature: T}
		for i := 0; i <= 16; i++ {
			x := -2 + 0.25*float64(i)
			rec.Omega = append(rec.Omega, math.Pow(10, x))
			rec.Modulus = append(rec.Modulus, math.Pow(10, 3+0.5*(x+logAT)))
		}
		out = append(out, rec)
	}
	return out
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createSession(t *testing.T, ts *httptest.Server, temps ...float64) string {
	t.Helper()
	resp := do(t, http.MethodPost, ts.URL+"/api/sessions", createRequest{Records: wlfRecords(temps...)})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[sessionResponse](t, resp).ID
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, http.MethodGet, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]any](t, resp)["status"])

	// The first request is recorded once it completes.
	resp = do(t, http.MethodGet, ts.URL+"/health", nil)
	body := decode[struct {
		Latency LatencyStats `json:"latency"`
	}](t, resp)
	assert.Equal(t, int64(1), body.Latency.Requests)
}

func TestCreateSession_JSON(t *testing.T) {
	ts := newTestServer(t)

	records := wlfRecords(15, 25, 35)
	records = append(records, recordJSON{Label: "no temperature here", Omega: []float64{1}, Modulus: []float64{1}})
	ref := 25.0

	resp := do(t, http.MethodPost, ts.URL+"/api/sessions", createRequest{ReferenceTemperature: &ref, Records: records})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	got := decode[sessionResponse](t, resp)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, []float64{15, 25, 35}, got.Temperatures)
	require.Len(t, got.Skipped, 1)
	assert.Equal(t, "no temperature here", got.Skipped[0].Label)
}

func TestCreateSession_Multipart(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("reference_temperature", "40"))
	for name, content := range map[string]string{
		"40C.csv": "omega,G\n0.1,10\n1,100\n10,1000\n",
		"60C.csv": "omega,G\n0.1,5\n1,50\n10,500\n",
	} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/sessions", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	got := decode[sessionResponse](t, resp)
	assert.Equal(t, 40.0, got.ReferenceTemperature)
	assert.Equal(t, []float64{40, 60}, got.Temperatures)
}

func TestCreateSession_Errors(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, http.MethodPost, ts.URL+"/api/sessions", createRequest{
		Records: []recordJSON{{Label: "blank", Omega: []float64{1}, Modulus: []float64{2}}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/sessions", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestShiftAndMasterCurve(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts, 15, 25, 35, 45)
	base := ts.URL + "/api/sessions/" + id

	// Nothing to assemble before the first shift.
	resp := do(t, http.MethodGet, base+"/master-curve", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodPost, base+"/shift", shiftRequest{Method: "WLF"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	shift := decode[shiftResponse](t, resp)
	assert.Equal(t, "SHIFTED", shift.State)
	assert.Equal(t, "WLF", shift.Method)
	assert.Equal(t, tts.DefaultWLF.C1, shift.Params["c1"])
	require.Len(t, shift.Factors, 4)
	for _, f := range shift.Factors {
		if f.Temperature == 25 {
			assert.Equal(t, 1.0, f.AT)
		}
		assert.InDelta(t, tts.DefaultWLF.LogAT(f.Temperature, 25), f.LogAT, 1e-12)
	}

	resp = do(t, http.MethodGet, base+"/master-curve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	mc := decode[masterCurveResponse](t, resp)
	assert.Equal(t, 25.0, mc.ReferenceTemperature)
	require.Len(t, mc.Curves, 4)
	for _, c := range mc.Curves {
		for i := range c.Omega {
			assert.InDelta(t, c.Omega[i]*c.AT, c.ShiftedOmega[i], 1e-12*c.ShiftedOmega[i])
		}
	}
	assert.Len(t, mc.Plot.Points.X, 3)
}

func TestShift_FitFallbackIsReported(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts, 25, 35)

	fit := true
	resp := do(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/shift", shiftRequest{Method: "arrhenius", Fit: &fit})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	shift := decode[shiftResponse](t, resp)
	assert.Equal(t, "Arrhenius", shift.Method)
	assert.Nil(t, shift.Fit)
	assert.Contains(t, shift.FitError, "insufficient data")
	assert.Equal(t, tts.DefaultArrhenius.Ea, shift.Params["ea"])
}

func TestShift_FitRecoversConstants(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts, 0, 10, 25, 40, 60)

	fit := true
	c1, c2 := 12.0, 80.0
	resp := do(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/shift", shiftRequest{C1: &c1, C2: &c2, Fit: &fit})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	shift := decode[shiftResponse](t, resp)
	require.NotNil(t, shift.Fit, shift.FitError)
	assert.InEpsilon(t, tts.DefaultWLF.C1, shift.Params["c1"], 1e-3)
	assert.InEpsilon(t, tts.DefaultWLF.C2, shift.Params["c2"], 1e-3)
}

func TestShift_BadMethod(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts, 15, 25)

	resp := do(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/shift", shiftRequest{Method: "VFT"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOverrides(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts, 15, 25, 35)
	base := ts.URL + "/api/sessions/" + id

	// Overrides may precede the first shift.
	resp := do(t, http.MethodPut, base+"/overrides", overridesRequest{Overrides: []logATJSON{{Temperature: 35, LogAT: -0.5}}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pending := decode[shiftResponse](t, resp)
	assert.Equal(t, "UNSHIFTED", pending.State)
	require.Len(t, pending.Factors, 1)
	assert.True(t, pending.Factors[0].Manual)

	resp = do(t, http.MethodPost, base+"/shift", shiftRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	shift := decode[shiftResponse](t, resp)
	for _, f := range shift.Factors {
		if f.Temperature == 35 {
			assert.True(t, f.Manual)
			assert.InDelta(t, -0.5, f.LogAT, 1e-12)
		}
	}

	// One unknown temperature rejects the whole batch.
	resp = do(t, http.MethodPut, base+"/overrides", overridesRequest{Overrides: []logATJSON{
		{Temperature: 15, LogAT: 0.3},
		{Temperature: 99, LogAT: 0.1},
	}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, http.MethodPut, base+"/overrides", overridesRequest{Overrides: []logATJSON{{Temperature: 15, LogAT: 0.3}}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	shift = decode[shiftResponse](t, resp)
	manual := 0
	for _, f := range shift.Factors {
		if f.Manual {
			manual++
		}
	}
	assert.Equal(t, 2, manual)

	resp = do(t, http.MethodDelete, base+"/overrides/35", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, http.MethodDelete, base+"/overrides/35", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = do(t, http.MethodDelete, base+"/overrides/hot", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOverrides_NonFiniteFactorRejected(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts, 15, 25, 35)
	base := ts.URL + "/api/sessions/" + id

	resp := do(t, http.MethodPost, base+"/shift", shiftRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// 10^400 overflows; the valid entry in the same batch is not stored.
	resp = do(t, http.MethodPut, base+"/overrides", overridesRequest{Overrides: []logATJSON{
		{Temperature: 15, LogAT: 0.3},
		{Temperature: 35, LogAT: 400},
	}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, http.MethodGet, base+"/master-curve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	mc := decode[masterCurveResponse](t, resp)
	for _, c := range mc.Curves {
		assert.InDelta(t, tts.DefaultWLF.LogAT(c.Temperature, 25), c.LogAT, 1e-9, "temperature %g", c.Temperature)
	}
}

func TestShift_WLFPoleLeavesTemperatureOut(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts, 15, 25, 35)
	base := ts.URL + "/api/sessions/" + id

	c1, c2 := 8.86, 10.0
	resp := do(t, http.MethodPost, base+"/shift", shiftRequest{Method: "WLF", C1: &c1, C2: &c2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	shift := decode[shiftResponse](t, resp)
	require.Len(t, shift.Factors, 2)
	for _, f := range shift.Factors {
		assert.NotEqual(t, 15.0, f.Temperature)
	}

	resp = do(t, http.MethodGet, base+"/master-curve", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWriteJSON_UnencodableValue(t *testing.T) {
	s := &Server{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	rec := httptest.NewRecorder()

	s.writeJSON(rec, http.StatusOK, map[string]float64{"aT": math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to encode response")
}

func TestExport(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts, 15, 25, 35)
	base := ts.URL + "/api/sessions/" + id

	resp := do(t, http.MethodGet, base+"/export", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	do(t, http.MethodPost, base+"/shift", shiftRequest{})

	resp = do(t, http.MethodGet, base+"/export?format=xlsx", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tables, err := report.ReadXLSX(resp.Body)
	require.NoError(t, err)
	assert.Len(t, tables.Samples, 3*17)
	assert.Len(t, tables.Factors, 3)

	resp = do(t, http.MethodGet, base+"/export?format=csv", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Len(t, zr.File, 3)

	resp = do(t, http.MethodGet, base+"/export?format=sqlite", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts, 15, 25)

	resp := do(t, http.MethodDelete, ts.URL+"/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodDelete, ts.URL+"/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, fmt.Sprintf("%s/api/sessions/%s/shift", ts.URL, id), shiftRequest{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
