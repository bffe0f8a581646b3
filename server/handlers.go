package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/alexshd/tts"
	"github.com/alexshd/tts/config"
	"github.com/alexshd/tts/loader"
	"github.com/alexshd/tts/report"
	"github.com/alexshd/tts/session"
)

// errBadRequest marks client input that could not be decoded.
var errBadRequest = errors.New("bad request")

type recordJSON struct {
	Label       string    `json:"label,omitempty"`
	Temperature float64   `json:"temperature"`
	Omega       []float64 `json:"omega"`
	Modulus     []float64 `json:"modulus"`
}

type createRequest struct {
	ReferenceTemperature *float64     `json:"reference_temperature"`
	Records              []recordJSON `json:"records"`
}

type skippedJSON struct {
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

type sessionResponse struct {
	ID                   string        `json:"id"`
	ReferenceTemperature float64       `json:"reference_temperature"`
	Temperatures         []float64     `json:"temperatures"`
	Skipped              []skippedJSON `json:"skipped,omitempty"`
}

type logATJSON struct {
	Temperature float64 `json:"temperature"`
	LogAT       float64 `json:"log_aT"`
}

type shiftRequest struct {
	Method        string      `json:"method"`
	C1            *float64    `json:"c1"`
	C2            *float64    `json:"c2"`
	Ea            *float64    `json:"ea"`
	Fit           *bool       `json:"fit"`
	MaxIterations int         `json:"max_iterations"`
	Tolerance     float64     `json:"tolerance"`
	Target        []logATJSON `json:"target,omitempty"`
}

type fitJSON struct {
	Iterations int            `json:"iterations"`
	Quality    tts.FitQuality `json:"quality"`
}

type factorJSON struct {
	Temperature float64 `json:"temperature"`
	AT          float64 `json:"aT"`
	LogAT       float64 `json:"log_aT"`
	Manual      bool    `json:"manual"`
}

type shiftResponse struct {
	State    string             `json:"state"`
	Method   string             `json:"method,omitempty"`
	Params   map[string]float64 `json:"params,omitempty"`
	Fit      *fitJSON           `json:"fit,omitempty"`
	FitError string             `json:"fit_error,omitempty"`
	Factors  []factorJSON       `json:"factors"`
}

type overridesRequest struct {
	Overrides []logATJSON `json:"overrides"`
}

type curveJSON struct {
	Temperature  float64   `json:"temperature"`
	AT           float64   `json:"aT"`
	LogAT        float64   `json:"log_aT"`
	Omega        []float64 `json:"omega"`
	ShiftedOmega []float64 `json:"shifted_omega"`
	Modulus      []float64 `json:"modulus"`
}

type masterCurveResponse struct {
	ReferenceTemperature float64       `json:"reference_temperature"`
	Curves               []curveJSON   `json:"curves"`
	Plot                 tts.ModelPlot `json:"plot"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.store.Len(),
		"latency":  s.latency.Stats(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUpload)

	tref := s.cfg.Analysis.ReferenceTemperature
	var records []tts.RawRecord

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		recs, ref, err := s.readMultipart(r)
		if err != nil {
			s.writeError(w, err)
			return
		}
		records = recs
		if ref != nil {
			tref = *ref
		}
	} else {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
			return
		}
		for _, rec := range req.Records {
			records = append(records, tts.RawRecord{
				Label:       rec.Label,
				Temperature: rec.Temperature,
				Omega:       rec.Omega,
				Modulus:     rec.Modulus,
			})
		}
		if req.ReferenceTemperature != nil {
			tref = *req.ReferenceTemperature
		}
	}

	if math.IsNaN(tref) || math.IsInf(tref, 0) {
		s.writeError(w, fmt.Errorf("%w: reference temperature must be finite", errBadRequest))
		return
	}

	ds, err := tts.Ingest(records)
	if err != nil {
		s.writeError(w, err)
		return
	}
	for _, sk := range ds.Skipped() {
		s.logger.Warn("record skipped", "label", sk.Label, "reason", sk.Reason)
	}

	sess := s.store.Create(ds, tref)

	resp := sessionResponse{
		ID:                   sess.ID,
		ReferenceTemperature: tref,
		Temperatures:         ds.Temperatures(),
	}
	for _, sk := range ds.Skipped() {
		resp.Skipped = append(resp.Skipped, skippedJSON{Label: sk.Label, Reason: sk.Reason})
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

// readMultipart parses uploaded curve files from the "files" field and an
// optional "reference_temperature" value.
func (s *Server) readMultipart(r *http.Request) ([]tts.RawRecord, *float64, error) {
	if err := r.ParseMultipartForm(s.cfg.Server.MaxUpload); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}

	var ref *float64
	if v := r.FormValue("reference_temperature"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: reference_temperature: %v", errBadRequest, err)
		}
		ref = &f
	}

	var records []tts.RawRecord
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			records = append(records, tts.RawRecord{Label: fh.Filename, Err: err})
			continue
		}
		records = append(records, loader.Read(f, fh.Filename))
		f.Close()
	}
	return records, ref, nil
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.store.Delete(r.PathValue("id")) {
		s.writeError(w, session.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleShift(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req shiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	method, opts, err := s.shiftParams(req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var resp shiftResponse
	err = sess.Do(func(e *tts.Engine) error {
		shift, err := e.Apply(method, opts)
		if err != nil {
			return err
		}
		if shift.FitErr != nil {
			s.logger.Warn("fit fell back to supplied constants",
				"session", sess.ID,
				"method", method.Name(),
				"error", shift.FitErr)
		}
		resp, err = shiftResult(e)
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// shiftParams fills unset request fields from the configuration.
func (s *Server) shiftParams(req shiftRequest) (tts.ShiftMethod, tts.ShiftOptions, error) {
	a := s.cfg.Analysis
	name := req.Method
	if name == "" {
		name = a.Method
	}
	c1, c2, ea := a.C1, a.C2, a.Ea
	if req.C1 != nil {
		c1 = *req.C1
	}
	if req.C2 != nil {
		c2 = *req.C2
	}
	if req.Ea != nil {
		ea = *req.Ea
	}

	method, err := config.Method(name, c1, c2, ea)
	if err != nil {
		return nil, tts.ShiftOptions{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}

	opts := tts.ShiftOptions{
		Fit:     s.cfg.Fit.Enabled,
		Fitting: s.cfg.FitOptions(),
	}
	if req.Fit != nil {
		opts.Fit = *req.Fit
	}
	if req.MaxIterations > 0 {
		opts.Fitting.MaxIterations = req.MaxIterations
	}
	if req.Tolerance > 0 {
		opts.Fitting.Tolerance = req.Tolerance
	}
	if len(req.Target) > 0 {
		opts.Target = make(tts.ShiftFactorTable, len(req.Target))
		for _, t := range req.Target {
			opts.Target[t.Temperature] = math.Pow(10, t.LogAT)
		}
	}
	return method, opts, nil
}

// shiftResult describes the engine's last shift and effective factors.
// Before the first shift it lists the manual overrides alone.
func shiftResult(e *tts.Engine) (shiftResponse, error) {
	manual := e.Overrides()
	resp := shiftResponse{State: e.State().String()}

	shift, ok := e.LastShift()
	if !ok {
		for _, T := range manual.Temperatures() {
			resp.Factors = append(resp.Factors, factorJSON{
				Temperature: T,
				AT:          manual[T],
				LogAT:       math.Log10(manual[T]),
				Manual:      true,
			})
		}
		return resp, nil
	}

	factors, err := e.EffectiveFactors()
	if err != nil {
		return shiftResponse{}, err
	}

	resp.Method = shift.Method.Name()
	resp.Params = methodParams(shift.Method)
	if shift.Fit != nil {
		resp.Fit = &fitJSON{Iterations: shift.Fit.Iterations, Quality: shift.Fit.Quality}
	}
	if shift.FitErr != nil {
		resp.FitError = shift.FitErr.Error()
	}
	for _, T := range factors.Temperatures() {
		_, isManual := manual[T]
		resp.Factors = append(resp.Factors, factorJSON{
			Temperature: T,
			AT:          factors[T],
			LogAT:       math.Log10(factors[T]),
			Manual:      isManual,
		})
	}
	return resp, nil
}

func methodParams(m tts.ShiftMethod) map[string]float64 {
	switch m := m.(type) {
	case tts.WLF:
		return map[string]float64{"c1": m.C1, "c2": m.C2}
	case tts.Arrhenius:
		return map[string]float64{"ea": m.Ea}
	default:
		return nil
	}
}

// handlePutOverrides applies a batch of manual overrides. The batch is
// validated as a whole before any override is stored.
func (s *Server) handlePutOverrides(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req overridesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	var resp shiftResponse
	err = sess.Do(func(e *tts.Engine) error {
		for _, o := range req.Overrides {
			if err := e.CheckManualOverride(o.Temperature, o.LogAT); err != nil {
				return err
			}
		}
		for _, o := range req.Overrides {
			if err := e.ApplyManualOverride(o.Temperature, o.LogAT); err != nil {
				return err
			}
		}
		s.logger.Info("manual overrides applied", "session", sess.ID, "count", len(req.Overrides))
		var err error
		resp, err = shiftResult(e)
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	T, err := strconv.ParseFloat(r.PathValue("temperature"), 64)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: temperature: %v", errBadRequest, err))
		return
	}

	var existed bool
	_ = sess.Do(func(e *tts.Engine) error {
		existed = e.ClearOverride(T)
		return nil
	})
	if !existed {
		s.writeJSON(w, http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("no manual override at %g °C", T),
		})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMasterCurve(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var resp masterCurveResponse
	err = sess.Do(func(e *tts.Engine) error {
		mc, err := e.MasterCurve()
		if err != nil {
			return err
		}
		plot, err := e.ModelPlot(100)
		if err != nil {
			return err
		}

		resp.ReferenceTemperature = mc.ReferenceTemperature
		resp.Plot = plot
		for _, T := range mc.Temperatures {
			shifted, ok := mc.Shifted[T]
			if !ok {
				continue
			}
			f := mc.Factors[T]
			resp.Curves = append(resp.Curves, curveJSON{
				Temperature:  T,
				AT:           f.AT,
				LogAT:        f.LogAT,
				Omega:        mc.Original[T].Omega,
				ShiftedOmega: shifted.Omega,
				Modulus:      shifted.Modulus,
			})
		}
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	format := report.FormatXLSX
	if v := r.URL.Query().Get("format"); v != "" {
		if format, err = report.ParseFormat(v); err != nil || format == report.FormatSQLite {
			s.writeError(w, fmt.Errorf("%w: format must be xlsx or csv", errBadRequest))
			return
		}
	}

	var tables tts.ExportTables
	err = sess.Do(func(e *tts.Engine) error {
		var err error
		tables, err = e.Export()
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	switch format {
	case report.FormatCSV:
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="master_curve_csv.zip"`)
		err = report.WriteCSVArchive(w, tables)
	default:
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="master_curve.xlsx"`)
		err = report.WriteXLSX(w, tables)
	}
	if err != nil {
		s.logger.Error("export failed", "session", sess.ID, "format", format, "error", err)
	}
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, tts.ErrNoShiftComputed):
		status = http.StatusConflict
	case errors.As(err, &maxBytes):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, tts.ErrNoData), errors.Is(err, tts.ErrUnknownTemperature),
		errors.Is(err, tts.ErrInvalidShiftFactor):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeJSON encodes v before committing status, so an unencodable value
// becomes a 500 rather than a truncated success.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encoding response failed", "status", status, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"failed to encode response"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}
