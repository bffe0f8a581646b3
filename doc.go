// Package tts performs Time-Temperature Superposition analysis of
// rheological frequency sweeps.
//
// # Overview
//
// Modulus-vs-frequency curves measured at several temperatures are shifted
// horizontally by a per-temperature factor aT so they collapse onto one
// master curve at a reference temperature Tref. The shift factors follow
// one of two physical models, optionally fitted to the data, and may be
// overridden by hand per temperature.
//
// # Architecture
//
// The package components:
//
//   - DataSet       - validated curves keyed by temperature (Ingest)
//   - WLF           - Williams-Landel-Ferry model, Levenberg-Marquardt fit of C1, C2
//   - Arrhenius     - activation-energy model, linear regression fit of Ea
//   - EstimateShifts - model-free shifts from overlapping curves
//   - Engine        - Unshifted → Shifted state machine with manual overrides
//   - Assemble, Export - master curve and the three export tables
//   - assertions    - test helpers for shift-factor properties
//
// Collaborators live in sibling packages: loader (files → RawRecord),
// report (XLSX/CSV/SQLite export), session (per-session engines),
// server (JSON over HTTP) and cmd/tts.
//
// # Quick Start
//
//	ds, err := tts.Ingest(records)
//	if err != nil {
//	    log.Fatal(err) // tts.ErrNoData
//	}
//
//	engine := tts.NewEngine(ds, 25)
//	shift := engine.ShiftWLF(8.86, 101.6, tts.ShiftOptions{Fit: true})
//	if shift.FitErr != nil {
//	    log.Printf("fit fell back to supplied constants: %v", shift.FitErr)
//	}
//
//	_ = engine.ApplyManualOverride(35, -0.8)
//	mc, _ := engine.MasterCurve()
//
// # WLF
//
//	log10(aT) = -C1·(T - Tref) / (C2 + (T - Tref))
//
// Valid near the glass transition. Universal constants: C1 = 8.86,
// C2 = 101.6 °C.
//
// # Arrhenius
//
//	log10(aT) = (Ea/R)·(1/T_K - 1/Tref_K) / ln(10),  R = 8.314 J/(mol·K)
//
// Valid well above the glass transition.
//
// # Fitting
//
// A fit needs at least two non-reference temperatures and a target table of
// known shift factors. Without an explicit target the Engine estimates one
// from the curves and lays manual overrides over it. A failed fit never
// fails the shift: the supplied constants stand and Shift.FitErr says why.
//
// # Manual overrides
//
// Overrides merge per temperature over the computed factors: an overridden
// temperature uses its manual value, every other temperature keeps the
// model value. Re-running a shift keeps the overrides.
//
// # Concurrency
//
// Everything in this package is synchronous. An Engine belongs to one
// analysis session and must not be shared between unrelated callers.
package tts
