// Package sgp4 is the boundary to the external SGP4 propagator.
//
// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Pure Go (no CGO), implements Vallado's improved operation mode, TEME output
// in km and km/s. Two quirks shape this package:
//
//   - TLEToSat parses fields with strconv and calls log.Fatal on failure, so
//     every field it reads is validated here first (see fields.go).
//   - Propagate takes the record by value and whole-second calendar times,
//     so SGP4 error codes are not visible and sub-second instants need
//     interpolation (see propagate.go).
package sgp4

import (
	"fmt"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// RunMode mirrors the SGP4 reference driver's run type.
type RunMode int

const (
	RunVerification RunMode = iota + 1
	RunCatalog
	RunManual
)

func (m RunMode) String() string {
	switch m {
	case RunVerification:
		return "verification"
	case RunCatalog:
		return "catalog"
	case RunManual:
		return "manual"
	default:
		return fmt.Sprintf("RunMode(%d)", int(m))
	}
}

// OperationMode selects between the AFSPC-compatible and improved SGP4 paths.
type OperationMode int

const (
	OpImproved OperationMode = iota + 1
	OpAFSPC
)

func (m OperationMode) String() string {
	switch m {
	case OpImproved:
		return "improved"
	case OpAFSPC:
		return "afspc"
	default:
		return fmt.Sprintf("OperationMode(%d)", int(m))
	}
}

// GravityModel selects the gravitational constant set.
type GravityModel int

const (
	WGS72 GravityModel = iota + 1
	WGS84
)

// libraryGravity maps the models go-satellite implements. Anything else
// would reach the library's log.Fatal.
var libraryGravity = map[GravityModel]satellite.Gravity{
	WGS72: satellite.GravityWGS72,
	WGS84: satellite.GravityWGS84,
}

func (g GravityModel) String() string {
	switch g {
	case WGS72:
		return "wgs72"
	case WGS84:
		return "wgs84"
	default:
		return fmt.Sprintf("GravityModel(%d)", int(g))
	}
}

// ElementSet is the propagator's initialized record for one TLE, plus the
// configuration it was built with. Immutable after Ingest; safe for
// concurrent reads.
type ElementSet struct {
	sat        satellite.Satellite
	epoch      time.Time
	modelEpoch time.Time // whole-second origin of the library's elapsed time
	catalog    int
	line1      string
	line2      string
	run        RunMode
	op         OperationMode
	gravity    GravityModel
}

// Epoch returns the element set epoch in UTC.
func (es *ElementSet) Epoch() time.Time { return es.epoch }

// CatalogNumber returns the NORAD catalog number from line 1.
func (es *ElementSet) CatalogNumber() int { return es.catalog }

// Lines returns the two lines the set was built from.
func (es *ElementSet) Lines() (string, string) { return es.line1, es.line2 }

func (es *ElementSet) RunMode() RunMode             { return es.run }
func (es *ElementSet) OperationMode() OperationMode { return es.op }
func (es *ElementSet) Gravity() GravityModel        { return es.gravity }

// IngestError reports a TLE the propagator refused to initialize.
type IngestError struct {
	Field  string // empty when the failure is not tied to one field
	Code   int64  // go-satellite init error code, 0 if not applicable
	Reason string
}

func (e *IngestError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	case e.Code != 0:
		return fmt.Sprintf("sgp4 init failed: code=%d %s", e.Code, e.Reason)
	default:
		return e.Reason
	}
}

// Ingest validates and initializes a TLE for propagation. Both lines must
// already be trimmed to the 69-character record length.
func Ingest(line1, line2 string, run RunMode, op OperationMode, g GravityModel) (*ElementSet, error) {
	switch run {
	case RunVerification, RunCatalog, RunManual:
	default:
		return nil, &IngestError{Reason: fmt.Sprintf("unknown run mode %s", run)}
	}
	// go-satellite hard-codes the improved operation mode.
	if op != OpImproved {
		return nil, &IngestError{Reason: fmt.Sprintf("operation mode %s not supported by propagator", op)}
	}
	grav, ok := libraryGravity[g]
	if !ok {
		return nil, &IngestError{Reason: fmt.Sprintf("gravity model %s not supported by propagator", g)}
	}

	if len(line1) != LineLength || len(line2) != LineLength {
		return nil, &IngestError{Reason: fmt.Sprintf("line lengths %d/%d, expected %d", len(line1), len(line2), LineLength)}
	}
	fields, err := checkFields(line1, line2)
	if err != nil {
		return nil, err
	}

	sat := satellite.TLEToSat(line1, line2, grav)
	if sat.Error != 0 {
		return nil, &IngestError{Code: int64(sat.Error), Reason: sat.ErrorStr}
	}

	return &ElementSet{
		sat:        sat,
		epoch:      fields.epoch,
		modelEpoch: fields.modelEpoch,
		catalog:    fields.catalog,
		line1:      line1,
		line2:      line2,
		run:        run,
		op:         op,
		gravity:    g,
	}, nil
}
