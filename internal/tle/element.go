package tle

import (
	"fmt"
	"strings"
	"time"

	"github.com/star/tlestate/internal/sgp4"
)

// ingestConfig is the fixed propagator configuration every TLE is built
// with. Not caller selectable.
var ingestConfig = struct {
	run     sgp4.RunMode
	op      sgp4.OperationMode
	gravity sgp4.GravityModel
}{
	run:     sgp4.RunVerification,
	op:      sgp4.OpImproved,
	gravity: sgp4.WGS84,
}

// StateVector is a TEME position (km) and velocity (km/s).
type StateVector struct {
	Position [3]float64
	Velocity [3]float64
}

// TwoLineElement is a validated TLE ready for propagation. It owns the
// propagator's element set and never mutates it, so one value can be
// shared across goroutines.
type TwoLineElement struct {
	elements *sgp4.ElementSet
}

// New validates two TLE lines and builds the propagator element set.
// Surrounding whitespace is trimmed from each line first.
func New(line1, line2 string) (*TwoLineElement, error) {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != sgp4.LineLength {
		return nil, &MalformedError{Detail: fmt.Sprintf(
			"Line 1 is the wrong length. Expected %d, but got %d", sgp4.LineLength, len(line1))}
	}
	if len(line2) != sgp4.LineLength {
		return nil, &MalformedError{Detail: fmt.Sprintf(
			"Line 2 is the wrong length. Expected %d, but got %d", sgp4.LineLength, len(line2))}
	}

	es, err := sgp4.Ingest(line1, line2, ingestConfig.run, ingestConfig.op, ingestConfig.gravity)
	if err != nil {
		return nil, &MalformedError{Detail: err.Error(), cause: err}
	}
	return &TwoLineElement{elements: es}, nil
}

// FromLines builds a TwoLineElement from a block holding both lines,
// optionally preceded by a satellite name line which is discarded.
func FromLines(text string) (*TwoLineElement, error) {
	lines := strings.Split(strings.TrimRight(text, "\r\n"), "\n")
	switch len(lines) {
	case 2:
	case 3:
		lines = lines[1:]
	default:
		return nil, &MalformedError{Detail: fmt.Sprintf("Expected two lines, got %d", len(lines))}
	}
	return New(lines[0], lines[1])
}

// Epoch returns the TLE epoch in UTC.
func (t *TwoLineElement) Epoch() (time.Time, error) {
	if t == nil || t.elements == nil {
		return time.Time{}, &UnknownError{Detail: "TwoLineElement is not initialized"}
	}
	return t.elements.Epoch(), nil
}

// PropagateTo returns the state vector at target, which may fall before
// the epoch.
func (t *TwoLineElement) PropagateTo(target time.Time) (StateVector, error) {
	if t == nil || t.elements == nil {
		return StateVector{}, &UnknownError{Detail: "TwoLineElement is not initialized"}
	}

	minutes := MinutesSinceEpoch(t.elements.Epoch(), target)
	r, v, err := sgp4.Propagate(t.elements, ingestConfig.gravity, minutes)
	if err != nil {
		return StateVector{}, &PropagationError{cause: err}
	}
	return StateVector{Position: r, Velocity: v}, nil
}

// MinutesSinceEpoch is the signed elapsed time from epoch to target in
// fractional minutes, at nanosecond resolution.
func MinutesSinceEpoch(epoch, target time.Time) float64 {
	return target.Sub(epoch).Minutes()
}

// Lines returns the trimmed lines the TLE was built from.
func (t *TwoLineElement) Lines() (string, string) {
	if t == nil || t.elements == nil {
		return "", ""
	}
	return t.elements.Lines()
}

// NORADID returns the satellite catalog number.
func (t *TwoLineElement) NORADID() int {
	if t == nil || t.elements == nil {
		return 0
	}
	return t.elements.CatalogNumber()
}
