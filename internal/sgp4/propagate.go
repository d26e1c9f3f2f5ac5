package sgp4

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// earthRadiusKm is the WGS-84 equatorial radius. SGP4 flags a satellite as
// decayed once its radius drops below one Earth radius.
const earthRadiusKm = 6378.137

// maxMinutes keeps epoch + elapsed inside time.Duration range.
const maxMinutes = float64(math.MaxInt64 / int64(time.Minute))

// PropagateError reports that the propagator produced no usable state.
type PropagateError struct {
	Minutes float64
	Reason  string
}

func (e *PropagateError) Error() string {
	return fmt.Sprintf("sgp4 propagation failed at %+.6f min: %s", e.Minutes, e.Reason)
}

// Propagate runs SGP4 for the given minutes since the element set epoch;
// minutes == 0 yields the state of the mean elements as published.
// Returns TEME position (km) and velocity (km/s).
//
// The underlying library only takes whole-second calendar times. Instants
// with a fractional second are evaluated at the two bracketing seconds and
// joined by cubic Hermite interpolation, which is exact to well under a
// millimetre over a one-second span.
func Propagate(es *ElementSet, g GravityModel, minutes float64) (r, v [3]float64, err error) {
	if es == nil {
		return r, v, &PropagateError{Minutes: minutes, Reason: "nil element set"}
	}
	if g != es.gravity {
		return r, v, &PropagateError{Minutes: minutes, Reason: fmt.Sprintf("gravity model %s does not match element set (%s)", g, es.gravity)}
	}
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) || math.Abs(minutes) > maxMinutes {
		return r, v, &PropagateError{Minutes: minutes, Reason: "elapsed time out of range"}
	}

	// The library counts elapsed time from its whole-second epoch, so the
	// target is placed relative to that, not to the exact TLE epoch.
	t := es.modelEpoch.Add(time.Duration(minutes * float64(time.Minute)))
	t0 := t.Truncate(time.Second)
	frac := t.Sub(t0).Seconds()

	r0, v0, err := es.at(t0, minutes)
	if err != nil {
		return r, v, err
	}
	if frac == 0 {
		return r0, v0, nil
	}

	r1, v1, err := es.at(t0.Add(time.Second), minutes)
	if err != nil {
		return r, v, err
	}
	r, v = hermite(r0, v0, r1, v1, frac, 1.0)
	return r, v, nil
}

// at propagates to a whole-second UTC instant.
func (es *ElementSet) at(t time.Time, minutes float64) (r, v [3]float64, err error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(es.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	r = [3]float64{pos.X, pos.Y, pos.Z}
	v = [3]float64{vel.X, vel.Y, vel.Z}

	for i := 0; i < 3; i++ {
		if math.IsNaN(r[i]) || math.IsInf(r[i], 0) || math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			return r, v, &PropagateError{Minutes: minutes, Reason: "output is NaN/Inf"}
		}
	}

	if mag := math.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2]); mag < earthRadiusKm {
		return r, v, &PropagateError{Minutes: minutes, Reason: fmt.Sprintf("satellite has decayed (radius %.1f km)", mag)}
	}
	return r, v, nil
}

// hermite interpolates position and velocity at fraction s in [0,1) of a
// span of h seconds, given both endpoint states.
func hermite(r0, v0, r1, v1 [3]float64, s, h float64) (r, v [3]float64) {
	s2 := s * s
	s3 := s2 * s

	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2

	d00 := 6*s2 - 6*s
	d10 := 3*s2 - 4*s + 1
	d01 := -6*s2 + 6*s
	d11 := 3*s2 - 2*s

	for i := 0; i < 3; i++ {
		r[i] = h00*r0[i] + h10*h*v0[i] + h01*r1[i] + h11*h*v1[i]
		v[i] = (d00*r0[i]+d01*r1[i])/h + d10*v0[i] + d11*v1[i]
	}
	return r, v
}
