package propagation

import (
	"errors"
	"time"

	"github.com/star/tlestate/internal/tle"
)

var (
	ErrNoDataset        = errors.New("no TLE dataset loaded")
	ErrUnknownSatellite = errors.New("satellite not in TLE dataset")
	ErrBudgetExceeded   = errors.New("requested series exceeds position budget")
	ErrInvalidSeries    = errors.New("invalid series parameters")
)

// SatelliteState is one satellite's TEME state at one instant.
type SatelliteState struct {
	NORADID   int
	Timestamp time.Time
	tle.StateVector
}

// PropConfig holds propagation limits.
type PropConfig struct {
	MaxPositions int           // Upper bound on points in one series (default: 3601)
	DefaultStep  time.Duration // Series step when the caller gives none (default: 60s)
}
