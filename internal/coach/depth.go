package coach

import "gonum.org/v1/gonum/stat"

// Depth grades the primary angle while flexed.
type Depth string

const (
	DepthTooDeep   Depth = "TOO_DEEP"
	DepthExcellent Depth = "EXCELLENT"
	DepthGood      Depth = "GOOD"
	DepthGoDeeper  Depth = "GO_DEEPER"
)

// DepthBand grades angle against the primary thresholds: below the
// excellent range is too deep, inside it excellent, up to the flexed
// threshold good, and above that not deep enough. Profiles without an
// excellent range only grade good or go deeper.
func DepthBand(pr Primary, angle float64) Depth {
	hasRange := pr.ExcellentMin != 0 || pr.ExcellentMax != 0
	switch {
	case hasRange && angle < pr.ExcellentMin:
		return DepthTooDeep
	case hasRange && angle <= pr.ExcellentMax:
		return DepthExcellent
	case angle <= pr.Flexed:
		return DepthGood
	default:
		return DepthGoDeeper
	}
}

// AngleAverage is a moving average over the last n angles.
type AngleAverage struct {
	buf  []float64
	size int
	next int
}

// NewAngleAverage returns an empty average over n samples.
func NewAngleAverage(n int) *AngleAverage {
	return &AngleAverage{buf: make([]float64, 0, n), size: n}
}

// Add records angle and returns the mean of the buffered angles.
func (a *AngleAverage) Add(angle float64) float64 {
	if len(a.buf) < a.size {
		a.buf = append(a.buf, angle)
	} else {
		a.buf[a.next] = angle
		a.next = (a.next + 1) % a.size
	}
	return stat.Mean(a.buf, nil)
}
