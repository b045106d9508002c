package coach

import "math"

// Phase is the state of the primary joint.
type Phase string

const (
	PhaseExtended Phase = "extended"
	PhaseFlexed   Phase = "flexed"
)

// PhaseMachine counts reps from the primary joint angle using hysteresis.
// extended → flexed when angle ≤ flexed+margin; flexed → extended when
// angle ≥ extended−margin, which completes a rep.
type PhaseMachine struct {
	flexAt   float64
	extendAt float64

	phase    Phase
	reps     int
	minAngle float64
}

// NewPhaseMachine builds a machine for the primary thresholds.
// If the margin would make the two bands overlap it is shrunk to a quarter
// of the range so a constant angle can never toggle the phase.
func NewPhaseMachine(pr Primary, margin float64) *PhaseMachine {
	if pr.Flexed+margin >= pr.Extended-margin {
		margin = (pr.Extended - pr.Flexed) / 4
	}
	return &PhaseMachine{
		flexAt:   pr.Flexed + margin,
		extendAt: pr.Extended - margin,
		phase:    PhaseExtended,
		minAngle: NeutralAngle,
	}
}

// Step feeds one angle. It reports whether a rep was completed and, if so,
// the minimum angle reached while flexed.
func (m *PhaseMachine) Step(angle float64) (completed bool, minAngle float64) {
	switch m.phase {
	case PhaseExtended:
		if angle <= m.flexAt {
			m.phase = PhaseFlexed
			m.minAngle = angle
		}
	case PhaseFlexed:
		m.minAngle = math.Min(m.minAngle, angle)
		if angle >= m.extendAt {
			m.phase = PhaseExtended
			m.reps++
			minAngle = m.minAngle
			m.minAngle = NeutralAngle
			return true, minAngle
		}
	}
	return false, 0
}

// Phase returns the current phase.
func (m *PhaseMachine) Phase() Phase { return m.phase }

// Reps returns the number of completed reps.
func (m *PhaseMachine) Reps() int { return m.reps }

// Thresholds returns the effective flex and extend angles.
func (m *PhaseMachine) Thresholds() (flexAt, extendAt float64) {
	return m.flexAt, m.extendAt
}

// Quality score bounds.
const (
	MinQuality = 30.0
	MaxQuality = 100.0
)

// QualityScore maps the minimum angle of a rep to a score in [30, 100]
// that falls by 2 points per degree of distance from the ideal midpoint.
func QualityScore(minAngle, midpoint float64) float64 {
	score := MaxQuality - 2*math.Abs(minAngle-midpoint)
	return math.Max(MinQuality, math.Min(MaxQuality, score))
}
