package coach

import (
	"math"
	"strings"
)

// JointReading is the measured angle of one joint in one frame.
type JointReading struct {
	Joint   string  `json:"joint"`
	Side    Side    `json:"side"`
	Angle   float64 `json:"angle"`
	OK      bool    `json:"ok"`
	Primary bool    `json:"primary,omitempty"`
}

// Evaluation is the per-frame result of Evaluate.
type Evaluation struct {
	Side Side

	// PrimaryAngle is only meaningful when PrimaryTracked is true.
	PrimaryAngle   float64
	PrimaryTracked bool

	// OK is false when any stability joint exceeded its deviation.
	OK    bool
	Issue string

	Joints []JointReading
}

// IssueLabel is the form issue reported for a stability joint.
func IssueLabel(joint string) string {
	return "STABILIZE " + strings.ToUpper(joint)
}

// Evaluate measures every joint of the profile on the side chosen by
// ResolveSide. Joints with a missing landmark are skipped for this frame.
func Evaluate(p *Profile, f Frame, minVisibility float64) Evaluation {
	primary, _ := p.Primary()
	ev := Evaluation{
		Side: ResolveSide(f, primary.Vertex),
		OK:   true,
	}

	for _, j := range p.Joints {
		a, okA := f.lookup(ev.Side, j.Proximal, minVisibility)
		b, okB := f.lookup(ev.Side, j.Vertex, minVisibility)
		c, okC := f.lookup(ev.Side, j.Distal, minVisibility)
		if !okA || !okB || !okC {
			continue
		}
		angle := AngleAt(a.Point(), b.Point(), c.Point())
		reading := JointReading{Joint: j.Name, Side: ev.Side, Angle: angle, OK: true}

		switch role := j.Role.(type) {
		case Primary:
			reading.Primary = true
			ev.PrimaryAngle = angle
			ev.PrimaryTracked = true
		case Stability:
			if math.Abs(angle-role.Target) > role.MaxDeviation {
				reading.OK = false
				ev.OK = false
				if ev.Issue == "" {
					ev.Issue = IssueLabel(j.Name)
				}
			}
		}
		ev.Joints = append(ev.Joints, reading)
	}
	return ev
}
