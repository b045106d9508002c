package coach

import (
	"math"
	"testing"
)

// putJoint writes a landmark chain on one side whose vertex angle is angle degrees.
// ox shifts the chain horizontally so chains do not overlap.
func putJoint(f Frame, side Side, joint string, angle, ox float64) {
	chain := chains[joint]
	rad := angle * math.Pi / 180
	vx, vy := 0.5+ox, 0.5
	f[string(side)+chain[0]] = Landmark{X: vx, Y: vy - 0.2, Visibility: 1}
	f[string(side)+chain[1]] = Landmark{X: vx, Y: vy, Visibility: 1}
	f[string(side)+chain[2]] = Landmark{X: vx + 0.2*math.Sin(rad), Y: vy - 0.2*math.Cos(rad), Visibility: 1}
}

// squatFrame has the knee (primary) at kneeAngle and the elbow at elbowAngle on the left side.
func squatFrame(kneeAngle, elbowAngle float64) Frame {
	f := Frame{}
	putJoint(f, SideLeft, "knee", kneeAngle, 0)
	putJoint(f, SideLeft, "elbow", elbowAngle, 0.3)
	return f
}

func mustJoint(t *testing.T, name string, role Role) Joint {
	t.Helper()
	j, err := NewJoint(name, role)
	if err != nil {
		t.Fatal(err)
	}
	return j
}

// testProfile: knee primary (flexed 90, extended 160, excellent 80-100) and
// elbow stability (target 180, max deviation 15).
func testProfile(t *testing.T) *Profile {
	t.Helper()
	p := &Profile{
		Key:          "test_squat",
		Name:         "Test squat",
		PrimaryJoint: "knee",
		Joints: []Joint{
			mustJoint(t, "knee", Primary{Flexed: 90, Extended: 160, ExcellentMin: 80, ExcellentMax: 100}),
			mustJoint(t, "elbow", Stability{Target: 180, MaxDeviation: 15}),
		},
	}
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	return p
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}
