// Package coachtest provides profiles and synthetic frames for tests.
package coachtest

import (
	"math"

	"github.com/claude/formcoach/internal/coach"
)

// Squat thresholds of the test catalog.
const (
	Flexed       = 90.0
	Extended     = 160.0
	ExcellentMin = 80.0
	ExcellentMax = 100.0
)

// Catalog returns a catalog with a knee-driven "squat" and an
// elbow-driven "curl".
func Catalog() *coach.Catalog {
	squat := profile("squat", "Squat", "Legs", "knee",
		coach.Primary{Flexed: Flexed, Extended: Extended, ExcellentMin: ExcellentMin, ExcellentMax: ExcellentMax})
	curl := profile("curl", "Curl", "Upper Arms", "elbow",
		coach.Primary{Flexed: 60, Extended: 150, ExcellentMin: 40, ExcellentMax: 55})
	c, err := coach.NewCatalog(squat, curl)
	if err != nil {
		panic(err)
	}
	return c
}

func profile(key, name, category, joint string, pr coach.Primary) *coach.Profile {
	j, err := coach.NewJoint(joint, pr)
	if err != nil {
		panic(err)
	}
	return &coach.Profile{
		Key:          key,
		Name:         name,
		Category:     category,
		View:         "side",
		Joints:       []coach.Joint{j},
		PrimaryJoint: joint,
	}
}

// KneeFrame is a left-side frame whose knee angle is angle degrees.
func KneeFrame(angle float64) coach.Frame {
	return chainFrame("hip", "knee", "ankle", angle)
}

// ElbowFrame is a left-side frame whose elbow angle is angle degrees.
func ElbowFrame(angle float64) coach.Frame {
	return chainFrame("shoulder", "elbow", "wrist", angle)
}

func chainFrame(proximal, vertex, distal string, angle float64) coach.Frame {
	rad := angle * math.Pi / 180
	return coach.Frame{
		"left" + proximal: {X: 0.5, Y: 0.3, Visibility: 1},
		"left" + vertex:   {X: 0.5, Y: 0.5, Visibility: 1},
		"left" + distal:   {X: 0.5 + 0.2*math.Sin(rad), Y: 0.5 - 0.2*math.Cos(rad), Visibility: 1},
	}
}

// Cycle returns knee angles for n squat reps: 170 down to 80 and back in
// 10 degree steps, then standing.
func Cycle(n int) []float64 {
	var out []float64
	for range n {
		for a := 170.0; a >= 80; a -= 10 {
			out = append(out, a)
		}
		for a := 90.0; a <= 170; a += 10 {
			out = append(out, a)
		}
	}
	return append(out, 170)
}
