package coach

import "strings"

// Landmark is one named body keypoint produced by the pose model.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"vis"`
}

// Point returns the landmark's position.
func (l Landmark) Point() Point {
	return Point{X: l.X, Y: l.Y}
}

// Frame maps normalized landmark names ("leftelbow") to landmarks.
type Frame map[string]Landmark

// NormalizeName lower-cases a landmark name and strips separators, so
// "LEFT_ELBOW", "leftElbow" and "left elbow" all become "leftelbow".
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch r {
		case '_', '-', ' ', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NewFrame builds a Frame from raw pose output, normalizing every key.
// When two raw names normalize to the same key the later one in iteration
// order wins; pose models never emit such duplicates.
func NewFrame(raw map[string]Landmark) Frame {
	f := make(Frame, len(raw))
	for name, lm := range raw {
		f[NormalizeName(name)] = lm
	}
	return f
}

// Side is the half of the body used for joint lookups.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// DefaultSide is chosen on ties and when no designated landmark is visible.
const DefaultSide = SideLeft

// ResolveSide picks the side whose vertex landmark is more visible.
// If neither left{vertex} nor right{vertex} exists the default side is
// returned.
func ResolveSide(f Frame, vertex string) Side {
	if side, ok := compareSides(f, vertex); ok {
		return side
	}
	return DefaultSide
}

func compareSides(f Frame, vertex string) (Side, bool) {
	left, okL := f[string(SideLeft)+vertex]
	right, okR := f[string(SideRight)+vertex]
	if !okL && !okR {
		return "", false
	}
	// A missing landmark competes with zero visibility.
	if right.Visibility > left.Visibility {
		return SideRight, true
	}
	return SideLeft, true
}

// lookup returns the landmark "{side}{role}" if present and visible enough.
func (f Frame) lookup(side Side, role string, minVisibility float64) (Landmark, bool) {
	lm, ok := f[string(side)+role]
	if !ok || lm.Visibility < minVisibility {
		return Landmark{}, false
	}
	return lm, true
}
