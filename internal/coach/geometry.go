package coach

import "math"

// NeutralAngle is returned for degenerate joints and is the initial primary angle.
const NeutralAngle = 180.0

// Point is a 2D position in normalized image coordinates.
type Point struct {
	X float64
	Y float64
}

// AngleAt returns the angle in degrees at vertex b formed by the rays b→a and b→c.
// If either ray has zero length the joint is degenerate and NeutralAngle is returned.
func AngleAt(a, b, c Point) float64 {
	bax, bay := a.X-b.X, a.Y-b.Y
	bcx, bcy := c.X-b.X, c.Y-b.Y

	magA := math.Hypot(bax, bay)
	magC := math.Hypot(bcx, bcy)
	if magA == 0 || magC == 0 {
		return NeutralAngle
	}

	cos := (bax*bcx + bay*bcy) / (magA * magC)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}
