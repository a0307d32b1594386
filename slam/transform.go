package slam

import "math"

// Add returns p + q
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p - q
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scale returns p multiplied by s
func (p Point) Scale(s float64) Point {
	return Point{X: p.X * s, Y: p.Y * s}
}

// Dot returns the dot product of p and q
func (p Point) Dot(q Point) float64 {
	return p.X*q.X + p.Y*q.Y
}


// Norm returns the Euclidean length of p
func (p Point) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// Rotate rotates p counter-clockwise by angle radians around the origin.
// Chain composition rotates by the negated accumulated angle, so a positive
// joint angle turns the arm clockwise in map coordinates.
func (p Point) Rotate(angle float64) Point {
	cos := math.Cos(angle)
	sin := math.Sin(angle)
	return Point{
		X: p.X*cos - p.Y*sin,
		Y: p.X*sin + p.Y*cos,
	}
}

// Direction returns the unit ray direction for angle t in the chain's
// clockwise convention: (cos t, -sin t).
func Direction(t float64) Point {
	return Point{X: math.Cos(t), Y: -math.Sin(t)}
}

// Apply maps a point expressed in the frame of t into the parent frame.
func (t Transform2D) Apply(local Point) Point {
	return t.Translation.Add(local.Rotate(-t.Rotation))
}

// Distance calculates Euclidean distance between two points
func Distance(p1, p2 Point) float64 {
	dx := p2.X - p1.X
	dy := p2.Y - p1.Y
	return math.Sqrt(dx*dx + dy*dy)
}
