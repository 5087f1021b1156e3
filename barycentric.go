package aam

import "math"

// Bary is a barycentric coordinate relative to a ParametrizedTriangle.
// A point is expressed as a + Alpha*(b-a) + Beta*(c-a).
type Bary struct {
	Alpha, Beta float64
}

// Inside reports whether the coordinate lies within the triangle, edges included.
func (b Bary) Inside() bool {
	return b.Alpha >= 0 && b.Beta >= 0 && b.Alpha+b.Beta <= 1
}

// ParametrizedTriangle maps between cartesian and barycentric coordinates of a triangle.
type ParametrizedTriangle struct {
	ax, ay float64
	ux, uy float64 // b - a
	vx, vy float64 // c - a
	denom  float64
}

// NewParametrizedTriangle precomputes the basis of the triangle (a, b, c).
// Collinear vertices produce an infinite denominator; see Degenerate.
func NewParametrizedTriangle(ax, ay, bx, by, cx, cy float64) ParametrizedTriangle {
	t := ParametrizedTriangle{
		ax: ax, ay: ay,
		ux: bx - ax, uy: by - ay,
		vx: cx - ax, vy: cy - ay,
	}
	t.denom = 1 / (t.ux*t.vy - t.uy*t.vx)
	return t
}

// triangleOf builds the parametrized triangle of tri over the shape s.
func triangleOf(s Shape, tri Triangle) ParametrizedTriangle {
	ax, ay := s.Point(tri[0])
	bx, by := s.Point(tri[1])
	cx, cy := s.Point(tri[2])
	return NewParametrizedTriangle(ax, ay, bx, by, cx, cy)
}

// Degenerate reports a zero area triangle.
func (t ParametrizedTriangle) Degenerate() bool {
	return math.IsInf(t.denom, 0) || math.IsNaN(t.denom)
}

// PointAt returns the cartesian position of a barycentric coordinate.
func (t ParametrizedTriangle) PointAt(b Bary) (float64, float64) {
	return t.ax + b.Alpha*t.ux + b.Beta*t.vx,
		t.ay + b.Alpha*t.uy + b.Beta*t.vy
}

// BaryAt returns the barycentric coordinate of a cartesian point.
func (t ParametrizedTriangle) BaryAt(x, y float64) Bary {
	px, py := x-t.ax, y-t.ay
	return Bary{
		Alpha: (px*t.vy - py*t.vx) * t.denom,
		Beta:  (py*t.ux - px*t.uy) * t.denom,
	}
}

// IsPointInside reports whether the cartesian point lies within the triangle.
func (t ParametrizedTriangle) IsPointInside(x, y float64) bool {
	return t.BaryAt(x, y).Inside()
}
