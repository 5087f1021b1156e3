package aam

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Shape is an ordered list of 2D landmarks stored interleaved as x0, y0, x1, y1, ...
// Depending on the call site the coordinates are either normalized model
// coordinates or image pixels.
type Shape []float64

// Triangle holds three vertex indices into a Shape.
type Triangle [3]int

// Len returns the number of points.
func (s Shape) Len() int {
	return len(s) / 2
}

// Point returns the i-th point.
func (s Shape) Point(i int) (float64, float64) {
	return s[2*i], s[2*i+1]
}

// SetPoint updates the i-th point.
func (s Shape) SetPoint(i int, x, y float64) {
	s[2*i] = x
	s[2*i+1] = y
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() Shape {
	dst := make(Shape, len(s))
	copy(dst, s)
	return dst
}

// Validate reports malformed shape vectors.
func (s Shape) Validate() error {
	if len(s) == 0 || len(s)%2 != 0 {
		return errors.Wrapf(ErrInvalidShape, "length %d is not a positive even number", len(s))
	}
	for i, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(ErrInvalidShape, "coordinate %d is not finite", i)
		}
	}
	return nil
}

// Centroid returns the mean of all points.
func (s Shape) Centroid() (float64, float64) {
	var cx, cy float64
	n := s.Len()
	if n == 0 {
		return 0, 0
	}
	for i := 0; i < n; i++ {
		x, y := s.Point(i)
		cx += x
		cy += y
	}
	return cx / float64(n), cy / float64(n)
}

// Bounds returns the axis aligned bounding box of the shape.
func (s Shape) Bounds() (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for i := 0; i < s.Len(); i++ {
		x, y := s.Point(i)
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}
	return
}

// Matrix returns the shape as a N x 2 matrix, one point per row.
func (s Shape) Matrix() *mat.Dense {
	data := make([]float64, len(s))
	copy(data, s)
	return mat.NewDense(s.Len(), 2, data)
}

// ShapeFromMatrix flattens a N x 2 point matrix into an interleaved shape.
func ShapeFromMatrix(m mat.Matrix) Shape {
	r, _ := m.Dims()
	s := make(Shape, 2*r)
	for i := 0; i < r; i++ {
		s.SetPoint(i, m.At(i, 0), m.At(i, 1))
	}
	return s
}

// ValidateTriangles checks that every triangle references existing, distinct points.
func ValidateTriangles(tris []Triangle, numPoints int) error {
	if len(tris) == 0 {
		return errors.Wrap(ErrInvalidTriangulation, "no triangles")
	}
	for i, t := range tris {
		for _, idx := range t {
			if idx < 0 || idx >= numPoints {
				return errors.Wrapf(ErrInvalidTriangulation,
					"triangle %d references point %d of %d", i, idx, numPoints)
			}
		}
		if t[0] == t[1] || t[1] == t[2] || t[0] == t[2] {
			return errors.Wrapf(ErrInvalidTriangulation, "triangle %d repeats a vertex", i)
		}
	}
	return nil
}
