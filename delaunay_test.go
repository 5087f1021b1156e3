package aam

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cross(s Shape, t Triangle) float64 {
	ax, ay := s.Point(t[0])
	bx, by := s.Point(t[1])
	cx, cy := s.Point(t[2])
	return (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
}

func TestDelaunay_SquareWithCenter(t *testing.T) {
	s := Shape{-1, -1, 1, -1, 1, 1, -1, 1, 0, 0}
	tris, err := Triangulate(s)
	require.NoError(t, err)
	require.Len(t, tris, 4)

	for _, tri := range tris {
		assert.Contains(t, tri[:], 4)
		assert.Greater(t, cross(s, tri), 0.0)
	}
	require.NoError(t, ValidateTriangles(tris, s.Len()))
}

func TestDelaunay_EmptyCircumcircle(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	s := make(Shape, 2*30)
	for i := range s {
		s[i] = rnd.Float64() * 100
	}
	tris, err := Triangulate(s)
	require.NoError(t, err)

	pts := make([][2]float64, s.Len())
	for i := range pts {
		pts[i][0], pts[i][1] = s.Point(i)
	}
	var area float64
	for _, tri := range tris {
		c, ok := newCircumTriangle(pts, tri[0], tri[1], tri[2])
		require.True(t, ok)
		for i := range pts {
			if i == tri[0] || i == tri[1] || i == tri[2] {
				continue
			}
			dx, dy := pts[i][0]-c.cx, pts[i][1]-c.cy
			if dx*dx+dy*dy < c.r2*(1-1e-9) {
				t.Errorf("point %d lies inside the circumcircle of %v", i, tri)
			}
		}
		a := cross(s, tri)
		assert.Greater(t, a, 0.0)
		area += a / 2
	}
	assert.Greater(t, area, 0.0)
}

func TestDelaunay_Errors(t *testing.T) {
	_, err := Triangulate(Shape{0, 0, 1, 1})
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = Triangulate(Shape{0, 0, 1, 1, 2, 2, 3, 3})
	assert.ErrorIs(t, err, ErrDegenerateTriangle)

	_, err = Triangulate(Shape{1, 1, 1, 1, 1, 1})
	assert.ErrorIs(t, err, ErrDegenerateTriangle)
}
