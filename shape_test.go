package aam

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_Geometry(t *testing.T) {
	s := Shape{0, 0, 4, 0, 4, 2, 0, 2}
	assert.Equal(t, 4, s.Len())

	cx, cy := s.Centroid()
	assert.Equal(t, 2.0, cx)
	assert.Equal(t, 1.0, cy)

	minX, minY, maxX, maxY := s.Bounds()
	assert.Equal(t, []float64{0, 0, 4, 2}, []float64{minX, minY, maxX, maxY})

	c := s.Clone()
	c.SetPoint(0, 9, 9)
	x, y := s.Point(0)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 0.0, y)

	m := s.Matrix()
	r, cols := m.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 2, cols)
	assert.Equal(t, 2.0, m.At(2, 1))
	assert.Equal(t, s, ShapeFromMatrix(m))
}

func TestShape_Validate(t *testing.T) {
	require.NoError(t, Shape{1, 2}.Validate())

	for _, s := range []Shape{nil, {1}, {1, math.NaN()}, {math.Inf(1), 0}} {
		if err := s.Validate(); err == nil {
			t.Errorf("expected %v to be invalid", s)
		}
	}
}

func TestShape_ValidateTriangles(t *testing.T) {
	assert.NoError(t, ValidateTriangles([]Triangle{{0, 1, 2}}, 3))
	assert.ErrorIs(t, ValidateTriangles(nil, 3), ErrInvalidTriangulation)
	assert.ErrorIs(t, ValidateTriangles([]Triangle{{0, 1, 3}}, 3), ErrInvalidTriangulation)
	assert.ErrorIs(t, ValidateTriangles([]Triangle{{0, 1, 1}}, 3), ErrInvalidTriangulation)
	assert.ErrorIs(t, ValidateTriangles([]Triangle{{-1, 1, 2}}, 3), ErrInvalidTriangulation)
}
