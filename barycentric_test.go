package aam

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBarycentric_RoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		tri := NewParametrizedTriangle(
			rnd.Float64()*10, rnd.Float64()*10,
			rnd.Float64()*10, rnd.Float64()*10,
			rnd.Float64()*10, rnd.Float64()*10,
		)
		if tri.Degenerate() {
			continue
		}
		x, y := rnd.Float64()*20-5, rnd.Float64()*20-5
		px, py := tri.PointAt(tri.BaryAt(x, y))
		assert.InDelta(t, x, px, 1e-6)
		assert.InDelta(t, y, py, 1e-6)
	}
}

func TestBarycentric_Vertices(t *testing.T) {
	tri := NewParametrizedTriangle(1, 1, 4, 1, 1, 5)
	for _, tc := range []struct {
		x, y float64
		want Bary
	}{
		{1, 1, Bary{0, 0}},
		{4, 1, Bary{1, 0}},
		{1, 5, Bary{0, 1}},
		{2.5, 3, Bary{0.5, 0.5}},
	} {
		b := tri.BaryAt(tc.x, tc.y)
		assert.InDelta(t, tc.want.Alpha, b.Alpha, 1e-12)
		assert.InDelta(t, tc.want.Beta, b.Beta, 1e-12)
	}
}

func TestBarycentric_Inside(t *testing.T) {
	tri := NewParametrizedTriangle(0, 0, 1, 0, 0, 1)
	assert.True(t, tri.IsPointInside(0.25, 0.25))
	assert.True(t, tri.IsPointInside(0.5, 0.5))
	assert.True(t, tri.IsPointInside(0, 0))
	assert.False(t, tri.IsPointInside(0.6, 0.6))
	assert.False(t, tri.IsPointInside(-0.01, 0.5))

	assert.True(t, Bary{0.2, 0.3}.Inside())
	assert.False(t, Bary{0.7, 0.4}.Inside())
}

func TestBarycentric_Degenerate(t *testing.T) {
	assert.True(t, NewParametrizedTriangle(0, 0, 1, 1, 2, 2).Degenerate())
	assert.False(t, NewParametrizedTriangle(0, 0, 1, 0, 0, 1).Degenerate())
}

func TestBarycentric_InsideMatchesPoint(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	tri := NewParametrizedTriangle(2, 1, 9, 3, 4, 8)
	checked := 0
	for i := 0; i < 2000; i++ {
		b := Bary{Alpha: rnd.Float64()*3 - 1, Beta: rnd.Float64()*3 - 1}

		// Skip coordinates close to an edge where rounding could flip the result.
		const eps = 1e-6
		if math.Abs(b.Alpha) < eps || math.Abs(b.Beta) < eps || math.Abs(1-b.Alpha-b.Beta) < eps {
			continue
		}
		x, y := tri.PointAt(b)
		assert.Equal(t, b.Inside(), tri.IsPointInside(x, y), "alpha %v beta %v", b.Alpha, b.Beta)
		checked++
	}
	assert.Greater(t, checked, 1900)
}
