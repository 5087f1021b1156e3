package aam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var kite = Shape{0, 0, 2, 1, 3, 4, 1, 3, 1.5, 2}

func TestProcrustes_Similarity(t *testing.T) {
	moved := TransformShape(Similarity(2.5, 0.7, 12, -4), kite)

	x := kite.Matrix()
	y := moved.Matrix()
	dist := Procrustes(x, y)
	assert.InDelta(t, 0, dist, 1e-9)
	assert.InDeltaSlice(t, []float64(kite), []float64(ShapeFromMatrix(y)), 1e-9)
}

func TestProcrustes_NoReflection(t *testing.T) {
	mirrored := kite.Clone()
	for i := 0; i < mirrored.Len(); i++ {
		x, y := mirrored.Point(i)
		mirrored.SetPoint(i, -x, y)
	}
	dist := Procrustes(kite.Matrix(), mirrored.Matrix())
	assert.Greater(t, dist, 1e-3)
}

func TestProcrustes_Generalized(t *testing.T) {
	transforms := []Affine{
		Identity(),
		Similarity(0.5, -0.3, 4, 4),
		Similarity(3, 1.2, -10, 2),
		Similarity(1.2, 0.1, 0, 7),
	}
	shapes := mat.NewDense(len(transforms), len(kite), nil)
	for i, tr := range transforms {
		shapes.SetRow(i, TransformShape(tr, kite))
	}

	dist, err := GeneralizedProcrustes(shapes, 10)
	require.NoError(t, err)
	assert.InDelta(t, 0, dist, 1e-9)

	first := mat.Row(nil, 0, shapes)
	for i := 1; i < len(transforms); i++ {
		assert.InDeltaSlice(t, first, mat.Row(nil, i, shapes), 1e-9)
	}
}

func TestProcrustes_InvalidInput(t *testing.T) {
	_, err := GeneralizedProcrustes(mat.NewDense(2, 3, nil), 10)
	assert.ErrorIs(t, err, ErrInvalidShape)
}
