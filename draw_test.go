package aam

import (
	"image/color"
	"testing"

	"github.com/fogleman/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraw_Shape(t *testing.T) {
	dc := gg.NewContext(40, 40)
	s := Shape{5, 5, 35, 5, 35, 35, 5, 35}
	DrawShape(dc, s, squareTris, DefaultShapeStyle)

	img := dc.Image()
	_, _, _, a := img.At(5, 5).RGBA()
	assert.NotZero(t, a, "landmark should be painted")
	_, _, _, a = img.At(20, 5).RGBA()
	assert.NotZero(t, a, "triangle edge should be painted")
	_, _, _, a = img.At(30, 12).RGBA()
	assert.Zero(t, a, "triangle interior should stay transparent")
}

func TestDraw_LandmarksOnly(t *testing.T) {
	dc := gg.NewContext(40, 40)
	style := DefaultShapeStyle
	style.Triangles = false
	style.LandmarkColor = color.NRGBA{R: 255, A: 255}
	DrawShape(dc, Shape{5, 5, 35, 5, 35, 35, 5, 35}, squareTris, style)

	r, _, b, a := dc.Image().At(35, 35).RGBA()
	assert.NotZero(t, a)
	assert.NotZero(t, r)
	assert.Zero(t, b)
	_, _, _, a = dc.Image().At(20, 5).RGBA()
	assert.Zero(t, a)
}

func TestDraw_RenderShapeInstance(t *testing.T) {
	model := newTestModel(t)
	dc := gg.NewContext(100, 100)
	require.NoError(t, model.RenderShapeInstance(dc, model.Pose, nil, DefaultShapeStyle))

	_, _, _, a := dc.Image().At(50, 50).RGBA()
	assert.NotZero(t, a, "center landmark should be painted")

	err := model.RenderShapeInstance(dc, model.Pose, []float64{1, 2}, DefaultShapeStyle)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
