package aam

import (
	"image/color"

	"github.com/fogleman/gg"
)

// ShapeStyle describes how a shape overlay is drawn.
type ShapeStyle struct {
	TriangleColor color.Color
	LandmarkColor color.Color
	LineWidth     float64
	Radius        float64
	Triangles     bool
	Landmarks     bool
}

// DefaultShapeStyle draws gray triangles and white landmarks.
var DefaultShapeStyle = ShapeStyle{
	TriangleColor: color.NRGBA{R: 128, G: 128, B: 128, A: 255},
	LandmarkColor: color.NRGBA{R: 255, G: 255, B: 255, A: 255},
	LineWidth:     1,
	Radius:        2,
	Triangles:     true,
	Landmarks:     true,
}

// DrawShape draws the triangulation and landmarks of a shape given in pixels.
func DrawShape(dc *gg.Context, s Shape, tris []Triangle, style ShapeStyle) {
	if style.Triangles && style.TriangleColor != nil {
		dc.SetColor(style.TriangleColor)
		dc.SetLineWidth(style.LineWidth)
		for _, t := range tris {
			ax, ay := s.Point(t[0])
			bx, by := s.Point(t[1])
			cx, cy := s.Point(t[2])
			dc.MoveTo(ax, ay)
			dc.LineTo(bx, by)
			dc.LineTo(cx, cy)
			dc.ClosePath()
		}
		dc.Stroke()
	}
	if style.Landmarks && style.LandmarkColor != nil {
		dc.SetColor(style.LandmarkColor)
		for i := 0; i < s.Len(); i++ {
			x, y := s.Point(i)
			dc.DrawCircle(x, y, style.Radius)
		}
		dc.Fill()
	}
}

// RenderShapeInstance draws the shape instance of shapeParams placed by pose.
func (m *ActiveAppearanceModel) RenderShapeInstance(dc *gg.Context, pose Affine, shapeParams []float64, style ShapeStyle) error {
	s, err := m.ShapeInstance(shapeParams)
	if err != nil {
		return err
	}
	DrawShape(dc, TransformShape(pose, s), m.Triangles, style)
	return nil
}
