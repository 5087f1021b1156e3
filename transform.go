package aam

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// minDeterminant is the smallest absolute determinant accepted when inverting a transform.
const minDeterminant = 1e-10

// Affine is a 2D affine transform acting on row vectors, [x' y'] = [x y 1] * T, with
//
//	    | A  B  |
//	T = | C  D  |
//	    | TX TY |
//
// so that x' = A*x + C*y + TX and y' = B*x + D*y + TY.
// The zero value is not a valid transform.
type Affine struct {
	A, B, C, D float64
	TX, TY     float64
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{A: 1, D: 1}
}

// Translation returns a pure translation.
func Translation(tx, ty float64) Affine {
	return Affine{A: 1, D: 1, TX: tx, TY: ty}
}

// Scaling returns a scale about the origin.
func Scaling(sx, sy float64) Affine {
	return Affine{A: sx, D: sy}
}

// Rotation returns a counter clockwise rotation by theta radians about the origin.
func Rotation(theta float64) Affine {
	sin, cos := math.Sincos(theta)
	return Affine{A: cos, B: sin, C: -sin, D: cos}
}

// Similarity scales, rotates and then translates.
func Similarity(scale, theta, tx, ty float64) Affine {
	return Scaling(scale, scale).Then(Rotation(theta)).Then(Translation(tx, ty))
}

// IsZero reports whether t is the zero value.
func (t Affine) IsZero() bool {
	return t == Affine{}
}

// Apply transforms the point (x, y).
func (t Affine) Apply(x, y float64) (float64, float64) {
	return t.A*x + t.C*y + t.TX, t.B*x + t.D*y + t.TY
}

// Then returns the transform applying t first and u second.
func (t Affine) Then(u Affine) Affine {
	return Affine{
		A:  t.A*u.A + t.B*u.C,
		B:  t.A*u.B + t.B*u.D,
		C:  t.C*u.A + t.D*u.C,
		D:  t.C*u.B + t.D*u.D,
		TX: t.TX*u.A + t.TY*u.C + u.TX,
		TY: t.TX*u.B + t.TY*u.D + u.TY,
	}
}

// Det returns the determinant of the linear part.
func (t Affine) Det() float64 {
	return t.A*t.D - t.B*t.C
}

// Inverse returns the inverse transform, failing on (near) singular transforms.
func (t Affine) Inverse() (Affine, error) {
	det := t.Det()
	if math.Abs(det) < minDeterminant || math.IsNaN(det) {
		return Affine{}, errors.Wrapf(ErrSingularTransform, "determinant %g", det)
	}
	inv := Affine{
		A: t.D / det,
		B: -t.B / det,
		C: -t.C / det,
		D: t.A / det,
	}
	inv.TX = -(t.TX*inv.A + t.TY*inv.C)
	inv.TY = -(t.TX*inv.B + t.TY*inv.D)
	return inv, nil
}

// Homogeneous returns the 3x3 homogeneous matrix of the transform.
func (t Affine) Homogeneous() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		t.A, t.B, 0,
		t.C, t.D, 0,
		t.TX, t.TY, 1,
	})
}

// AffineFromHomogeneous extracts the affine part of a 3x3 row vector transform.
func AffineFromHomogeneous(m mat.Matrix) Affine {
	return Affine{
		A: m.At(0, 0), B: m.At(0, 1),
		C: m.At(1, 0), D: m.At(1, 1),
		TX: m.At(2, 0), TY: m.At(2, 1),
	}
}

// Scale returns the mean scale factor of the linear part.
func (t Affine) Scale() float64 {
	return math.Sqrt(math.Abs(t.Det()))
}

func (t Affine) String() string {
	return fmt.Sprintf("[%.4g %.4g; %.4g %.4g; %.4g %.4g]", t.A, t.B, t.C, t.D, t.TX, t.TY)
}

// TransformShape applies t to every point of s.
func TransformShape(t Affine, s Shape) Shape {
	dst := make(Shape, len(s))
	for i := 0; i < s.Len(); i++ {
		x, y := s.Point(i)
		nx, ny := t.Apply(x, y)
		dst.SetPoint(i, nx, ny)
	}
	return dst
}

// WarpFromParams builds the similarity warp of the parameters (a, b, tx, ty):
//
//	x' = (1+a)x - b*y + tx
//	y' = b*x + (1+a)y + ty
func WarpFromParams(a, b, tx, ty float64) Affine {
	return Affine{A: 1 + a, B: b, C: -b, D: 1 + a, TX: tx, TY: ty}
}

// ParamsFromWarp recovers (a, b, tx, ty) from a similarity built by WarpFromParams.
func ParamsFromWarp(t Affine) (a, b, tx, ty float64) {
	return t.A - 1, t.B, t.TX, t.TY
}

// warpJacobian returns the derivatives of the warped position of (x, y) with
// respect to (a, b, tx, ty), evaluated at the identity warp.
func warpJacobian(x, y float64) (dx, dy [4]float64) {
	return [4]float64{x, -y, 1, 0}, [4]float64{y, x, 0, 1}
}
