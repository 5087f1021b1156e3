package aam

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	// numPoseParams is the number of global similarity parameters (a, b, tx, ty).
	numPoseParams = 4

	// maxSteepestDescent bounds steepest descent values; larger magnitudes are
	// treated as numerical blow ups and zeroed.
	maxSteepestDescent = 1e12

	// maxHessianCondition is the largest accepted condition number of the Hessian.
	maxHessianCondition = 1e12
)

// templateGradients renders the mean appearance at the model pose, takes its
// Sobel derivatives and returns them per sample as interleaved (dA/dx, dA/dy)
// pairs expressed in normalized model coordinates.
func templateGradients(model *ActiveAppearanceModel) ([]float64, error) {
	s0 := TransformShape(model.Pose, Shape(model.Shape.Mean))
	_, _, maxX, maxY := s0.Bounds()
	w, h := int(math.Ceil(maxX))+2, int(math.Ceil(maxY))+2
	if w <= 0 || h <= 0 {
		return nil, errors.Wrapf(ErrInvalidDimensions, "mean shape lies outside the image plane (%dx%d)", w, h)
	}

	template := NewImage(w, h, model.Channels)
	mask := make([]bool, w*h)
	if err := model.RenderAppearanceInstance(template, mask, model.Pose, nil, nil); err != nil {
		return nil, errors.Wrap(err, "rendering the mean appearance")
	}

	gx, gy := Sobel(template, 0)
	suppressInvalid(gx, mask)
	suppressInvalid(gy, mask)

	sx, err := ReadShapeImage(gx, s0, model.Triangles, model.Samples, nil)
	if err != nil {
		return nil, err
	}
	sy, err := ReadShapeImage(gy, s0, model.Triangles, model.Samples, nil)
	if err != nil {
		return nil, err
	}

	// Chain rule through the pose: pixel = normalized * L + t.
	p := model.Pose
	grads := make([]float64, 2*len(model.Samples))
	for i := range model.Samples {
		grads[2*i] = sx[i]*p.A + sy[i]*p.B
		grads[2*i+1] = sx[i]*p.C + sy[i]*p.D
	}
	return grads, nil
}

// poseJacobians returns, per sample, the 2x4 derivative of the warped position
// with respect to (a, b, tx, ty), laid out as 4 x-derivatives followed by 4
// y-derivatives.
func poseJacobians(coords []float64) []float64 {
	n := len(coords) / 2
	jac := make([]float64, 8*n)
	for i := 0; i < n; i++ {
		dx, dy := warpJacobian(coords[2*i], coords[2*i+1])
		copy(jac[8*i:8*i+4], dx[:])
		copy(jac[8*i+4:8*i+8], dy[:])
	}
	return jac
}

// shapeJacobians returns, per sample, the 2xK derivative of the sample position
// with respect to the shape coefficients: every mode's vertex displacement
// interpolated with the sample's barycentric weights. Layout is K x-derivatives
// followed by K y-derivatives.
func shapeJacobians(model *ActiveAppearanceModel) []float64 {
	k := model.Shape.NumModes()
	n := len(model.Samples)
	jac := make([]float64, 2*k*n)
	for j := 0; j < k; j++ {
		mode := Shape(model.Shape.Mode(j))
		for i, s := range model.Samples {
			t := model.Triangles[s.Triangle]
			w0, w1, w2 := 1-s.Alpha-s.Beta, s.Alpha, s.Beta
			ax, ay := mode.Point(t[0])
			bx, by := mode.Point(t[1])
			cx, cy := mode.Point(t[2])
			jac[2*k*i+j] = w0*ax + w1*bx + w2*cx
			jac[2*k*i+k+j] = w0*ay + w1*by + w2*cy
		}
	}
	return jac
}

// steepestDescent combines gradients and Jacobians into the n x P matrix of
// steepest descent images. shapeJac may be nil for pose only fitting.
func steepestDescent(grads, poseJac, shapeJac []float64, numShape int) *mat.Dense {
	n := len(grads) / 2
	params := numPoseParams + numShape
	sd := mat.NewDense(n, params, nil)
	for i := 0; i < n; i++ {
		gx, gy := grads[2*i], grads[2*i+1]
		row := sd.RawRowView(i)
		pj := poseJac[8*i : 8*i+8]
		for j := 0; j < numPoseParams; j++ {
			row[j] = gx*pj[j] + gy*pj[4+j]
		}
		if numShape == 0 {
			continue
		}
		sj := shapeJac[2*numShape*i : 2*numShape*(i+1)]
		for j := 0; j < numShape; j++ {
			row[numPoseParams+j] = gx*sj[j] + gy*sj[numShape+j]
		}
	}
	return sd
}

// projectOut removes from every steepest descent image its component within the
// span of the orthonormal appearance modes.
func projectOut(sd *mat.Dense, modes *mat.Dense) {
	if modes == nil || modes.IsEmpty() {
		return
	}
	var coef mat.Dense
	coef.Mul(modes, sd)
	var proj mat.Dense
	proj.Mul(modes.T(), &coef)
	sd.Sub(sd, &proj)
}

// sanitize zeroes non finite or exploding entries.
func sanitize(sd *mat.Dense) {
	raw := sd.RawMatrix()
	for i := 0; i < raw.Rows; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > maxSteepestDescent {
				row[j] = 0
			}
		}
	}
}

// inverseHessian computes the inverse of the Gauss-Newton Hessian SDᵀSD.
func inverseHessian(sd *mat.Dense) (*mat.Dense, error) {
	_, params := sd.Dims()
	var h mat.SymDense
	h.SymOuterK(1, sd.T())

	if cond := mat.Cond(&h, 1); math.IsNaN(cond) || cond > maxHessianCondition {
		return nil, errors.Wrapf(ErrSingularHessian, "condition number %g", cond)
	}
	inv := mat.NewDense(params, params, nil)
	if err := inv.Inverse(&h); err != nil {
		return nil, errors.Wrap(ErrSingularHessian, err.Error())
	}
	return inv, nil
}
