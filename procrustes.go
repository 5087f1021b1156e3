package aam

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// centerAndNormalize moves the centroid of the N x 2 point matrix to the origin
// and scales it to unit Frobenius norm. It returns the removed mean and scale.
func centerAndNormalize(m *mat.Dense) (mx, my, norm float64) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		mx += m.At(i, 0)
		my += m.At(i, 1)
	}
	mx /= float64(r)
	my /= float64(r)
	for i := 0; i < r; i++ {
		m.Set(i, 0, m.At(i, 0)-mx)
		m.Set(i, 1, m.At(i, 1)-my)
	}
	norm = mat.Norm(m, 2)
	if norm > 0 {
		m.Scale(1/norm, m)
	}
	return mx, my, norm
}

// Procrustes aligns the points y onto the points x (both N x 2) with the
// similarity transform minimizing the squared distance, overwriting y with the
// result. It returns the Procrustes distance 1 - trace², which is zero for shapes
// that only differ by a similarity transform.
func Procrustes(x, y *mat.Dense) float64 {
	xc := mat.DenseCopyOf(x)
	yc := mat.DenseCopyOf(y)
	mx, my, sx := centerAndNormalize(xc)
	centerAndNormalize(yc)

	var a mat.Dense
	a.Mul(xc.T(), yc)

	var svd mat.SVD
	if ok := svd.Factorize(&a, mat.SVDFull); !ok {
		return math.NaN()
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	var rot mat.Dense
	rot.Mul(&v, u.T())
	if mat.Det(&rot) < 0 {
		// Reflections are not similarity transforms.
		v.Set(0, 1, -v.At(0, 1))
		v.Set(1, 1, -v.At(1, 1))
		s[1] = -s[1]
		rot.Mul(&v, u.T())
	}
	trace := s[0] + s[1]

	y.Mul(yc, &rot)
	y.Scale(trace*sx, y)
	r, _ := y.Dims()
	for i := 0; i < r; i++ {
		y.Set(i, 0, y.At(i, 0)+mx)
		y.Set(i, 1, y.At(i, 1)+my)
	}
	return 1 - trace*trace
}

// GeneralizedProcrustes aligns every shape, one interleaved shape per row of
// shapes, to their common mean. The first shape is the initial reference; the
// mean of the aligned shapes becomes the next reference until the reference
// stops moving or maxIter iterations ran. Rows are updated in place and the
// distance between the last two references is returned.
func GeneralizedProcrustes(shapes *mat.Dense, maxIter int) (float64, error) {
	rows, cols := shapes.Dims()
	if rows == 0 || cols == 0 || cols%2 != 0 {
		return 0, errors.Wrapf(ErrInvalidShape, "%dx%d shape matrix", rows, cols)
	}
	n := cols / 2

	ref := Shape(mat.Row(nil, 0, shapes)).Matrix()
	lastDist := math.Inf(1)
	dist := lastDist

	for iter := 1; ; iter++ {
		mean := mat.NewDense(n, 2, nil)
		for i := 0; i < rows; i++ {
			pts := Shape(mat.Row(nil, i, shapes)).Matrix()
			Procrustes(ref, pts)
			shapes.SetRow(i, ShapeFromMatrix(pts))
			mean.Add(mean, pts)
		}
		mean.Scale(1/float64(rows), mean)

		var diff mat.Dense
		diff.Sub(mean, ref)
		dist = mat.Norm(&diff, 2)
		if dist > lastDist || iter >= maxIter {
			break
		}
		lastDist = dist
		ref = mean
	}
	return dist, nil
}
