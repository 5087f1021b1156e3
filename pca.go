package aam

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ComputePCA performs a principal component analysis of data, one observation per row.
// It returns the column mean, the modes as rows of basis and their variances in
// weights. Modes are ordered by ascending variance, so the most dominant mode is
// the last row. When there are fewer observations than dimensions the
// eigenproblem is solved on the smaller Gram matrix and the eigenvectors are
// mapped back through the data. At most rows-1 modes are returned.
func ComputePCA(data mat.Matrix) (mean []float64, basis *mat.Dense, weights []float64, err error) {
	rows, cols := data.Dims()
	if rows < 2 {
		return nil, nil, nil, errors.Wrapf(ErrTooFewSamples, "PCA needs at least 2 observations, got %d", rows)
	}

	mean = make([]float64, cols)
	for j := 0; j < cols; j++ {
		var sum float64
		for i := 0; i < rows; i++ {
			sum += data.At(i, j)
		}
		mean[j] = sum / float64(rows)
	}

	centered := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			centered.Set(i, j, data.At(i, j)-mean[j])
		}
	}

	if cols < rows {
		basis, weights, err = primalPCA(centered)
	} else {
		basis, weights, err = dualPCA(centered)
	}
	if err != nil {
		return nil, nil, nil, err
	}
	return mean, basis, weights, nil
}

// primalPCA decomposes the cols x cols covariance.
func primalPCA(centered *mat.Dense) (*mat.Dense, []float64, error) {
	rows, cols := centered.Dims()

	var cov mat.SymDense
	cov.SymOuterK(1/float64(rows), centered.T())

	var eig mat.EigenSym
	if ok := eig.Factorize(&cov, true); !ok {
		return nil, nil, errors.New("eigen decomposition did not converge")
	}
	values := eig.Values(nil)

	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	basis := mat.NewDense(cols, cols, nil)
	basis.Copy(vectors.T())
	for i := range values {
		values[i] = math.Max(values[i], 0)
	}
	return basis, values, nil
}

// dualPCA decomposes the rows x rows Gram matrix and maps eigenvectors back
// to data space. The smallest eigenvalue belongs to the null direction
// introduced by centering and is dropped.
func dualPCA(centered *mat.Dense) (*mat.Dense, []float64, error) {
	rows, cols := centered.Dims()

	var gram mat.SymDense
	gram.SymOuterK(1/float64(rows), centered)

	var eig mat.EigenSym
	if ok := eig.Factorize(&gram, true); !ok {
		return nil, nil, errors.New("eigen decomposition did not converge")
	}
	values := eig.Values(nil)

	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Xᵀu is an eigenvector of the covariance with the same eigenvalue.
	var mapped mat.Dense
	mapped.Mul(centered.T(), &vectors)

	n := rows - 1
	basis := mat.NewDense(n, cols, nil)
	weights := make([]float64, n)
	for k := 1; k < rows; k++ {
		col := mapped.ColView(k)
		norm := mat.Norm(col, 2)
		if norm > 0 {
			for j := 0; j < cols; j++ {
				basis.Set(k-1, j, col.AtVec(j)/norm)
			}
		}
		weights[k-1] = math.Max(values[k], 0)
	}
	return basis, weights, nil
}

// PCADimensionality returns the smallest number of dominant modes that retain at
// least 1-toleratedLoss of the total variance. Weights are expected in ascending
// order; the least significant modes are dropped for as long as the accumulated
// dropped variance stays within the tolerated fraction.
func PCADimensionality(weights []float64, toleratedLoss float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return len(weights)
	}

	var loss float64
	dropped := 0
	for dropped < len(weights) {
		next := loss + weights[dropped]/total
		if next > toleratedLoss {
			break
		}
		loss = next
		dropped++
	}
	return len(weights) - dropped
}
