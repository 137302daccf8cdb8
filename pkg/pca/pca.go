package pca

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrNotFitted is returned by Transform before Fit succeeded.
var ErrNotFitted = errors.New("pca: model not fitted")

type PCA struct {
	NumComponents int
	mean          []float64
	svd           *mat.SVD
}

// NewPCA creates a new PCA instance with the specified number of components.
// Zero keeps every component.
func NewPCA(numComponents int) *PCA {
	return &PCA{NumComponents: numComponents}
}

// FitTransform fits the PCA model to the data and transforms it.
func (pca *PCA) FitTransform(X *mat.Dense) (*mat.Dense, error) {
	if _, err := pca.Fit(X); err != nil {
		return nil, err
	}
	return pca.Transform(X)
}

// Fit fits the PCA model to the data. X is left untouched.
func (pca *PCA) Fit(X *mat.Dense) (*PCA, error) {
	if pca.NumComponents < 0 {
		return nil, fmt.Errorf("pca: number of components can't be less than zero, got %d", pca.NumComponents)
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.New("pca: empty input")
	}

	pca.mean = mean(X)
	centered := matrixSubVector(X, pca.mean)

	svd := &mat.SVD{}
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return nil, errors.New("pca: unable to factorize")
	}
	pca.svd = svd
	return pca, nil
}

// Transform projects X onto the fitted components.
func (pca *PCA) Transform(X *mat.Dense) (*mat.Dense, error) {
	if pca.svd == nil {
		return nil, ErrNotFitted
	}
	numSamples, numFeatures := X.Dims()
	if numFeatures != len(pca.mean) {
		return nil, fmt.Errorf("pca: input has %d features, model was fitted on %d", numFeatures, len(pca.mean))
	}

	var v mat.Dense
	pca.svd.VTo(&v)
	projected := compute(matrixSubVector(X, pca.mean), &v)

	_, available := projected.Dims()
	if pca.NumComponents == 0 || pca.NumComponents >= available {
		return projected, nil
	}
	result := mat.NewDense(numSamples, pca.NumComponents, nil)
	result.Copy(projected)
	return result, nil
}

// ExplainedVarianceRatio returns the share of variance carried by each component.
func (pca *PCA) ExplainedVarianceRatio() []float64 {
	if pca.svd == nil {
		return nil
	}
	values := pca.svd.Values(nil)
	var total float64
	for i, s := range values {
		values[i] = s * s
		total += values[i]
	}
	if total == 0 {
		return values
	}
	for i := range values {
		values[i] /= total
	}
	return values
}

// mean computes the mean of the columns of the input matrix.
func mean(matrix *mat.Dense) []float64 {
	rows, cols := matrix.Dims()
	meanVector := make([]float64, cols)
	for i := 0; i < cols; i++ {
		meanVector[i] = mat.Sum(matrix.ColView(i)) / float64(rows)
	}
	return meanVector
}

// matrixSubVector returns a copy of m with vec subtracted from every row.
func matrixSubVector(m *mat.Dense, vec []float64) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, m.At(i, j)-vec[j])
		}
	}
	return out
}

// compute multiplies the input matrix X by the matrix Y.
func compute(X, Y mat.Matrix) *mat.Dense {
	var ret mat.Dense
	ret.Mul(X, Y)
	return &ret
}
