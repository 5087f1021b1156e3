package aam

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// LinearModel is a mean vector plus a basis of variation modes. Modes are stored
// as rows in ascending order of significance, so the most dominant mode is the
// last row. Weights holds the variance of each mode, co-indexed with the rows.
type LinearModel struct {
	Mean    []float64
	Modes   *mat.Dense
	Weights []float64
}

// NumModes returns the number of modes.
func (l *LinearModel) NumModes() int {
	return len(l.Weights)
}

// Dim returns the dimension of the modeled vectors.
func (l *LinearModel) Dim() int {
	return len(l.Mean)
}

// StdDev returns the standard deviation of mode i, the natural step size for
// its coefficient.
func (l *LinearModel) StdDev(i int) float64 {
	return math.Sqrt(l.Weights[i])
}

// Mode returns row i of the basis.
func (l *LinearModel) Mode(i int) []float64 {
	return l.Modes.RawRowView(i)
}

// Validate checks that mean, basis and weights agree in size.
func (l *LinearModel) Validate() error {
	if len(l.Mean) == 0 {
		return errors.Wrap(ErrDimensionMismatch, "empty mean")
	}
	if l.Modes == nil || l.Modes.IsEmpty() {
		if len(l.Weights) != 0 {
			return errors.Wrapf(ErrDimensionMismatch, "%d weights without modes", len(l.Weights))
		}
		return nil
	}
	r, c := l.Modes.Dims()
	if c != len(l.Mean) {
		return errors.Wrapf(ErrDimensionMismatch, "modes of length %d for mean of length %d", c, len(l.Mean))
	}
	if r != len(l.Weights) {
		return errors.Wrapf(ErrDimensionMismatch, "%d modes with %d weights", r, len(l.Weights))
	}
	return nil
}

// Synthesize returns Mean + Σ params[i]*Mode(i). Nil params yield the mean.
func (l *LinearModel) Synthesize(params []float64) ([]float64, error) {
	out := make([]float64, len(l.Mean))
	copy(out, l.Mean)
	if params == nil {
		return out, nil
	}
	if len(params) != l.NumModes() {
		return nil, errors.Wrapf(ErrDimensionMismatch, "%d parameters for %d modes", len(params), l.NumModes())
	}
	for i, p := range params {
		if p == 0 {
			continue
		}
		for j, v := range l.Mode(i) {
			out[j] += p * v
		}
	}
	return out, nil
}

// Truncate keeps the k most dominant modes, i.e. the last k rows, with their weights.
func (l *LinearModel) Truncate(k int) error {
	n := l.NumModes()
	if k < 0 || k > n {
		return errors.Errorf("cannot keep %d of %d modes", k, n)
	}
	if k == n {
		return nil
	}
	if k == 0 {
		l.Modes = nil
		l.Weights = nil
		return nil
	}
	l.Modes = mat.DenseCopyOf(l.Modes.Slice(n-k, n, 0, l.Dim()))
	l.Weights = append([]float64(nil), l.Weights[n-k:]...)
	return nil
}

func (l LinearModel) clone() LinearModel {
	c := LinearModel{
		Mean:    append([]float64(nil), l.Mean...),
		Weights: append([]float64(nil), l.Weights...),
	}
	if l.Modes != nil && !l.Modes.IsEmpty() {
		c.Modes = mat.DenseCopyOf(l.Modes)
	}
	return c
}

// ActiveAppearanceModel is a trained shape and appearance model. Shapes live in
// normalized coordinates; Pose maps them to the pixel space of the training
// images, where the sample table was rasterized. The appearance holds Channels
// values per sample. A model is not mutated by fitting and may back several
// matchers at once.
type ActiveAppearanceModel struct {
	Shape      LinearModel
	Appearance LinearModel
	Triangles  []Triangle
	Samples    []Sample
	Pose       Affine
	Channels   int
}

// Validate checks the internal consistency of the model.
func (m *ActiveAppearanceModel) Validate() error {
	if err := m.Shape.Validate(); err != nil {
		return errors.Wrap(err, "shape model")
	}
	if err := m.Appearance.Validate(); err != nil {
		return errors.Wrap(err, "appearance model")
	}
	mean := Shape(m.Shape.Mean)
	if err := mean.Validate(); err != nil {
		return errors.Wrap(err, "mean shape")
	}
	if err := ValidateTriangles(m.Triangles, mean.Len()); err != nil {
		return err
	}
	if len(m.Samples) == 0 {
		return errors.Wrap(ErrInvalidModel, "empty sample table")
	}
	for i, s := range m.Samples {
		if s.Triangle < 0 || s.Triangle >= len(m.Triangles) {
			return errors.Wrapf(ErrInvalidTriangulation, "sample %d references triangle %d of %d",
				i, s.Triangle, len(m.Triangles))
		}
		if !s.finite() {
			return errors.Wrapf(ErrInvalidModel, "sample %d has non finite barycentrics", i)
		}
	}
	if m.Channels <= 0 {
		return errors.Wrapf(ErrInvalidModel, "%d channels", m.Channels)
	}
	if m.Appearance.Dim() != len(m.Samples)*m.Channels {
		return errors.Wrapf(ErrDimensionMismatch, "appearance of length %d for %d samples of %d channels",
			m.Appearance.Dim(), len(m.Samples), m.Channels)
	}
	if _, err := m.Pose.Inverse(); err != nil {
		return errors.Wrap(err, "model pose")
	}
	return nil
}

// Clone returns a deep copy of the model.
func (m *ActiveAppearanceModel) Clone() *ActiveAppearanceModel {
	return &ActiveAppearanceModel{
		Shape:      m.Shape.clone(),
		Appearance: m.Appearance.clone(),
		Triangles:  append([]Triangle(nil), m.Triangles...),
		Samples:    append([]Sample(nil), m.Samples...),
		Pose:       m.Pose,
		Channels:   m.Channels,
	}
}

// ShapeInstance synthesizes a shape in normalized coordinates.
func (m *ActiveAppearanceModel) ShapeInstance(params []float64) (Shape, error) {
	s, err := m.Shape.Synthesize(params)
	if err != nil {
		return nil, errors.Wrap(err, "shape parameters")
	}
	return Shape(s), nil
}

// AppearanceInstance synthesizes an appearance vector.
func (m *ActiveAppearanceModel) AppearanceInstance(params []float64) ([]float64, error) {
	a, err := m.Appearance.Synthesize(params)
	if err != nil {
		return nil, errors.Wrap(err, "appearance parameters")
	}
	return a, nil
}

// CartesianPixelCoordinates returns the interleaved position of every sample
// over the shape instance of shapeParams placed by pose.
func (m *ActiveAppearanceModel) CartesianPixelCoordinates(pose Affine, shapeParams []float64) ([]float64, error) {
	s, err := m.ShapeInstance(shapeParams)
	if err != nil {
		return nil, err
	}
	return SampleCoordinates(TransformShape(pose, s), m.Triangles, m.Samples)
}

// RenderAppearanceInstance draws the model instance described by pose,
// shapeParams and appearanceParams into dst. The appearance is first written
// over the mean shape at the model pose, where samples fall on pixel centers,
// then resampled onto every pixel covered by the target shape. Pixels written
// are flagged in mask, if given.
func (m *ActiveAppearanceModel) RenderAppearanceInstance(dst *Image, mask []bool, pose Affine, shapeParams, appearanceParams []float64) error {
	if err := dst.validate(); err != nil {
		return err
	}
	if dst.Channels != m.Channels {
		return errors.Wrapf(ErrDimensionMismatch, "%d channel image for %d channel model", dst.Channels, m.Channels)
	}
	appearance, err := m.AppearanceInstance(appearanceParams)
	if err != nil {
		return err
	}
	shape, err := m.ShapeInstance(shapeParams)
	if err != nil {
		return err
	}

	s0 := TransformShape(m.Pose, Shape(m.Shape.Mean))
	_, _, maxX, maxY := s0.Bounds()
	w := max(dst.Width, int(math.Ceil(maxX))+1)
	h := max(dst.Height, int(math.Ceil(maxY))+1)
	meanImage := NewImage(w, h, m.Channels)
	if err := WriteShapeImage(meanImage, nil, s0, m.Triangles, m.Samples, appearance); err != nil {
		return err
	}

	target := TransformShape(pose, shape)
	barys, err := RasterizeShape(target, m.Triangles, dst.Width, dst.Height, 1)
	if err != nil {
		return err
	}
	texture, err := ReadShapeImage(meanImage, s0, m.Triangles, barys, nil)
	if err != nil {
		return err
	}
	return WriteShapeImage(dst, mask, target, m.Triangles, barys, texture)
}

// SetNumShapeModes keeps the k most dominant shape modes.
func (m *ActiveAppearanceModel) SetNumShapeModes(k int) error {
	return errors.Wrap(m.Shape.Truncate(k), "shape modes")
}

// SetNumAppearanceModes keeps the k most dominant appearance modes.
func (m *ActiveAppearanceModel) SetNumAppearanceModes(k int) error {
	return errors.Wrap(m.Appearance.Truncate(k), "appearance modes")
}
