package aam

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// DefaultProcrustesIterations bounds the generalized Procrustes alignment.
const DefaultProcrustesIterations = 10

// Training stages reported to the progress callback.
const (
	StageAlign       = "align"
	StageShapePCA    = "shape-pca"
	StageTriangulate = "triangulate"
	StageTextures    = "textures"
	StageAppearance  = "appearance-pca"
)

// ProgressFunc is notified while training advances through a stage.
type ProgressFunc func(stage string, done, total int)

// Trainer builds an ActiveAppearanceModel from an annotated training set.
type Trainer struct {
	// ShapeLoss and AppearanceLoss are the tolerated fractions of discarded
	// variance used to truncate the models. Zero keeps every mode.
	ShapeLoss      float64
	AppearanceLoss float64
	// MaxShapeModes and MaxAppearanceModes cap the number of modes; zero
	// means no limit.
	MaxShapeModes        int
	MaxAppearanceModes   int
	ProcrustesIterations int
	// Channels of the appearance model; zero means 1.
	Channels int
	Progress ProgressFunc
	Logger   *zap.Logger
}

func (t *Trainer) progress(stage string, done, total int) {
	if t.Progress != nil {
		t.Progress(stage, done, total)
	}
}

func (t *Trainer) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}

// Train runs the training pipeline: shape alignment, shape PCA, normalization
// of the mean shape, triangulation, rasterization of the sample table,
// texture extraction and appearance PCA.
func (t *Trainer) Train(ts TrainingSet) (*ActiveAppearanceModel, error) {
	log := t.logger()
	if err := ts.Validate(); err != nil {
		return nil, err
	}
	if len(ts) < 2 {
		return nil, errors.Wrapf(ErrTooFewSamples, "training needs at least 2 images, got %d", len(ts))
	}
	channels := t.Channels
	if channels == 0 {
		channels = 1
	}
	for i, d := range ts {
		if d.Image.Channels != channels {
			return nil, errors.Wrapf(ErrDimensionMismatch, "training image %d (%s) has %d channels, expected %d",
				i, d.Name, d.Image.Channels, channels)
		}
	}
	iterations := t.ProcrustesIterations
	if iterations <= 0 {
		iterations = DefaultProcrustesIterations
	}

	numPoints := ts[0].Shape.Len()
	shapes := mat.NewDense(len(ts), 2*numPoints, nil)
	for i, d := range ts {
		shapes.SetRow(i, d.Shape)
	}

	log.Info("aligning training shapes", zap.Int("shapes", len(ts)), zap.Int("landmarks", numPoints))
	t.progress(StageAlign, 0, 1)
	dist, err := GeneralizedProcrustes(shapes, iterations)
	if err != nil {
		return nil, errors.Wrap(err, "aligning shapes")
	}
	t.progress(StageAlign, 1, 1)
	log.Debug("shapes aligned", zap.Float64("distance", dist))

	t.progress(StageShapePCA, 0, 1)
	mean, modes, weights, err := ComputePCA(shapes)
	if err != nil {
		return nil, errors.Wrap(err, "shape PCA")
	}
	shapeModel := LinearModel{Mean: mean, Modes: modes, Weights: weights}
	if err := normalizeShapeModel(&shapeModel); err != nil {
		return nil, err
	}
	t.progress(StageShapePCA, 1, 1)
	log.Info("shape model built", zap.Int("modes", shapeModel.NumModes()))

	pose, width, height := trainingPlacement(ts)

	t.progress(StageTriangulate, 0, 1)
	tris, err := Triangulate(Shape(shapeModel.Mean))
	if err != nil {
		return nil, errors.Wrap(err, "triangulating the mean shape")
	}
	s0 := TransformShape(pose, Shape(shapeModel.Mean))
	samples, err := RasterizeShape(s0, tris, width, height, 1)
	if err != nil {
		return nil, errors.Wrap(err, "rasterizing the mean shape")
	}
	if len(samples) == 0 {
		return nil, errors.Wrap(ErrTooFewSamples, "the mean shape covers no pixel")
	}
	t.progress(StageTriangulate, 1, 1)
	log.Info("mean shape rasterized", zap.Int("triangles", len(tris)), zap.Int("samples", len(samples)))

	textures := mat.NewDense(len(ts), len(samples)*channels, nil)
	for i, d := range ts {
		row := textures.RawRowView(i)
		if _, err := ReadShapeImage(d.Image, d.Shape, tris, samples, row); err != nil {
			return nil, errors.Wrapf(err, "reading texture of %s", d.Name)
		}
		t.progress(StageTextures, i+1, len(ts))
	}

	t.progress(StageAppearance, 0, 1)
	amean, amodes, aweights, err := ComputePCA(textures)
	if err != nil {
		return nil, errors.Wrap(err, "appearance PCA")
	}
	t.progress(StageAppearance, 1, 1)

	model := &ActiveAppearanceModel{
		Shape:      shapeModel,
		Appearance: LinearModel{Mean: amean, Modes: amodes, Weights: aweights},
		Triangles:  tris,
		Samples:    samples,
		Pose:       pose,
		Channels:   channels,
	}
	if err := model.SetNumShapeModes(keepModes(model.Shape.Weights, t.ShapeLoss, t.MaxShapeModes)); err != nil {
		return nil, err
	}
	if err := model.SetNumAppearanceModes(keepModes(model.Appearance.Weights, t.AppearanceLoss, t.MaxAppearanceModes)); err != nil {
		return nil, err
	}
	log.Info("appearance model built",
		zap.Int("shapeModes", model.Shape.NumModes()),
		zap.Int("appearanceModes", model.Appearance.NumModes()),
	)
	return model, model.Validate()
}

// keepModes returns the number of dominant modes retained for the tolerated
// variance loss and the optional mode cap.
func keepModes(weights []float64, loss float64, maxModes int) int {
	k := len(weights)
	if loss > 0 {
		k = PCADimensionality(weights, loss)
	}
	if maxModes > 0 && k > maxModes {
		k = maxModes
	}
	return k
}

// normalizeShapeModel moves the mean shape centroid to the origin and scales it
// so that its largest bounding box side is 1. The orthonormal modes are kept,
// their variances are rescaled to the normalized frame.
func normalizeShapeModel(l *LinearModel) error {
	mean := Shape(l.Mean)
	cx, cy := mean.Centroid()
	minX, minY, maxX, maxY := mean.Bounds()
	scale := math.Max(maxX-minX, maxY-minY)
	if scale <= 0 {
		return errors.Wrap(ErrInvalidShape, "mean shape has no extent")
	}
	for i := 0; i < mean.Len(); i++ {
		x, y := mean.Point(i)
		mean.SetPoint(i, (x-cx)/scale, (y-cy)/scale)
	}
	for i := range l.Weights {
		l.Weights[i] /= scale * scale
	}
	return nil
}

// trainingPlacement returns the similarity mapping the normalized mean shape
// to the average size and position of the training shapes, together with the
// size of the largest training image.
func trainingPlacement(ts TrainingSet) (Affine, int, int) {
	var extent, cx, cy float64
	width, height := 0, 0
	for _, d := range ts {
		minX, minY, maxX, maxY := d.Shape.Bounds()
		extent += math.Max(maxX-minX, maxY-minY)
		x, y := d.Shape.Centroid()
		cx += x
		cy += y
		width = max(width, d.Image.Width)
		height = max(height, d.Image.Height)
	}
	n := float64(len(ts))
	return Similarity(extent/n, 0, cx/n, cy/n), width, height
}
