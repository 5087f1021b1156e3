package aam

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// DefaultDamping scales every Gauss-Newton update.
const DefaultDamping = 0.1

// Strategy selects the parameters estimated by the Matcher.
type Strategy int

const (
	// PoseOnly estimates the four global similarity parameters.
	PoseOnly Strategy = iota
	// PoseAndShape estimates the pose and the shape coefficients, projecting the
	// appearance variation out of the steepest descent images.
	PoseAndShape
)

func (s Strategy) String() string {
	switch s {
	case PoseOnly:
		return "pose"
	case PoseAndShape:
		return "shape"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses the names returned by Strategy.String.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "pose":
		return PoseOnly, nil
	case "shape":
		return PoseAndShape, nil
	}
	return 0, errors.Errorf("unknown fitting strategy %q", name)
}

// State is the lifecycle state of a matching session.
type State int

// Session states.
const (
	Uninitialized State = iota
	Initialized
	Stepping
	Done
	Aborted
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Stepping:
		return "stepping"
	case Done:
		return "done"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Jitter returns the translation offset, in pixels, applied to the initial pose.
type Jitter func() (dx, dy float64)

// NoJitter leaves the initial pose untouched.
func NoJitter() Jitter {
	return func() (float64, float64) { return 0, 0 }
}

// FixedJitter always returns the same offset.
func FixedJitter(dx, dy float64) Jitter {
	return func() (float64, float64) { return dx, dy }
}

// RandomJitter draws offsets uniformly from [-amplitude, amplitude] using its
// own generator seeded with seed.
func RandomJitter(seed int64, amplitude float64) Jitter {
	rnd := rand.New(rand.NewSource(seed))
	return func() (float64, float64) {
		return (2*rnd.Float64() - 1) * amplitude, (2*rnd.Float64() - 1) * amplitude
	}
}

// Options configures a Matcher.
type Options struct {
	Strategy Strategy
	// Damping scales every update; zero means DefaultDamping.
	Damping float64
	// Jitter perturbs the initial translation; nil means no jitter.
	Jitter Jitter
	// Tolerance stops Run once the RMS residual changes by less than this
	// amount between two steps. Zero disables the test.
	Tolerance float64
	Logger    *zap.Logger
}

// Result summarizes a fitting run.
type Result struct {
	Pose             Affine
	ShapeParams      []float64
	AppearanceParams []float64
	RMS              []float64
	Iterations       int
}

// Matcher fits an ActiveAppearanceModel to an image with the inverse
// compositional Gauss-Newton algorithm. Template gradients, Jacobians,
// steepest descent images and the inverse Hessian are computed once by Init at
// the mean shape; every Step then only samples the image.
//
// A Matcher is not safe for concurrent use. Several matchers may share a model.
type Matcher struct {
	model *ActiveAppearanceModel
	opts  Options
	log   *zap.Logger

	state State
	cause error

	img              *Image
	pose             Affine
	shapeParams      []float64
	appearanceParams []float64

	meanCoords []float64  // sample positions over the mean shape, normalized
	sd         *mat.Dense // steepest descent images, one row per sample
	invHessian *mat.Dense
	residual   []float64

	rms        float64
	iterations int
}

// NewMatcher creates a matcher for model.
func NewMatcher(model *ActiveAppearanceModel, opts Options) (*Matcher, error) {
	if model == nil {
		return nil, errors.Wrap(ErrInvalidModel, "nil model")
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	if model.Channels != 1 {
		return nil, errors.Wrapf(ErrDimensionMismatch, "fitting needs a single channel model, got %d", model.Channels)
	}
	if opts.Damping == 0 {
		opts.Damping = DefaultDamping
	}
	if opts.Damping < 0 || math.IsNaN(opts.Damping) {
		return nil, errors.Errorf("invalid damping %g", opts.Damping)
	}
	if opts.Jitter == nil {
		opts.Jitter = NoJitter()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{model: model, opts: opts, log: log}, nil
}

// Init binds the matcher to img and precomputes everything that does not
// depend on the current warp. A zero initialPose selects the model pose. The
// jitter of the options is added to the initial translation. Nil parameter
// vectors are treated as zero. On failure the session is aborted.
func (m *Matcher) Init(img *Image, initialPose Affine, shapeParams, appearanceParams []float64) error {
	if err := m.init(img, initialPose, shapeParams, appearanceParams); err != nil {
		m.abort(err)
		return err
	}
	m.state = Initialized
	m.cause = nil
	return nil
}

func (m *Matcher) init(img *Image, initialPose Affine, shapeParams, appearanceParams []float64) error {
	if err := img.validate(); err != nil {
		return errors.Wrap(err, "target image")
	}
	if img.Channels != 1 {
		return errors.Wrapf(ErrDimensionMismatch, "fitting needs a single channel image, got %d", img.Channels)
	}

	numShape := m.model.Shape.NumModes()
	if shapeParams == nil {
		shapeParams = make([]float64, numShape)
	}
	if len(shapeParams) != numShape {
		return errors.Wrapf(ErrDimensionMismatch, "%d shape parameters for %d modes", len(shapeParams), numShape)
	}
	numAppearance := m.model.Appearance.NumModes()
	if appearanceParams == nil {
		appearanceParams = make([]float64, numAppearance)
	}
	if len(appearanceParams) != numAppearance {
		return errors.Wrapf(ErrDimensionMismatch, "%d appearance parameters for %d modes",
			len(appearanceParams), numAppearance)
	}

	pose := initialPose
	if pose.IsZero() {
		pose = m.model.Pose
	}
	if _, err := pose.Inverse(); err != nil {
		return errors.Wrap(err, "initial pose")
	}

	grads, err := templateGradients(m.model)
	if err != nil {
		return err
	}
	coords, err := SampleCoordinates(Shape(m.model.Shape.Mean), m.model.Triangles, m.model.Samples)
	if err != nil {
		return err
	}

	var sd *mat.Dense
	switch m.opts.Strategy {
	case PoseOnly:
		sd = steepestDescent(grads, poseJacobians(coords), nil, 0)
	case PoseAndShape:
		sd = steepestDescent(grads, poseJacobians(coords), shapeJacobians(m.model), numShape)
		projectOut(sd, m.model.Appearance.Modes)
	default:
		return errors.Errorf("unknown strategy %v", m.opts.Strategy)
	}
	sanitize(sd)

	invHessian, err := inverseHessian(sd)
	if err != nil {
		return err
	}

	dx, dy := m.opts.Jitter()
	pose.TX += dx
	pose.TY += dy

	m.img = img
	m.pose = pose
	m.shapeParams = append([]float64(nil), shapeParams...)
	m.appearanceParams = append([]float64(nil), appearanceParams...)
	m.meanCoords = coords
	m.sd = sd
	m.invHessian = invHessian
	m.residual = make([]float64, len(m.model.Samples))
	m.rms = 0
	m.iterations = 0

	m.log.Debug("matcher initialized",
		zap.Stringer("strategy", m.opts.Strategy),
		zap.Int("samples", len(m.model.Samples)),
		zap.Stringer("pose", pose),
	)
	return nil
}

func (m *Matcher) abort(err error) {
	m.state = Aborted
	m.cause = err
	m.log.Warn("matching session aborted", zap.Error(err))
}

// Step performs one inverse compositional update and returns the RMS intensity
// residual measured before the update. Samples warped outside the image are
// skipped and do not contribute to the update.
func (m *Matcher) Step() (float64, error) {
	switch m.state {
	case Uninitialized:
		return 0, ErrNotInitialized
	case Aborted:
		return 0, errors.Wrap(ErrSessionAborted, m.cause.Error())
	case Done:
		return 0, ErrSessionDone
	}

	rms, err := m.step()
	if err != nil {
		m.abort(err)
		return rms, err
	}
	m.state = Stepping
	return rms, nil
}

func (m *Matcher) step() (float64, error) {
	coords := m.meanCoords
	if m.opts.Strategy == PoseAndShape {
		s, err := m.model.ShapeInstance(m.shapeParams)
		if err != nil {
			return 0, err
		}
		if coords, err = SampleCoordinates(s, m.model.Triangles, m.model.Samples); err != nil {
			return 0, err
		}
	}

	_, params := m.sd.Dims()
	mean := m.model.Appearance.Mean
	update := make([]float64, params)

	var sumSq float64
	valid := 0
	for i := range m.model.Samples {
		x, y := m.pose.Apply(coords[2*i], coords[2*i+1])
		px, py := int(math.Floor(x)), int(math.Floor(y))
		if !m.img.Inside(px, py) {
			m.residual[i] = 0
			continue
		}
		diff := m.img.Pix[py*m.img.Width+px] - mean[i]
		m.residual[i] = diff
		sumSq += diff * diff
		valid++

		row := m.sd.RawRowView(i)
		for j, v := range row {
			update[j] += v * diff
		}
	}
	if valid == 0 {
		return 0, ErrNoValidSamples
	}
	rms := math.Sqrt(sumSq / float64(valid))
	m.rms = rms

	var delta mat.VecDense
	delta.MulVec(m.invHessian, mat.NewVecDense(params, update))
	delta.ScaleVec(m.opts.Damping, &delta)
	for j := 0; j < params; j++ {
		if v := delta.AtVec(j); math.IsNaN(v) || math.IsInf(v, 0) {
			return rms, ErrNonFiniteUpdate
		}
	}

	warp := WarpFromParams(delta.AtVec(0), delta.AtVec(1), delta.AtVec(2), delta.AtVec(3))
	inv, err := warp.Inverse()
	if err != nil {
		return rms, errors.Wrap(err, "warp update")
	}
	var composed mat.Dense
	composed.Mul(inv.Homogeneous(), m.pose.Homogeneous())
	pose := AffineFromHomogeneous(&composed)
	if _, err := pose.Inverse(); err != nil {
		return rms, errors.Wrap(err, "updated pose")
	}
	m.pose = pose

	// Pose only sessions keep the shape coefficients fixed.
	for k := 0; k < params-numPoseParams; k++ {
		m.shapeParams[k] -= delta.AtVec(numPoseParams + k)
	}
	m.iterations++

	m.log.Debug("matcher step",
		zap.Int("iteration", m.iterations),
		zap.Float64("rms", rms),
		zap.Int("valid", valid),
	)
	return rms, nil
}

// Run steps until maxIter iterations ran, the optional tolerance is met or ctx
// is cancelled. The session is done afterwards. A cancelled context is reported
// together with the result reached so far.
func (m *Matcher) Run(ctx context.Context, maxIter int) (*Result, error) {
	res := &Result{}
	var ctxErr error
	for i := 0; i < maxIter; i++ {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}
		rms, err := m.Step()
		if err != nil {
			return nil, err
		}
		res.RMS = append(res.RMS, rms)
		if n := len(res.RMS); m.opts.Tolerance > 0 && n > 1 &&
			math.Abs(res.RMS[n-2]-rms) < m.opts.Tolerance {
			break
		}
	}
	if m.state == Uninitialized {
		return nil, ErrNotInitialized
	}
	m.Stop()

	res.Pose = m.pose
	res.ShapeParams = m.ShapeParams()
	res.AppearanceParams = m.AppearanceParams()
	res.Iterations = m.iterations
	return res, ctxErr
}

// Stop ends an initialized session. Further steps return ErrSessionDone.
func (m *Matcher) Stop() {
	if m.state == Initialized || m.state == Stepping {
		m.state = Done
	}
}

// State returns the session state.
func (m *Matcher) State() State {
	return m.state
}

// Err returns the error which aborted the session, if any.
func (m *Matcher) Err() error {
	return m.cause
}

// Pose returns the current global warp from normalized model space to image pixels.
func (m *Matcher) Pose() Affine {
	return m.pose
}

// ShapeParams returns a copy of the current shape coefficients.
func (m *Matcher) ShapeParams() []float64 {
	return append([]float64(nil), m.shapeParams...)
}

// AppearanceParams estimates the appearance coefficients by projecting the
// residual of the last step onto the appearance modes and adding the result to
// the initial coefficients. Before the first step the initial coefficients are
// returned.
func (m *Matcher) AppearanceParams() []float64 {
	params := append([]float64(nil), m.appearanceParams...)
	if m.iterations == 0 || len(params) == 0 {
		return params
	}
	var coef mat.VecDense
	coef.MulVec(m.model.Appearance.Modes, mat.NewVecDense(len(m.residual), m.residual))
	for i := range params {
		params[i] += coef.AtVec(i)
	}
	return params
}

// Shape returns the current shape instance in image pixels.
func (m *Matcher) Shape() (Shape, error) {
	s, err := m.model.ShapeInstance(m.shapeParams)
	if err != nil {
		return nil, err
	}
	return TransformShape(m.pose, s), nil
}

// RMS returns the residual reported by the last step.
func (m *Matcher) RMS() float64 {
	return m.rms
}

// Iterations returns the number of completed steps.
func (m *Matcher) Iterations() int {
	return m.iterations
}
