package aam

import (
	"context"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/esimov/aam/imop"
	"github.com/esimov/aam/utils"
	pigo "github.com/esimov/pigo/core"
	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultIterations is the number of fitting steps run when Processor.Iterations is zero.
const DefaultIterations = 50

// Processor options
type Processor struct {
	Model *ActiveAppearanceModel

	Strategy        Strategy
	Iterations      int
	Damping         float64
	Tolerance       float64
	JitterAmplitude float64
	Seed            int64

	BlurRadius float64

	// Face detection seeds the initial pose. Without a detector, or when no
	// face is found, the model pose is used.
	FaceDetector *pigo.Pigo
	FaceAngle    float64
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	QThreshold   float32
	// FaceScale maps the detection size to the extent of the normalized mean shape.
	FaceScale float64

	DrawShape     bool
	DrawTriangles bool
	BlendMode     string

	Spinner *utils.Spinner
	Logger  *zap.Logger
}

func (p *Processor) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// LoadCascade unpacks the pigo face detection cascade stored at path.
func (p *Processor) LoadCascade(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading the cascade file")
	}
	detector, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return errors.Wrap(err, "unpacking the cascade file")
	}
	p.FaceDetector = detector
	return nil
}

// DetectPose runs the face detector over img and maps the most prominent face
// to a pose placing the normalized mean shape over it.
func (p *Processor) DetectPose(img *image.NRGBA) (Affine, bool) {
	if p.FaceDetector == nil {
		return Affine{}, false
	}
	cols, rows := img.Bounds().Dx(), img.Bounds().Dy()
	maxSize := p.MaxSize
	if maxSize <= 0 {
		maxSize = utils.Max(cols, rows)
	}

	cParams := pigo.CascadeParams{
		MinSize:     utils.Max(p.MinSize, 1),
		MaxSize:     maxSize,
		ShiftFactor: p.ShiftFactor,
		ScaleFactor: p.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(img),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}
	// The result contains quadruplets representing the row, column, scale and detection score.
	faces := p.FaceDetector.RunCascade(cParams, p.FaceAngle)
	faces = p.FaceDetector.ClusterDetections(faces, p.IoUThreshold)

	best := -1
	for i, face := range faces {
		if face.Q <= p.QThreshold {
			continue
		}
		if best < 0 || face.Scale > faces[best].Scale {
			best = i
		}
	}
	if best < 0 {
		return Affine{}, false
	}
	face := faces[best]
	scale := p.FaceScale
	if scale <= 0 {
		scale = 1
	}
	p.logger().Debug("face detected",
		zap.Int("row", face.Row), zap.Int("col", face.Col),
		zap.Int("size", face.Scale), zap.Float32("score", face.Q))
	return Similarity(float64(face.Scale)*scale, 0, float64(face.Col), float64(face.Row)), true
}

// Fit runs one independent matching session of the processor's model on img.
func (p *Processor) Fit(ctx context.Context, img *Image, pose Affine) (*Result, error) {
	opts := Options{
		Strategy:  p.Strategy,
		Damping:   p.Damping,
		Tolerance: p.Tolerance,
		Logger:    p.Logger,
	}
	if p.JitterAmplitude > 0 {
		opts.Jitter = RandomJitter(p.Seed, p.JitterAmplitude)
	}
	m, err := NewMatcher(p.Model, opts)
	if err != nil {
		return nil, err
	}
	if err := m.Init(img, pose, nil, nil); err != nil {
		return nil, err
	}
	iterations := p.Iterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return m.Run(ctx, iterations)
}

// Render draws the fitted model instance over src.
func (p *Processor) Render(src *image.NRGBA, res *Result) (image.Image, error) {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := NewImage(w, h, p.Model.Channels)
	mask := make([]bool, w*h)
	if err := p.Model.RenderAppearanceInstance(dst, mask, res.Pose, res.ShapeParams, res.AppearanceParams); err != nil {
		return nil, errors.Wrap(err, "rendering the model instance")
	}
	layer := dst.NRGBA()
	for i, ok := range mask {
		if !ok {
			layer.Pix[4*i+3] = 0
		}
	}

	bitmap := imop.NewBitmap(src.Bounds())
	op := imop.InitOp()
	var blend *imop.Blend
	if p.BlendMode != "" {
		blend = imop.NewBlend()
		if err := blend.Set(p.BlendMode); err != nil {
			return nil, err
		}
	}
	op.Draw(bitmap, layer, src, blend)

	if !p.DrawShape && !p.DrawTriangles {
		return bitmap.Img, nil
	}
	style := DefaultShapeStyle
	style.Landmarks = p.DrawShape
	style.Triangles = p.DrawTriangles
	dc := gg.NewContextForImage(bitmap.Img)
	if err := p.Model.RenderShapeInstance(dc, res.Pose, res.ShapeParams, style); err != nil {
		return nil, err
	}
	return dc.Image(), nil
}

// Process fits the model to the image read from r and encodes the rendered
// result into w.
func (p *Processor) Process(r io.Reader, w io.Writer) error {
	return p.ProcessContext(context.Background(), r, w)
}

// ProcessContext is Process with a context bounding the fitting session.
func (p *Processor) ProcessContext(ctx context.Context, r io.Reader, w io.Writer) error {
	if p.Model == nil {
		return errors.Wrap(ErrInvalidModel, "no model loaded")
	}
	src, err := DecodeImage(r)
	if err != nil {
		return err
	}

	target := src
	if p.BlurRadius > 0 {
		target = imaging.Blur(src, p.BlurRadius)
	}
	img, err := NewImageFromImage(target, p.Model.Channels)
	if err != nil {
		return err
	}

	pose, found := p.DetectPose(src)
	if !found {
		pose = Affine{}
	}

	res, err := p.Fit(ctx, img, pose)
	if err != nil {
		return errors.Wrap(err, "fitting the model")
	}
	p.logger().Info("model fitted",
		zap.Bool("faceDetected", found),
		zap.Int("iterations", res.Iterations),
		zap.Stringer("pose", res.Pose),
		zap.Float64s("rms", res.RMS),
	)

	out, err := p.Render(src, res)
	if err != nil {
		return err
	}
	return encodeImg(w, out)
}
