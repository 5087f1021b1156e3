package aam

import (
	"math"

	"github.com/pkg/errors"
)

// Sample locates one appearance sample relative to the mesh: the triangle it
// falls in and its barycentric coordinates within that triangle.
type Sample struct {
	Triangle int
	Alpha    float64
	Beta     float64
}

// Bary returns the barycentric part of the sample.
func (s Sample) Bary() Bary {
	return Bary{Alpha: s.Alpha, Beta: s.Beta}
}

func (s Sample) finite() bool {
	return !math.IsNaN(s.Alpha) && !math.IsInf(s.Alpha, 0) &&
		!math.IsNaN(s.Beta) && !math.IsInf(s.Beta, 0)
}

// RasterizeShape visits, triangle by triangle and row by row, every pixel center
// (x+0.5, y+0.5) of a width x height grid and records the ones covered by the
// shape scaled by scale. Pixel centers shared by adjacent triangles are reported
// once per triangle.
func RasterizeShape(shape Shape, tris []Triangle, width, height int, scale float64) ([]Sample, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrInvalidDimensions, "%dx%d", width, height)
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateTriangles(tris, shape.Len()); err != nil {
		return nil, err
	}

	scaled := shape.Clone()
	for i := range scaled {
		scaled[i] *= scale
	}

	var samples []Sample
	for id, tri := range tris {
		t := triangleOf(scaled, tri)
		if t.Degenerate() {
			return nil, errors.Wrapf(ErrDegenerateTriangle, "triangle %d", id)
		}

		// Only the bounding box of the triangle can hold covered pixels.
		ax, ay := scaled.Point(tri[0])
		bx, by := scaled.Point(tri[1])
		cx, cy := scaled.Point(tri[2])
		x0 := clampInt(int(math.Floor(math.Min(ax, math.Min(bx, cx)))), 0, width)
		x1 := clampInt(int(math.Ceil(math.Max(ax, math.Max(bx, cx)))), 0, width)
		y0 := clampInt(int(math.Floor(math.Min(ay, math.Min(by, cy)))), 0, height)
		y1 := clampInt(int(math.Ceil(math.Max(ay, math.Max(by, cy)))), 0, height)

		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				b := t.BaryAt(float64(x)+0.5, float64(y)+0.5)
				if b.Inside() {
					samples = append(samples, Sample{Triangle: id, Alpha: b.Alpha, Beta: b.Beta})
				}
			}
		}
	}
	return samples, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sampleWalker resolves samples against a shape, rebuilding the triangle
// parametrization only when the triangle changes between consecutive samples.
type sampleWalker struct {
	shape Shape
	tris  []Triangle
	last  int
	tri   ParametrizedTriangle
}

func newSampleWalker(shape Shape, tris []Triangle) *sampleWalker {
	return &sampleWalker{shape: shape, tris: tris, last: -1}
}

func (w *sampleWalker) pointAt(s Sample) (float64, float64) {
	if s.Triangle != w.last {
		w.tri = triangleOf(w.shape, w.tris[s.Triangle])
		w.last = s.Triangle
	}
	return w.tri.PointAt(s.Bary())
}

func validateSamples(shape Shape, tris []Triangle, samples []Sample) error {
	if err := shape.Validate(); err != nil {
		return err
	}
	if err := ValidateTriangles(tris, shape.Len()); err != nil {
		return err
	}
	for i, s := range samples {
		if s.Triangle < 0 || s.Triangle >= len(tris) {
			return errors.Wrapf(ErrInvalidTriangulation,
				"sample %d references triangle %d of %d", i, s.Triangle, len(tris))
		}
		if !s.finite() {
			return errors.Wrapf(ErrInvalidModel, "sample %d has non finite barycentrics", i)
		}
	}
	return nil
}

// SampleCoordinates returns the interleaved cartesian position of every sample
// over the given shape.
func SampleCoordinates(shape Shape, tris []Triangle, samples []Sample) ([]float64, error) {
	if err := validateSamples(shape, tris, samples); err != nil {
		return nil, err
	}
	coords := make([]float64, 2*len(samples))
	w := newSampleWalker(shape, tris)
	for i, s := range samples {
		coords[2*i], coords[2*i+1] = w.pointAt(s)
	}
	return coords, nil
}

// WriteShapeImage scatters colors, one group of dst.Channels values per sample,
// into dst at the pixel containing each sample position over shape.
// Samples falling outside dst are skipped. If mask is not nil, it is flagged
// for every written pixel.
func WriteShapeImage(dst *Image, mask []bool, shape Shape, tris []Triangle, samples []Sample, colors []float64) error {
	if err := dst.validate(); err != nil {
		return err
	}
	if err := validateSamples(shape, tris, samples); err != nil {
		return err
	}
	ch := dst.Channels
	if len(colors) != len(samples)*ch {
		return errors.Wrapf(ErrDimensionMismatch, "%d colors for %d samples of %d channels",
			len(colors), len(samples), ch)
	}
	if mask != nil && len(mask) != dst.Width*dst.Height {
		return errors.Wrapf(ErrDimensionMismatch, "mask holds %d entries", len(mask))
	}

	w := newSampleWalker(shape, tris)
	for i, s := range samples {
		x, y := w.pointAt(s)
		px, py := int(math.Floor(x)), int(math.Floor(y))
		if !dst.Inside(px, py) {
			continue
		}
		copy(dst.Pixel(px, py), colors[i*ch:(i+1)*ch])
		if mask != nil {
			mask[py*dst.Width+px] = true
		}
	}
	return nil
}

// ReadShapeImage gathers a bilinearly interpolated color from src at every
// sample position over shape. The result holds src.Channels values per sample
// and reuses dst when it has the right length.
func ReadShapeImage(src *Image, shape Shape, tris []Triangle, samples []Sample, dst []float64) ([]float64, error) {
	if err := src.validate(); err != nil {
		return nil, err
	}
	if err := validateSamples(shape, tris, samples); err != nil {
		return nil, err
	}
	ch := src.Channels
	if len(dst) != len(samples)*ch {
		dst = make([]float64, len(samples)*ch)
	}

	w := newSampleWalker(shape, tris)
	for i, s := range samples {
		x, y := w.pointAt(s)
		src.Bilinear(x, y, dst[i*ch:(i+1)*ch])
	}
	return dst, nil
}
