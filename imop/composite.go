package imop

import (
	"image"
	"math"

	"github.com/esimov/aam/utils"
	"github.com/pkg/errors"
)

// Porter-Duff composition operations.
const (
	Clear   = "clear"
	Copy    = "copy"
	Dst     = "dst"
	SrcOver = "src_over"
	DstOver = "dst_over"
	SrcIn   = "src_in"
	DstIn   = "dst_in"
	SrcOut  = "src_out"
	DstOut  = "dst_out"
	SrcAtop = "src_atop"
	DstAtop = "dst_atop"
	Xor     = "xor"
)

var compositeOps = []string{Clear, Copy, Dst, SrcOver, DstOver, SrcIn, DstIn, SrcOut, DstOut, SrcAtop, DstAtop, Xor}

// Bitmap is the destination of a composition.
type Bitmap struct {
	Img *image.NRGBA
}

// NewBitmap allocates a transparent bitmap.
func NewBitmap(rect image.Rectangle) *Bitmap {
	return &Bitmap{
		Img: image.NewNRGBA(rect),
	}
}

// Composite holds the active composition operation.
type Composite struct {
	current string
}

// InitOp returns a Composite using source-over.
func InitOp() *Composite {
	return &Composite{current: SrcOver}
}

// Set activates one of the supported composition operations.
func (op *Composite) Set(cop string) error {
	if !utils.Contains(compositeOps, cop) {
		return errors.Errorf("unsupported composite operation: %q", cop)
	}
	op.current = cop
	return nil
}

// Get returns the active composition operation.
func (op *Composite) Get() string {
	return op.current
}

// factors returns the Porter-Duff weights of source and backdrop for the
// active operation, given both alphas.
func (op *Composite) factors(as, ab float64) (fs, fb float64) {
	switch op.current {
	case Clear:
		return 0, 0
	case Copy:
		return 1, 0
	case Dst:
		return 0, 1
	case SrcOver:
		return 1, 1 - as
	case DstOver:
		return 1 - ab, 1
	case SrcIn:
		return ab, 0
	case DstIn:
		return 0, as
	case SrcOut:
		return 1 - ab, 0
	case DstOut:
		return 0, 1 - as
	case SrcAtop:
		return ab, 1 - as
	case DstAtop:
		return 1 - ab, as
	case Xor:
		return 1 - ab, 1 - as
	}
	return 1, 1 - as
}

// Draw composes src over dst into bitmap. If blend is not nil the source
// color is first mixed with the backdrop using the blend mode, weighted by the
// backdrop alpha. All three images must share the same bounds.
func (op *Composite) Draw(bitmap *Bitmap, src, dst *image.NRGBA, blend *Blend) {
	bounds := src.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			si := src.PixOffset(x, y)
			di := dst.PixOffset(x, y)
			oi := bitmap.Img.PixOffset(x, y)

			as := float64(src.Pix[si+3]) / 255
			ab := float64(dst.Pix[di+3]) / 255
			fs, fb := op.factors(as, ab)

			ao := as*fs + ab*fb
			for c := 0; c < 3; c++ {
				cs := float64(src.Pix[si+c]) / 255
				cb := float64(dst.Pix[di+c]) / 255
				if blend != nil {
					cs = (1-ab)*cs + ab*blend.mix(cs, cb)
				}
				// Premultiplied result, divided back by the output alpha.
				co := as*fs*cs + ab*fb*cb
				if ao > 0 {
					co /= ao
				}
				bitmap.Img.Pix[oi+c] = toUint8(co)
			}
			bitmap.Img.Pix[oi+3] = toUint8(ao)
		}
	}
}

func toUint8(v float64) uint8 {
	return uint8(utils.Clamp(math.Round(v*255), 0, 255))
}
