package aam

import (
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/esimov/aam/utils"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Image is a dense floating point pixel grid. Pixels are stored row by row
// with their channels interleaved.
type Image struct {
	Width, Height, Channels int
	Pix                     []float64
}

// NewImage allocates a zero filled image.
func NewImage(width, height, channels int) *Image {
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]float64, width*height*channels),
	}
}

func (m *Image) offset(x, y int) int {
	return (y*m.Width + x) * m.Channels
}

// At returns the value of channel c at (x, y).
func (m *Image) At(x, y, c int) float64 {
	return m.Pix[m.offset(x, y)+c]
}

// Set updates the value of channel c at (x, y).
func (m *Image) Set(x, y, c int, v float64) {
	m.Pix[m.offset(x, y)+c] = v
}

// Pixel returns all channels of the pixel at (x, y). The slice aliases the image.
func (m *Image) Pixel(x, y int) []float64 {
	i := m.offset(x, y)
	return m.Pix[i : i+m.Channels]
}

// Inside reports whether (x, y) addresses a pixel of the image.
func (m *Image) Inside(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.Width && y < m.Height
}

// Clone returns a deep copy of the image.
func (m *Image) Clone() *Image {
	dst := NewImage(m.Width, m.Height, m.Channels)
	copy(dst.Pix, m.Pix)
	return dst
}

// Fill sets every channel of every pixel to v.
func (m *Image) Fill(v float64) {
	for i := range m.Pix {
		m.Pix[i] = v
	}
}

func (m *Image) validate() error {
	if m == nil || m.Width <= 0 || m.Height <= 0 || m.Channels <= 0 {
		return ErrInvalidDimensions
	}
	if len(m.Pix) != m.Width*m.Height*m.Channels {
		return errors.Wrapf(ErrInvalidDimensions, "buffer holds %d values, expected %d",
			len(m.Pix), m.Width*m.Height*m.Channels)
	}
	return nil
}

// NewImageFromImage converts img into a floating point image with the requested
// number of channels: 1 (luminance), 3 (RGB) or 4 (RGBA).
func NewImageFromImage(img image.Image, channels int) (*Image, error) {
	if channels != 1 && channels != 3 && channels != 4 {
		return nil, errors.Errorf("unsupported channel count %d", channels)
	}
	src := imgToNRGBA(img)
	width, height := src.Bounds().Dx(), src.Bounds().Dy()
	if width == 0 || height == 0 {
		return nil, ErrInvalidDimensions
	}
	if channels == 1 {
		return grayscale(src), nil
	}

	dst := NewImage(width, height, channels)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			si := src.PixOffset(x, y)
			px := dst.Pixel(x, y)
			for c := 0; c < channels; c++ {
				px[c] = float64(src.Pix[si+c])
			}
		}
	}
	return dst, nil
}

// NRGBA converts the image back to 8 bit, clamping values to [0, 255].
func (m *Image) NRGBA() *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			px := m.Pixel(x, y)
			di := dst.PixOffset(x, y)
			switch m.Channels {
			case 1, 2:
				v := toUint8(px[0])
				dst.Pix[di+0] = v
				dst.Pix[di+1] = v
				dst.Pix[di+2] = v
			default:
				dst.Pix[di+0] = toUint8(px[0])
				dst.Pix[di+1] = toUint8(px[1])
				dst.Pix[di+2] = toUint8(px[2])
			}
			if m.Channels == 4 {
				dst.Pix[di+3] = toUint8(px[3])
			} else {
				dst.Pix[di+3] = 0xff
			}
		}
	}
	return dst
}

func toUint8(v float64) uint8 {
	return uint8(utils.Clamp(math.Round(v), 0, 255))
}

// DecodeImage decodes an image, applying the EXIF orientation if present.
func DecodeImage(r io.Reader) (*image.NRGBA, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "could not decode the source image")
	}
	return imgToNRGBA(img), nil
}

// decodeImg opens and decodes an image file.
func decodeImg(src string) (*image.NRGBA, error) {
	ctype, err := utils.DetectContentType(src)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(ctype, "image") {
		return nil, errors.Errorf("%s is not an image file", src)
	}

	file, err := os.Open(src)
	if err != nil {
		return nil, errors.Wrap(err, "could not open the image file")
	}
	defer file.Close()

	return DecodeImage(file)
}

// encodeImg encodes an image to a destination of type io.Writer.
// Files are encoded by their extension, anything else as jpeg.
func encodeImg(w io.Writer, img image.Image) error {
	switch w := w.(type) {
	case *os.File:
		ext := strings.ToLower(filepath.Ext(w.Name()))
		switch ext {
		case "", ".jpg", ".jpeg":
			return jpeg.Encode(w, img, &jpeg.Options{Quality: 100})
		case ".png":
			return png.Encode(w, img)
		case ".bmp":
			return bmp.Encode(w, img)
		case ".gif":
			return gif.Encode(w, img, nil)
		case ".tif", ".tiff":
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		default:
			return errors.New("unsupported image format")
		}
	default:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 100})
	}
}

// imgToNRGBA converts any image type to *image.NRGBA with min-point at (0, 0).
func imgToNRGBA(img image.Image) *image.NRGBA {
	srcBounds := img.Bounds()
	if srcBounds.Min.X == 0 && srcBounds.Min.Y == 0 {
		if src0, ok := img.(*image.NRGBA); ok {
			return src0
		}
	}
	srcMinX := srcBounds.Min.X
	srcMinY := srcBounds.Min.Y

	dstBounds := srcBounds.Sub(srcBounds.Min)
	dstW := dstBounds.Dx()
	dstH := dstBounds.Dy()
	dst := image.NewNRGBA(dstBounds)

	switch src := img.(type) {
	case *image.NRGBA:
		rowSize := srcBounds.Dx() * 4
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			si := src.PixOffset(srcMinX, srcMinY+dstY)
			copy(dst.Pix[di:di+rowSize], src.Pix[si:si+rowSize])
		}
	case *image.YCbCr:
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			for dstX := 0; dstX < dstW; dstX++ {
				srcX := srcMinX + dstX
				srcY := srcMinY + dstY
				siy := src.YOffset(srcX, srcY)
				sic := src.COffset(srcX, srcY)
				r, g, b := color.YCbCrToRGB(src.Y[siy], src.Cb[sic], src.Cr[sic])
				dst.Pix[di+0] = r
				dst.Pix[di+1] = g
				dst.Pix[di+2] = b
				dst.Pix[di+3] = 0xff
				di += 4
			}
		}
	default:
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			for dstX := 0; dstX < dstW; dstX++ {
				c := color.NRGBAModel.Convert(img.At(srcMinX+dstX, srcMinY+dstY)).(color.NRGBA)
				dst.Pix[di+0] = c.R
				dst.Pix[di+1] = c.G
				dst.Pix[di+2] = c.B
				dst.Pix[di+3] = c.A
				di += 4
			}
		}
	}

	return dst
}
