package aam

type kernel [][]float64

var (
	kernelX = kernel{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}

	kernelY = kernel{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}
)

// sobelNorm scales the kernel response so that a unit ramp yields a unit derivative.
const sobelNorm = 1.0 / 8

// Sobel computes the horizontal and vertical derivatives of one channel of src.
// Borders are extended by reflection.
// See https://en.wikipedia.org/wiki/Sobel_operator
func Sobel(src *Image, channel int) (gx, gy *Image) {
	dx, dy := src.Width, src.Height
	gx = NewImage(dx, dy, 1)
	gy = NewImage(dx, dy, 1)

	for y := 0; y < dy; y++ {
		for x := 0; x < dx; x++ {
			var sumX, sumY float64
			for ky := 0; ky < 3; ky++ {
				sy := reflect101(y+ky-1, dy)
				for kx := 0; kx < 3; kx++ {
					sx := reflect101(x+kx-1, dx)
					v := src.At(sx, sy, channel)
					sumX += v * kernelX[ky][kx]
					sumY += v * kernelY[ky][kx]
				}
			}
			gx.Pix[y*dx+x] = sumX * sobelNorm
			gy.Pix[y*dx+x] = sumY * sobelNorm
		}
	}
	return gx, gy
}

// suppressInvalid zeroes every pixel of img whose 3x3 neighborhood contains a
// pixel not flagged in mask, so that kernel responses mixing synthesized and
// background values do not leak into the gradient.
func suppressInvalid(img *Image, mask []bool) {
	w, h := img.Width, img.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask[y*w+x] {
				continue
			}
			for ny := y - 1; ny <= y+1; ny++ {
				for nx := x - 1; nx <= x+1; nx++ {
					if !img.Inside(nx, ny) {
						continue
					}
					px := img.Pixel(nx, ny)
					for c := range px {
						px[c] = 0
					}
				}
			}
		}
	}
}
