package aam

import "image"

// grayscale converts the image to a single channel luminance image.
func grayscale(src *image.NRGBA) *Image {
	dx, dy := src.Bounds().Dx(), src.Bounds().Dy()
	dst := NewImage(dx, dy, 1)

	for y := 0; y < dy; y++ {
		for x := 0; x < dx; x++ {
			i := src.PixOffset(x, y)
			r, g, b := src.Pix[i], src.Pix[i+1], src.Pix[i+2]
			dst.Pix[y*dx+x] = 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
		}
	}
	return dst
}
