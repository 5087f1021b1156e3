package aam

import (
	"image"
	"image/color"
	"testing"
)

const ImgWidth = 10
const ImgHeight = 10

func TestGrayscale(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, ImgWidth, ImgHeight))
	for i := 0; i < img.Bounds().Dx(); i++ {
		for j := 0; j < img.Bounds().Dy(); j++ {
			img.Set(i, j, color.NRGBA{177, 177, 177, 255})
		}
	}
	img.Set(3, 4, color.NRGBA{0, 0, 255, 255})

	gray := grayscale(img)
	if gray.Channels != 1 || gray.Width != ImgWidth || gray.Height != ImgHeight {
		t.Fatalf("unexpected grayscale layout %dx%dx%d", gray.Width, gray.Height, gray.Channels)
	}
	for y := 0; y < ImgHeight; y++ {
		for x := 0; x < ImgWidth; x++ {
			want := 177.0
			if x == 3 && y == 4 {
				want = 0.114 * 255
			}
			if got := gray.At(x, y, 0); got < want-1e-9 || got > want+1e-9 {
				t.Errorf("pixel (%d, %d): expected %v, got %v", x, y, want, got)
			}
		}
	}
}
