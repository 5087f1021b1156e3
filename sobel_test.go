package aam

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSobel_Ramp(t *testing.T) {
	img := NewImage(6, 6, 2)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			img.Set(x, y, 0, float64(2*x+3*y))
			img.Set(x, y, 1, 7)
		}
	}

	gx, gy := Sobel(img, 0)
	assert.Equal(t, 1, gx.Channels)
	for y := 1; y < img.Height-1; y++ {
		for x := 1; x < img.Width-1; x++ {
			assert.InDelta(t, 2, gx.At(x, y, 0), 1e-12)
			assert.InDelta(t, 3, gy.At(x, y, 0), 1e-12)
		}
	}
	// Reflected borders see a symmetric neighborhood.
	assert.InDelta(t, 0, gx.At(0, 2, 0), 1e-12)
	assert.InDelta(t, 0, gy.At(2, 0, 0), 1e-12)

	gx, gy = Sobel(img, 1)
	for _, v := range gx.Pix {
		if v != 0 {
			t.Errorf("Flat channel should have no horizontal gradient, got %v", v)
		}
	}
	for _, v := range gy.Pix {
		if v != 0 {
			t.Errorf("Flat channel should have no vertical gradient, got %v", v)
		}
	}
}

func TestSobel_SuppressInvalid(t *testing.T) {
	img := NewImage(5, 5, 1)
	img.Fill(1)
	mask := make([]bool, 25)
	for i := range mask {
		mask[i] = true
	}
	mask[2*5+2] = false

	suppressInvalid(img, mask)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			want := 1.0
			if x >= 1 && x <= 3 && y >= 1 && y <= 3 {
				want = 0
			}
			if got := img.At(x, y, 0); got != want {
				t.Errorf("pixel (%d,%d): expected %v, got %v", x, y, want, got)
			}
		}
	}
}
