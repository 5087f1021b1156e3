package aam

import "math"

// reflect101 mirrors an out of range index back into [0, n) without repeating
// the border pixel: -1 maps to 1, n maps to n-2.
func reflect101(p, n int) int {
	if n == 1 {
		return 0
	}
	period := 2*n - 2
	p %= period
	if p < 0 {
		p += period
	}
	if p >= n {
		p = period - p
	}
	return p
}

// foldReflected moves a continuous coordinate into [0, 2n-2), the period of the
// reflect-101 extension, so that huge coordinates map to small indices.
func foldReflected(v float64, n int) float64 {
	if n == 1 {
		return 0
	}
	period := float64(2*n - 2)
	v = math.Mod(v, period)
	if v < 0 {
		v += period
	}
	return v
}

// Bilinear samples all channels at the continuous position (x, y), where pixel
// centers are located at integer coordinates plus one half. Reads beyond the
// border are reflected. Non finite positions yield NaN. The result is written
// to dst, allocated if nil.
func (m *Image) Bilinear(x, y float64, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, m.Channels)
	}
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		for c := range dst[:m.Channels] {
			dst[c] = math.NaN()
		}
		return dst
	}
	x = foldReflected(x-0.5, m.Width)
	y = foldReflected(y-0.5, m.Height)

	fx, fy := math.Floor(x), math.Floor(y)
	ix, iy := int(fx), int(fy)
	a, b := x-fx, y-fy

	x0 := reflect101(ix, m.Width)
	x1 := reflect101(ix+1, m.Width)
	y0 := reflect101(iy, m.Height)
	y1 := reflect101(iy+1, m.Height)

	p00 := m.Pixel(x0, y0)
	p10 := m.Pixel(x1, y0)
	p01 := m.Pixel(x0, y1)
	p11 := m.Pixel(x1, y1)

	for c := 0; c < m.Channels; c++ {
		dst[c] = (1-b)*((1-a)*p00[c]+a*p10[c]) + b*((1-a)*p01[c]+a*p11[c])
	}
	return dst
}
