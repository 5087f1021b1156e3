package aam

import (
	"math"

	"github.com/pkg/errors"
)

type edge struct{ a, b int }

type circumTriangle struct {
	v      Triangle
	cx, cy float64
	r2     float64
}

func newCircumTriangle(pts [][2]float64, a, b, c int) (circumTriangle, bool) {
	ax, ay := pts[a][0], pts[a][1]
	bx, by := pts[b][0], pts[b][1]
	cx, cy := pts[c][0], pts[c][1]

	d := 2 * (ax*(by-cy) + bx*(cy-ay) + cx*(ay-by))
	if math.Abs(d) < 1e-12 {
		return circumTriangle{}, false
	}
	a2, b2, c2 := ax*ax+ay*ay, bx*bx+by*by, cx*cx+cy*cy
	ux := (a2*(by-cy) + b2*(cy-ay) + c2*(ay-by)) / d
	uy := (a2*(cx-bx) + b2*(ax-cx) + c2*(bx-ax)) / d

	t := circumTriangle{v: Triangle{a, b, c}, cx: ux, cy: uy}
	t.r2 = (ax-ux)*(ax-ux) + (ay-uy)*(ay-uy)
	return t, true
}

func (t circumTriangle) contains(x, y float64) bool {
	dx, dy := x-t.cx, y-t.cy
	return dx*dx+dy*dy < t.r2*(1+1e-12)
}

// Triangulate computes the Delaunay triangulation of the shape's points with the
// Bowyer-Watson algorithm. Triangles are returned counter clockwise in a y-up
// frame and only reference points of the shape.
func Triangulate(s Shape) ([]Triangle, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	n := s.Len()
	if n < 3 {
		return nil, errors.Wrapf(ErrInvalidShape, "%d points cannot be triangulated", n)
	}

	minX, minY, maxX, maxY := s.Bounds()
	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		return nil, errors.Wrap(ErrDegenerateTriangle, "all points coincide")
	}
	midX, midY := (minX+maxX)/2, (minY+maxY)/2

	// The super triangle occupies the last three slots.
	pts := make([][2]float64, n, n+3)
	for i := 0; i < n; i++ {
		pts[i][0], pts[i][1] = s.Point(i)
	}
	pts = append(pts,
		[2]float64{midX - 20*span, midY - span},
		[2]float64{midX, midY + 20*span},
		[2]float64{midX + 20*span, midY - span},
	)
	super, _ := newCircumTriangle(pts, n, n+1, n+2)
	tris := []circumTriangle{super}

	for i := 0; i < n; i++ {
		x, y := pts[i][0], pts[i][1]

		var polygon []edge
		kept := tris[:0:0]
		for _, t := range tris {
			if !t.contains(x, y) {
				kept = append(kept, t)
				continue
			}
			polygon = append(polygon,
				edge{t.v[0], t.v[1]}, edge{t.v[1], t.v[2]}, edge{t.v[2], t.v[0]})
		}

		// Edges shared by two removed triangles are interior to the cavity.
		for j, e := range polygon {
			shared := false
			for k, f := range polygon {
				if j != k && ((e.a == f.a && e.b == f.b) || (e.a == f.b && e.b == f.a)) {
					shared = true
					break
				}
			}
			if shared {
				continue
			}
			if t, ok := newCircumTriangle(pts, e.a, e.b, i); ok {
				kept = append(kept, t)
			}
		}
		tris = kept
	}

	var result []Triangle
	for _, t := range tris {
		if t.v[0] >= n || t.v[1] >= n || t.v[2] >= n {
			continue
		}
		result = append(result, orientCCW(pts, t.v))
	}
	if len(result) == 0 {
		return nil, errors.Wrap(ErrDegenerateTriangle, "points are collinear")
	}
	return result, nil
}

func orientCCW(pts [][2]float64, t Triangle) Triangle {
	a, b, c := pts[t[0]], pts[t[1]], pts[t[2]]
	cross := (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
	if cross < 0 {
		t[1], t[2] = t[2], t[1]
	}
	return t
}
