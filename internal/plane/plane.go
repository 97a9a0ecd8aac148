package plane

import (
	"math"

	"framestack/internal/geom"
)

// Plane is a single channel of float samples, nominally in [0, 1].
type Plane struct {
	width  int
	height int
	data   []float64
}

// New allocates a zeroed plane.
func New(width, height int) *Plane {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Plane{width: width, height: height, data: make([]float64, width*height)}
}

// Filled allocates a plane with every sample set to v.
func Filled(width, height int, v float64) *Plane {
	p := New(width, height)
	p.Fill(v)
	return p
}

// FromFunc builds a plane by evaluating f at every pixel.
func FromFunc(width, height int, f func(x, y int) float64) *Plane {
	p := New(width, height)
	for y := 0; y < height; y++ {
		row := p.Row(y)
		for x := range row {
			row[x] = f(x, y)
		}
	}
	return p
}

func (p *Plane) Width() int  { return p.width }
func (p *Plane) Height() int { return p.height }

// Size returns the plane dimensions.
func (p *Plane) Size() geom.Size { return geom.Size{Width: p.width, Height: p.height} }

// Valid reports whether the plane holds any pixels.
func (p *Plane) Valid() bool { return p != nil && p.width > 0 && p.height > 0 }

func (p *Plane) At(x, y int) float64     { return p.data[y*p.width+x] }
func (p *Plane) Set(x, y int, v float64) { p.data[y*p.width+x] = v }

// Row returns the backing slice of row y.
func (p *Plane) Row(y int) []float64 {
	return p.data[y*p.width : (y+1)*p.width]
}

// Fill sets every sample to v.
func (p *Plane) Fill(v float64) {
	for i := range p.data {
		p.data[i] = v
	}
}

// Clone returns a deep copy.
func (p *Plane) Clone() *Plane {
	c := &Plane{width: p.width, height: p.height, data: make([]float64, len(p.data))}
	copy(c.data, p.data)
	return c
}

// ScaleBilinear resamples the plane by the given factors.
func (p *Plane) ScaleBilinear(sx, sy float64) *Plane {
	if sx == 1 && sy == 1 {
		return p
	}
	w := int(math.Round(float64(p.width) * sx))
	h := int(math.Round(float64(p.height) * sy))
	out := New(w, h)
	if !p.Valid() {
		return out
	}
	for y := 0; y < h; y++ {
		fy := clamp((float64(y)+0.5)/sy-0.5, 0, float64(p.height-1))
		y0 := int(fy)
		y1 := min(y0+1, p.height-1)
		ty := fy - float64(y0)
		row := out.Row(y)
		for x := range row {
			fx := clamp((float64(x)+0.5)/sx-0.5, 0, float64(p.width-1))
			x0 := int(fx)
			x1 := min(x0+1, p.width-1)
			tx := fx - float64(x0)
			top := p.At(x0, y0)*(1-tx) + p.At(x1, y0)*tx
			bottom := p.At(x0, y1)*(1-tx) + p.At(x1, y1)*tx
			row[x] = top*(1-ty) + bottom*ty
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Overlap returns the top-left corners in a and b of the region where b,
// placed at offset (x, y) relative to a, overlaps a, together with the
// overlap size. Width or height is zero when nothing overlaps.
func Overlap(a, b geom.Size, x, y int) (aOrigin, bOrigin geom.Point[int], size geom.Size) {
	aOrigin = geom.Pt(max(x, 0), max(y, 0))
	bOrigin = geom.Pt(max(-x, 0), max(-y, 0))
	size = geom.Size{
		Width:  max(min(a.Width-aOrigin.X, b.Width-bOrigin.X), 0),
		Height: max(min(a.Height-aOrigin.Y, b.Height-bOrigin.Y), 0),
	}
	return aOrigin, bOrigin, size
}

// DiffAlpha compares b placed at (x, y) relative to a and returns the mean
// absolute difference over the overlap, weighted by both alpha masks. Either
// mask may be nil. Only every int(precision)-th pixel is sampled; fast mode
// additionally skips every other sample row. Lower is better; when nothing
// overlaps the result is math.MaxFloat64.
func DiffAlpha(a, b, alphaA, alphaB *Plane, x, y int, precision float64, fast bool) float64 {
	aOrigin, bOrigin, size := Overlap(a.Size(), b.Size(), x, y)
	if size.Width == 0 || size.Height == 0 {
		return math.MaxFloat64
	}

	step := max(int(precision), 1)
	rowStep := step
	if fast {
		rowStep *= 2
	}

	var sum, weight float64
	for iy := 0; iy < size.Height; iy += rowStep {
		ay, by := aOrigin.Y+iy, bOrigin.Y+iy
		rowA, rowB := a.Row(ay), b.Row(by)
		for ix := 0; ix < size.Width; ix += step {
			ax, bx := aOrigin.X+ix, bOrigin.X+ix
			w := 1.0
			if alphaA != nil {
				w *= alphaA.At(ax, ay)
			}
			if alphaB != nil {
				w *= alphaB.At(bx, by)
			}
			if w <= 0 {
				continue
			}
			sum += w * math.Abs(rowA[ax]-rowB[bx])
			weight += w
		}
	}
	if weight == 0 {
		return math.MaxFloat64
	}
	return sum / weight
}
