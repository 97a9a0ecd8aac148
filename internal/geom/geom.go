package geom

import "math"

// Number is the set of coordinate types used for positions and offsets.
type Number interface {
	~int | ~float64
}

// Point is a 2D coordinate or displacement.
type Point[T Number] struct {
	X T `json:"x"`
	Y T `json:"y"`
}

// Pt is shorthand for Point{x, y}.
func Pt[T Number](x, y T) Point[T] {
	return Point[T]{X: x, Y: y}
}

func (p Point[T]) Add(o Point[T]) Point[T] { return Point[T]{p.X + o.X, p.Y + o.Y} }
func (p Point[T]) Sub(o Point[T]) Point[T] { return Point[T]{p.X - o.X, p.Y - o.Y} }

// Min returns the component-wise minimum.
func (p Point[T]) Min(o Point[T]) Point[T] {
	return Point[T]{min(p.X, o.X), min(p.Y, o.Y)}
}

// Max returns the component-wise maximum.
func (p Point[T]) Max(o Point[T]) Point[T] {
	return Point[T]{max(p.X, o.X), max(p.Y, o.Y)}
}

// ToFloat converts to a float64 point.
func (p Point[T]) ToFloat() Point[float64] {
	return Point[float64]{float64(p.X), float64(p.Y)}
}

// Scale multiplies each component by its own factor.
func Scale(p Point[float64], sx, sy float64) Point[float64] {
	return Point[float64]{p.X * sx, p.Y * sy}
}

// Round rounds each component half away from zero.
func Round(p Point[float64]) Point[int] {
	return Point[int]{int(math.Round(p.X)), int(math.Round(p.Y))}
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect is an axis-aligned rectangle spanning [Min, Max).
type Rect struct {
	Min Point[float64] `json:"min"`
	Max Point[float64] `json:"max"`
}

func (r Rect) Width() float64  { return r.Max.X - r.Min.X }
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Empty reports whether the rectangle covers no area.
func (r Rect) Empty() bool { return r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y }

// Union returns the smallest rectangle containing both r and o. An empty
// receiver is ignored.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	return Rect{Min: r.Min.Min(o.Min), Max: r.Max.Max(o.Max)}
}
