package container

import (
	"framestack/internal/geom"
	"framestack/internal/plane"
)

// Positioned is an indexed set of images placed in one coordinate space.
type Positioned interface {
	Count() int
	Image(i int) *plane.Image
	Pos(i int) geom.Point[float64]
}

// RenderGroup is a read-only view over positioned images, backed either by
// an aligner's working set or by a container. It never copies image data
// and is only valid while its source is.
type RenderGroup struct {
	aligner   Positioned
	container *ImageContainer
	positions []Locator
}

// FromAligner views the working set of an aligner.
func FromAligner(src Positioned) RenderGroup {
	return RenderGroup{aligner: src}
}

// FromContainer views every item of c in group order.
func FromContainer(c *ImageContainer) RenderGroup {
	return RenderGroup{container: c, positions: c.Locators()}
}

func (g RenderGroup) Count() int {
	if g.container != nil {
		return len(g.positions)
	}
	if g.aligner == nil {
		return 0
	}
	return g.aligner.Count()
}

func (g RenderGroup) Image(i int) *plane.Image {
	if g.container != nil {
		return g.container.Item(g.positions[i]).Image
	}
	return g.aligner.Image(i)
}

// Plane returns plane p of image i.
func (g RenderGroup) Plane(i, p int) *plane.Plane {
	return g.Image(i).Plane(p)
}

func (g RenderGroup) Pos(i int) geom.Point[float64] {
	if g.container != nil {
		return g.container.Pos(g.positions[i])
	}
	return g.aligner.Pos(i)
}

// MinPoint returns the smallest position, or the origin when empty.
func (g RenderGroup) MinPoint() geom.Point[float64] { return MinPoint(g) }

// Size returns the bounding box of all images.
func (g RenderGroup) Size() geom.Rect { return Bounds(g) }

// MinPoint returns the component-wise smallest position in src, or the
// origin when src is empty.
func MinPoint(src Positioned) geom.Point[float64] {
	n := src.Count()
	if n == 0 {
		return geom.Point[float64]{}
	}
	p := src.Pos(0)
	for i := 1; i < n; i++ {
		p = p.Min(src.Pos(i))
	}
	return p
}

// Bounds returns the rectangle covered by every image in src.
func Bounds(src Positioned) geom.Rect {
	var r geom.Rect
	for i := 0; i < src.Count(); i++ {
		size := src.Image(i).Size()
		pos := src.Pos(i)
		r = r.Union(geom.Rect{
			Min: pos,
			Max: pos.Add(geom.Pt(float64(size.Width), float64(size.Height))),
		})
	}
	return r
}
