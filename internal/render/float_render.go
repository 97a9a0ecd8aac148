package render

import (
	"math"

	"framestack/internal/container"
	"framestack/internal/geom"
	"framestack/internal/plane"
)

// Progress receives render progress. It may be nil.
type Progress interface {
	SetTotal(total int)
	SetCurrent(current int)
}

// FloatRender averages positioned images into one floating point image.
// Positions are rounded to whole output pixels.
type FloatRender struct {
	ScaleX float64
	ScaleY float64
}

// Render draws every image of src. Each output sample is the alpha-weighted
// mean of the images covering it; the output alpha is 1 where any image
// contributed and 0 elsewhere.
func (r FloatRender) Render(src container.Positioned, progress Progress) *plane.Image {
	sx, sy := r.ScaleX, r.ScaleY
	if sx <= 0 {
		sx = 1
	}
	if sy <= 0 {
		sy = 1
	}

	bounds := container.Bounds(src)
	if bounds.Empty() {
		return plane.NewImage(plane.New(0, 0), plane.New(0, 0))
	}
	width := int(math.Ceil(bounds.Width() * sx))
	height := int(math.Ceil(bounds.Height() * sy))

	planeCount := 0
	for i := 0; i < src.Count(); i++ {
		n := len(src.Image(i).Planes)
		if i == 0 || n < planeCount {
			planeCount = n
		}
	}

	sums := make([]*plane.Plane, planeCount)
	for p := range sums {
		sums[p] = plane.New(width, height)
	}
	weights := plane.New(width, height)

	if progress != nil {
		progress.SetTotal(src.Count())
	}
	for i := 0; i < src.Count(); i++ {
		img := src.Image(i)
		size := img.Size()
		origin := geom.Round(geom.Scale(src.Pos(i).Sub(bounds.Min), sx, sy))
		outW := int(math.Ceil(float64(size.Width) * sx))
		outH := int(math.Ceil(float64(size.Height) * sy))

		for oy := max(origin.Y, 0); oy < min(origin.Y+outH, height); oy++ {
			iy := min(int(float64(oy-origin.Y)/sy), size.Height-1)
			for ox := max(origin.X, 0); ox < min(origin.X+outW, width); ox++ {
				ix := min(int(float64(ox-origin.X)/sx), size.Width-1)
				w := 1.0
				if img.Alpha != nil {
					w = img.Alpha.At(ix, iy)
				}
				if w <= 0 {
					continue
				}
				for p := range sums {
					sums[p].Set(ox, oy, sums[p].At(ox, oy)+w*img.Planes[p].At(ix, iy))
				}
				weights.Set(ox, oy, weights.At(ox, oy)+w)
			}
		}
		if progress != nil {
			progress.SetCurrent(i + 1)
		}
	}

	alpha := plane.New(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			w := weights.At(x, y)
			if w <= 0 {
				continue
			}
			alpha.Set(x, y, 1)
			for _, s := range sums {
				s.Set(x, y, s.At(x, y)/w)
			}
		}
	}
	return plane.NewImage(alpha, sums...)
}
