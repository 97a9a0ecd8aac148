package aligner

import (
	"fmt"
	"log/slog"
	"strings"

	"framestack/internal/comparator"
	"framestack/internal/container"
	"framestack/internal/geom"
	"framestack/internal/plane"
)

// Method restricts the axes an image may move along.
type Method int

const (
	MethodBoth Method = iota
	MethodVertical
	MethodHorizontal
)

func (m Method) String() string {
	switch m {
	case MethodVertical:
		return "vertical"
	case MethodHorizontal:
		return "horizontal"
	default:
		return "both"
	}
}

// ParseMethod maps a config or flag value to a Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both":
		return MethodBoth, nil
	case "vertical", "ver":
		return MethodVertical, nil
	case "horizontal", "hor":
		return MethodHorizontal, nil
	default:
		return MethodBoth, fmt.Errorf("unknown alignment method: %s", s)
	}
}

// Movement returns the per-axis movement fraction allowed by the method.
func (m Method) Movement(movement float64) geom.Point[float64] {
	switch m {
	case MethodVertical:
		return geom.Pt(0, movement)
	case MethodHorizontal:
		return geom.Pt(movement, 0)
	default:
		return geom.Pt(movement, movement)
	}
}

// Options tunes the offset search.
type Options struct {
	Method         Method
	Scale          float64 // planes are resampled by this factor before comparing
	Movement       float64 // fraction of the image size an offset may span
	MergeThreshold float64 // stop raising the level once the diff is below this
	MaxLevel       int
	Fast           bool
	Workers        int
	Logger         *slog.Logger
}

// DefaultOptions matches the defaults of the config package.
func DefaultOptions() Options {
	return Options{
		Method:         MethodBoth,
		Scale:          1,
		Movement:       0.75,
		MergeThreshold: 24.0 / 256.0,
		MaxLevel:       6,
	}
}

func (o Options) withDefaults() Options {
	if o.Scale <= 0 {
		o.Scale = 1
	}
	if o.MaxLevel < 1 {
		o.MaxLevel = 1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// ImageOffset is the displacement of one image relative to another, in
// unscaled pixels, with the difference score it was found at.
type ImageOffset struct {
	Distance geom.Point[float64]
	Error    float64
}

// Base is the working set shared by aligners: the images of a container
// that are being moved, plus the search options.
type Base struct {
	container *container.ImageContainer
	opts      Options
	items     []container.Locator
}

// NewBase prepares an aligner over c. Call AddImages before aligning.
func NewBase(c *container.ImageContainer, opts Options) *Base {
	return &Base{container: c, opts: opts.withDefaults()}
}

// AddImages loads every image of the container into the working set.
func (b *Base) AddImages() {
	b.items = b.container.Locators()
}

func (b *Base) Count() int                    { return len(b.items) }
func (b *Base) Image(i int) *plane.Image      { return b.container.Item(b.items[i]).Image }
func (b *Base) Pos(i int) geom.Point[float64] { return b.container.Pos(b.items[i]) }

// SetPos moves image i of the working set.
func (b *Base) SetPos(i int, p geom.Point[float64]) { b.container.SetPos(b.items[i], p) }

// Options returns the effective options.
func (b *Base) Options() Options { return b.opts }

// FindOffset returns where img2 should be placed relative to img1. The
// search level is raised until the difference drops below the merge
// threshold; every level reuses the same comparison and therefore its cache.
func (b *Base) FindOffset(img1, img2 *plane.Image) ImageOffset {
	scale := b.opts.Scale
	p1 := img1.Plane(0).ScaleBilinear(scale, scale)
	p2 := img2.Plane(0).ScaleBilinear(scale, scale)
	a1 := scaleMask(img1.Alpha, scale)
	a2 := scaleMask(img2.Alpha, scale)

	gradient := comparator.NewGradientPlane(p1, p2, a1, a2, b.opts.Fast,
		comparator.WithWorkers(b.opts.Workers),
		comparator.WithLogger(b.opts.Logger),
	)

	movement := b.opts.Method.Movement(b.opts.Movement)
	var res comparator.MergeResult
	for level := 1; level <= b.opts.MaxLevel; level++ {
		area := comparator.NewGradientCheck(p1.Size(), movement.X, movement.Y, level)
		res = gradient.FindMinimum(area)
		if res.Diff < b.opts.MergeThreshold {
			break
		}
	}

	b.opts.Logger.Debug("offset found",
		"x", res.Offset.X,
		"y", res.Offset.Y,
		"diff", res.Diff,
		"cached", gradient.Cache().Len(),
	)
	return ImageOffset{
		Distance: geom.Scale(res.Offset.ToFloat(), 1/scale, 1/scale),
		Error:    res.Diff,
	}
}

func scaleMask(p *plane.Plane, scale float64) *plane.Plane {
	if p == nil {
		return nil
	}
	return p.ScaleBilinear(scale, scale)
}
