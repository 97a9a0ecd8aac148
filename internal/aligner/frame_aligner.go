package aligner

import (
	"context"
	"fmt"

	"framestack/internal/container"
	"framestack/internal/geom"
	"framestack/internal/render"
)

// Driver aligns the images of a container and reports where each one ended
// up, indexed in container order.
type Driver interface {
	AddImages()
	Align(ctx context.Context, w Watcher) error
	Pos(i int) geom.Point[float64]
}

// DriverFactory builds the driver used to align frame composites.
type DriverFactory func(c *container.ImageContainer, opts Options) Driver

// DefaultDriver aligns composites with a RecursiveAligner.
func DefaultDriver(c *container.ImageContainer, opts Options) Driver {
	return NewRecursiveAligner(c, opts)
}

// FrameAligner aligns whole frames against each other. The stills of a frame
// keep their relative placement and are moved as one rigid block.
type FrameAligner struct {
	container *container.ImageContainer
	opts      Options
	newDriver DriverFactory
}

// NewFrameAligner returns a frame aligner over c. A nil factory selects
// DefaultDriver.
func NewFrameAligner(c *container.ImageContainer, opts Options, factory DriverFactory) *FrameAligner {
	if factory == nil {
		factory = DefaultDriver
	}
	return &FrameAligner{container: c, opts: opts.withDefaults(), newDriver: factory}
}

// Align renders one composite per frame, aligns the composites, and shifts
// the stills of every frame so the frame takes its composite's place. Stills
// without a frame are left where they are.
func (f *FrameAligner) Align(ctx context.Context, w Watcher) error {
	frames := f.container.Frames()
	if len(frames) == 0 {
		return nil
	}
	base := f.container.MinPoint()
	log := f.opts.Logger

	composites := container.New()
	if w != nil {
		w.SetTotal(len(frames))
	}
	for i, frame := range frames {
		if err := checkCancel(ctx, w); err != nil {
			return err
		}
		current := container.NewFrameContainer(f.container, frame)
		composites.AddImage(render.FloatRender{ScaleX: 1, ScaleY: 1}.Render(current, nil), container.NoFrame)
		log.Debug("frame composite rendered", "frame", frame, "stills", current.Count())
		if w != nil {
			w.SetCurrent(i + 1)
		}
	}

	driver := f.newDriver(composites, f.opts)
	driver.AddImages()
	if err := driver.Align(ctx, w); err != nil {
		return fmt.Errorf("align frame composites: %w", err)
	}

	positions := make([]geom.Point[float64], len(frames))
	for i := range frames {
		positions[i] = driver.Pos(i)
	}
	compositesMin := minOf(positions)

	for i, frame := range frames {
		current := container.NewFrameContainer(f.container, frame)
		aligned := base.Sub(current.MinPoint())
		delta := aligned.Add(positions[i].Sub(compositesMin))
		current.OffsetAll(delta)
		log.Debug("frame moved", "frame", frame, "dx", delta.X, "dy", delta.Y)
	}
	return nil
}

func minOf(points []geom.Point[float64]) geom.Point[float64] {
	if len(points) == 0 {
		return geom.Point[float64]{}
	}
	p := points[0]
	for _, q := range points[1:] {
		p = p.Min(q)
	}
	return p
}
