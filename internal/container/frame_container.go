package container

import (
	"framestack/internal/geom"
	"framestack/internal/plane"
)

// FrameContainer is the view of one frame's stills inside a container.
// Moving it moves the stills in the backing container.
type FrameContainer struct {
	container *ImageContainer
	frame     int
	items     []Locator
}

// NewFrameContainer collects the stills of frame from c.
func NewFrameContainer(c *ImageContainer, frame int) *FrameContainer {
	fc := &FrameContainer{container: c, frame: frame}
	for _, loc := range c.Locators() {
		if c.Item(loc).Frame == frame {
			fc.items = append(fc.items, loc)
		}
	}
	return fc
}

// Frame returns the frame number.
func (f *FrameContainer) Frame() int { return f.frame }

func (f *FrameContainer) Count() int               { return len(f.items) }
func (f *FrameContainer) Image(i int) *plane.Image { return f.container.Item(f.items[i]).Image }

func (f *FrameContainer) Pos(i int) geom.Point[float64] {
	return f.container.Pos(f.items[i])
}

// MinPoint returns the smallest still position of the frame.
func (f *FrameContainer) MinPoint() geom.Point[float64] { return MinPoint(f) }

// OffsetAll moves every still of the frame by delta.
func (f *FrameContainer) OffsetAll(delta geom.Point[float64]) {
	for _, loc := range f.items {
		f.container.SetPos(loc, f.container.Pos(loc).Add(delta))
	}
}
