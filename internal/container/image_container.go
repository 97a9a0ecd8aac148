package container

import (
	"framestack/internal/geom"
	"framestack/internal/plane"
)

// NoFrame marks an item that does not belong to any frame.
const NoFrame = -1

// ImageItem is one positioned source image.
type ImageItem struct {
	Image  *plane.Image
	Offset geom.Point[float64]
	Frame  int
	Name   string
}

// ImageGroup is a named list of items.
type ImageGroup struct {
	Name  string
	Items []ImageItem
}

// Locator addresses an item inside a container.
type Locator struct {
	Group int
	Index int
}

// ImageContainer owns groups of positioned images.
type ImageContainer struct {
	groups []ImageGroup
}

// New returns an empty container.
func New() *ImageContainer {
	return &ImageContainer{}
}

// AddGroup appends an empty group and returns its index.
func (c *ImageContainer) AddGroup(name string) int {
	c.groups = append(c.groups, ImageGroup{Name: name})
	return len(c.groups) - 1
}

// AddImage appends img at the origin to the last group, creating a default
// group when the container is empty.
func (c *ImageContainer) AddImage(img *plane.Image, frame int) Locator {
	return c.AddItem(ImageItem{Image: img, Frame: frame})
}

// AddItem appends item to the last group.
func (c *ImageContainer) AddItem(item ImageItem) Locator {
	if len(c.groups) == 0 {
		c.AddGroup("default")
	}
	g := len(c.groups) - 1
	c.groups[g].Items = append(c.groups[g].Items, item)
	return Locator{Group: g, Index: len(c.groups[g].Items) - 1}
}

// Groups returns the groups. The slice must not be modified.
func (c *ImageContainer) Groups() []ImageGroup { return c.groups }

// Count returns the number of items across all groups.
func (c *ImageContainer) Count() int {
	n := 0
	for _, g := range c.groups {
		n += len(g.Items)
	}
	return n
}

// Locators lists every item in group order.
func (c *ImageContainer) Locators() []Locator {
	locs := make([]Locator, 0, c.Count())
	for gi, g := range c.groups {
		for ii := range g.Items {
			locs = append(locs, Locator{Group: gi, Index: ii})
		}
	}
	return locs
}

// Item returns the item at loc.
func (c *ImageContainer) Item(loc Locator) *ImageItem {
	return &c.groups[loc.Group].Items[loc.Index]
}

// Pos returns the position of the item at loc.
func (c *ImageContainer) Pos(loc Locator) geom.Point[float64] {
	return c.Item(loc).Offset
}

// SetPos moves the item at loc.
func (c *ImageContainer) SetPos(loc Locator, p geom.Point[float64]) {
	c.Item(loc).Offset = p
}

// At returns the i-th item in Locators order.
func (c *ImageContainer) At(i int) Locator {
	for gi, g := range c.groups {
		if i < len(g.Items) {
			return Locator{Group: gi, Index: i}
		}
		i -= len(g.Items)
	}
	panic("container: index out of range")
}

// Frames returns the distinct frame numbers in order of first appearance.
// Items without a frame are not reported.
func (c *ImageContainer) Frames() []int {
	var frames []int
	seen := make(map[int]bool)
	for _, g := range c.groups {
		for _, item := range g.Items {
			if item.Frame == NoFrame || seen[item.Frame] {
				continue
			}
			seen[item.Frame] = true
			frames = append(frames, item.Frame)
		}
	}
	return frames
}

// MinPoint returns the smallest position across all items.
func (c *ImageContainer) MinPoint() geom.Point[float64] {
	return FromContainer(c).MinPoint()
}
