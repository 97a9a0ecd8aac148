package plane

import "framestack/internal/geom"

// Image is a set of equally sized planes with an optional alpha mask.
// Planes[0] is the luma plane used for comparisons.
type Image struct {
	Planes []*Plane
	Alpha  *Plane
}

// NewImage wraps the given planes without copying them.
func NewImage(alpha *Plane, planes ...*Plane) *Image {
	return &Image{Planes: planes, Alpha: alpha}
}

// Size returns the dimensions of the first plane.
func (img *Image) Size() geom.Size {
	if img == nil || len(img.Planes) == 0 {
		return geom.Size{}
	}
	return img.Planes[0].Size()
}

// Plane returns plane i, or nil when out of range.
func (img *Image) Plane(i int) *Plane {
	if i < 0 || i >= len(img.Planes) {
		return nil
	}
	return img.Planes[i]
}

// Valid reports whether the image has a non-empty first plane.
func (img *Image) Valid() bool {
	return img != nil && len(img.Planes) > 0 && img.Planes[0].Valid()
}
