// Package imageio moves images between files and floating point planes
// through ImageMagick.
package imageio

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"framestack/internal/plane"

	"gopkg.in/gographics/imagick.v3/imagick"
)

var initOnce sync.Once

// Initialize starts ImageMagick. It is safe to call repeatedly; Load and
// Save call it themselves.
func Initialize() {
	initOnce.Do(imagick.Initialize)
}

// Terminate releases ImageMagick. Call it once when the process exits.
func Terminate() {
	imagick.Terminate()
}

// Load decodes path into a single intensity plane with samples in [0, 1].
// An alpha channel in the file becomes the image mask.
func Load(path string) (*plane.Image, error) {
	Initialize()
	wand := imagick.NewMagickWand()
	defer wand.Destroy()

	if err := wand.ReadImage(path); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	width, height := int(wand.GetImageWidth()), int(wand.GetImageHeight())

	channels := "I"
	if wand.GetImageAlphaChannel() {
		channels += "A"
	}

	raw, err := wand.ExportImagePixels(0, 0, uint(width), uint(height), channels, imagick.PIXEL_FLOAT)
	if err != nil {
		return nil, fmt.Errorf("export pixels of %s: %w", path, err)
	}
	pixels, ok := raw.([]float32)
	if !ok {
		return nil, fmt.Errorf("export pixels of %s: unexpected sample type %T", path, raw)
	}
	return split(pixels, width, height, channels), nil
}

// split de-interleaves pixels laid out in the order given by channels.
func split(pixels []float32, width, height int, channels string) *plane.Image {
	stride := len(channels)
	planes := make([]*plane.Plane, 0, stride)
	var alpha *plane.Plane
	for c, name := range channels {
		p := plane.New(width, height)
		for y := 0; y < height; y++ {
			row := p.Row(y)
			base := y * width * stride
			for x := range row {
				row[x] = float64(pixels[base+x*stride+c])
			}
		}
		if name == 'A' {
			alpha = p
			continue
		}
		planes = append(planes, p)
	}
	return plane.NewImage(alpha, planes...)
}

// interleave is the inverse of split.
func interleave(img *plane.Image) ([]float32, string) {
	channels := "I"
	sources := []*plane.Plane{img.Planes[0]}
	if img.Alpha != nil {
		channels += "A"
		sources = append(sources, img.Alpha)
	}

	size := img.Size()
	stride := len(sources)
	out := make([]float32, size.Width*size.Height*stride)
	for c, p := range sources {
		for y := 0; y < size.Height; y++ {
			base := y * size.Width * stride
			for x, v := range p.Row(y) {
				out[base+x*stride+c] = float32(clamp(v))
			}
		}
	}
	return out, channels
}

// Save encodes img to path. The format follows the file extension; 16-bit
// TIFF is used for .tif and .tiff.
func Save(path string, img *plane.Image) error {
	if !img.Valid() {
		return fmt.Errorf("save %s: empty image", path)
	}
	Initialize()
	wand := imagick.NewMagickWand()
	defer wand.Destroy()

	pixels, channels := interleave(img)
	size := img.Size()
	if err := wand.ConstituteImage(uint(size.Width), uint(size.Height), channels, imagick.PIXEL_FLOAT, pixels); err != nil {
		return fmt.Errorf("build image for %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		if err := wand.SetImageFormat("TIFF"); err != nil {
			return err
		}
		if err := wand.SetImageDepth(16); err != nil {
			return err
		}
	}
	if err := wand.WriteImage(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
