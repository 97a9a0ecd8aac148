package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var imageExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".tif":  {},
	".tiff": {},
	".bmp":  {},
	".webp": {},
	".pgm":  {},
	".ppm":  {},
}

// ListImages returns all image-like files under root sorted by path. A file
// root is returned as is.
func ListImages(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if IsImageFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// IsImageFile checks if a file is any supported image format.
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, isImage := imageExts[ext]
	return isImage
}

// GroupFrames splits an ordered list of stills into frames of
// stillsPerFrame consecutive files. The last frame may be shorter.
func GroupFrames(files []string, stillsPerFrame int) ([][]string, error) {
	if stillsPerFrame < 1 {
		return nil, fmt.Errorf("stills per frame must be at least 1, got %d", stillsPerFrame)
	}
	var frames [][]string
	for start := 0; start < len(files); start += stillsPerFrame {
		end := min(start+stillsPerFrame, len(files))
		frames = append(frames, files[start:end])
	}
	return frames, nil
}
