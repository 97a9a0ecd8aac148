package comparator

import (
	"fmt"

	"framestack/internal/geom"
)

// GradientCheck is a rectangular window of candidate offsets together with
// the recursion level used to search it. Level 0 marks a leaf that is
// scanned exhaustively.
type GradientCheck struct {
	Left, Right int
	Top, Bottom int
	Level       int
}

// NewGradientCheck returns the window of offsets that keeps two planes of
// the given size overlapping, scaled per axis by widthScale and heightScale
// (a movement fraction in [0, 1]).
func NewGradientCheck(size geom.Size, widthScale, heightScale float64, level int) GradientCheck {
	return GradientCheck{
		Left:   int(float64(1-size.Width) * widthScale),
		Top:    int(float64(1-size.Height) * heightScale),
		Right:  int(float64(size.Width-1) * widthScale),
		Bottom: int(float64(size.Height-1) * heightScale),
		Level:  level,
	}
}

// Valid reports whether the window is non-empty.
func (g GradientCheck) Valid() bool {
	return g.Left <= g.Right && g.Top <= g.Bottom && g.Level >= 0
}

func (g GradientCheck) String() string {
	return fmt.Sprintf("[%d,%d]x[%d,%d]@%d", g.Left, g.Right, g.Top, g.Bottom, g.Level)
}

// MergeResult is the best offset found by a search and its score.
type MergeResult struct {
	Offset geom.Point[int] `json:"offset"`
	Diff   float64         `json:"diff"`
}
