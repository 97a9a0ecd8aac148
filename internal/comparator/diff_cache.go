package comparator

type cachedDiff struct {
	x, y      int
	diff      float64
	precision float64
}

// DiffCache remembers difference scores computed by one GradientPlane.
// It is not safe for concurrent use.
type DiffCache struct {
	entries []cachedDiff
}

// Get returns the first score stored for (x, y) that was computed at the
// requested precision or finer.
func (c *DiffCache) Get(x, y int, precision float64) (float64, bool) {
	for _, e := range c.entries {
		if e.x == x && e.y == y && e.precision <= precision {
			return e.diff, true
		}
	}
	return 0, false
}

// Add appends a score. Existing entries are never replaced.
func (c *DiffCache) Add(x, y int, diff, precision float64) {
	c.entries = append(c.entries, cachedDiff{x: x, y: y, diff: diff, precision: precision})
}

// Len returns the number of stored entries, duplicates included.
func (c *DiffCache) Len() int { return len(c.entries) }
