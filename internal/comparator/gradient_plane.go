package comparator

import (
	"log/slog"
	"math"
	"runtime"

	"framestack/internal/geom"
	"framestack/internal/plane"

	"golang.org/x/sync/errgroup"
)

// Metric scores b placed at offset (x, y) relative to a. Implementations
// must be pure functions of their arguments; they are called concurrently.
type Metric interface {
	DiffAlpha(a, b, alphaA, alphaB *plane.Plane, x, y int, precision float64, fast bool) float64
}

// MetricFunc adapts a function to the Metric interface.
type MetricFunc func(a, b, alphaA, alphaB *plane.Plane, x, y int, precision float64, fast bool) float64

func (f MetricFunc) DiffAlpha(a, b, alphaA, alphaB *plane.Plane, x, y int, precision float64, fast bool) float64 {
	return f(a, b, alphaA, alphaB, x, y, precision, fast)
}

// DefaultMetric is the masked mean absolute difference from the plane package.
var DefaultMetric Metric = MetricFunc(plane.DiffAlpha)

// Option configures a GradientPlane.
type Option func(*GradientPlane)

// WithMetric replaces the difference metric.
func WithMetric(m Metric) Option {
	return func(g *GradientPlane) {
		if m != nil {
			g.metric = m
		}
	}
}

// WithWorkers bounds the number of concurrent difference evaluations.
func WithWorkers(n int) Option {
	return func(g *GradientPlane) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithLogger sets the logger used for search diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(g *GradientPlane) {
		if l != nil {
			g.log = l
		}
	}
}

// GradientPlane compares two planes and searches for the offset that
// minimises their difference. The planes and masks are only read; the cache
// belongs to this instance and is reused by every FindMinimum call on it.
// A GradientPlane must not be used from several goroutines at once.
type GradientPlane struct {
	p1, p2 *plane.Plane
	a1, a2 *plane.Plane
	fast   bool

	metric  Metric
	workers int
	log     *slog.Logger
	cache   DiffCache
}

// NewGradientPlane prepares a comparison of p2 against p1. The alpha masks
// may be nil.
func NewGradientPlane(p1, p2, a1, a2 *plane.Plane, fast bool, opts ...Option) *GradientPlane {
	g := &GradientPlane{
		p1: p1, p2: p2,
		a1: a1, a2: a2,
		fast:    fast,
		metric:  DefaultMetric,
		workers: runtime.GOMAXPROCS(0),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Difference scores p2 placed at (x, y) on p1.
func (g *GradientPlane) Difference(x, y int, precision float64) float64 {
	return g.metric.DiffAlpha(g.p1, g.p2, g.a1, g.a2, x, y, precision, g.fast)
}

// Cache exposes the memo of computed scores.
func (g *GradientPlane) Cache() *DiffCache { return &g.cache }

// candidate is one offset evaluated during a search round.
type candidate struct {
	offset    geom.Point[int]
	area      GradientCheck
	precision float64
	diff      float64
	cached    bool
}

func newCandidate(x, y int, area GradientCheck, precision float64) candidate {
	return candidate{offset: geom.Pt(x, y), area: area, precision: precision, diff: -1}
}

// checkedArea is the number of pixels where both planes overlap at the
// candidate's offset.
func (g *GradientPlane) checkedArea(c candidate) float64 {
	_, _, size := plane.Overlap(g.p1.Size(), g.p2.Size(), c.offset.X, c.offset.Y)
	return float64(size.Width * size.Height)
}

// candidates generates the offsets of one round in evaluation order.
func candidates(area GradientCheck) []candidate {
	amount := area.Level*2 + 2
	hOffset := float64(area.Right-area.Left) / float64(amount)
	vOffset := float64(area.Bottom-area.Top) / float64(amount)

	var comps []candidate
	if hOffset < 1 && vOffset < 1 {
		for ix := area.Left; ix <= area.Right; ix++ {
			for iy := area.Top; iy <= area.Bottom; iy++ {
				comps = append(comps, newCandidate(ix, iy, GradientCheck{}, 1))
			}
		}
		return comps
	}

	level := 1
	if area.Level > 1 {
		level = area.Level - 1
	}

	// Never step below one pixel, otherwise positions repeat.
	hAdd := math.Max(hOffset, 1)
	vAdd := math.Max(vOffset, 1)

	precOffset := math.Min(hOffset, vOffset)
	if hOffset == 0 || vOffset == 0 {
		precOffset = math.Max(hOffset, vOffset)
	}
	precision := math.Sqrt(precOffset)

	for iy := float64(area.Top) + vOffset; iy <= float64(area.Bottom); iy += vAdd {
		for ix := float64(area.Left) + hOffset; ix <= float64(area.Right); ix += hAdd {
			x := int(math.Round(ix))
			y := int(math.Round(iy))

			// The loops always run once, so the far edge is dropped here.
			if (x == area.Right && x != area.Left) || (y == area.Bottom && y != area.Top) {
				continue
			}

			sub := GradientCheck{
				Left:   int(math.Floor(ix - hOffset)),
				Right:  int(math.Ceil(ix + hOffset)),
				Top:    int(math.Floor(iy - vOffset)),
				Bottom: int(math.Ceil(iy + vOffset)),
				Level:  level,
			}
			comps = append(comps, newCandidate(x, y, sub, precision))
		}
	}
	return comps
}

// FindMinimum searches area for the offset with the lowest difference.
func (g *GradientPlane) FindMinimum(area GradientCheck) MergeResult {
	comps := candidates(area)
	if len(comps) == 0 {
		g.log.Error("no candidates to continue the search on", "area", area.String())
		return MergeResult{Offset: geom.Pt(0, 0), Diff: math.MaxFloat64}
	}

	// Candidates with less overlap sample more densely so that every
	// evaluation of a round touches a similar number of pixels.
	checked := make([]float64, len(comps))
	maxChecked := 0.0
	for i, c := range comps {
		checked[i] = g.checkedArea(c)
		maxChecked = math.Max(maxChecked, checked[i])
	}
	for i := range comps {
		c := &comps[i]
		if maxChecked > 0 {
			c.precision = math.Max(c.precision/(maxChecked/checked[i]), 1.0)
		} else {
			c.precision = math.Max(c.precision, 1.0)
		}
		if diff, ok := g.cache.Get(c.offset.X, c.offset.Y, c.precision); ok {
			c.diff = diff
			c.cached = true
		}
	}

	g.evaluate(comps)

	for _, c := range comps {
		if !c.cached {
			g.cache.Add(c.offset.X, c.offset.Y, c.diff, c.precision)
		}
	}

	best := -1
	bestDiff := math.MaxFloat64
	for i, c := range comps {
		if c.diff < bestDiff {
			best = i
			bestDiff = c.diff
		}
	}
	if best < 0 {
		g.log.Error("no candidate produced a usable difference", "area", area.String(), "candidates", len(comps))
		return MergeResult{Offset: geom.Pt(0, 0), Diff: math.MaxFloat64}
	}

	winner := comps[best]
	g.log.Debug("search round",
		"area", area.String(),
		"candidates", len(comps),
		"best_x", winner.offset.X,
		"best_y", winner.offset.Y,
		"diff", winner.diff,
	)
	if winner.area.Level > 0 {
		return g.FindMinimum(winner.area)
	}
	return MergeResult{Offset: winner.offset, Diff: winner.diff}
}

// evaluate computes the difference of every uncached candidate on a bounded
// pool and returns once all of them are done. Each goroutine writes only its
// own slice element.
func (g *GradientPlane) evaluate(comps []candidate) {
	var eg errgroup.Group
	eg.SetLimit(g.workers)
	for i := range comps {
		if comps[i].cached {
			continue
		}
		c := &comps[i]
		eg.Go(func() error {
			c.diff = g.Difference(c.offset.X, c.offset.Y, c.precision)
			return nil
		})
	}
	_ = eg.Wait()
}
