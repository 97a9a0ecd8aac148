package comparator

import (
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"

	"framestack/internal/geom"
	"framestack/internal/plane"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blob renders a smooth gaussian centred on (cx, cy).
func blob(w, h, cx, cy int) *plane.Plane {
	return plane.FromFunc(w, h, func(x, y int) float64 {
		dx, dy := x-cx, y-cy
		return math.Exp(-float64(dx*dx+dy*dy) / (2 * 10 * 10))
	})
}

type countingMetric struct {
	mu    sync.Mutex
	calls map[geom.Point[int]]int
	total int
}

func newCountingMetric() *countingMetric {
	return &countingMetric{calls: make(map[geom.Point[int]]int)}
}

func (m *countingMetric) DiffAlpha(a, b, alphaA, alphaB *plane.Plane, x, y int, precision float64, fast bool) float64 {
	m.mu.Lock()
	m.calls[geom.Pt(x, y)]++
	m.total++
	m.mu.Unlock()
	return plane.DiffAlpha(a, b, alphaA, alphaB, x, y, precision, fast)
}

func (m *countingMetric) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// recordingMetric keeps the arguments of the first evaluation of every
// offset.
type recordingMetric struct {
	mu        sync.Mutex
	precision map[geom.Point[int]]float64
	fast      map[geom.Point[int]]bool
}

func newRecordingMetric() *recordingMetric {
	return &recordingMetric{
		precision: make(map[geom.Point[int]]float64),
		fast:      make(map[geom.Point[int]]bool),
	}
}

func (m *recordingMetric) DiffAlpha(a, b, alphaA, alphaB *plane.Plane, x, y int, precision float64, fast bool) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	pt := geom.Pt(x, y)
	if _, ok := m.precision[pt]; !ok {
		m.precision[pt] = precision
		m.fast[pt] = fast
	}
	return math.Abs(float64(x)) + math.Abs(float64(y))
}

func firstEntry(c *DiffCache, x, y int) (cachedDiff, bool) {
	for _, e := range c.entries {
		if e.x == x && e.y == y {
			return e, true
		}
	}
	return cachedDiff{}, false
}

func TestFindMinimumIdenticalPlanes(t *testing.T) {
	p := blob(32, 32, 16, 16)
	g := NewGradientPlane(p, p, nil, nil, false, WithLogger(quietLogger()))

	res := g.FindMinimum(GradientCheck{Left: -2, Right: 2, Top: -2, Bottom: 2, Level: 0})
	if res.Offset != geom.Pt(0, 0) {
		t.Fatalf("expected (0,0), got %v", res.Offset)
	}
	if res.Diff != 0 {
		t.Fatalf("expected zero diff, got %v", res.Diff)
	}
}

func TestFindMinimumLeafIsExhaustive(t *testing.T) {
	p := blob(24, 24, 12, 12)
	metric := newCountingMetric()
	g := NewGradientPlane(p, p, nil, nil, false, WithMetric(metric), WithLogger(quietLogger()))

	// Level 1 over a 4x3 window gives steps of 0.75 and 0.5: a leaf.
	g.FindMinimum(GradientCheck{Left: -1, Right: 2, Top: -1, Bottom: 1, Level: 1})

	if len(metric.calls) != 12 {
		t.Fatalf("expected 12 distinct offsets, got %d", len(metric.calls))
	}
	for x := -1; x <= 2; x++ {
		for y := -1; y <= 1; y++ {
			if n := metric.calls[geom.Pt(x, y)]; n != 1 {
				t.Fatalf("offset (%d,%d) evaluated %d times", x, y, n)
			}
		}
	}
	if g.Cache().Len() != 12 {
		t.Fatalf("expected 12 cache entries, got %d", g.Cache().Len())
	}
}

func TestFindMinimumReusesCache(t *testing.T) {
	a := blob(48, 48, 24, 24)
	b := blob(48, 48, 22, 25)
	metric := newCountingMetric()
	g := NewGradientPlane(a, b, nil, nil, false, WithMetric(metric), WithLogger(quietLogger()))

	area := GradientCheck{Left: -6, Right: 6, Top: -6, Bottom: 6, Level: 1}
	first := g.FindMinimum(area)
	calls := metric.count()
	if calls == 0 {
		t.Fatalf("expected the first search to evaluate offsets")
	}
	entries := g.Cache().Len()

	second := g.FindMinimum(area)
	if metric.count() != calls {
		t.Fatalf("expected repeated search to be served from cache, calls went %d -> %d", calls, metric.count())
	}
	if first != second {
		t.Fatalf("expected identical results, got %v and %v", first, second)
	}
	if g.Cache().Len() != entries {
		t.Fatalf("cache hits must not be reinserted: %d -> %d entries", entries, g.Cache().Len())
	}

	// A leaf inside an already scanned leaf needs no new work either.
	g.FindMinimum(GradientCheck{Left: -1, Right: 2, Top: -1, Bottom: 1, Level: 1})
	afterOuter := metric.count()
	g.FindMinimum(GradientCheck{Left: 0, Right: 1, Top: 0, Bottom: 1, Level: 1})
	if metric.count() != afterOuter {
		t.Fatalf("expected overlapping leaf to reuse cached scores")
	}
}

func TestFindMinimumConvergesOnKnownOffset(t *testing.T) {
	// b(x, y) == a(x+3, y-1), so b sits at offset (3, -1) on a.
	a := blob(64, 64, 32, 32)
	b := blob(64, 64, 29, 33)

	cases := []GradientCheck{
		{Left: -6, Right: 6, Top: -6, Bottom: 6, Level: 1},
		{Left: -8, Right: 8, Top: -8, Bottom: 8, Level: 2},
	}
	for _, area := range cases {
		g := NewGradientPlane(a, b, nil, nil, false, WithLogger(quietLogger()))
		res := g.FindMinimum(area)
		if res.Offset != geom.Pt(3, -1) {
			t.Fatalf("area %s: expected (3,-1), got %v (diff %v)", area, res.Offset, res.Diff)
		}
		if res.Diff > 1e-12 {
			t.Fatalf("area %s: expected near-zero diff, got %v", area, res.Diff)
		}
	}
}

func TestFindMinimumIsDeterministic(t *testing.T) {
	a := blob(40, 40, 20, 20)
	b := blob(40, 40, 18, 23)
	area := GradientCheck{Left: -10, Right: 10, Top: -10, Bottom: 10, Level: 2}

	first := NewGradientPlane(a, b, nil, nil, false, WithLogger(quietLogger())).FindMinimum(area)
	for i := 0; i < 5; i++ {
		got := NewGradientPlane(a, b, nil, nil, false, WithWorkers(i+1), WithLogger(quietLogger())).FindMinimum(area)
		if got != first {
			t.Fatalf("run %d: expected %v, got %v", i, first, got)
		}
	}
}

func TestFindMinimumTerminatesWithoutFullScan(t *testing.T) {
	a := blob(64, 64, 32, 32)
	b := blob(64, 64, 27, 30)
	metric := newCountingMetric()
	g := NewGradientPlane(a, b, nil, nil, false, WithMetric(metric), WithLogger(quietLogger()))

	g.FindMinimum(GradientCheck{Left: -30, Right: 30, Top: -30, Bottom: 30, Level: 3})
	if n := len(metric.calls); n == 0 || n >= 61*61 {
		t.Fatalf("expected a sparse search, evaluated %d offsets", n)
	}
}

func TestFindMinimumTieBreakIsFirstGenerated(t *testing.T) {
	p := plane.Filled(16, 16, 0.5)
	g := NewGradientPlane(p, p, nil, nil, false, WithLogger(quietLogger()))

	res := g.FindMinimum(GradientCheck{Left: -1, Right: 2, Top: -1, Bottom: 1, Level: 1})
	if res.Offset != geom.Pt(-1, -1) || res.Diff != 0 {
		t.Fatalf("expected first generated offset (-1,-1), got %v %v", res.Offset, res.Diff)
	}
}

func TestFindMinimumEmptyRegion(t *testing.T) {
	p := blob(16, 16, 8, 8)
	metric := newCountingMetric()
	g := NewGradientPlane(p, p, nil, nil, false, WithMetric(metric), WithLogger(quietLogger()))

	res := g.FindMinimum(GradientCheck{Left: 1, Right: 0, Top: 0, Bottom: 0, Level: 0})
	if res.Offset != geom.Pt(0, 0) || res.Diff != math.MaxFloat64 {
		t.Fatalf("expected sentinel result, got %v", res)
	}
	if metric.count() != 0 {
		t.Fatalf("expected no evaluations for an empty region")
	}
}

func TestCandidatesAreDistinct(t *testing.T) {
	areas := []GradientCheck{
		{Left: 0, Right: 10, Top: 0, Bottom: 3, Level: 2},
		{Left: -7, Right: 7, Top: -3, Bottom: 9, Level: 1},
		{Left: -63, Right: 63, Top: -47, Bottom: 47, Level: 4},
		{Left: -5, Right: 5, Top: 0, Bottom: 0, Level: 1},
	}
	for _, area := range areas {
		comps := candidates(area)
		if len(comps) == 0 {
			t.Fatalf("area %s: no candidates", area)
		}
		seen := make(map[geom.Point[int]]bool)
		for _, c := range comps {
			if seen[c.offset] {
				t.Fatalf("area %s: duplicate candidate %v", area, c.offset)
			}
			seen[c.offset] = true
			if c.offset.X == area.Right && area.Right != area.Left {
				t.Fatalf("area %s: right boundary sampled at %v", area, c.offset)
			}
			if c.offset.Y == area.Bottom && area.Bottom != area.Top {
				t.Fatalf("area %s: bottom boundary sampled at %v", area, c.offset)
			}
			if c.area.Level < 1 || c.area.Level >= max(area.Level, 2) {
				t.Fatalf("area %s: unexpected nested level %d", area, c.area.Level)
			}
			if c.precision < 0 || c.diff != -1 {
				t.Fatalf("area %s: bad initial state %+v", area, c)
			}
		}
	}
}

func TestCandidatesPrecisionUsesLargerStepWhenOneIsZero(t *testing.T) {
	comps := candidates(GradientCheck{Left: -8, Right: 8, Top: 0, Bottom: 0, Level: 1})
	want := math.Sqrt(4)
	for _, c := range comps {
		if c.precision != want {
			t.Fatalf("expected precision %v, got %v", want, c.precision)
		}
	}
}

func TestNewGradientCheck(t *testing.T) {
	got := NewGradientCheck(geom.Size{Width: 101, Height: 51}, 0.5, 0.25, 3)
	want := GradientCheck{Left: -50, Right: 50, Top: -12, Bottom: 12, Level: 3}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFindMinimumRelaxesPrecisionByOverlap(t *testing.T) {
	p := plane.Filled(16, 16, 0.5)
	metric := newRecordingMetric()
	g := NewGradientPlane(p, p, nil, nil, false, WithMetric(metric), WithLogger(quietLogger()))

	// h = v = 4, so every first-round candidate starts at precision 2.
	g.FindMinimum(GradientCheck{Left: -8, Right: 8, Top: -8, Bottom: 8, Level: 1})

	cases := []struct {
		offset geom.Point[int]
		want   float64
	}{
		{geom.Pt(0, 0), 2},      // full 16x16 overlap
		{geom.Pt(-4, 0), 1.5},   // 12x16 of 256 pixels
		{geom.Pt(4, -4), 1.125}, // 12x12 of 256 pixels
	}
	for _, tc := range cases {
		got, ok := metric.precision[tc.offset]
		if !ok {
			t.Fatalf("offset %v was never evaluated", tc.offset)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("offset %v: expected precision %v, got %v", tc.offset, tc.want, got)
		}
		entry, ok := firstEntry(g.Cache(), tc.offset.X, tc.offset.Y)
		if !ok {
			t.Fatalf("offset %v missing from cache", tc.offset)
		}
		if math.Abs(entry.precision-tc.want) > 1e-9 {
			t.Fatalf("offset %v: cached at precision %v, want %v", tc.offset, entry.precision, tc.want)
		}
	}
}

func TestDifferenceForwardsPrecisionAndFast(t *testing.T) {
	p := plane.Filled(8, 8, 0.5)
	for _, fast := range []bool{false, true} {
		metric := newRecordingMetric()
		g := NewGradientPlane(p, p, nil, nil, fast, WithMetric(metric))
		g.Difference(1, 2, 3)

		pt := geom.Pt(1, 2)
		if metric.precision[pt] != 3 {
			t.Fatalf("fast=%v: expected precision 3, got %v", fast, metric.precision[pt])
		}
		if metric.fast[pt] != fast {
			t.Fatalf("expected fast=%v to reach the metric", fast)
		}
	}
}

func TestFindMinimumPassesFastToMetric(t *testing.T) {
	p := plane.Filled(16, 16, 0.5)
	metric := newRecordingMetric()
	g := NewGradientPlane(p, p, nil, nil, true, WithMetric(metric), WithLogger(quietLogger()))

	g.FindMinimum(GradientCheck{Left: -2, Right: 2, Top: -2, Bottom: 2, Level: 0})
	if len(metric.fast) == 0 {
		t.Fatalf("expected evaluated offsets")
	}
	for pt, fast := range metric.fast {
		if !fast {
			t.Fatalf("offset %v evaluated without fast mode", pt)
		}
	}
}
