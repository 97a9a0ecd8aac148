package aligner

import (
	"context"

	"framestack/internal/container"
	"framestack/internal/geom"
	"framestack/internal/plane"
	"framestack/internal/render"
)

// RecursiveAligner aligns a working set by splitting it in halves, aligning
// each half on its own and then matching the two rendered halves.
type RecursiveAligner struct {
	*Base
	merged int
}

// NewRecursiveAligner returns an aligner over every image of c.
func NewRecursiveAligner(c *container.ImageContainer, opts Options) *RecursiveAligner {
	return &RecursiveAligner{Base: NewBase(c, opts)}
}

// Align moves the images of the working set so that they line up. The
// watcher is polled before every merge; a cancel leaves the positions of
// the merges completed so far in place.
func (a *RecursiveAligner) Align(ctx context.Context, w Watcher) error {
	if a.Count() == 0 {
		return nil
	}
	if w != nil {
		w.SetTotal(a.Count() - 1)
	}
	a.merged = 0
	_, _, err := a.merge(ctx, w, 0, a.Count())
	return err
}

// merge aligns images [begin, end) and returns their render together with
// the position of its top-left corner.
func (a *RecursiveAligner) merge(ctx context.Context, w Watcher, begin, end int) (*plane.Image, geom.Point[float64], error) {
	if end-begin == 1 {
		return a.Image(begin), a.Pos(begin), nil
	}

	mid := begin + (end-begin)/2
	first, firstOrigin, err := a.merge(ctx, w, begin, mid)
	if err != nil {
		return nil, geom.Point[float64]{}, err
	}
	second, secondOrigin, err := a.merge(ctx, w, mid, end)
	if err != nil {
		return nil, geom.Point[float64]{}, err
	}
	if err := checkCancel(ctx, w); err != nil {
		return nil, geom.Point[float64]{}, err
	}

	offset := a.FindOffset(first, second)
	delta := firstOrigin.Add(offset.Distance).Sub(secondOrigin)
	for i := mid; i < end; i++ {
		a.SetPos(i, a.Pos(i).Add(delta))
	}
	a.opts.Logger.Debug("merged range",
		"begin", begin,
		"end", end,
		"dx", offset.Distance.X,
		"dy", offset.Distance.Y,
		"error", offset.Error,
	)

	a.merged++
	if w != nil {
		w.SetCurrent(a.merged)
	}

	view := span{base: a.Base, begin: begin, end: end}
	out := render.FloatRender{ScaleX: 1, ScaleY: 1}.Render(view, nil)
	return out, container.MinPoint(view), nil
}

// span is a contiguous slice of the working set.
type span struct {
	base       *Base
	begin, end int
}

func (s span) Count() int                    { return s.end - s.begin }
func (s span) Image(i int) *plane.Image      { return s.base.Image(s.begin + i) }
func (s span) Pos(i int) geom.Point[float64] { return s.base.Pos(s.begin + i) }
