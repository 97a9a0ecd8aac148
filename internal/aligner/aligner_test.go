package aligner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"framestack/internal/container"
	"framestack/internal/geom"
	"framestack/internal/plane"

	"github.com/google/go-cmp/cmp"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func blob(cx, cy int) *plane.Image {
	p := plane.FromFunc(64, 64, func(x, y int) float64 {
		dx, dy := x-cx, y-cy
		return math.Exp(-float64(dx*dx+dy*dy) / (2 * 10 * 10))
	})
	return plane.NewImage(nil, p)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Movement = 0.1
	opts.Logger = quietLogger()
	return opts
}

func TestParseMethod(t *testing.T) {
	cases := map[string]Method{
		"":           MethodBoth,
		"both":       MethodBoth,
		"Vertical":   MethodVertical,
		"hor":        MethodHorizontal,
		"horizontal": MethodHorizontal,
	}
	for in, want := range cases {
		got, err := ParseMethod(in)
		if err != nil || got != want {
			t.Fatalf("ParseMethod(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseMethod("diagonal"); err == nil {
		t.Fatalf("expected error for unknown method")
	}
	if got := MethodVertical.Movement(0.5); got != geom.Pt(0.0, 0.5) {
		t.Fatalf("vertical movement should lock x, got %v", got)
	}
}

func TestFindOffsetKnownShift(t *testing.T) {
	c := container.New()
	b := NewBase(c, testOptions())
	offset := b.FindOffset(blob(32, 32), blob(29, 33))
	if offset.Distance != geom.Pt(3.0, -1.0) {
		t.Fatalf("expected (3,-1), got %v (error %v)", offset.Distance, offset.Error)
	}
	if offset.Error >= b.Options().MergeThreshold {
		t.Fatalf("expected error below threshold, got %v", offset.Error)
	}
}

func TestRecursiveAlignerMergesHalves(t *testing.T) {
	c := container.New()
	c.AddImage(blob(32, 32), container.NoFrame)
	c.AddImage(blob(32, 32), container.NoFrame)
	c.AddImage(blob(29, 32), container.NoFrame)

	a := NewRecursiveAligner(c, testOptions())
	a.AddImages()
	w := NewLogWatcher(quietLogger(), "test")
	if err := a.Align(context.Background(), w); err != nil {
		t.Fatalf("align: %v", err)
	}

	want := []geom.Point[float64]{geom.Pt(0.0, 0.0), geom.Pt(0.0, 0.0), geom.Pt(3.0, 0.0)}
	got := []geom.Point[float64]{a.Pos(0), a.Pos(1), a.Pos(2)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("positions mismatch (-want +got):\n%s", diff)
	}
	if current, total := w.Progress(); current != 2 || total != 2 {
		t.Fatalf("expected 2/2 merges, got %d/%d", current, total)
	}
}

func TestRecursiveAlignerCancel(t *testing.T) {
	c := container.New()
	c.AddImage(blob(32, 32), container.NoFrame)
	c.AddImage(blob(29, 33), container.NoFrame)

	a := NewRecursiveAligner(c, testOptions())
	a.AddImages()
	w := NewLogWatcher(quietLogger(), "test")
	w.Cancel()
	if err := a.Align(context.Background(), w); !errors.Is(err, ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	if a.Pos(1) != (geom.Point[float64]{}) {
		t.Fatalf("canceled alignment must not move images, got %v", a.Pos(1))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Align(ctx, nil); !errors.Is(err, ErrCanceled) {
		t.Fatalf("expected ErrCanceled from context, got %v", err)
	}
}

func TestRecursiveAlignerEmpty(t *testing.T) {
	a := NewRecursiveAligner(container.New(), testOptions())
	a.AddImages()
	if err := a.Align(context.Background(), nil); err != nil {
		t.Fatalf("expected no error for an empty set, got %v", err)
	}
}
