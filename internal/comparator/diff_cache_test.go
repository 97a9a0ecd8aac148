package comparator

import "testing"

func TestDiffCachePrecision(t *testing.T) {
	var c DiffCache
	c.Add(1, 1, 0.5, 4)

	if _, ok := c.Get(1, 1, 2); ok {
		t.Fatalf("a score computed at precision 4 must not satisfy a request for 2")
	}
	if d, ok := c.Get(1, 1, 4); !ok || d != 0.5 {
		t.Fatalf("expected hit at equal precision, got %v %v", d, ok)
	}
	if d, ok := c.Get(1, 1, 8); !ok || d != 0.5 {
		t.Fatalf("expected hit at coarser request, got %v %v", d, ok)
	}
	if _, ok := c.Get(1, 2, 8); ok {
		t.Fatalf("unexpected hit for another offset")
	}
}

func TestDiffCacheReturnsFirstSufficientEntry(t *testing.T) {
	var c DiffCache
	c.Add(0, 0, 0.5, 4)
	c.Add(0, 0, 0.3, 1)

	if d, _ := c.Get(0, 0, 2); d != 0.3 {
		t.Fatalf("expected the precision 1 entry, got %v", d)
	}
	if d, _ := c.Get(0, 0, 8); d != 0.5 {
		t.Fatalf("expected the first stored entry, got %v", d)
	}
	if c.Len() != 2 {
		t.Fatalf("expected duplicates to accumulate, got %d entries", c.Len())
	}
}
