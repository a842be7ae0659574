package availability

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func TestMerge_CoalescesTouchingIntervals(t *testing.T) {
	merged := Merge([]Interval{
		{Start: at(13, 0), End: at(14, 0)},
		{Start: at(9, 0), End: at(11, 0)},
		{Start: at(11, 0), End: at(12, 0)},
	})
	if len(merged) != 2 {
		t.Fatalf("expected 2 intervals, got %d: %v", len(merged), merged)
	}
	if !merged[0].Start.Equal(at(9, 0)) || !merged[0].End.Equal(at(12, 0)) {
		t.Fatalf("expected 09:00-12:00, got %s-%s", merged[0].Start, merged[0].End)
	}
	if !merged[1].Start.Equal(at(13, 0)) || !merged[1].End.Equal(at(14, 0)) {
		t.Fatalf("expected 13:00-14:00, got %s-%s", merged[1].Start, merged[1].End)
	}
}

func TestSubtract_SplitsAroundBlock(t *testing.T) {
	open := Interval{Start: at(9, 0), End: at(18, 0)}
	left := Subtract(open, []Interval{{Start: at(12, 0), End: at(14, 0)}})
	if len(left) != 2 {
		t.Fatalf("expected 2 intervals, got %d: %v", len(left), left)
	}
	if !left[0].End.Equal(at(12, 0)) {
		t.Fatalf("first interval should end 12:00, got %s", left[0].End)
	}
	if !left[1].Start.Equal(at(14, 0)) {
		t.Fatalf("second interval should start 14:00, got %s", left[1].Start)
	}
}

func TestSubtract_BlockSwallowsWindow(t *testing.T) {
	open := Interval{Start: at(10, 0), End: at(12, 0)}
	left := Subtract(open, []Interval{{Start: at(9, 0), End: at(13, 0)}})
	if len(left) != 0 {
		t.Fatalf("expected no intervals, got %v", left)
	}
}

func TestSubtract_IgnoresNonOverlappingBlocks(t *testing.T) {
	open := Interval{Start: at(9, 0), End: at(12, 0)}
	left := Subtract(open, []Interval{{Start: at(14, 0), End: at(16, 0)}})
	if len(left) != 1 || !left[0].Start.Equal(at(9, 0)) || !left[0].End.Equal(at(12, 0)) {
		t.Fatalf("expected untouched window, got %v", left)
	}
}

func TestIntersect_Narrows(t *testing.T) {
	business := []Interval{{Start: at(9, 0), End: at(18, 0)}}
	staff := []Interval{{Start: at(10, 0), End: at(14, 0)}, {Start: at(15, 0), End: at(20, 0)}}
	got := Intersect(business, staff)
	if len(got) != 2 {
		t.Fatalf("expected 2 intervals, got %d: %v", len(got), got)
	}
	if !got[0].Start.Equal(at(10, 0)) || !got[0].End.Equal(at(14, 0)) {
		t.Fatalf("expected 10:00-14:00, got %s-%s", got[0].Start, got[0].End)
	}
	if !got[1].Start.Equal(at(15, 0)) || !got[1].End.Equal(at(18, 0)) {
		t.Fatalf("expected 15:00-18:00, got %s-%s", got[1].Start, got[1].End)
	}
}

func TestOverlaps_HalfOpen(t *testing.T) {
	a := Interval{Start: at(9, 0), End: at(10, 0)}
	b := Interval{Start: at(10, 0), End: at(11, 0)}
	if a.Overlaps(b) {
		t.Fatal("back-to-back intervals must not overlap")
	}
	c := Interval{Start: at(9, 59), End: at(10, 30)}
	if !a.Overlaps(c) {
		t.Fatal("expected overlap")
	}
}
