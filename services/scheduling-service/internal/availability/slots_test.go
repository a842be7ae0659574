package availability

import (
	"testing"
	"time"
)

func TestSlotsInWindow_Enumeration(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // a Monday
	windowStart := day.Add(10 * time.Hour)
	windowEnd := day.Add(16 * time.Hour)

	slots := SlotsInWindow(windowStart, windowEnd, 60*time.Minute, 30*time.Minute, nil, day)
	// 10:00 through 15:00 in 30-minute steps: 11 candidates.
	if len(slots) != 11 {
		t.Fatalf("expected 11 slots, got %d", len(slots))
	}
	if !slots[0].Equal(windowStart) {
		t.Fatalf("first slot should be 10:00, got %s", slots[0])
	}
	if !slots[len(slots)-1].Equal(day.Add(15 * time.Hour)) {
		t.Fatalf("last slot should be 15:00, got %s", slots[len(slots)-1])
	}
}

func TestSlotsInWindow_BusyExclusion(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	windowStart := day.Add(9 * time.Hour)
	windowEnd := day.Add(12 * time.Hour)
	busy := []Interval{{Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)}}

	slots := SlotsInWindow(windowStart, windowEnd, 60*time.Minute, 60*time.Minute, busy, day)
	// 09:00 and 11:00 survive; 10:00 collides.
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d: %v", len(slots), slots)
	}
	if !slots[0].Equal(day.Add(9*time.Hour)) || !slots[1].Equal(day.Add(11*time.Hour)) {
		t.Fatalf("unexpected slots: %v", slots)
	}
}

func TestSlotsInWindow_SkipsPast(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	now := day.Add(10*time.Hour + 1*time.Minute)
	slots := SlotsInWindow(day.Add(9*time.Hour), day.Add(12*time.Hour), 30*time.Minute, 30*time.Minute, nil, now)
	for _, s := range slots {
		if s.Before(now) {
			t.Fatalf("slot %s is in the past", s)
		}
	}
	if len(slots) == 0 || !slots[0].Equal(day.Add(10*time.Hour+30*time.Minute)) {
		t.Fatalf("expected first slot 10:30, got %v", slots)
	}
}

func TestSlotsInWindow_DurationMustFit(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	slots := SlotsInWindow(day.Add(9*time.Hour), day.Add(9*time.Hour+45*time.Minute), 60*time.Minute, 15*time.Minute, nil, day)
	if len(slots) != 0 {
		t.Fatalf("60-minute service cannot fit a 45-minute window, got %v", slots)
	}
}

func TestSlots_Deterministic(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	windows := []Interval{
		{Start: day.Add(9 * time.Hour), End: day.Add(12 * time.Hour)},
		{Start: day.Add(14 * time.Hour), End: day.Add(17 * time.Hour)},
	}
	a := Slots(windows, 30*time.Minute, 15*time.Minute, nil, day)
	b := Slots(windows, 30*time.Minute, 15*time.Minute, nil, day)
	if len(a) != len(b) {
		t.Fatalf("non-deterministic output: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Fatalf("slot %d differs: %s vs %s", i, a[i], b[i])
		}
	}
	for i := 1; i < len(a); i++ {
		if !a[i].After(a[i-1]) {
			t.Fatalf("slots not strictly chronological at %d", i)
		}
	}
}

func TestContainsSlot(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	windows := []Interval{{Start: day.Add(9 * time.Hour), End: day.Add(12 * time.Hour)}}

	if !ContainsSlot(windows, 60*time.Minute, 30*time.Minute, nil, day, day.Add(10*time.Hour+30*time.Minute)) {
		t.Fatal("10:30 should be a valid slot")
	}
	// Off the step grid.
	if ContainsSlot(windows, 60*time.Minute, 30*time.Minute, nil, day, day.Add(10*time.Hour+10*time.Minute)) {
		t.Fatal("10:10 is off the granularity grid")
	}
	busy := []Interval{{Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)}}
	if ContainsSlot(windows, 60*time.Minute, 30*time.Minute, busy, day, day.Add(10*time.Hour+30*time.Minute)) {
		t.Fatal("slot overlapping a booking must not validate")
	}
}
