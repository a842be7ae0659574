package liveview

import (
	"testing"
	"time"
)

func TestHourWindow(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 25, 30, 0, time.UTC)
	from, to := HourWindow(now)
	if !from.Equal(now) {
		t.Fatalf("window must start at now, got %s", from)
	}
	if !to.Equal(time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("window must end at the top of the hour, got %s", to)
	}
}

func TestHourWindow_OnTheHour(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	_, to := HourWindow(now)
	if !to.Equal(now.Add(time.Hour)) {
		t.Fatalf("an on-the-hour now spans the full hour, got end %s", to)
	}
}

func TestClampQueueSize(t *testing.T) {
	cases := map[int]int{
		0:    DefaultQueueSize,
		-5:   1,
		1:    1,
		42:   42,
		100:  100,
		500:  MaxQueueSize,
	}
	for in, want := range cases {
		if got := ClampQueueSize(in); got != want {
			t.Fatalf("ClampQueueSize(%d) = %d, want %d", in, got, want)
		}
	}
}
