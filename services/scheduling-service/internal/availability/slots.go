package availability

import "time"

// SlotsInWindow returns slot start times within [windowStart, windowEnd)
// where a booking of length duration would not overlap any busy interval.
// Slot candidates advance from windowStart in step-sized increments, so
// identical inputs always produce identical output.
//
// All times are expected to be in the same location (timezone).
func SlotsInWindow(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if !windowEnd.After(windowStart) {
		return nil
	}
	if windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var slots []time.Time
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		if !overlapsAny(t, t.Add(duration), busy) {
			slots = append(slots, t)
		}
	}
	return slots
}

// Slots walks every open window in order and concatenates the valid slot
// starts. Windows are expected sorted and non-overlapping (calendar
// resolver output), so the result is strictly chronological.
func Slots(windows []Interval, duration, step time.Duration, busy []Interval, now time.Time) []time.Time {
	var out []time.Time
	for _, w := range windows {
		out = append(out, SlotsInWindow(w.Start, w.End, duration, step, busy, now)...)
	}
	return out
}

// ContainsSlot reports whether start is one of the generated slot starts.
// The booking transactor re-runs this check inside its commit transaction.
func ContainsSlot(windows []Interval, duration, step time.Duration, busy []Interval, now time.Time, start time.Time) bool {
	for _, s := range Slots(windows, duration, step, busy, now) {
		if s.Equal(start) {
			return true
		}
	}
	return false
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}
