package availability

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Valid() bool {
	return iv.End.After(iv.Start)
}

// Overlaps uses half-open interval overlap: [a) and [b) overlap iff
// a.Start < b.End && b.Start < a.End.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether [start, end) lies entirely inside iv.
func (iv Interval) Contains(start, end time.Time) bool {
	return !start.Before(iv.Start) && !end.After(iv.End)
}

func sortIntervals(in []Interval) {
	sort.Slice(in, func(i, j int) bool {
		if !in[i].Start.Equal(in[j].Start) {
			return in[i].Start.Before(in[j].Start)
		}
		return in[i].End.Before(in[j].End)
	})
}

// Merge sorts intervals and coalesces overlapping or touching ones.
// Invalid (empty) intervals are dropped.
func Merge(in []Interval) []Interval {
	var valid []Interval
	for _, iv := range in {
		if iv.Valid() {
			valid = append(valid, iv)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	sortIntervals(valid)

	merged := make([]Interval, 0, len(valid))
	for _, cur := range valid {
		if len(merged) == 0 {
			merged = append(merged, cur)
			continue
		}
		last := &merged[len(merged)-1]
		if cur.Start.After(last.End) {
			merged = append(merged, cur)
			continue
		}
		if cur.End.After(last.End) {
			last.End = cur.End
		}
	}
	return merged
}

// Subtract removes blocks from base, returning the remaining sub-intervals
// in ascending order. Blocks outside base are ignored; blocks straddling
// its edges are clipped.
func Subtract(base Interval, blocks []Interval) []Interval {
	if !base.Valid() {
		return nil
	}
	var clipped []Interval
	for _, b := range blocks {
		s, e := b.Start, b.End
		if !e.After(base.Start) || !s.Before(base.End) {
			continue
		}
		if s.Before(base.Start) {
			s = base.Start
		}
		if e.After(base.End) {
			e = base.End
		}
		if e.After(s) {
			clipped = append(clipped, Interval{Start: s, End: e})
		}
	}
	if len(clipped) == 0 {
		return []Interval{base}
	}
	merged := Merge(clipped)

	var out []Interval
	cursor := base.Start
	for _, m := range merged {
		if m.Start.After(cursor) {
			out = append(out, Interval{Start: cursor, End: m.Start})
		}
		if m.End.After(cursor) {
			cursor = m.End
		}
	}
	if base.End.After(cursor) {
		out = append(out, Interval{Start: cursor, End: base.End})
	}
	return out
}

// SubtractAll applies Subtract to every base interval.
func SubtractAll(bases []Interval, blocks []Interval) []Interval {
	var out []Interval
	for _, base := range bases {
		out = append(out, Subtract(base, blocks)...)
	}
	return out
}

// Intersect returns the pairwise intersections of two interval sets,
// merged and ordered. Used to narrow business hours by staff hours.
func Intersect(a, b []Interval) []Interval {
	var out []Interval
	for _, x := range a {
		for _, y := range b {
			s, e := x.Start, x.End
			if y.Start.After(s) {
				s = y.Start
			}
			if y.End.Before(e) {
				e = y.End
			}
			if e.After(s) {
				out = append(out, Interval{Start: s, End: e})
			}
		}
	}
	return Merge(out)
}
