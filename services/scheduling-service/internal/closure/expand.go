package closure

import (
	"time"

	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

// ExpansionHorizon bounds recurring-closure expansion: occurrences are
// never generated further than this past the rule's anchor date, keeping
// open-ended rules finite.
const ExpansionHorizon = 2 * 365 * 24 * time.Hour

// DateSpan is an inclusive range of dates (midnight UTC values).
type DateSpan struct {
	Start time.Time
	End   time.Time
}

func (s DateSpan) overlaps(from, to time.Time) bool {
	return !s.End.Before(from) && !s.Start.After(to)
}

// Occurrences expands a closure into the concrete date spans that overlap
// [from, to] (inclusive dates). Non-recurring closures yield at most their
// own span. Recurring closures repeat the anchor span every Interval
// weeks/months/years, clamped by the rule's until date and the expansion
// horizon. Expansion is lazy per call: nothing is persisted.
func Occurrences(c model.Closure, from, to time.Time) []DateSpan {
	base := DateSpan{Start: day(c.StartDate), End: day(c.EndDate)}
	if base.End.Before(base.Start) {
		return nil
	}
	from, to = day(from), day(to)

	if c.Recurrence == nil {
		if base.overlaps(from, to) {
			return []DateSpan{base}
		}
		return nil
	}

	interval := c.Recurrence.Interval
	if interval <= 0 {
		interval = 1
	}
	horizon := base.Start.Add(ExpansionHorizon)
	if !c.Recurrence.Until.IsZero() && c.Recurrence.Until.Before(horizon) {
		horizon = day(c.Recurrence.Until)
	}
	if to.Before(horizon) {
		horizon = to
	}

	spanDays := int(base.End.Sub(base.Start).Hours() / 24)

	var out []DateSpan
	for n := 0; ; n++ {
		var start time.Time
		switch c.Recurrence.Freq {
		case model.RecurWeekly:
			start = base.Start.AddDate(0, 0, 7*interval*n)
		case model.RecurMonthly:
			start = base.Start.AddDate(0, interval*n, 0)
		case model.RecurYearly:
			start = base.Start.AddDate(interval*n, 0, 0)
		default:
			return out
		}
		if start.After(horizon) {
			return out
		}
		span := DateSpan{Start: start, End: start.AddDate(0, 0, spanDays)}
		if span.overlaps(from, to) {
			out = append(out, span)
		}
	}
}

// CoversDate reports whether the closure (expanded) blocks the given date.
func CoversDate(c model.Closure, date time.Time) bool {
	return len(Occurrences(c, date, date)) > 0
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
