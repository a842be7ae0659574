package closure

import (
	"testing"
	"time"

	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestOccurrences_NonRecurring(t *testing.T) {
	c := model.Closure{StartDate: date(2026, 7, 1), EndDate: date(2026, 7, 14)}

	got := Occurrences(c, date(2026, 7, 5), date(2026, 7, 20))
	if len(got) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(got))
	}
	if !got[0].Start.Equal(date(2026, 7, 1)) || !got[0].End.Equal(date(2026, 7, 14)) {
		t.Fatalf("unexpected span: %v", got[0])
	}

	if got := Occurrences(c, date(2026, 8, 1), date(2026, 8, 31)); len(got) != 0 {
		t.Fatalf("expected no occurrences outside the span, got %v", got)
	}
}

func TestOccurrences_WeeklyWithInterval(t *testing.T) {
	c := model.Closure{
		StartDate:  date(2026, 1, 5), // Monday
		EndDate:    date(2026, 1, 5),
		Recurrence: &model.Recurrence{Freq: model.RecurWeekly, Interval: 2},
	}
	got := Occurrences(c, date(2026, 1, 1), date(2026, 2, 28))
	// Jan 5, Jan 19, Feb 2, Feb 16.
	if len(got) != 4 {
		t.Fatalf("expected 4 occurrences, got %d: %v", len(got), got)
	}
	if !got[1].Start.Equal(date(2026, 1, 19)) {
		t.Fatalf("second occurrence should be Jan 19, got %s", got[1].Start)
	}
}

func TestOccurrences_UntilClamps(t *testing.T) {
	c := model.Closure{
		StartDate:  date(2026, 1, 5),
		EndDate:    date(2026, 1, 5),
		Recurrence: &model.Recurrence{Freq: model.RecurWeekly, Interval: 1, Until: date(2026, 1, 20)},
	}
	got := Occurrences(c, date(2026, 1, 1), date(2026, 6, 30))
	// Jan 5, 12, 19; Jan 26 is past until.
	if len(got) != 3 {
		t.Fatalf("expected 3 occurrences, got %d: %v", len(got), got)
	}
}

func TestOccurrences_HorizonBoundsOpenEndedRules(t *testing.T) {
	c := model.Closure{
		StartDate:  date(2026, 1, 1),
		EndDate:    date(2026, 1, 1),
		Recurrence: &model.Recurrence{Freq: model.RecurWeekly, Interval: 1},
	}
	got := Occurrences(c, date(2026, 1, 1), date(2040, 1, 1))
	horizon := c.StartDate.Add(ExpansionHorizon)
	for _, s := range got {
		if s.Start.After(horizon) {
			t.Fatalf("occurrence %s beyond the expansion horizon", s.Start)
		}
	}
	if len(got) == 0 {
		t.Fatal("expected occurrences within the horizon")
	}
}

func TestOccurrences_MonthlySpanPreserved(t *testing.T) {
	c := model.Closure{
		StartDate:  date(2026, 1, 10),
		EndDate:    date(2026, 1, 12),
		Recurrence: &model.Recurrence{Freq: model.RecurMonthly, Interval: 1},
	}
	got := Occurrences(c, date(2026, 2, 1), date(2026, 2, 28))
	if len(got) != 1 {
		t.Fatalf("expected 1 February occurrence, got %d: %v", len(got), got)
	}
	if !got[0].Start.Equal(date(2026, 2, 10)) || !got[0].End.Equal(date(2026, 2, 12)) {
		t.Fatalf("expected Feb 10-12, got %v", got[0])
	}
}

func TestCoversDate(t *testing.T) {
	c := model.Closure{
		StartDate:  date(2026, 1, 5),
		EndDate:    date(2026, 1, 6),
		Recurrence: &model.Recurrence{Freq: model.RecurWeekly, Interval: 1},
	}
	if !CoversDate(c, date(2026, 1, 13)) {
		t.Fatal("Jan 13 falls in the second weekly occurrence")
	}
	if CoversDate(c, date(2026, 1, 8)) {
		t.Fatal("Jan 8 is between occurrences")
	}
}
