package model

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCanceled, StatusNoShow} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
		if s.Active() {
			t.Fatalf("%s should not be active", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusConfirmed} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
		if !s.Active() {
			t.Fatalf("%s should be active", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := ParseStatus("no_show"); !ok || s != StatusNoShow {
		t.Fatalf("ParseStatus(no_show) = %v, %v", s, ok)
	}
	if _, ok := ParseStatus("rescheduled"); ok {
		t.Fatal("unknown status should not parse")
	}
}

func TestScopeKey(t *testing.T) {
	if got := BusinessWide("biz-1").Key(); got != "business" {
		t.Fatalf("business-wide scope key = %q", got)
	}
	if got := StaffScoped("biz-1", "staff-7").Key(); got != "staff-7" {
		t.Fatalf("staff scope key = %q", got)
	}
	if BusinessWide("biz-1").StaffScoped() {
		t.Fatal("business-wide scope must not be staff scoped")
	}
}

func TestScopeContentionKeys(t *testing.T) {
	if keys := BusinessWide("biz-1").ContentionKeys(); keys != nil {
		t.Fatalf("business-wide scope contends with everything, got filter %v", keys)
	}
	keys := StaffScoped("biz-1", "staff-7").ContentionKeys()
	if len(keys) != 2 || keys[0] != "business" || keys[1] != "staff-7" {
		t.Fatalf("staff scope must contend with business-wide rows too, got %v", keys)
	}
}

func TestTimeBucketContains(t *testing.T) {
	mk := func(h, m int) time.Time {
		return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
	}
	if !BucketMorning.Contains(mk(11, 59)) || BucketMorning.Contains(mk(12, 0)) {
		t.Fatal("morning is strictly before 12:00")
	}
	if !BucketAfternoon.Contains(mk(12, 0)) || !BucketAfternoon.Contains(mk(17, 0)) || BucketAfternoon.Contains(mk(17, 1)) {
		t.Fatal("afternoon spans 12:00 through 17:00 inclusive")
	}
	if !BucketEvening.Contains(mk(17, 1)) || BucketEvening.Contains(mk(17, 0)) {
		t.Fatal("evening is strictly after 17:00")
	}
	if !BucketAny.Contains(mk(3, 0)) {
		t.Fatal("any accepts every time")
	}
}

func TestClosureAppliesToService(t *testing.T) {
	all := Closure{}
	if !all.AppliesToService("svc-1") {
		t.Fatal("unrestricted closure applies to every service")
	}
	scoped := Closure{ServiceIDs: []string{"svc-1", "svc-2"}}
	if !scoped.AppliesToService("svc-2") || scoped.AppliesToService("svc-3") {
		t.Fatal("scoped closure applies only to listed services")
	}
}

func TestErrorKind(t *testing.T) {
	wrapped := fmt.Errorf("slot 10:00 taken: %w", ErrSlotConflict)
	if ErrorKind(wrapped) != "slot_conflict" {
		t.Fatalf("wrapped conflict kind = %q", ErrorKind(wrapped))
	}
	if ErrorKind(errors.New("boom")) != "" {
		t.Fatal("unknown errors have no kind")
	}
	if ErrorKind(ErrBusinessClosed) != "business_closed" {
		t.Fatal("business closed kind mismatch")
	}
}
