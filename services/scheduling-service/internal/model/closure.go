package model

import "time"

type ClosureType string

const (
	ClosureVacation      ClosureType = "vacation"
	ClosureMaintenance   ClosureType = "maintenance"
	ClosureEmergency     ClosureType = "emergency"
	ClosureHoliday       ClosureType = "holiday"
	ClosureStaffShortage ClosureType = "staff_shortage"
	ClosureOther         ClosureType = "other"
)

func ParseClosureType(raw string) (ClosureType, bool) {
	switch ClosureType(raw) {
	case ClosureVacation, ClosureMaintenance, ClosureEmergency, ClosureHoliday, ClosureStaffShortage, ClosureOther:
		return ClosureType(raw), true
	}
	return "", false
}

type ClosureStatus string

const (
	ClosureActive  ClosureStatus = "active"
	ClosureEnded   ClosureStatus = "ended"
	ClosureExpired ClosureStatus = "expired"
)

type RecurrenceFreq string

const (
	RecurWeekly  RecurrenceFreq = "weekly"
	RecurMonthly RecurrenceFreq = "monthly"
	RecurYearly  RecurrenceFreq = "yearly"
)

func ParseRecurrenceFreq(raw string) (RecurrenceFreq, bool) {
	switch RecurrenceFreq(raw) {
	case RecurWeekly, RecurMonthly, RecurYearly:
		return RecurrenceFreq(raw), true
	}
	return "", false
}

// Recurrence repeats a closure's [StartDate, EndDate] block every Interval
// weeks/months/years until Until (inclusive; zero = open-ended, bounded by
// the evaluation horizon).
type Recurrence struct {
	Freq     RecurrenceFreq
	Interval int
	Until    time.Time
}

// Closure blocks bookable time at date granularity. StartDate/EndDate are
// inclusive dates at midnight UTC. When DailyWindow is set the closure
// blocks only that time-of-day band on each covered date (a half-day
// maintenance, say); otherwise it blocks whole days.
type Closure struct {
	ID          string
	BusinessID  string
	StartDate   time.Time
	EndDate     time.Time
	Type        ClosureType
	Reason      string
	ServiceIDs  []string // empty = applies to all services
	DailyWindow *ClockRange
	Recurrence  *Recurrence
	Status      ClosureStatus

	// AutoReschedulePolicy, when present, is applied asynchronously to
	// impacted appointments after the closure is created.
	AutoReschedulePolicy *ReschedulePolicy

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AppliesToService reports whether the closure's service scope covers
// serviceID. An empty scope covers everything.
func (c Closure) AppliesToService(serviceID string) bool {
	if len(c.ServiceIDs) == 0 {
		return true
	}
	for _, id := range c.ServiceIDs {
		if id == serviceID {
			return true
		}
	}
	return false
}

type TimeBucket string

const (
	BucketAny       TimeBucket = "any"
	BucketMorning   TimeBucket = "morning"   // start < 12:00
	BucketAfternoon TimeBucket = "afternoon" // 12:00 <= start <= 17:00
	BucketEvening   TimeBucket = "evening"   // start > 17:00
)

func ParseTimeBucket(raw string) (TimeBucket, bool) {
	switch TimeBucket(raw) {
	case BucketAny, BucketMorning, BucketAfternoon, BucketEvening:
		return TimeBucket(raw), true
	}
	return "", false
}

// Contains reports whether a local start time falls in the bucket.
func (b TimeBucket) Contains(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()
	switch b {
	case BucketMorning:
		return minute < 12*60
	case BucketAfternoon:
		return minute >= 12*60 && minute <= 17*60
	case BucketEvening:
		return minute > 17*60
	default:
		return true
	}
}

type ReschedulePolicy struct {
	MaxDays       int
	Bucket        TimeBucket
	AllowWeekends bool
}

type RescheduleSuggestion struct {
	AppointmentID string
	Date          string // business-local YYYY-MM-DD
	StartTime     time.Time
	EndTime       time.Time
}
