package model

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusNoShow    Status = "no_show"
)

// Terminal reports whether no further transition is defined out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCanceled, StatusNoShow:
		return true
	}
	return false
}

// Active reports whether s blocks the appointment's time slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCanceled, StatusNoShow:
		return Status(raw), true
	}
	return "", false
}

type Appointment struct {
	ID              string
	BusinessID      string
	ServiceID       string
	StaffID         string // empty = business-wide booking
	CustomerID      string
	StartTime       time.Time
	EndTime         time.Time
	Status          Status
	PriceCents      int64
	Currency        string
	Notes           string
	CancelReason    string
	CompletionNotes string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Scope identifies the unit overlap is checked against: one staff member,
// or the whole business when no staff is assigned.
type Scope struct {
	BusinessID string
	StaffID    string
}

func BusinessWide(businessID string) Scope {
	return Scope{BusinessID: businessID}
}

func StaffScoped(businessID, staffID string) Scope {
	return Scope{BusinessID: businessID, StaffID: staffID}
}

func (s Scope) StaffScoped() bool {
	return s.StaffID != ""
}

// Key mirrors the generated scope_key column backing the anti-overlap
// exclusion constraint.
func (s Scope) Key() string {
	if s.StaffID == "" {
		return "business"
	}
	return s.StaffID
}

// ContentionKeys lists the scope_key values a booking in this scope
// contends with. Business-wide bookings contend with every active
// appointment, so nil means no scope filter. Staff bookings contend
// with that staff member and with business-wide appointments.
func (s Scope) ContentionKeys() []string {
	if s.StaffID == "" {
		return nil
	}
	return []string{"business", s.StaffID}
}
