package model

// ClockRange is a time-of-day interval in minutes from local midnight,
// half-open: [StartMinute, EndMinute). 540–1020 is 09:00–17:00.
type ClockRange struct {
	StartMinute int
	EndMinute   int
}

func (r ClockRange) Valid() bool {
	return r.StartMinute >= 0 && r.EndMinute <= 24*60 && r.StartMinute < r.EndMinute
}

type Business struct {
	ID                 string
	Name               string
	Timezone           string
	AutoConfirm        bool
	GranularityMinutes int
}

type Service struct {
	ID              string
	BusinessID      string
	Name            string
	DurationMinutes int
	BufferMinutes   int
	PriceCents      int64
	Currency        string
}

type Staff struct {
	ID         string
	BusinessID string
	Name       string
	IsActive   bool
	// HasOwnHours marks staff whose individual schedule narrows the
	// business hours; when false the staff member inherits them.
	HasOwnHours bool
}
