package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/slotbook/slotbook/services/scheduling-service/internal/availability"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/closure"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

const DateLayout = "2006-01-02"

// Store is the read surface the resolver needs. The storage package
// provides the Postgres implementation; tests substitute fakes.
type Store interface {
	GetBusiness(ctx context.Context, businessID string) (model.Business, error)
	GetWeeklyHours(ctx context.Context, businessID string, weekday time.Weekday) ([]model.ClockRange, error)
	// GetDateOverride returns the replacement hours for a specific date.
	// ok=false means no override exists and the weekday default applies.
	GetDateOverride(ctx context.Context, businessID, date string) ([]model.ClockRange, bool, error)
	ListActiveClosures(ctx context.Context, businessID string) ([]model.Closure, error)
	GetStaff(ctx context.Context, businessID, staffID string) (model.Staff, error)
	GetStaffHours(ctx context.Context, businessID, staffID string, weekday time.Weekday) ([]model.ClockRange, error)
}

type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Day is one resolved business-local calendar day: the open intervals left
// after overrides, closures and staff hours have been applied. An empty
// Windows slice is a valid result (fully closed day), not an error.
type Day struct {
	Date     time.Time // local midnight
	Location *time.Location
	Business model.Business
	Windows  []availability.Interval
}

// OpenWindows resolves the bookable open intervals for a business (and
// optionally one staff member) on a date, for the given service.
//
// Order of application: weekday default hours, replaced wholesale by a
// date override when one exists; minus every matching closure; intersected
// with the staff member's own hours when the scope names one.
func (r *Resolver) OpenWindows(ctx context.Context, date, serviceID string, scope model.Scope) (Day, error) {
	biz, err := r.store.GetBusiness(ctx, scope.BusinessID)
	if err != nil {
		return Day{}, err
	}
	if biz.Timezone == "" {
		return Day{}, fmt.Errorf("business %s has no timezone configured: %w", biz.ID, model.ErrInvalidBusinessState)
	}
	loc, err := time.LoadLocation(biz.Timezone)
	if err != nil {
		return Day{}, fmt.Errorf("business %s timezone %q: %w", biz.ID, biz.Timezone, model.ErrInvalidBusinessState)
	}

	dayLocal, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q: %w", date, model.ErrInvalidArgument)
	}

	ranges, overridden, err := r.store.GetDateOverride(ctx, biz.ID, date)
	if err != nil {
		return Day{}, err
	}
	if !overridden {
		ranges, err = r.store.GetWeeklyHours(ctx, biz.ID, dayLocal.Weekday())
		if err != nil {
			return Day{}, err
		}
	}

	windows := clockRangesToIntervals(dayLocal, ranges)

	closures, err := r.store.ListActiveClosures(ctx, biz.ID)
	if err != nil {
		return Day{}, err
	}
	var blocks []availability.Interval
	utcDate := time.Date(dayLocal.Year(), dayLocal.Month(), dayLocal.Day(), 0, 0, 0, 0, time.UTC)
	for _, c := range closures {
		if serviceID != "" && !c.AppliesToService(serviceID) {
			continue
		}
		if !closure.CoversDate(c, utcDate) {
			continue
		}
		blocks = append(blocks, closureBlock(c, dayLocal))
	}
	if len(blocks) > 0 {
		windows = availability.SubtractAll(windows, blocks)
	}

	if scope.StaffScoped() {
		staff, err := r.store.GetStaff(ctx, biz.ID, scope.StaffID)
		if err != nil {
			return Day{}, err
		}
		if staff.HasOwnHours {
			staffRanges, err := r.store.GetStaffHours(ctx, biz.ID, staff.ID, dayLocal.Weekday())
			if err != nil {
				return Day{}, err
			}
			windows = availability.Intersect(windows, clockRangesToIntervals(dayLocal, staffRanges))
		}
	}

	return Day{
		Date:     dayLocal,
		Location: loc,
		Business: biz,
		Windows:  availability.Merge(windows),
	}, nil
}

func clockRangesToIntervals(dayLocal time.Time, ranges []model.ClockRange) []availability.Interval {
	out := make([]availability.Interval, 0, len(ranges))
	for _, cr := range ranges {
		if !cr.Valid() {
			continue
		}
		out = append(out, availability.Interval{
			Start: dayLocal.Add(time.Duration(cr.StartMinute) * time.Minute),
			End:   dayLocal.Add(time.Duration(cr.EndMinute) * time.Minute),
		})
	}
	return out
}

func closureBlock(c model.Closure, dayLocal time.Time) availability.Interval {
	if c.DailyWindow != nil && c.DailyWindow.Valid() {
		return availability.Interval{
			Start: dayLocal.Add(time.Duration(c.DailyWindow.StartMinute) * time.Minute),
			End:   dayLocal.Add(time.Duration(c.DailyWindow.EndMinute) * time.Minute),
		}
	}
	return availability.Interval{Start: dayLocal, End: dayLocal.AddDate(0, 0, 1)}
}
