package liveview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/calendar"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
	"github.com/slotbook/slotbook/services/scheduling-service/internal/storage"
)

const (
	DefaultQueueSize = 10
	MaxQueueSize     = 100

	monitorCacheTTL = 2 * time.Second
)

// Projector serves the read-side views: a customer's current-hour
// appointments and the business monitor queue. Everything here is
// side-effect-free; the monitor queue is additionally cached in Redis
// for a couple of seconds since waiting-room displays poll it hard.
type Projector struct {
	appts  *storage.AppointmentRepository
	cal    *storage.CalendarRepository
	cache  *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewProjector(appts *storage.AppointmentRepository, cal *storage.CalendarRepository, cache *redis.Client, logger *slog.Logger) *Projector {
	return &Projector{
		appts:  appts,
		cal:    cal,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock fixes the projector's notion of now. Tests only.
func (p *Projector) WithClock(now func() time.Time) *Projector {
	p.now = now
	return p
}

// HourWindow returns [now, end-of-current-clock-hour). Appointments that
// already started are outside the window; the view shows what is still
// ahead within this hour.
func HourWindow(now time.Time) (time.Time, time.Time) {
	end := now.Truncate(time.Hour).Add(time.Hour)
	return now, end
}

// ClampQueueSize normalizes a requested monitor queue size: zero takes
// the default, everything else is bounded to [1, 100].
func ClampQueueSize(n int) int {
	if n == 0 {
		return DefaultQueueSize
	}
	if n < 1 {
		return 1
	}
	if n > MaxQueueSize {
		return MaxQueueSize
	}
	return n
}

// InCurrentHour returns the customer's active appointments starting
// within the remainder of the current clock hour, earliest first.
func (p *Projector) InCurrentHour(ctx context.Context, businessID, customerID string) ([]model.Appointment, error) {
	from, to := HourWindow(p.now())
	appts, err := p.appts.ListUserActiveBetween(ctx, businessID, customerID, from, to)
	if err != nil {
		return nil, err
	}
	// The range query also matches in-progress appointments; the view
	// only shows ones that have not started yet.
	out := appts[:0]
	for _, a := range appts {
		if !a.StartTime.Before(from) {
			out = append(out, a)
		}
	}
	return out, nil
}

// NearestInCurrentHour returns the single next appointment inside the
// current hour, or nil when the hour holds none.
func (p *Projector) NearestInCurrentHour(ctx context.Context, businessID, customerID string) (*model.Appointment, error) {
	appts, err := p.InCurrentHour(ctx, businessID, customerID)
	if err != nil {
		return nil, err
	}
	if len(appts) == 0 {
		return nil, nil
	}
	return &appts[0], nil
}

// Next returns the customer's earliest upcoming active appointment with
// no hour restriction, or nil when none is scheduled.
func (p *Projector) Next(ctx context.Context, businessID, customerID string) (*model.Appointment, error) {
	appt, err := p.appts.NextUserAppointment(ctx, businessID, customerID, p.now())
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &appt, nil
}

type MonitorView struct {
	Date  string              `json:"date"`
	Queue []model.Appointment `json:"queue"`
	Stats map[string]int      `json:"stats,omitempty"`
}

// MonitorQueue builds the waiting-room view for one business day: the
// day's non-terminal appointments ascending by start time, truncated to
// maxSize, with per-status counts when withStats is set. date is
// business-local (empty means today).
func (p *Projector) MonitorQueue(ctx context.Context, businessID, date string, maxSize int, withStats bool) (MonitorView, error) {
	maxSize = ClampQueueSize(maxSize)

	biz, err := p.cal.GetBusiness(ctx, businessID)
	if err != nil {
		return MonitorView{}, err
	}
	loc, err := time.LoadLocation(biz.Timezone)
	if err != nil {
		return MonitorView{}, fmt.Errorf("business %s timezone %q: %w", businessID, biz.Timezone, model.ErrInvalidBusinessState)
	}
	if date == "" {
		date = p.now().In(loc).Format(calendar.DateLayout)
	}
	dayStart, err := time.ParseInLocation(calendar.DateLayout, date, loc)
	if err != nil {
		return MonitorView{}, fmt.Errorf("invalid date %q: %w", date, model.ErrInvalidArgument)
	}
	dayEnd := dayStart.AddDate(0, 0, 1)

	cacheKey := fmt.Sprintf("monitor:%s:%s:%d:%t", businessID, date, maxSize, withStats)
	if view, ok := p.cachedView(ctx, cacheKey); ok {
		return view, nil
	}

	appts, err := p.appts.ListBusinessDayNonTerminal(ctx, businessID, dayStart, dayEnd)
	if err != nil {
		return MonitorView{}, err
	}
	if len(appts) > maxSize {
		appts = appts[:maxSize]
	}
	view := MonitorView{Date: date, Queue: appts}
	if view.Queue == nil {
		view.Queue = []model.Appointment{}
	}

	if withStats {
		counts, err := p.appts.CountDayByStatus(ctx, businessID, dayStart, dayEnd)
		if err != nil {
			return MonitorView{}, err
		}
		view.Stats = make(map[string]int, len(counts))
		for status, n := range counts {
			view.Stats[string(status)] = n
		}
	}

	p.storeView(ctx, cacheKey, view)
	return view, nil
}

func (p *Projector) cachedView(ctx context.Context, key string) (MonitorView, bool) {
	if p.cache == nil {
		return MonitorView{}, false
	}
	raw, err := p.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			p.logger.Warn("monitor cache read failed", "err", err)
		}
		return MonitorView{}, false
	}
	var view MonitorView
	if err := json.Unmarshal(raw, &view); err != nil {
		return MonitorView{}, false
	}
	return view, true
}

func (p *Projector) storeView(ctx context.Context, key string, view MonitorView) {
	if p.cache == nil {
		return
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, key, raw, monitorCacheTTL).Err(); err != nil {
		p.logger.Warn("monitor cache write failed", "err", err)
	}
}
