package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/parkease/internal/model"
)

// Source loads the rows the aggregator works on.
type Source interface {
	AreaBookings(ctx context.Context, areaID uint64, from, to time.Time, limit int) ([]model.Booking, error)
	AllBookings(ctx context.Context, from, to time.Time) ([]model.Booking, error)
	Areas(ctx context.Context) ([]AreaInfo, error)
	Contacts(ctx context.Context, userIDs []uint64) (map[uint64]Contact, error)
}

// Service answers the dashboard queries.  Ownership checks are the
// caller's job.  Chart buckets and day boundaries use loc.
type Service struct {
	src Source
	loc *time.Location
	now func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLocation sets the time zone chart labels and day boundaries are
// computed in.  The default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func NewService(src Source, opts ...Option) *Service {
	s := &Service{src: src, loc: time.UTC, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) clock() time.Time { return s.now().In(s.loc) }

// Stats covers every booking the area ever had.
func (s *Service) Stats(ctx context.Context, areaID uint64) (Stats, error) {
	rows, err := s.src.AreaBookings(ctx, areaID, time.Time{}, time.Time{}, 0)
	if err != nil {
		return Stats{}, fmt.Errorf("area stats: %w", err)
	}
	return Summarize(rows, s.clock()), nil
}

// Slots returns the 24h and 30d leaderboards.
func (s *Service) Slots(ctx context.Context, areaID uint64) (SlotAnalytics, error) {
	now := s.clock()
	rows, err := s.src.AreaBookings(ctx, areaID, now.Add(-30*24*time.Hour), time.Time{}, 0)
	if err != nil {
		return SlotAnalytics{}, fmt.Errorf("slot analytics: %w", err)
	}
	return Slots(rows, now), nil
}

// Charts returns the rolling hourly and daily series, or a single series
// over [from, to) when both bounds are given.
func (s *Service) Charts(ctx context.Context, areaID uint64, from, to time.Time) (Charts, error) {
	now := s.clock()
	ranged := !from.IsZero() && !to.IsZero()
	lo := startOfDay(now).AddDate(0, 0, -29)
	if ranged {
		lo = from
	}
	rows, err := s.src.AreaBookings(ctx, areaID, lo, to, 0)
	if err != nil {
		return Charts{}, fmt.Errorf("area charts: %w", err)
	}
	if ranged {
		return ChartRange(rows, from, to, now), nil
	}
	return Chart(rows, now), nil
}

// Logs returns the newest bookings with user contact details.
func (s *Service) Logs(ctx context.Context, areaID uint64) ([]LogEntry, error) {
	rows, err := s.src.AreaBookings(ctx, areaID, time.Time{}, time.Time{}, LogLimit)
	if err != nil {
		return nil, fmt.Errorf("area logs: %w", err)
	}
	seen := map[uint64]bool{}
	var ids []uint64
	for _, b := range rows {
		if !seen[b.UserID] {
			seen[b.UserID] = true
			ids = append(ids, b.UserID)
		}
	}
	contacts, err := s.src.Contacts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("area logs: %w", err)
	}
	return Logs(rows, contacts), nil
}

// AllAreas is the admin summary, optionally limited to bookings made in
// [from, to).
func (s *Service) AllAreas(ctx context.Context, from, to time.Time) ([]AreaSummary, error) {
	areas, err := s.src.Areas(ctx)
	if err != nil {
		return nil, fmt.Errorf("list areas: %w", err)
	}
	rows, err := s.src.AllBookings(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("all bookings: %w", err)
	}
	return AllAreas(areas, rows, s.clock()), nil
}
