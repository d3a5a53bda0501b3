package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/parkease/internal/analytics"
	"github.com/iliyamo/parkease/internal/model"
)

// AnalyticsRepo loads the booking rows the analytics aggregator buckets.
// Everything here is read-only.
type AnalyticsRepo struct {
	db *sql.DB
}

func NewAnalyticsRepo(db *sql.DB) *AnalyticsRepo { return &AnalyticsRepo{db: db} }

// AreaBookings returns the area's bookings in [from, to) by booking time,
// newest first.  A zero bound is open.  limit <= 0 means no limit.
func (r *AnalyticsRepo) AreaBookings(ctx context.Context, areaID uint64, from, to time.Time, limit int) ([]model.Booking, error) {
	q := bookingView + " WHERE b.area_id = ?"
	args := []interface{}{areaID}
	q, args = timeRange(q, args, from, to)
	q += " ORDER BY b.booking_time DESC, b.id DESC"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows, true)
}

// AllBookings returns every booking in [from, to), for the admin summary.
func (r *AnalyticsRepo) AllBookings(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	q := bookingView + " WHERE 1=1"
	q, args := timeRange(q, nil, from, to)
	rows, err := r.db.QueryContext(ctx, q+" ORDER BY b.area_id, b.id", args...)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows, true)
}

// Areas lists every area with its owner's name, for the admin summary.
func (r *AnalyticsRepo) Areas(ctx context.Context) ([]analytics.AreaInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT a.id, a.name, COALESCE(u.name, '')
FROM parking_areas a LEFT JOIN users u ON u.id = a.owner_id
ORDER BY a.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []analytics.AreaInfo
	for rows.Next() {
		var a analytics.AreaInfo
		if err := rows.Scan(&a.ID, &a.Name, &a.Owner); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Contacts returns name and phone for the given users.
func (r *AnalyticsRepo) Contacts(ctx context.Context, userIDs []uint64) (map[uint64]analytics.Contact, error) {
	out := map[uint64]analytics.Contact{}
	if len(userIDs) == 0 {
		return out, nil
	}
	args := make([]interface{}, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, COALESCE(phone, '') FROM users WHERE id IN ("+placeholders(len(userIDs))+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id uint64
			c  analytics.Contact
		)
		if err := rows.Scan(&id, &c.Name, &c.Phone); err != nil {
			return nil, err
		}
		out[id] = c
	}
	return out, rows.Err()
}

func timeRange(q string, args []interface{}, from, to time.Time) (string, []interface{}) {
	if !from.IsZero() {
		q += " AND b.booking_time >= ?"
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		q += " AND b.booking_time < ?"
		args = append(args, to.UTC())
	}
	return q, args
}

var _ analytics.Source = (*AnalyticsRepo)(nil)
