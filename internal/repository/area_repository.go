package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/parkease/internal/model"
)

// AreaRepo manages parking areas and their per-type rates.
type AreaRepo struct {
	db *sql.DB
}

func NewAreaRepo(db *sql.DB) *AreaRepo { return &AreaRepo{db: db} }

// SlotNumber is the generated label for the n-th slot of a type.
func SlotNumber(t model.VehicleType, n int) string {
	return fmt.Sprintf("S-%s-%d", t, n)
}

// Create inserts the area, its rates and one slot per unit of capacity, all
// in one transaction.  It returns the number of slots generated.
func (r *AreaRepo) Create(ctx context.Context, a *model.Area) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO parking_areas (owner_id, name, address, lat, lon) VALUES (?, ?, ?, ?, ?)`,
		a.OwnerID, strings.TrimSpace(a.Name), strings.TrimSpace(a.Address), a.Lat, a.Lon)
	if err != nil {
		return 0, fmt.Errorf("insert area: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	a.ID = uint64(id)

	rateQ := `INSERT INTO area_rates (area_id, vehicle_type, capacity, base_hourly_rate) VALUES `
	rateArgs := make([]interface{}, 0, len(model.VehicleTypes)*4)
	var slots []model.Slot
	for i, t := range model.VehicleTypes {
		if i > 0 {
			rateQ += ","
		}
		rateQ += "(?, ?, ?, ?)"
		rateArgs = append(rateArgs, a.ID, t, a.CapacityByType[t], a.BaseRateByType[t])
		for n := 1; n <= a.CapacityByType[t]; n++ {
			slots = append(slots, model.Slot{
				AreaID:               a.ID,
				SlotNumber:           SlotNumber(t, n),
				SupportedVehicleType: t,
				BaseHourlyRate:       a.BaseRateByType[t],
				Status:               model.SlotAvailable,
			})
		}
	}
	if _, err := tx.ExecContext(ctx, rateQ, rateArgs...); err != nil {
		return 0, fmt.Errorf("insert area rates: %w", err)
	}
	if err := insertSlots(ctx, tx, slots); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return len(slots), nil
}

// insertSlots writes slots with one multi-row INSERT.
func insertSlots(ctx context.Context, q querier, slots []model.Slot) error {
	if len(slots) == 0 {
		return nil
	}
	query := `INSERT INTO slots (area_id, slot_number, floor, supported_vehicle_type, base_hourly_rate, status) VALUES `
	args := make([]interface{}, 0, len(slots)*6)
	for i, s := range slots {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, s.AreaID, s.SlotNumber, s.Floor, s.SupportedVehicleType, s.BaseHourlyRate, s.Status)
	}
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert slots: %w", err)
	}
	return nil
}

const areaCols = "a.id, a.owner_id, a.name, a.address, a.lat, a.lon, a.created_at"

func scanArea(s scanner) (model.Area, error) {
	var a model.Area
	err := s.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Address, &a.Lat, &a.Lon, &a.CreatedAt)
	return a, err
}

// Get returns one area with its rates.
func (r *AreaRepo) Get(ctx context.Context, id uint64) (model.Area, error) {
	a, err := scanArea(r.db.QueryRowContext(ctx, "SELECT "+areaCols+" FROM parking_areas a WHERE a.id = ?", id))
	if err != nil {
		return model.Area{}, notFound(err, ErrNotFound)
	}
	if err := r.loadRates(ctx, []*model.Area{&a}); err != nil {
		return model.Area{}, err
	}
	return a, nil
}

// CheckOwner returns ErrNotFound for a missing area and ErrForbidden when
// ownerID does not own it.
func (r *AreaRepo) CheckOwner(ctx context.Context, areaID, ownerID uint64) error {
	var owner uint64
	err := r.db.QueryRowContext(ctx, "SELECT owner_id FROM parking_areas WHERE id = ?", areaID).Scan(&owner)
	if err != nil {
		return notFound(err, ErrNotFound)
	}
	if owner != ownerID {
		return ErrForbidden
	}
	return nil
}

// ListByOwner returns the owner's areas with live availability.
func (r *AreaRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.AreaSummary, error) {
	return r.summaries(ctx, "WHERE a.owner_id = ?", ownerID)
}

// ListAll returns every area with live availability.
func (r *AreaRepo) ListAll(ctx context.Context) ([]model.AreaSummary, error) {
	return r.summaries(ctx, "")
}

func (r *AreaRepo) summaries(ctx context.Context, where string, args ...interface{}) ([]model.AreaSummary, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+areaCols+" FROM parking_areas a "+where+" ORDER BY a.id", args...)
	if err != nil {
		return nil, err
	}
	var areas []*model.Area
	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		areas = append(areas, &a)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	out := make([]model.AreaSummary, 0, len(areas))
	if len(areas) == 0 {
		return out, nil
	}
	if err := r.loadRates(ctx, areas); err != nil {
		return nil, err
	}
	avail, err := availabilityFor(ctx, r.db, areaIDs(areas))
	if err != nil {
		return nil, err
	}
	for _, a := range areas {
		out = append(out, summarize(*a, avail[a.ID]))
	}
	return out, nil
}

func summarize(a model.Area, counts []model.Availability) model.AreaSummary {
	s := model.AreaSummary{Area: a, Availability: counts}
	for _, c := range counts {
		s.TotalSlots += c.Total
		s.AvailableSlots += c.Available
	}
	if s.Availability == nil {
		s.Availability = []model.Availability{}
	}
	return s
}

func areaIDs(areas []*model.Area) []uint64 {
	ids := make([]uint64, len(areas))
	for i, a := range areas {
		ids[i] = a.ID
	}
	return ids
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (r *AreaRepo) loadRates(ctx context.Context, areas []*model.Area) error {
	byID := make(map[uint64]*model.Area, len(areas))
	args := make([]interface{}, len(areas))
	for i, a := range areas {
		a.CapacityByType = map[model.VehicleType]int{}
		a.BaseRateByType = map[model.VehicleType]model.Money{}
		byID[a.ID] = a
		args[i] = a.ID
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT area_id, vehicle_type, capacity, base_hourly_rate FROM area_rates WHERE area_id IN ("+placeholders(len(areas))+")", args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id       uint64
			t        model.VehicleType
			capacity int
			rate     model.Money
		)
		if err := rows.Scan(&id, &t, &capacity, &rate); err != nil {
			return err
		}
		if a := byID[id]; a != nil {
			a.CapacityByType[t] = capacity
			a.BaseRateByType[t] = rate
		}
	}
	return rows.Err()
}
