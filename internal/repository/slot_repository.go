package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/parkease/internal/booking"
	"github.com/iliyamo/parkease/internal/model"
)

// ErrInvalidSlotStatus is returned when an owner asks for a status other
// than AVAILABLE or MAINTENANCE.
var ErrInvalidSlotStatus = errors.New("owners may only set AVAILABLE or MAINTENANCE")

// SlotRepo is the slot registry.  Every status change is a compare-and-swap
// on (id, status) that bumps version.
type SlotRepo struct {
	db *sql.DB
}

func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

const slotCols = "s.id, s.area_id, s.slot_number, s.floor, s.supported_vehicle_type, s.base_hourly_rate, s.status, s.version"

func scanSlot(s scanner) (model.Slot, error) {
	var sl model.Slot
	err := s.Scan(&sl.ID, &sl.AreaID, &sl.SlotNumber, &sl.Floor, &sl.SupportedVehicleType, &sl.BaseHourlyRate, &sl.Status, &sl.Version)
	return sl, err
}

// ListByArea returns the area's slots ordered by floor and number.
func (r *SlotRepo) ListByArea(ctx context.Context, areaID uint64) ([]model.Slot, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+slotCols+" FROM slots s WHERE s.area_id = ? ORDER BY s.floor, s.supported_vehicle_type, s.id", areaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Slot{}
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}

// Availability counts the area's slots per vehicle type and status.
func (r *SlotRepo) Availability(ctx context.Context, areaID uint64) ([]model.Availability, error) {
	m, err := availabilityFor(ctx, r.db, []uint64{areaID})
	if err != nil {
		return nil, err
	}
	if m[areaID] == nil {
		return []model.Availability{}, nil
	}
	return m[areaID], nil
}

func availabilityFor(ctx context.Context, q querier, areaIDs []uint64) (map[uint64][]model.Availability, error) {
	args := make([]interface{}, len(areaIDs))
	for i, id := range areaIDs {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx,
		`SELECT area_id, supported_vehicle_type, status, COUNT(*) FROM slots
		 WHERE area_id IN (`+placeholders(len(areaIDs))+`)
		 GROUP BY area_id, supported_vehicle_type, status`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[uint64]map[model.VehicleType]*model.Availability{}
	for rows.Next() {
		var (
			areaID uint64
			t      model.VehicleType
			st     model.SlotStatus
			n      int
		)
		if err := rows.Scan(&areaID, &t, &st, &n); err != nil {
			return nil, err
		}
		byType := counts[areaID]
		if byType == nil {
			byType = map[model.VehicleType]*model.Availability{}
			counts[areaID] = byType
		}
		a := byType[t]
		if a == nil {
			a = &model.Availability{VehicleType: t}
			byType[t] = a
		}
		a.Total += n
		switch st {
		case model.SlotAvailable:
			a.Available += n
		case model.SlotReserved:
			a.Reserved += n
		case model.SlotOccupied:
			a.Occupied += n
		case model.SlotMaintenance:
			a.Maintenance += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make(map[uint64][]model.Availability, len(counts))
	for areaID, byType := range counts {
		for _, t := range model.VehicleTypes {
			if a := byType[t]; a != nil {
				out[areaID] = append(out[areaID], *a)
			}
		}
	}
	return out, nil
}

// SlotDetails is a slot together with its area.
type SlotDetails struct {
	Slot model.Slot `json:"slot"`
	Area model.Area `json:"area"`
}

// Details returns a slot and its area.
func (r *SlotRepo) Details(ctx context.Context, slotID uint64) (SlotDetails, error) {
	var d SlotDetails
	err := r.db.QueryRowContext(ctx,
		"SELECT "+slotCols+", "+areaCols+" FROM slots s JOIN parking_areas a ON a.id = s.area_id WHERE s.id = ?", slotID).Scan(
		&d.Slot.ID, &d.Slot.AreaID, &d.Slot.SlotNumber, &d.Slot.Floor, &d.Slot.SupportedVehicleType, &d.Slot.BaseHourlyRate, &d.Slot.Status, &d.Slot.Version,
		&d.Area.ID, &d.Area.OwnerID, &d.Area.Name, &d.Area.Address, &d.Area.Lat, &d.Area.Lon, &d.Area.CreatedAt)
	if err != nil {
		return SlotDetails{}, notFound(err, booking.ErrSlotNotFound)
	}
	return d, nil
}

// Transition moves a slot from -> to outside any caller transaction.
func (r *SlotRepo) Transition(ctx context.Context, slotID uint64, from, to model.SlotStatus) error {
	return transitionSlot(ctx, r.db, slotID, from, to)
}

func transitionSlot(ctx context.Context, q querier, slotID uint64, from, to model.SlotStatus) error {
	res, err := q.ExecContext(ctx,
		"UPDATE slots SET status = ?, version = version + 1 WHERE id = ? AND status = ?", to, slotID, from)
	if err != nil {
		return fmt.Errorf("transition slot %d: %w", slotID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: slot %d is not %s", ErrConflict, slotID, from)
	}
	return nil
}

func slotForUpdate(ctx context.Context, q querier, slotID uint64) (model.Slot, error) {
	sl, err := scanSlot(q.QueryRowContext(ctx, "SELECT "+slotCols+" FROM slots s WHERE s.id = ? FOR UPDATE", slotID))
	if err != nil {
		return model.Slot{}, notFound(err, booking.ErrSlotNotFound)
	}
	return sl, nil
}

// Create adds one slot to an area.
func (r *SlotRepo) Create(ctx context.Context, s *model.Slot) error {
	s.SlotNumber = strings.TrimSpace(s.SlotNumber)
	if s.Status == "" {
		s.Status = model.SlotAvailable
	}
	if s.Status != model.SlotAvailable && s.Status != model.SlotMaintenance {
		return ErrInvalidSlotStatus
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO slots (area_id, slot_number, floor, supported_vehicle_type, base_hourly_rate, status) VALUES (?, ?, ?, ?, ?, ?)`,
		s.AreaID, s.SlotNumber, s.Floor, s.SupportedVehicleType, s.BaseHourlyRate, s.Status)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert slot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.Version = 1
	return nil
}

// SlotUpdate is one item of an owner batch edit.  Nil fields are left
// unchanged.
type SlotUpdate struct {
	SlotID     uint64            `json:"slotId"`
	SlotNumber *string           `json:"slotNumber"`
	Floor      *int              `json:"floor"`
	HourlyRate *model.Money      `json:"hourlyRate"`
	Status     *model.SlotStatus `json:"status"`
}

// UpdateBatch applies every item or none.  A slot outside areaID yields
// ErrNotFound; a slot that is RESERVED or OCCUPIED yields ErrConflict since
// only the booking engine may move it.
func (r *SlotRepo) UpdateBatch(ctx context.Context, areaID uint64, items []SlotUpdate) (int, error) {
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

	for _, it := range items {
		cur, err := slotForUpdate(ctx, tx, it.SlotID)
		if err != nil {
			if errors.Is(err, booking.ErrSlotNotFound) {
				return 0, fmt.Errorf("%w: slot %d", ErrNotFound, it.SlotID)
			}
			return 0, err
		}
		if cur.AreaID != areaID {
			return 0, fmt.Errorf("%w: slot %d", ErrNotFound, it.SlotID)
		}
		if cur.Status == model.SlotReserved || cur.Status == model.SlotOccupied {
			return 0, fmt.Errorf("%w: slot %s is %s", ErrConflict, cur.SlotNumber, cur.Status)
		}
		next := cur
		if it.Status != nil {
			st, ok := model.ParseSlotStatus(string(*it.Status))
			if !ok || (st != model.SlotAvailable && st != model.SlotMaintenance) {
				return 0, ErrInvalidSlotStatus
			}
			next.Status = st
		}
		if it.SlotNumber != nil && strings.TrimSpace(*it.SlotNumber) != "" {
			next.SlotNumber = strings.TrimSpace(*it.SlotNumber)
		}
		if it.Floor != nil {
			next.Floor = *it.Floor
		}
		if it.HourlyRate != nil && *it.HourlyRate >= 0 {
			next.BaseHourlyRate = *it.HourlyRate
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE slots SET slot_number = ?, floor = ?, base_hourly_rate = ?, status = ?, version = version + 1
			 WHERE id = ? AND status = ?`,
			next.SlotNumber, next.Floor, next.BaseHourlyRate, next.Status, cur.ID, cur.Status)
		if err != nil {
			if isDuplicate(err) {
				return 0, ErrDuplicate
			}
			return 0, fmt.Errorf("update slot %d: %w", cur.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return 0, fmt.Errorf("%w: slot %d", ErrConflict, cur.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return len(items), nil
}
