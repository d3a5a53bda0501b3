package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/parkease/internal/booking"
	"github.com/iliyamo/parkease/internal/model"
)

// VehicleRepo manages drivers' vehicles.
type VehicleRepo struct {
	db *sql.DB
}

func NewVehicleRepo(db *sql.DB) *VehicleRepo { return &VehicleRepo{db: db} }

const vehicleCols = "id, user_id, register_number, model, color, vehicle_type, is_primary, created_at"

func scanVehicle(s scanner) (model.Vehicle, error) {
	var v model.Vehicle
	err := s.Scan(&v.ID, &v.UserID, &v.RegisterNumber, &v.Model, &v.Color, &v.VehicleType, &v.IsPrimary, &v.CreatedAt)
	return v, err
}

// ListByUser returns the user's vehicles, primary first.
func (r *VehicleRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Vehicle, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+vehicleCols+" FROM vehicles WHERE user_id = ? ORDER BY is_primary DESC, id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Create registers a vehicle.  The user's first vehicle becomes primary.
// A register number already on file yields ErrDuplicate.
func (r *VehicleRepo) Create(ctx context.Context, v *model.Vehicle) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM vehicles WHERE user_id = ? FOR UPDATE", v.UserID).Scan(&count); err != nil {
		return err
	}
	v.IsPrimary = count == 0
	v.RegisterNumber = strings.ToUpper(strings.TrimSpace(v.RegisterNumber))
	res, err := tx.ExecContext(ctx,
		"INSERT INTO vehicles (user_id, register_number, model, color, vehicle_type, is_primary) VALUES (?, ?, ?, ?, ?, ?)",
		v.UserID, v.RegisterNumber, v.Model, v.Color, v.VehicleType, v.IsPrimary)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert vehicle: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SetPrimary makes vehicleID the user's primary vehicle, clearing the
// previous one in the same transaction.
func (r *VehicleRepo) SetPrimary(ctx context.Context, userID, vehicleID uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := vehicleForUser(ctx, tx, userID, vehicleID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE vehicles SET is_primary = FALSE WHERE user_id = ? AND is_primary", userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE vehicles SET is_primary = TRUE WHERE id = ? AND user_id = ?", vehicleID, userID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// vehicleForUser loads one vehicle and checks its owner.
func vehicleForUser(ctx context.Context, q querier, userID, vehicleID uint64) (model.Vehicle, error) {
	v, err := scanVehicle(q.QueryRowContext(ctx,
		"SELECT "+vehicleCols+" FROM vehicles WHERE id = ? AND user_id = ?", vehicleID, userID))
	if err != nil {
		return model.Vehicle{}, notFound(err, booking.ErrVehicleNotFound)
	}
	return v, nil
}
