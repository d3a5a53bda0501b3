package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/parkease/internal/model"
	"github.com/iliyamo/parkease/internal/utils"
)

// UserRepo reads and writes the users table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

// NewUser is the input to Create.  Password is plain text.  Pending
// accounts are stored inactive until Activate; AreaID is set for guards.
type NewUser struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Role     string
	Pending  bool
	AreaID   uint64
}

const userCols = "id,name,email,phone,password_hash,role,lat,lon,is_active,area_id,created_at,updated_at"

// Create hashes the password, inserts the user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, u NewUser, cost int) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	hash, err := utils.HashPassword(u.Password, cost)
	if err != nil {
		return 0, err
	}
	var area sql.NullInt64
	if u.AreaID > 0 {
		area = sql.NullInt64{Int64: int64(u.AreaID), Valid: true}
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, phone, password_hash, role, is_active, area_id) VALUES (?,?,?,?,?,?,?)",
		strings.TrimSpace(u.Name), email, strings.TrimSpace(u.Phone), hash, model.NormalizeRole(u.Role), !u.Pending, area)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func scanUser(s scanner) (model.User, error) {
	var (
		u        model.User
		lat, lon sql.NullFloat64
		area     sql.NullInt64
	)
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.Role, &lat, &lon, &u.IsActive, &area, &u.CreatedAt, &u.UpdatedAt)
	if lat.Valid && lon.Valid {
		u.Lat, u.Lon = &lat.Float64, &lon.Float64
	}
	if area.Valid {
		id := uint64(area.Int64)
		u.AreaID = &id
	}
	return u, err
}

// GetByEmail fetches a user by normalized email.  It returns ErrNotFound
// when no row matches.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email=? LIMIT 1", email))
	return u, notFound(err, ErrNotFound)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id))
	return u, notFound(err, ErrNotFound)
}

// UpdateLocation stores the user's last reported position.
func (r *UserRepo) UpdateLocation(ctx context.Context, id uint64, lat, lon float64) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET lat=?, lon=? WHERE id=?", lat, lon, id)
	if err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) list(ctx context.Context, where string, args ...any) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userCols+" FROM users WHERE "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListPending returns official accounts waiting for approval, oldest first.
func (r *UserRepo) ListPending(ctx context.Context) ([]model.User, error) {
	return r.list(ctx, "is_active=FALSE AND role IN ('AREA_OWNER','ADMIN') ORDER BY created_at, id")
}

// ListStaff returns every non-driver account.
func (r *UserRepo) ListStaff(ctx context.Context) ([]model.User, error) {
	return r.list(ctx, "role<>'DRIVER' ORDER BY role, id")
}

// ListGuards returns the active guards assigned to areaID.
func (r *UserRepo) ListGuards(ctx context.Context, areaID uint64) ([]model.User, error) {
	return r.list(ctx, "role='GUARD' AND is_active=TRUE AND area_id=? ORDER BY id", areaID)
}

// Activate approves a pending official account.  It returns ErrNotFound
// when id is not a pending official.
func (r *UserRepo) Activate(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_active=TRUE WHERE id=? AND is_active=FALSE AND role IN ('AREA_OWNER','ADMIN')", id)
	if err != nil {
		return fmt.Errorf("activate user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate takes an active guard off its area and revokes its refresh
// tokens in one transaction.  It returns ErrNotFound when id is not an
// active guard.
func (r *UserRepo) Deactivate(ctx context.Context, id uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET is_active=FALSE, area_id=NULL WHERE id=? AND role='GUARD' AND is_active=TRUE", id)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE user_id=? AND revoked_at IS NULL", id); err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}
