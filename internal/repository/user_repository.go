package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/vtransit/shuttle-booking/internal/model"
	"github.com/vtransit/shuttle-booking/internal/utils"
)

// UserRepo provides persistence for users. Registration creates the
// user's ticket row in the same transaction: every user carries exactly
// one ticket counter from the moment the account exists.
type UserRepo struct{ db *sql.DB }

// NewUserRepo returns a UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// DB exposes the underlying sql.DB for callers that need to begin
// transactions spanning multiple repositories.
func (r *UserRepo) DB() *sql.DB { return r.db }

// Create inserts a user together with their ticket row and returns the
// new user id. allowance seeds the ticket's remaining budget. The email
// is normalized to lower case; a duplicate reports ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, email, username, password, role string, phone *string, cost, allowance int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
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
		"INSERT INTO users (email, username, password_hash, role, phone) VALUES (?,?,?,?,?)",
		email, username, hash, role, phone)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO tickets (user_id, remain_ticket, ticket_inhand) VALUES (?,?,0)",
		id, allowance); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return uint64(id), nil
}

const userColumns = "id,email,username,password_hash,role,phone,on_campus,is_active,created_at,updated_at"

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	var phone sql.NullString
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Role,
		&phone, &u.OnCampus, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if phone.Valid {
		p := phone.String
		u.Phone = &p
	}
	return u, nil
}

// GetByEmail fetches a user by normalized email. Returns sql.ErrNoRows
// when no such user exists.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id. Returns sql.ErrNoRows when absent.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByIDTx fetches a user inside an existing transaction. A missing
// row yields (nil, nil) so callers can decide the error semantics.
func (r *UserRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.User, error) {
	var u model.User
	var phone sql.NullString
	err := tx.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id).
		Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Role,
			&phone, &u.OnCampus, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if phone.Valid {
		p := phone.String
		u.Phone = &p
	}
	return &u, nil
}

// SetOnCampusTx updates the user's location flag inside an existing
// transaction. Called only by schedule finalization.
func (r *UserRepo) SetOnCampusTx(ctx context.Context, tx *sql.Tx, id uint64, onCampus bool) error {
	_, err := tx.ExecContext(ctx, "UPDATE users SET on_campus=? WHERE id=?", onCampus, id)
	return err
}
