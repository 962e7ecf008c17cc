package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/pathfinder/internal/model"
)

// UserRepository wraps the users and admins tables.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository constructs a repository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// CreateUser inserts a job seeker. A taken email yields ErrDuplicate.
func (r *UserRepository) CreateUser(ctx context.Context, u *model.User) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (full_name, phone, email, password_hash)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at
	`, u.FullName, u.Phone, u.Email, u.PasswordHash).Scan(&u.ID, &u.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) userBy(ctx context.Context, column string, arg any) (*model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, full_name, phone, email, password_hash, created_at
		FROM users WHERE `+column+` = $1`, arg,
	).Scan(&u.ID, &u.FullName, &u.Phone, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

// UserByEmail looks a job seeker up for login.
func (r *UserRepository) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.userBy(ctx, "email", email)
}

// UserByID loads the profile of a signed-in job seeker.
func (r *UserRepository) UserByID(ctx context.Context, id int64) (*model.User, error) {
	return r.userBy(ctx, "id", id)
}

// UpdateUser rewrites the profile. PasswordHash is only changed when set.
func (r *UserRepository) UpdateUser(ctx context.Context, u *model.User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET full_name = $1, phone = $2, email = $3,
			password_hash = COALESCE(NULLIF($4, ''), password_hash)
		WHERE id = $5
	`, u.FullName, u.Phone, u.Email, u.PasswordHash, u.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AdminByEmail looks an administrator up for login.
func (r *UserRepository) AdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var a model.Admin
	err := r.pool.QueryRow(ctx, `SELECT id, email, password_hash FROM admins WHERE email = $1`, email).
		Scan(&a.ID, &a.Email, &a.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select admin: %w", err)
	}
	return &a, nil
}

// CreateAdmin inserts an administrator. A taken email yields ErrDuplicate.
func (r *UserRepository) CreateAdmin(ctx context.Context, a *model.Admin) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO admins (email, password_hash) VALUES ($1,$2) RETURNING id
	`, a.Email, a.PasswordHash).Scan(&a.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}
