package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loom-erp/loom-erp/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*Shop, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByUsername fetches a shop login by username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*Shop, error) {
	var s Shop
	err := r.pool.QueryRow(ctx, `SELECT id, name, username, password_hash, is_active, created_at
FROM shops WHERE username=$1`, username).
		Scan(&s.ID, &s.Name, &s.Username, &s.PasswordHash, &s.IsActive, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

var _ Repository = (*PGRepository)(nil)
