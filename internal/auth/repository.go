package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumiere-studio/backend/internal/models"
	"github.com/lumiere-studio/backend/internal/repository"
)

// Repository wraps the user store for registration and login lookups.
type Repository struct {
	users *repository.UserRepo
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{users: repository.NewUserRepo(pool)}
}

func (r *Repository) Create(ctx context.Context, u *models.User) error {
	return r.users.Create(ctx, u)
}

// GetByEmail returns (nil, nil) when no user has the given email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := r.users.GetByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}
