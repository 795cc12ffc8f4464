// Package users declares the server-side repository contract for user
// accounts.
package users

import (
	"context"

	"github.com/dkuzmenko/authd/internal/server/models"
)

type Repository interface {
	// Create stores a new user. Returns common.ErrorAlreadyExists when the
	// email is taken.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// FindByEmail returns the user with the given (normalized) email or
	// common.ErrorNotFound.
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// FindByID returns the user with the given id or common.ErrorNotFound.
	FindByID(ctx context.Context, id string) (*models.User, error)
}
