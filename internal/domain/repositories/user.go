package repositories

import (
	"context"

	"github.com/devilmonastery/passage/internal/domain/entities"
)

// UserRepository defines the interface for user data access.
// Implementations must enforce email uniqueness.
type UserRepository interface {
	// Create inserts the user unless a user with the same email already
	// exists. On success user holds the stored row, which is the earlier
	// row when another writer won the race for that email.
	Create(ctx context.Context, user *entities.User) error

	// GetByEmail retrieves a user by their email address
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
}
