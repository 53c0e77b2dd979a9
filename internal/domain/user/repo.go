package user

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for users.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	List(ctx context.Context, role string, limit, offset int) ([]*User, int, error)
}
