package session

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for sessions.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	// GetForUpdate reads the session and locks its row until the surrounding
	// transaction ends. Bookings and capacity changes for one session serialise on it.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Session, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Session, int, error)
	UpdateCapacity(ctx context.Context, id uuid.UUID, capacity int) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
}

// BookingCounter reports how many active appointments a session holds.
type BookingCounter interface {
	CountActive(ctx context.Context, sessionID uuid.UUID) (int, error)
}
