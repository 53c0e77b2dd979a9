package invoice

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// CreateIfAbsent inserts inv unless its appointment already has an
	// invoice, and reports whether a row was written.
	CreateIfAbsent(ctx context.Context, inv *Invoice) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Invoice, int, error)
}
