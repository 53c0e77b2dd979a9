package doctor

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines the persistence interface for doctors.
type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Doctor, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	UpdateFee(ctx context.Context, id uuid.UUID, fee *decimal.Decimal) error
}
