package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for appointments.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetView(ctx context.Context, id uuid.UUID) (*View, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*View, int, error)
	// QueueStats returns the number of active appointments in the session
	// and the highest queue position among them.
	QueueStats(ctx context.Context, sessionID uuid.UUID) (active, highest int, err error)
	CountActive(ctx context.Context, sessionID uuid.UUID) (int, error)
	ListQueue(ctx context.Context, sessionID uuid.UUID) ([]*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, reason *string) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error
	// ClaimReminders atomically claims up to c.Limit unreminded active
	// appointments whose session starts in [c.From, c.To) and returns them.
	// Claimed rows are invisible to other claimers until released or stale.
	ClaimReminders(ctx context.Context, c ReminderClaim) ([]*View, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
	// ReleaseReminder drops a claim after a failed send so a later run
	// retries it.
	ReleaseReminder(ctx context.Context, id uuid.UUID) error
}

// ReminderClaim selects the appointments one reminder run takes. Claims
// older than StaleBefore belong to a run that died mid-send and are taken
// over.
type ReminderClaim struct {
	From        time.Time
	To          time.Time
	Now         time.Time
	StaleBefore time.Time
	MaxAttempts int
	Limit       int
}
