// Package reminder emails patients ahead of their channeling session.
package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/medichannel/channeling/internal/domain/appointment"
	"github.com/medichannel/channeling/internal/platform/db"
	"github.com/medichannel/channeling/internal/platform/metrics"
	"github.com/medichannel/channeling/internal/platform/notification"
)

const (
	// DefaultBatchSize caps the reminders sent per tenant in one run.
	DefaultBatchSize = 200

	// MaxAttempts bounds sends to an address that keeps failing.
	MaxAttempts = 5

	// ClaimTimeout is how long a claim survives a run that never finished.
	ClaimTimeout = 15 * time.Minute
)

// Store is the part of the appointment repository the job needs.
type Store interface {
	ClaimReminders(ctx context.Context, c appointment.ReminderClaim) ([]*appointment.View, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
	ReleaseReminder(ctx context.Context, id uuid.UUID) error
}

// Tenants enumerates tenant schemas and scopes a context to one of them.
type Tenants interface {
	List(ctx context.Context) ([]string, error)
	Run(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error
}

type poolTenants struct {
	pool *pgxpool.Pool
}

// PoolTenants walks the tenant schemas found in pool.
func PoolTenants(pool *pgxpool.Pool) Tenants {
	return poolTenants{pool: pool}
}

func (p poolTenants) List(ctx context.Context) ([]string, error) {
	return db.ListTenants(ctx, p.pool)
}

func (p poolTenants) Run(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	return db.WithTenant(ctx, p.pool, tenantID, fn)
}

// Result summarises one run.
type Result struct {
	Tenants int
	Sent    int
	Failed  int
}

type Job struct {
	store   Store
	tenants Tenants
	mailer  notification.Mailer
	metrics *metrics.Collector
	logger  zerolog.Logger

	lead  time.Duration
	batch int
	now   func() time.Time
}

// NewJob reminds patients whose session starts within lead of the run.
func NewJob(store Store, tenants Tenants, mailer notification.Mailer, lead time.Duration, logger zerolog.Logger) *Job {
	return &Job{
		store:   store,
		tenants: tenants,
		mailer:  mailer,
		logger:  logger,
		lead:    lead,
		batch:   DefaultBatchSize,
		now:     time.Now,
	}
}

func (j *Job) SetMetrics(m *metrics.Collector) { j.metrics = m }

func (j *Job) SetBatchSize(n int) {
	if n > 0 {
		j.batch = n
	}
}

// Run sends one round of reminders across all tenants. A failing tenant is
// logged and skipped; the error of the last failing tenant is returned.
func (j *Job) Run(ctx context.Context) (Result, error) {
	var res Result
	tenants, err := j.tenants.List(ctx)
	if err != nil {
		return res, err
	}

	var lastErr error
	for _, tenantID := range tenants {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Tenants++
		err := j.tenants.Run(ctx, tenantID, func(ctx context.Context) error {
			return j.runTenant(ctx, tenantID, &res)
		})
		if err != nil {
			j.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("reminder run failed")
			lastErr = err
		}
	}
	return res, lastErr
}

func (j *Job) runTenant(ctx context.Context, tenantID string, res *Result) error {
	now := j.now().UTC()
	due, err := j.store.ClaimReminders(ctx, appointment.ReminderClaim{
		From:        now,
		To:          now.Add(j.lead),
		Now:         now,
		StaleBefore: now.Add(-ClaimTimeout),
		MaxAttempts: MaxAttempts,
		Limit:       j.batch,
	})
	if err != nil {
		return err
	}
	for _, v := range due {
		if err := j.remind(ctx, v, now); err != nil {
			res.Failed++
			j.metrics.RecordReminder(false)
			j.logger.Warn().Err(err).
				Str("tenant_id", tenantID).
				Str("appointment_id", v.ID.String()).
				Msg("reminder not sent")
			if relErr := j.store.ReleaseReminder(ctx, v.ID); relErr != nil {
				j.logger.Error().Err(relErr).Str("appointment_id", v.ID.String()).Msg("release reminder claim")
			}
			continue
		}
		res.Sent++
		j.metrics.RecordReminder(true)
	}
	if len(due) > 0 {
		j.logger.Info().Str("tenant_id", tenantID).Int("due", len(due)).Msg("reminders processed")
	}
	return nil
}

func (j *Job) remind(ctx context.Context, v *appointment.View, now time.Time) error {
	msg, err := notification.Render(notification.AppointmentReminder, appointment.NoticeFor(v, ""))
	if err != nil {
		return err
	}
	if err := j.mailer.Send(ctx, msg); err != nil {
		return err
	}
	return j.store.MarkReminderSent(ctx, v.ID, now)
}
