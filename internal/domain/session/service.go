package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medichannel/channeling/internal/domain/doctor"
	"github.com/medichannel/channeling/internal/platform/apperr"
	"github.com/medichannel/channeling/internal/platform/db"
	"github.com/medichannel/channeling/internal/platform/validate"
)

// DoctorLookup resolves the doctor running a session.
type DoctorLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
}

type Service struct {
	repo     Repository
	doctors  DoctorLookup
	bookings BookingCounter
	tx       db.TxRunner
}

func NewService(repo Repository, doctors DoctorLookup, bookings BookingCounter) *Service {
	return &Service{repo: repo, doctors: doctors, bookings: bookings, tx: db.NoTx}
}

// SetTxRunner makes capacity changes lock the session row against
// concurrent bookings.
func (s *Service) SetTxRunner(tx db.TxRunner) {
	s.tx = tx
}

// Create schedules a session for an approved doctor. The hospital defaults
// to the doctor's own.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Session, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	d, err := s.doctors.Get(ctx, in.DoctorID)
	if err != nil {
		return nil, err
	}
	if !d.Approved() {
		return nil, apperr.Invalid("doctor_id", fmt.Sprintf("doctor is %s, not APPROVED", d.Status))
	}

	sess := &Session{
		DoctorID:   d.ID,
		HospitalID: d.HospitalID,
		StartTime:  in.StartTime.UTC(),
		EndTime:    in.EndTime.UTC(),
		Capacity:   in.Capacity,
		Room:       in.Room,
		Status:     Lifecycle.Initial(),
	}
	if in.HospitalID != nil {
		sess.HospitalID = *in.HospitalID
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Session, int, error) {
	if f.From != nil && f.To != nil && !f.To.After(*f.From) {
		return nil, 0, apperr.Invalid("to", "must be after from")
	}
	if f.Status != "" && !Lifecycle.Valid(f.Status) {
		return nil, 0, apperr.Invalid("status", "unknown session status "+string(f.Status))
	}
	return s.repo.List(ctx, f, limit, offset)
}

// UpdateCapacity resizes a session. It may not drop below the number of
// appointments already holding a place.
func (s *Service) UpdateCapacity(ctx context.Context, id uuid.UUID, capacity int) (*Session, error) {
	if capacity <= 0 {
		return nil, apperr.Invalid("capacity", "must be greater than 0")
	}
	var out *Session
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		sess, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		booked, err := s.bookings.CountActive(ctx, id)
		if err != nil {
			return err
		}
		if capacity < booked {
			return apperr.Invalid("capacity", fmt.Sprintf("must be at least %d, the number of active bookings", booked))
		}
		if err := s.repo.UpdateCapacity(ctx, id, capacity); err != nil {
			return err
		}
		sess.Capacity = capacity
		out = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel stops a session from taking further bookings. Existing
// appointments are left for staff to cancel or reschedule.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := Lifecycle.Transition(sess.Status, StatusCancelled)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	sess.Status = next
	return sess, nil
}

func (s *Service) Availability(ctx context.Context, id uuid.UUID) (*Availability, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	booked, err := s.bookings.CountActive(ctx, id)
	if err != nil {
		return nil, err
	}
	remaining := sess.Capacity - booked
	if remaining < 0 || !sess.Bookable() {
		remaining = 0
	}
	return &Availability{
		SessionID: sess.ID,
		Status:    sess.Status,
		Capacity:  sess.Capacity,
		Booked:    booked,
		Remaining: remaining,
	}, nil
}
