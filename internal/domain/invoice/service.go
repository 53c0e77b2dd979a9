package invoice

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medichannel/channeling/internal/domain/appointment"
	"github.com/medichannel/channeling/internal/platform/apperr"
)

type AppointmentLookup interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.View, error)
}

type Service struct {
	repo         Repository
	appointments AppointmentLookup
	now          func() time.Time
}

func NewService(repo Repository, appointments AppointmentLookup) *Service {
	return &Service{repo: repo, appointments: appointments, now: time.Now}
}

// Paid issues the invoice of an appointment that has just been paid. It
// runs inside the transaction that records the payment.
func (s *Service) Paid(ctx context.Context, a *appointment.Appointment) error {
	_, _, err := s.issue(ctx, a)
	return err
}

// Issue returns the invoice of a paid appointment, creating it when missing.
// created is false when the invoice already existed.
func (s *Service) Issue(ctx context.Context, appointmentID uuid.UUID) (inv *Invoice, created bool, err error) {
	v, err := s.appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, false, err
	}
	if v.PaymentStatus != appointment.PaymentPaid {
		return nil, false, apperr.Invalid("payment_status", "appointment is not paid")
	}
	return s.issue(ctx, &v.Appointment)
}

func (s *Service) issue(ctx context.Context, a *appointment.Appointment) (*Invoice, bool, error) {
	inv := &Invoice{
		InvoiceNumber:   NumberFor(a.AppointmentNumber),
		AppointmentID:   a.ID,
		PatientName:     a.PatientName,
		PatientEmail:    a.PatientEmail,
		ConsultationFee: a.ConsultationFee,
		TotalAmount:     a.TotalAmount,
		IssuedAt:        s.now().UTC(),
	}
	created, err := s.repo.CreateIfAbsent(ctx, inv)
	if err != nil {
		return nil, false, err
	}
	if !created {
		existing, err := s.repo.GetByAppointment(ctx, a.ID)
		return existing, false, err
	}
	return inv, true, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ForAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	return s.repo.GetByAppointment(ctx, appointmentID)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Invoice, int, error) {
	f.PatientEmail = strings.ToLower(strings.TrimSpace(f.PatientEmail))
	if f.IssuedFrom != nil && f.IssuedTo != nil && !f.IssuedFrom.Before(*f.IssuedTo) {
		return nil, 0, apperr.Invalid("issued_to", "must be after issued_from")
	}
	return s.repo.List(ctx, f, limit, offset)
}
