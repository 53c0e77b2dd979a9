package appointment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/medichannel/channeling/internal/domain/doctor"
	"github.com/medichannel/channeling/internal/domain/session"
	"github.com/medichannel/channeling/internal/domain/user"
	"github.com/medichannel/channeling/internal/platform/apperr"
	"github.com/medichannel/channeling/internal/platform/db"
	"github.com/medichannel/channeling/internal/platform/events"
	"github.com/medichannel/channeling/internal/platform/metrics"
	"github.com/medichannel/channeling/internal/platform/notification"
	"github.com/medichannel/channeling/internal/platform/validate"
)

// DefaultMaxAttempts bounds how often a booking is retried after a number
// collision or a serialization failure.
const DefaultMaxAttempts = 3

// SessionStore is the part of the session repository bookings need.
type SessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*session.Session, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*session.Session, error)
}

type DoctorLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
}

type UserLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// PaymentHook runs inside the transaction that marks an appointment paid,
// so a failure rolls the payment back.
type PaymentHook interface {
	Paid(ctx context.Context, a *Appointment) error
}

type Service struct {
	repo     Repository
	sessions SessionStore
	doctors  DoctorLookup
	users    UserLookup
	onPaid   PaymentHook

	tx          db.TxRunner
	numbers     NumberSource
	maxAttempts int

	publisher events.Publisher
	topic     string
	mailer    notification.Mailer
	metrics   *metrics.Collector
	logger    zerolog.Logger
	tracer    trace.Tracer
}

func NewService(repo Repository, sessions SessionStore, doctors DoctorLookup, users UserLookup) *Service {
	return &Service{
		repo:        repo,
		sessions:    sessions,
		doctors:     doctors,
		users:       users,
		tx:          db.NoTx,
		numbers:     NewNumberGenerator(),
		maxAttempts: DefaultMaxAttempts,
		logger:      zerolog.Nop(),
		tracer:      otel.Tracer("github.com/medichannel/channeling/internal/domain/appointment"),
	}
}

// SetTxRunner sets the transaction boundary for bookings. Production wiring
// passes db.Serializable so the capacity read and the insert commit together.
func (s *Service) SetTxRunner(tx db.TxRunner) { s.tx = tx }

func (s *Service) SetNumberSource(n NumberSource) { s.numbers = n }

func (s *Service) SetMaxAttempts(n int) {
	if n > 0 {
		s.maxAttempts = n
	}
}

// SetPublisher enables domain events on topic.
func (s *Service) SetPublisher(p events.Publisher, topic string) {
	s.publisher = p
	s.topic = topic
}

// SetMailer enables confirmation and cancellation emails.
func (s *Service) SetMailer(m notification.Mailer) { s.mailer = m }

func (s *Service) SetMetrics(m *metrics.Collector) { s.metrics = m }

// SetPaymentHook registers the invoicing step for paid appointments.
func (s *Service) SetPaymentHook(h PaymentHook) { s.onPaid = h }

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

// -- Booking --

// CreateAppointment books a place in a session. Validation runs first and
// reports every bad field; then the session, doctor and booking user must
// exist; then capacity is checked and a queue position and number are
// assigned. The read and the insert share one transaction, retried on
// number collisions and serialization failures.
func (s *Service) CreateAppointment(ctx context.Context, in CreateInput) (*Appointment, error) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "appointment.Create",
		trace.WithAttributes(attribute.String("session.id", in.SessionID.String())))
	defer span.End()

	a, err := s.createWithRetry(ctx, normalize(in))
	s.metrics.RecordBooking(outcome(err), time.Since(started))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.KindOf(err).String())
		if apperr.KindOf(err) == apperr.KindPersistence {
			s.log(ctx).Error().Err(err).Str("session_id", in.SessionID.String()).Msg("booking failed")
		}
		return nil, err
	}
	span.SetAttributes(
		attribute.String("appointment.number", a.AppointmentNumber),
		attribute.Int("appointment.queue_position", a.QueuePosition),
	)

	s.publish(ctx, events.AppointmentCreated, a)
	s.notify(ctx, notification.AppointmentConfirmed, a.ID, "")
	return a, nil
}

func (s *Service) createWithRetry(ctx context.Context, in CreateInput) (*Appointment, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	for attempt := 1; ; attempt++ {
		var a *Appointment
		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			var err error
			a, err = s.book(ctx, in)
			return err
		})
		if err == nil {
			return a, nil
		}
		if !retryable(err) {
			return nil, classify(err)
		}
		if attempt >= s.maxAttempts {
			s.log(ctx).Warn().Err(err).Int("attempts", attempt).Msg("booking retries exhausted")
			return nil, classify(err)
		}
		s.metrics.RecordBookingRetry()
		s.log(ctx).Debug().Err(err).Int("attempt", attempt).Msg("retrying booking")
	}
}

// book runs inside the booking transaction.
func (s *Service) book(ctx context.Context, in CreateInput) (*Appointment, error) {
	sess, err := s.sessions.GetForUpdate(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	doc, err := s.doctors.Get(ctx, sess.DoctorID)
	if err != nil {
		return nil, err
	}
	if in.BookedByID != nil {
		if _, err := s.users.Get(ctx, *in.BookedByID); err != nil {
			return nil, err
		}
	}
	if !sess.Bookable() {
		return nil, apperr.Invalid("session_id", "session is "+strings.ToLower(string(sess.Status)))
	}

	active, highest, err := s.repo.QueueStats(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if err := CheckCapacity(sess.ID, sess.Capacity, active); err != nil {
		return nil, err
	}

	a := newAppointment(in)
	a.AppointmentNumber = s.numbers.Next()
	a.QueuePosition = NextQueuePosition(active, highest)
	if a.EstimatedWaitTime == nil {
		wait := EstimatedWait(a.QueuePosition, sess.SlotMinutes())
		a.EstimatedWaitTime = &wait
	}
	a.ConsultationFee = ResolveFee(in.ConsultationFee, doc.ConsultationFee)
	a.TotalAmount = ResolveTotal(in.TotalAmount, a.ConsultationFee)

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	if err := s.paid(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func newAppointment(in CreateInput) *Appointment {
	a := &Appointment{
		SessionID:             in.SessionID,
		BookedByID:            in.BookedByID,
		PatientName:           in.PatientName,
		PatientEmail:          in.PatientEmail,
		PatientPhone:          in.PatientPhone,
		PatientNIC:            in.PatientNIC,
		PatientDOB:            in.PatientDOB,
		PatientGender:         in.PatientGender,
		EmergencyContactName:  in.EmergencyContactName,
		EmergencyContactPhone: in.EmergencyContactPhone,
		MedicalHistory:        in.MedicalHistory,
		CurrentMedications:    in.CurrentMedications,
		Allergies:             in.Allergies,
		Notes:                 in.Notes,
		EstimatedWaitTime:     in.EstimatedWaitTime,
		Status:                in.Status,
		PaymentStatus:         in.PaymentStatus,
	}
	if a.Status == "" {
		a.Status = Lifecycle.Initial()
	}
	if a.PaymentStatus == "" {
		a.PaymentStatus = PaymentLifecycle.Initial()
	}
	if in.IsNewPatient != nil {
		a.IsNewPatient = *in.IsNewPatient
	} else {
		a.IsNewPatient = in.BookingType == BookingWalkIn
	}
	return a
}

// normalize fills in the booking type and tidies free-text identifiers.
func normalize(in CreateInput) CreateInput {
	in.PatientEmail = strings.ToLower(strings.TrimSpace(in.PatientEmail))
	in.PatientName = strings.TrimSpace(in.PatientName)
	in.PatientPhone = strings.TrimSpace(in.PatientPhone)
	if in.BookingType == "" {
		in.BookingType = BookingWalkIn
		if in.BookedByID != nil {
			in.BookingType = BookingOnline
		}
	}
	return in
}

func validateInput(in CreateInput) error {
	var fields []apperr.FieldError
	if err := validate.Struct(in); err != nil {
		var e *apperr.Error
		if !errors.As(err, &e) {
			return err
		}
		fields = append(fields, e.Fields...)
	}
	fields = append(fields, checkAmounts(in)...)
	if len(fields) > 0 {
		return apperr.Validation(fields...)
	}
	return nil
}

func retryable(err error) bool {
	if db.IsSerializationFailure(err) {
		return true
	}
	var e *apperr.Error
	return errors.As(err, &e) && e.Kind == apperr.KindDuplicate &&
		(e.Field == "appointment_number" || e.Field == "queue_position")
}

// classify wraps storage errors that are not already typed.
func classify(err error) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return err
	}
	return apperr.Persistence("book appointment", err)
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeBooked
	}
	switch apperr.KindOf(err) {
	case apperr.KindCapacityExceeded:
		return metrics.OutcomeFull
	case apperr.KindValidation:
		return metrics.OutcomeInvalid
	case apperr.KindNotFound:
		return metrics.OutcomeNotFound
	case apperr.KindDuplicate:
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeFailed
	}
}

// -- Reads --

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*View, error) {
	return s.repo.GetView(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, f Filter, limit, offset int) ([]*View, int, error) {
	if f.Status != "" && !Lifecycle.Valid(f.Status) {
		return nil, 0, apperr.Invalid("status", "unknown appointment status "+string(f.Status))
	}
	f.PatientEmail = strings.TrimSpace(f.PatientEmail)
	return s.repo.List(ctx, f, limit, offset)
}

// QueueForSession lists the active appointments of a session in queue order.
func (s *Service) QueueForSession(ctx context.Context, sessionID uuid.UUID) ([]*Appointment, error) {
	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListQueue(ctx, sessionID)
}

// -- Status changes --

// UpdateStatus completes, cancels or reschedules an appointment. reason is
// kept only for cancellations. Queue positions of other appointments are
// left untouched.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, target Status, reason string) (*Appointment, error) {
	var (
		a    *Appointment
		from Status
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		from = a.Status
		next, err := Lifecycle.Transition(a.Status, target)
		if err != nil {
			return err
		}
		var r *string
		if next == StatusCancelled && strings.TrimSpace(reason) != "" {
			trimmed := strings.TrimSpace(reason)
			r = &trimmed
		}
		if err := s.repo.UpdateStatus(ctx, id, next, r); err != nil {
			return err
		}
		a.Status = next
		if r != nil {
			a.CancellationReason = r
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	s.metrics.RecordTransition("appointment", string(from), string(a.Status))
	s.publish(ctx, events.AppointmentStatusChanged, statusChange{Appointment: a, From: string(from)})
	if a.Status == StatusCancelled {
		s.notify(ctx, notification.AppointmentCancelled, a.ID, reason)
	}
	return a, nil
}

// UpdatePaymentStatus records a cashier decision.
func (s *Service) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, target PaymentStatus) (*Appointment, error) {
	var (
		a    *Appointment
		from PaymentStatus
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		from = a.PaymentStatus
		next, err := PaymentLifecycle.Transition(a.PaymentStatus, target)
		if err != nil {
			return err
		}
		if err := s.repo.UpdatePaymentStatus(ctx, id, next); err != nil {
			return err
		}
		a.PaymentStatus = next
		return s.paid(ctx, a)
	})
	if err != nil {
		return nil, classify(err)
	}

	s.metrics.RecordTransition("payment", string(from), string(a.PaymentStatus))
	s.publish(ctx, events.PaymentStatusChanged, statusChange{Appointment: a, From: string(from)})
	return a, nil
}

func (s *Service) paid(ctx context.Context, a *Appointment) error {
	if s.onPaid == nil || a.PaymentStatus != PaymentPaid {
		return nil
	}
	return s.onPaid.Paid(ctx, a)
}

type statusChange struct {
	*Appointment
	From string `json:"from"`
}

// -- Side effects --

// publish is best effort: the booking is already committed.
func (s *Service) publish(ctx context.Context, eventType string, payload any) {
	if s.publisher == nil {
		return
	}
	key := ""
	switch p := payload.(type) {
	case *Appointment:
		key = p.ID.String()
	case statusChange:
		key = p.ID.String()
	}
	evt, err := events.New(eventType, db.TenantFromContext(ctx), key, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, s.topic, evt)
	}
	if err != nil {
		s.log(ctx).Warn().Err(err).Str("event", eventType).Str("appointment_id", key).Msg("publish event failed")
	}
}

// notify emails the patient. Failures are logged and never fail the request.
func (s *Service) notify(ctx context.Context, tpl notification.Template, id uuid.UUID, reason string) {
	if s.mailer == nil {
		return
	}
	v, err := s.repo.GetView(ctx, id)
	if err == nil {
		var msg notification.Message
		msg, err = notification.Render(tpl, NoticeFor(v, reason))
		if err == nil {
			err = s.mailer.Send(ctx, msg)
		}
	}
	if err != nil {
		s.log(ctx).Warn().Err(err).Str("template", string(tpl)).Str("appointment_id", id.String()).Msg("email not sent")
	}
}

// NoticeFor builds the email data for an appointment.
func NoticeFor(v *View, reason string) notification.AppointmentNotice {
	n := notification.AppointmentNotice{
		PatientName:       v.PatientName,
		PatientEmail:      v.PatientEmail,
		AppointmentNumber: v.AppointmentNumber,
		DoctorName:        v.DoctorName,
		HospitalName:      v.HospitalName,
		SessionTime:       v.SessionTime,
		QueuePosition:     v.QueuePosition,
		Reason:            reason,
	}
	if v.EstimatedWaitTime != nil {
		n.EstimatedWait = *v.EstimatedWaitTime
	}
	return n
}

// log prefers the request logger carried in ctx.
func (s *Service) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.logger
}
