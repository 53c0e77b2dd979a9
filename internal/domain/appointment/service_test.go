package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medichannel/channeling/internal/domain/doctor"
	"github.com/medichannel/channeling/internal/domain/session"
	"github.com/medichannel/channeling/internal/domain/user"
	"github.com/medichannel/channeling/internal/platform/apperr"
	"github.com/medichannel/channeling/internal/platform/events"
	"github.com/medichannel/channeling/internal/platform/metrics"
)

type fixture struct {
	svc      *Service
	repo     *memRepo
	sessions *memSessions
	doctor   *doctor.Doctor
	user     *user.User
	tx       *countingTx
	pub      *recordingPublisher
	mail     *recordingMailer
	reg      *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d := &doctor.Doctor{
		ID:              uuid.New(),
		HospitalID:      uuid.New(),
		Name:            "Dr. Perera",
		ConsultationFee: dec("2500"),
		Status:          doctor.StatusApproved,
	}
	u := &user.User{ID: uuid.New(), Name: "Nimal", Email: "nimal@example.com", Role: "patient"}
	sessions := &memSessions{items: make(map[uuid.UUID]*session.Session)}
	repo := newMemRepo(sessions, d)

	f := &fixture{
		repo:     repo,
		sessions: sessions,
		doctor:   d,
		user:     u,
		tx:       &countingTx{},
		pub:      &recordingPublisher{},
		mail:     &recordingMailer{},
		reg:      prometheus.NewRegistry(),
	}
	f.svc = NewService(repo, sessions, stubDoctors{d.ID: d}, stubUsers{u.ID: u})
	f.svc.SetTxRunner(f.tx)
	f.svc.SetPublisher(f.pub, "channeling.appointments")
	f.svc.SetMailer(f.mail)
	f.svc.SetMetrics(metrics.New(f.reg))
	return f
}

func (f *fixture) addSession(capacity int) *session.Session {
	start := time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)
	s := &session.Session{
		ID:         uuid.New(),
		DoctorID:   f.doctor.ID,
		HospitalID: f.doctor.HospitalID,
		StartTime:  start,
		EndTime:    start.Add(2 * time.Hour),
		Capacity:   capacity,
		Status:     session.StatusScheduled,
	}
	f.sessions.items[s.ID] = s
	return s
}

func walkIn(sessionID uuid.UUID, n int) CreateInput {
	return CreateInput{
		SessionID:    sessionID,
		PatientName:  fmt.Sprintf("Patient %d", n),
		PatientEmail: fmt.Sprintf("patient%d@example.com", n),
		PatientPhone: "+94 77 123 4567",
	}
}

func (f *fixture) online(sessionID uuid.UUID) CreateInput {
	in := walkIn(sessionID, 0)
	in.BookingType = BookingOnline
	in.BookedByID = &f.user.ID
	return in
}

// -- Capacity and queue --

func TestCreateAppointment_CapacityBoundary(t *testing.T) {
	for _, capacity := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("capacity=%d", capacity), func(t *testing.T) {
			f := newFixture(t)
			s := f.addSession(capacity)
			ctx := context.Background()

			for i := 1; i <= capacity; i++ {
				_, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, i))
				require.NoError(t, err, "booking %d of %d", i, capacity)
			}
			_, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, capacity+1))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)
		})
	}
}

func TestCreateAppointment_QueuePositionsFollowCreationOrder(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(10)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		a, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, i))
		require.NoError(t, err)
		assert.Equal(t, i, a.QueuePosition)
	}
}

func TestCreateAppointment_CancellationDoesNotRenumber(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(5)
	ctx := context.Background()

	var booked []*Appointment
	for i := 1; i <= 4; i++ {
		a, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, i))
		require.NoError(t, err)
		booked = append(booked, a)
	}

	_, err := f.svc.UpdateStatus(ctx, booked[1].ID, StatusCancelled, "patient unwell")
	require.NoError(t, err)

	for i, a := range booked {
		stored, err := f.repo.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, i+1, stored.QueuePosition, "appointment %d moved", i+1)
	}

	// the freed place can be booked again without sharing a position
	next, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, 5))
	require.NoError(t, err)
	assert.Equal(t, 5, next.QueuePosition)

	queue, err := f.svc.QueueForSession(ctx, s.ID)
	require.NoError(t, err)
	var positions []int
	for _, a := range queue {
		positions = append(positions, a.QueuePosition)
	}
	assert.Equal(t, []int{1, 3, 4, 5}, positions)
}

func TestCreateAppointment_RescheduledStillCounts(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(2)
	ctx := context.Background()

	a, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, 1))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, a.ID, StatusRescheduled, "")
	require.NoError(t, err)

	_, err = f.svc.CreateAppointment(ctx, walkIn(s.ID, 2))
	require.NoError(t, err)
	_, err = f.svc.CreateAppointment(ctx, walkIn(s.ID, 3))
	assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)
}

func TestCreateAppointment_CompletedFreesPlace(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(1)
	ctx := context.Background()

	a, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, 1))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, a.ID, StatusCompleted, "")
	require.NoError(t, err)

	b, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, b.QueuePosition)
}

// -- End-to-end scenarios --

func TestCreateAppointment_WalkInThenFull(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(1)
	ctx := context.Background()

	a, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, a.QueuePosition)
	assert.Equal(t, StatusConfirmed, a.Status)
	assert.Equal(t, PaymentPending, a.PaymentStatus)
	assert.Nil(t, a.BookedByID)
	assert.True(t, a.IsNewPatient)
	assert.Equal(t, BookingWalkIn, a.BookingType())
	assert.Regexp(t, `^APT-\d{13}-[0-9a-z]{9}$`, a.AppointmentNumber)

	_, err = f.svc.CreateAppointment(ctx, walkIn(s.ID, 2))
	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, apperr.KindCapacityExceeded, e.Kind)
}

func TestCreateAppointment_DoctorFeeApplies(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(5)

	a, err := f.svc.CreateAppointment(context.Background(), walkIn(s.ID, 1))
	require.NoError(t, err)
	assert.True(t, a.ConsultationFee.Equal(decimal.NewFromInt(2500)), "fee %s", a.ConsultationFee)
	assert.True(t, a.TotalAmount.Equal(decimal.NewFromInt(2500)), "total %s", a.TotalAmount)
}

func TestCreateAppointment_ExplicitAmounts(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(5)

	in := walkIn(s.ID, 1)
	in.ConsultationFee = dec("2000")
	a, err := f.svc.CreateAppointment(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, a.ConsultationFee.Equal(decimal.NewFromInt(2000)))
	assert.True(t, a.TotalAmount.Equal(decimal.NewFromInt(2000)))

	in = walkIn(s.ID, 2)
	in.TotalAmount = dec("2750.50")
	a, err = f.svc.CreateAppointment(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, a.ConsultationFee.Equal(decimal.NewFromInt(2500)))
	assert.True(t, a.TotalAmount.Equal(decimal.RequireFromString("2750.5")))
}

func TestCreateAppointment_NoFeeAnywhere(t *testing.T) {
	f := newFixture(t)
	f.doctor.ConsultationFee = nil
	s := f.addSession(5)

	a, err := f.svc.CreateAppointment(context.Background(), walkIn(s.ID, 1))
	require.NoError(t, err)
	assert.True(t, a.ConsultationFee.IsZero())
	assert.True(t, a.TotalAmount.IsZero())
}

func TestCreateAppointment_EstimatedWait(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(8) // 120 minutes / 8 = 15 minute slots
	ctx := context.Background()

	first, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, 1))
	require.NoError(t, err)
	second, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, 2))
	require.NoError(t, err)
	require.NotNil(t, first.EstimatedWaitTime)
	require.NotNil(t, second.EstimatedWaitTime)
	assert.Equal(t, 0, *first.EstimatedWaitTime)
	assert.Equal(t, 15, *second.EstimatedWaitTime)
}

// -- Validation and references --

func TestCreateAppointment_ReportsEveryInvalidField(t *testing.T) {
	f := newFixture(t)
	in := CreateInput{
		PatientEmail:    "not-an-email",
		ConsultationFee: dec("-1"),
		TotalAmount:     dec("-5"),
	}
	_, err := f.svc.CreateAppointment(context.Background(), in)

	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	var names []string
	for _, fe := range e.Fields {
		names = append(names, fe.Field)
	}
	assert.ElementsMatch(t, []string{
		"session_id", "patient_name", "patient_email", "patient_phone", "consultation_fee", "total_amount",
	}, names)
	assert.Zero(t, f.tx.runs, "validation must fail before any transaction")
}

func TestCreateAppointment_OnlineRequiresBooker(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(5)

	in := walkIn(s.ID, 1)
	in.BookingType = BookingOnline
	_, err := f.svc.CreateAppointment(context.Background(), in)
	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	require.Len(t, e.Fields, 1)
	assert.Equal(t, "booked_by_id", e.Fields[0].Field)

	a, err := f.svc.CreateAppointment(context.Background(), f.online(s.ID))
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, *a.BookedByID)
	assert.False(t, a.IsNewPatient)
	assert.Equal(t, BookingOnline, a.BookingType())
}

func TestCreateAppointment_UnknownReferences(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(5)
	ctx := context.Background()

	_, err := f.svc.CreateAppointment(ctx, walkIn(uuid.New(), 1))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	in := f.online(s.ID)
	stranger := uuid.New()
	in.BookedByID = &stranger
	_, err = f.svc.CreateAppointment(ctx, in)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	orphan := f.addSession(5)
	orphan.DoctorID = uuid.New()
	_, err = f.svc.CreateAppointment(ctx, walkIn(orphan.ID, 1))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateAppointment_ReportsMissingSessionBeforeUser(t *testing.T) {
	f := newFixture(t)
	in := f.online(uuid.New())
	stranger := uuid.New()
	in.BookedByID = &stranger

	_, err := f.svc.CreateAppointment(context.Background(), in)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "session", appErr.Entity)

	orphan := f.addSession(5)
	orphan.DoctorID = uuid.New()
	in.SessionID = orphan.ID
	_, err = f.svc.CreateAppointment(context.Background(), in)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "doctor", appErr.Entity)
}

func TestCreateAppointment_CancelledSession(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(5)
	s.Status = session.StatusCancelled

	_, err := f.svc.CreateAppointment(context.Background(), walkIn(s.ID, 1))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCreateAppointment_LocksSessionInsideTransaction(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(5)

	_, err := f.svc.CreateAppointment(context.Background(), walkIn(s.ID, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, f.tx.runs)
	assert.Equal(t, 1, f.sessions.locks)
}

// -- Retries --

func TestCreateAppointment_RetriesNumberCollision(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(5)
	ctx := context.Background()

	first, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, 1))
	require.NoError(t, err)

	f.svc.SetNumberSource(&sequenceNumbers{
		queue: []string{first.AppointmentNumber, first.AppointmentNumber},
		gen:   NewNumberGenerator(),
	})
	second, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, 2))
	require.NoError(t, err)
	assert.NotEqual(t, first.AppointmentNumber, second.AppointmentNumber)
	assert.Equal(t, 2, second.QueuePosition)
	assert.Equal(t, 4, f.tx.runs, "one transaction for the first booking, three for the second")

	expected := `
# HELP channeling_booking_retries_total Booking transactions retried after a number collision or serialization conflict
# TYPE channeling_booking_retries_total counter
channeling_booking_retries_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), "channeling_booking_retries_total"))
}

func TestCreateAppointment_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(5)
	ctx := context.Background()

	first, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, 1))
	require.NoError(t, err)

	f.svc.SetMaxAttempts(2)
	f.svc.SetNumberSource(&sequenceNumbers{queue: []string{
		first.AppointmentNumber, first.AppointmentNumber, first.AppointmentNumber,
	}})
	_, err = f.svc.CreateAppointment(ctx, walkIn(s.ID, 2))
	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, apperr.KindDuplicate, e.Kind)
	assert.Equal(t, "appointment_number", e.Field)
	assert.Equal(t, 3, f.tx.runs)
}

func TestCreateAppointment_RetriesSerializationFailure(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(5)
	f.repo.createErrs = []error{&pgconn.PgError{Code: "40001", Message: "could not serialize access"}}

	a, err := f.svc.CreateAppointment(context.Background(), walkIn(s.ID, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, a.QueuePosition)
	assert.Equal(t, 2, f.repo.creates)
}

func TestCreateAppointment_StorageFailureIsOpaque(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(5)
	f.repo.createErrs = []error{errors.New(`pq: relation "appointment" does not exist`)}

	_, err := f.svc.CreateAppointment(context.Background(), walkIn(s.ID, 1))
	var e *apperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, apperr.KindPersistence, e.Kind)
	assert.Equal(t, 1, f.repo.creates, "unknown failures are not retried")

	httpErr := apperr.HTTPError(err)
	body, _ := json.Marshal(httpErr.Message)
	assert.NotContains(t, string(body), "relation")
}

// -- Side effects --

func TestCreateAppointment_PublishesAndEmails(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(5)

	a, err := f.svc.CreateAppointment(context.Background(), walkIn(s.ID, 1))
	require.NoError(t, err)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, events.AppointmentCreated, f.pub.events[0].Type)
	assert.Equal(t, a.ID.String(), f.pub.events[0].Key)
	assert.Equal(t, "channeling.appointments", f.pub.topics[0])

	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, "patient1@example.com", f.mail.sent[0].To)
	assert.Contains(t, f.mail.sent[0].Subject, a.AppointmentNumber)
	assert.Contains(t, f.mail.sent[0].HTML, "Dr. Perera")

	expected := `
# HELP channeling_bookings_total Appointment booking attempts by outcome
# TYPE channeling_bookings_total counter
channeling_bookings_total{outcome="booked"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), "channeling_bookings_total"))
}

func TestCreateAppointment_PublishFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(5)
	f.pub.err = errors.New("broker down")

	_, err := f.svc.CreateAppointment(context.Background(), walkIn(s.ID, 1))
	assert.NoError(t, err)
}

// -- Status changes --

func TestUpdateStatus_TerminalStatesAreFinal(t *testing.T) {
	for _, terminal := range []Status{StatusCompleted, StatusCancelled} {
		for _, target := range []Status{StatusConfirmed, StatusCompleted, StatusCancelled, StatusRescheduled} {
			t.Run(string(terminal)+"->"+string(target), func(t *testing.T) {
				f := newFixture(t)
				s := f.addSession(5)
				ctx := context.Background()

				a, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, 1))
				require.NoError(t, err)
				_, err = f.svc.UpdateStatus(ctx, a.ID, terminal, "")
				require.NoError(t, err)

				_, err = f.svc.UpdateStatus(ctx, a.ID, target, "")
				assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
				stored, _ := f.repo.GetByID(ctx, a.ID)
				assert.Equal(t, terminal, stored.Status)
			})
		}
	}
}

func TestUpdateStatus_CancelKeepsReasonAndEmails(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(5)
	ctx := context.Background()

	a, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, 1))
	require.NoError(t, err)
	got, err := f.svc.UpdateStatus(ctx, a.ID, StatusCancelled, "  doctor on leave ")
	require.NoError(t, err)
	require.NotNil(t, got.CancellationReason)
	assert.Equal(t, "doctor on leave", *got.CancellationReason)

	require.Len(t, f.mail.sent, 2)
	assert.Contains(t, f.mail.sent[1].Subject, "cancelled")
	require.Len(t, f.pub.events, 2)
	assert.Equal(t, events.AppointmentStatusChanged, f.pub.events[1].Type)

	var payload struct {
		Status Status `json:"status"`
		From   string `json:"from"`
	}
	require.NoError(t, json.Unmarshal(f.pub.events[1].Payload, &payload))
	assert.Equal(t, StatusCancelled, payload.Status)
	assert.Equal(t, "CONFIRMED", payload.From)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(5)
	a, err := f.svc.CreateAppointment(context.Background(), walkIn(s.ID, 1))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), a.ID, "NO_SHOW", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.svc.UpdateStatus(context.Background(), uuid.New(), StatusCompleted, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdatePaymentStatus(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(5)
	ctx := context.Background()
	a, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, 1))
	require.NoError(t, err)

	got, err := f.svc.UpdatePaymentStatus(ctx, a.ID, PaymentFailed)
	require.NoError(t, err)
	assert.Equal(t, PaymentFailed, got.PaymentStatus)

	got, err = f.svc.UpdatePaymentStatus(ctx, a.ID, PaymentPaid)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, got.PaymentStatus)

	_, err = f.svc.UpdatePaymentStatus(ctx, a.ID, PaymentPending)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.Equal(t, events.PaymentStatusChanged, f.pub.events[len(f.pub.events)-1].Type)
}

type recordingHook struct {
	paid []uuid.UUID
	err  error
}

func (h *recordingHook) Paid(_ context.Context, a *Appointment) error {
	if h.err != nil {
		return h.err
	}
	h.paid = append(h.paid, a.ID)
	return nil
}

func TestUpdatePaymentStatus_RunsPaymentHook(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(5)
	ctx := context.Background()
	hook := &recordingHook{}
	f.svc.SetPaymentHook(hook)

	a, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, 1))
	require.NoError(t, err)
	_, err = f.svc.UpdatePaymentStatus(ctx, a.ID, PaymentFailed)
	require.NoError(t, err)
	assert.Empty(t, hook.paid)

	_, err = f.svc.UpdatePaymentStatus(ctx, a.ID, PaymentPaid)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a.ID}, hook.paid)

	prepaid := walkIn(s.ID, 2)
	prepaid.PaymentStatus = PaymentPaid
	b, err := f.svc.CreateAppointment(ctx, prepaid)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a.ID, b.ID}, hook.paid)
}

func TestUpdatePaymentStatus_HookFailureFailsPayment(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(5)
	ctx := context.Background()
	a, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, 1))
	require.NoError(t, err)

	f.svc.SetPaymentHook(&recordingHook{err: errors.New("invoice table missing")})
	_, err = f.svc.UpdatePaymentStatus(ctx, a.ID, PaymentPaid)
	assert.ErrorIs(t, err, apperr.ErrPersistence)
}

// -- Reads --

func TestListAppointments(t *testing.T) {
	f := newFixture(t)
	s := f.addSession(5)
	ctx := context.Background()

	_, err := f.svc.CreateAppointment(ctx, walkIn(s.ID, 1))
	require.NoError(t, err)
	_, err = f.svc.CreateAppointment(ctx, f.online(s.ID))
	require.NoError(t, err)

	views, total, err := f.svc.ListAppointments(ctx, Filter{SessionID: &s.ID}, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, BookingWalkIn, views[0].Type)
	assert.Equal(t, BookingOnline, views[1].Type)
	assert.Equal(t, "Dr. Perera", views[0].DoctorName)
	assert.Equal(t, "Mon, 02 Nov 2026 09:00 - 11:00", views[0].SessionTime)

	_, _, err = f.svc.ListAppointments(ctx, Filter{Status: "BOOKED"}, 20, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestQueueForSession_UnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.QueueForSession(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
