package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medichannel/channeling/internal/domain/doctor"
	"github.com/medichannel/channeling/internal/domain/session"
	"github.com/medichannel/channeling/internal/domain/user"
	"github.com/medichannel/channeling/internal/platform/apperr"
	"github.com/medichannel/channeling/internal/platform/events"
	"github.com/medichannel/channeling/internal/platform/notification"
)

// -- In-memory repository --

// memRepo enforces the same unique rules as the database: one number per
// appointment and one active appointment per queue position.
type memRepo struct {
	mu       sync.Mutex
	items    map[uuid.UUID]*Appointment
	sessions *memSessions
	doctor   *doctor.Doctor

	// createErrs are returned by successive Create calls before any insert.
	createErrs []error
	creates    int

	claimed map[uuid.UUID]time.Time
}

func newMemRepo(sessions *memSessions, d *doctor.Doctor) *memRepo {
	return &memRepo{items: make(map[uuid.UUID]*Appointment), sessions: sessions, doctor: d}
}

func (m *memRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		return err
	}
	for _, existing := range m.items {
		if existing.AppointmentNumber == a.AppointmentNumber {
			return apperr.Duplicate("appointment", "appointment_number", nil)
		}
		if existing.SessionID == a.SessionID && existing.Status.Active() && a.Status.Active() &&
			existing.QueuePosition == a.QueuePosition {
			return apperr.Duplicate("appointment", "queue_position", nil)
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.items[a.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("appointment", id.String())
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) view(a *Appointment) *View {
	v := &View{Appointment: *a, DoctorID: m.doctor.ID, DoctorName: m.doctor.Name, HospitalName: "City Hospital"}
	if s, ok := m.sessions.items[a.SessionID]; ok {
		v.HospitalID = s.HospitalID
		v.SessionStart = s.StartTime
		v.SessionEnd = s.EndTime
	}
	v.decorate()
	return v
}

func (m *memRepo) GetView(ctx context.Context, id uuid.UUID) (*View, error) {
	a, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.view(a), nil
}

func (m *memRepo) List(_ context.Context, f Filter, limit, offset int) ([]*View, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*View
	for _, a := range m.sorted() {
		if f.SessionID != nil && a.SessionID != *f.SessionID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.PatientEmail != "" && a.PatientEmail != f.PatientEmail {
			continue
		}
		if f.BookedByID != nil && (a.BookedByID == nil || *a.BookedByID != *f.BookedByID) {
			continue
		}
		out = append(out, m.view(a))
	}
	return out, len(out), nil
}

func (m *memRepo) sorted() []*Appointment {
	out := make([]*Appointment, 0, len(m.items))
	for _, a := range m.items {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueuePosition < out[j].QueuePosition })
	return out
}

func (m *memRepo) QueueStats(_ context.Context, sessionID uuid.UUID) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active, highest int
	for _, a := range m.items {
		if a.SessionID != sessionID || !a.Status.Active() {
			continue
		}
		active++
		if a.QueuePosition > highest {
			highest = a.QueuePosition
		}
	}
	return active, highest, nil
}

func (m *memRepo) CountActive(ctx context.Context, sessionID uuid.UUID) (int, error) {
	active, _, err := m.QueueStats(ctx, sessionID)
	return active, err
}

func (m *memRepo) ListQueue(_ context.Context, sessionID uuid.UUID) ([]*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Appointment
	for _, a := range m.sorted() {
		if a.SessionID == sessionID && a.Status.Active() {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status, reason *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return apperr.NotFound("appointment", id.String())
	}
	a.Status = status
	if reason != nil {
		a.CancellationReason = reason
	}
	return nil
}

func (m *memRepo) UpdatePaymentStatus(_ context.Context, id uuid.UUID, status PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return apperr.NotFound("appointment", id.String())
	}
	a.PaymentStatus = status
	return nil
}

func (m *memRepo) ClaimReminders(_ context.Context, c ReminderClaim) ([]*View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimed == nil {
		m.claimed = make(map[uuid.UUID]time.Time)
	}
	var out []*View
	for _, a := range m.sorted() {
		s := m.sessions.items[a.SessionID]
		at, held := m.claimed[a.ID]
		if held && !at.Before(c.StaleBefore) {
			continue
		}
		if a.Status.Active() && a.ReminderSentAt == nil && !s.StartTime.Before(c.From) && s.StartTime.Before(c.To) {
			m.claimed[a.ID] = c.Now
			out = append(out, m.view(a))
		}
		if len(out) == c.Limit {
			break
		}
	}
	return out, nil
}

func (m *memRepo) ReleaseReminder(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, id)
	return nil
}

func (m *memRepo) MarkReminderSent(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.items[id]; ok {
		a.ReminderSentAt = &at
	}
	return nil
}

// -- Collaborators --

type memSessions struct {
	items map[uuid.UUID]*session.Session
	locks int
}

func (m *memSessions) GetByID(_ context.Context, id uuid.UUID) (*session.Session, error) {
	s, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("session", id.String())
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) GetForUpdate(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	m.locks++
	return m.GetByID(ctx, id)
}

type stubDoctors map[uuid.UUID]*doctor.Doctor

func (s stubDoctors) Get(_ context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	d, ok := s[id]
	if !ok {
		return nil, apperr.NotFound("doctor", id.String())
	}
	return d, nil
}

type stubUsers map[uuid.UUID]*user.User

func (s stubUsers) Get(_ context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, apperr.NotFound("user", id.String())
	}
	return u, nil
}

// countingTx records how many transactions were opened.
type countingTx struct{ runs int }

func (t *countingTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.runs++
	return fn(ctx)
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, evts ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	for _, e := range evts {
		p.topics = append(p.topics, topic)
		p.events = append(p.events, e)
	}
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type recordingMailer struct {
	mu   sync.Mutex
	sent []notification.Message
}

func (m *recordingMailer) Send(_ context.Context, msg notification.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// sequenceNumbers replays fixed numbers, then falls back to a real generator.
type sequenceNumbers struct {
	queue []string
	gen   *NumberGenerator
}

func (s *sequenceNumbers) Next() string {
	if len(s.queue) > 0 {
		n := s.queue[0]
		s.queue = s.queue[1:]
		return n
	}
	return s.gen.Next()
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
