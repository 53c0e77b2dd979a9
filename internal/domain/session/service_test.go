package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medichannel/channeling/internal/domain/doctor"
	"github.com/medichannel/channeling/internal/platform/apperr"
)

// -- Mocks --

type mockRepo struct {
	items  map[uuid.UUID]*Session
	locked []uuid.UUID
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[uuid.UUID]*Session)}
}

func (m *mockRepo) Create(_ context.Context, s *Session) error {
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	m.items[s.ID] = s
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Session, error) {
	s, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("session", id.String())
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Session, error) {
	m.locked = append(m.locked, id)
	return m.GetByID(ctx, id)
}

func (m *mockRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Session, int, error) {
	var result []*Session
	for _, s := range m.items {
		if f.DoctorID != nil && s.DoctorID != *f.DoctorID {
			continue
		}
		result = append(result, s)
	}
	return result, len(result), nil
}

func (m *mockRepo) UpdateCapacity(_ context.Context, id uuid.UUID, capacity int) error {
	s, ok := m.items[id]
	if !ok {
		return apperr.NotFound("session", id.String())
	}
	s.Capacity = capacity
	return nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status) error {
	s, ok := m.items[id]
	if !ok {
		return apperr.NotFound("session", id.String())
	}
	s.Status = status
	return nil
}

type stubDoctors map[uuid.UUID]*doctor.Doctor

func (s stubDoctors) Get(_ context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	d, ok := s[id]
	if !ok {
		return nil, apperr.NotFound("doctor", id.String())
	}
	return d, nil
}

type stubCounter map[uuid.UUID]int

func (s stubCounter) CountActive(_ context.Context, id uuid.UUID) (int, error) {
	return s[id], nil
}

type fixture struct {
	svc      *Service
	repo     *mockRepo
	bookings stubCounter
	doctor   *doctor.Doctor
	hospital uuid.UUID
}

func newFixture() *fixture {
	hospitalID := uuid.New()
	d := &doctor.Doctor{ID: uuid.New(), HospitalID: hospitalID, Name: "Dr. Perera", Status: doctor.StatusApproved}
	repo := newMockRepo()
	bookings := stubCounter{}
	return &fixture{
		svc:      NewService(repo, stubDoctors{d.ID: d}, bookings),
		repo:     repo,
		bookings: bookings,
		doctor:   d,
		hospital: hospitalID,
	}
}

func (f *fixture) input() CreateInput {
	start := time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)
	return CreateInput{DoctorID: f.doctor.ID, StartTime: start, EndTime: start.Add(2 * time.Hour), Capacity: 10}
}

func TestCreate_DefaultsHospitalToDoctors(t *testing.T) {
	f := newFixture()
	s, err := f.svc.Create(context.Background(), f.input())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.HospitalID != f.hospital {
		t.Errorf("expected doctor's hospital, got %s", s.HospitalID)
	}
	if s.Status != StatusScheduled {
		t.Errorf("expected SCHEDULED, got %s", s.Status)
	}
	if s.SlotMinutes() != 12 {
		t.Errorf("expected 12 minute slots, got %d", s.SlotMinutes())
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()

	in := f.input()
	in.EndTime = in.StartTime.Add(-time.Hour)
	in.Capacity = 0
	_, err := f.svc.Create(context.Background(), in)
	var e *apperr.Error
	if !errors.As(err, &e) || e.Kind != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(e.Fields) != 2 {
		t.Errorf("expected end_time and capacity errors, got %v", e.Fields)
	}
}

func TestCreate_DoctorMustBeApproved(t *testing.T) {
	f := newFixture()
	f.doctor.Status = doctor.StatusSuspended
	if _, err := f.svc.Create(context.Background(), f.input()); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	in := f.input()
	in.DoctorID = uuid.New()
	if _, err := f.svc.Create(context.Background(), in); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateCapacity(t *testing.T) {
	f := newFixture()
	s, _ := f.svc.Create(context.Background(), f.input())
	f.bookings[s.ID] = 6

	if _, err := f.svc.UpdateCapacity(context.Background(), s.ID, 5); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected shrinking below bookings to fail, got %v", err)
	}
	got, err := f.svc.UpdateCapacity(context.Background(), s.ID, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Capacity != 6 || f.repo.items[s.ID].Capacity != 6 {
		t.Errorf("capacity not updated")
	}
	if len(f.repo.locked) != 2 {
		t.Errorf("expected the session row to be locked on each attempt, got %d", len(f.repo.locked))
	}
	if _, err := f.svc.UpdateCapacity(context.Background(), s.ID, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected zero capacity to fail, got %v", err)
	}
}

func TestAvailability(t *testing.T) {
	f := newFixture()
	s, _ := f.svc.Create(context.Background(), f.input())
	f.bookings[s.ID] = 7

	a, err := f.svc.Availability(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Capacity != 10 || a.Booked != 7 || a.Remaining != 3 {
		t.Errorf("unexpected availability %+v", a)
	}

	if _, err := f.svc.Cancel(context.Background(), s.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	a, _ = f.svc.Availability(context.Background(), s.ID)
	if a.Remaining != 0 {
		t.Errorf("cancelled session should have no remaining places, got %d", a.Remaining)
	}
}

func TestCancel_Twice(t *testing.T) {
	f := newFixture()
	s, _ := f.svc.Create(context.Background(), f.input())
	if _, err := f.svc.Cancel(context.Background(), s.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), s.ID); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestList_RejectsInvertedRange(t *testing.T) {
	f := newFixture()
	from := time.Now()
	to := from.Add(-time.Hour)
	if _, _, err := f.svc.List(context.Background(), Filter{From: &from, To: &to}, 20, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFormatTime(t *testing.T) {
	start := time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)
	if got := FormatTime(start, start.Add(90*time.Minute)); got != "Mon, 02 Nov 2026 09:00 - 10:30" {
		t.Errorf("unexpected %q", got)
	}
	if FormatTime(time.Time{}, time.Time{}) != "" {
		t.Error("expected empty string for zero time")
	}
}
