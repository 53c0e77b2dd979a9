package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/medichannel/channeling/internal/platform/lifecycle"
)

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusCancelled Status = "CANCELLED"
)

var Lifecycle = lifecycle.New("session", StatusScheduled, map[Status][]Status{
	StatusScheduled: {StatusCancelled},
})

// Session is a block of time in which a doctor sees a bounded number of
// patients at a hospital.
type Session struct {
	ID         uuid.UUID `db:"id" json:"id"`
	DoctorID   uuid.UUID `db:"doctor_id" json:"doctor_id"`
	HospitalID uuid.UUID `db:"hospital_id" json:"hospital_id"`
	StartTime  time.Time `db:"start_time" json:"start_time"`
	EndTime    time.Time `db:"end_time" json:"end_time"`
	Capacity   int       `db:"capacity" json:"capacity"`
	Room       *string   `db:"room" json:"room,omitempty"`
	Status     Status    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Bookable reports whether new appointments may be taken.
func (s *Session) Bookable() bool { return s.Status == StatusScheduled }

// SlotMinutes is the average consultation length: the session duration
// divided evenly between its capacity.
func (s *Session) SlotMinutes() int {
	if s.Capacity <= 0 {
		return 0
	}
	return int(s.EndTime.Sub(s.StartTime).Minutes()) / s.Capacity
}

// FormatTime renders a session window for lists and notifications,
// e.g. "Mon, 02 Jan 2006 09:00 - 11:00".
func FormatTime(start, end time.Time) string {
	if start.IsZero() {
		return ""
	}
	return start.Format("Mon, 02 Jan 2006 15:04") + " - " + end.Format("15:04")
}

type CreateInput struct {
	DoctorID   uuid.UUID  `json:"doctor_id" validate:"required"`
	HospitalID *uuid.UUID `json:"hospital_id"`
	StartTime  time.Time  `json:"start_time" validate:"required"`
	EndTime    time.Time  `json:"end_time" validate:"required,gtfield=StartTime"`
	Capacity   int        `json:"capacity" validate:"gt=0,lte=500"`
	Room       *string    `json:"room" validate:"omitempty,max=50"`
}

type Filter struct {
	DoctorID   *uuid.UUID
	HospitalID *uuid.UUID
	From       *time.Time
	To         *time.Time
	Status     Status
}

// Availability summarises how full a session is.
type Availability struct {
	SessionID uuid.UUID `json:"session_id"`
	Status    Status    `json:"status"`
	Capacity  int       `json:"capacity"`
	Booked    int       `json:"booked"`
	Remaining int       `json:"remaining"`
}
