package doctor

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medichannel/channeling/internal/platform/lifecycle"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusSuspended Status = "SUSPENDED"
)

// Approval is the doctor onboarding workflow. Every decision is final.
var Approval = lifecycle.New("doctor", StatusPending, map[Status][]Status{
	StatusPending: {StatusApproved, StatusRejected, StatusSuspended},
})

// Doctor maps to the doctor table. ConsultationFee is nil when the doctor
// has not published a fee.
type Doctor struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	HospitalID      uuid.UUID        `db:"hospital_id" json:"hospital_id"`
	Name            string           `db:"name" json:"name"`
	Email           string           `db:"email" json:"email"`
	Phone           *string          `db:"phone" json:"phone,omitempty"`
	Specialization  string           `db:"specialization" json:"specialization"`
	Qualification   *string          `db:"qualification" json:"qualification,omitempty"`
	ConsultationFee *decimal.Decimal `db:"consultation_fee" json:"consultation_fee,omitempty"`
	Status          Status           `db:"status" json:"status"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// Approved reports whether the doctor may run channeling sessions.
func (d *Doctor) Approved() bool { return d.Status == StatusApproved }

type CreateInput struct {
	HospitalID      uuid.UUID        `json:"hospital_id" validate:"required"`
	Name            string           `json:"name" validate:"required,max=200"`
	Email           string           `json:"email" validate:"required,email"`
	Phone           *string          `json:"phone" validate:"omitempty,phone"`
	Specialization  string           `json:"specialization" validate:"required,max=120"`
	Qualification   *string          `json:"qualification" validate:"omitempty,max=200"`
	ConsultationFee *decimal.Decimal `json:"consultation_fee"`
}

type Filter struct {
	HospitalID     *uuid.UUID
	Status         Status
	Specialization string
}
