package hospital

import (
	"time"

	"github.com/google/uuid"

	"github.com/medichannel/channeling/internal/platform/lifecycle"
)

type Status string

const (
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
)

// Approval is the hospital onboarding workflow. Approved and rejected are final.
var Approval = lifecycle.New("hospital", StatusPendingApproval, map[Status][]Status{
	StatusPendingApproval: {StatusApproved, StatusRejected},
})

// Hospital maps to the hospital table.
type Hospital struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	RegistrationNumber string    `db:"registration_number" json:"registration_number"`
	Address            *string   `db:"address" json:"address,omitempty"`
	Phone              *string   `db:"phone" json:"phone,omitempty"`
	Email              *string   `db:"email" json:"email,omitempty"`
	Status             Status    `db:"status" json:"status"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Approved reports whether the hospital may host channeling sessions.
func (h *Hospital) Approved() bool { return h.Status == StatusApproved }

type CreateInput struct {
	Name               string  `json:"name" validate:"required,max=200"`
	RegistrationNumber string  `json:"registration_number" validate:"required,max=64"`
	Address            *string `json:"address" validate:"omitempty,max=500"`
	Phone              *string `json:"phone" validate:"omitempty,phone"`
	Email              *string `json:"email" validate:"omitempty,email"`
}

// Filter narrows List. Zero values are ignored.
type Filter struct {
	Status Status
	Name   string
}
