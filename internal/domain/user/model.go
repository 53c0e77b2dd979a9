package user

import (
	"time"

	"github.com/google/uuid"
)

// roleTag lists the roles an account may hold. They match the token roles.
const roleTag = "oneof=patient doctor nurse cashier hospital_admin admin"

// User is an account that can appear as the booker of an appointment.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type CreateInput struct {
	Name  string  `json:"name" validate:"required,max=200"`
	Email string  `json:"email" validate:"required,email,max=254"`
	Phone *string `json:"phone" validate:"omitempty,phone"`
	Role  string  `json:"role" validate:"omitempty,oneof=patient doctor nurse cashier hospital_admin admin"`
}
