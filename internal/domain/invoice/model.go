// Package invoice keeps the billing record of paid appointments.
package invoice

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice maps to the invoice table. Amounts are copied from the appointment
// when it is paid and never change afterwards.
type Invoice struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	InvoiceNumber   string          `db:"invoice_number" json:"invoice_number"`
	AppointmentID   uuid.UUID       `db:"appointment_id" json:"appointment_id"`
	PatientName     string          `db:"patient_name" json:"patient_name"`
	PatientEmail    string          `db:"patient_email" json:"patient_email"`
	ConsultationFee decimal.Decimal `db:"consultation_fee" json:"consultation_fee"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"total_amount"`
	IssuedAt        time.Time       `db:"issued_at" json:"issued_at"`
}

// Filter narrows List. Zero values are ignored.
type Filter struct {
	PatientEmail string
	IssuedFrom   *time.Time
	IssuedTo     *time.Time
}

// NumberFor derives the invoice number from the appointment number.
func NumberFor(appointmentNumber string) string {
	return "INV-" + strings.TrimPrefix(appointmentNumber, "APT-")
}
