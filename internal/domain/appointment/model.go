package appointment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Appointment maps to the appointment table. Rows are never deleted;
// cancellation is the terminal status.
type Appointment struct {
	ID                    uuid.UUID       `db:"id" json:"id"`
	AppointmentNumber     string          `db:"appointment_number" json:"appointment_number"`
	SessionID             uuid.UUID       `db:"session_id" json:"session_id"`
	BookedByID            *uuid.UUID      `db:"booked_by_id" json:"booked_by_id,omitempty"`
	PatientName           string          `db:"patient_name" json:"patient_name"`
	PatientEmail          string          `db:"patient_email" json:"patient_email"`
	PatientPhone          string          `db:"patient_phone" json:"patient_phone"`
	PatientNIC            *string         `db:"patient_nic" json:"patient_nic,omitempty"`
	PatientDOB            *time.Time      `db:"patient_dob" json:"patient_dob,omitempty"`
	PatientGender         *string         `db:"patient_gender" json:"patient_gender,omitempty"`
	EmergencyContactName  *string         `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string         `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	MedicalHistory        *string         `db:"medical_history" json:"medical_history,omitempty"`
	CurrentMedications    *string         `db:"current_medications" json:"current_medications,omitempty"`
	Allergies             *string         `db:"allergies" json:"allergies,omitempty"`
	Notes                 *string         `db:"notes" json:"notes,omitempty"`
	IsNewPatient          bool            `db:"is_new_patient" json:"is_new_patient"`
	QueuePosition         int             `db:"queue_position" json:"queue_position"`
	EstimatedWaitTime     *int            `db:"estimated_wait_time" json:"estimated_wait_time,omitempty"`
	Status                Status          `db:"status" json:"status"`
	PaymentStatus         PaymentStatus   `db:"payment_status" json:"payment_status"`
	ConsultationFee       decimal.Decimal `db:"consultation_fee" json:"consultation_fee"`
	TotalAmount           decimal.Decimal `db:"total_amount" json:"total_amount"`
	CancellationReason    *string         `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	ReminderSentAt        *time.Time      `db:"reminder_sent_at" json:"reminder_sent_at,omitempty"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at" json:"updated_at"`
}

// BookingType is derived from IsNewPatient: staff walk-ins register new
// patients, online bookings come from an existing account.
func (a *Appointment) BookingType() string {
	if a.IsNewPatient {
		return BookingWalkIn
	}
	return BookingOnline
}

const (
	BookingOnline = "online"
	BookingWalkIn = "walk-in"
)

// CreateInput is the booking request. Optional fields are pointers so an
// absent value is distinguishable from a zero one.
type CreateInput struct {
	SessionID             uuid.UUID        `json:"session_id" validate:"required"`
	BookingType           string           `json:"booking_type" validate:"omitempty,oneof=online walk-in"`
	BookedByID            *uuid.UUID       `json:"booked_by_id" validate:"required_if=BookingType online"`
	PatientName           string           `json:"patient_name" validate:"required,max=200"`
	PatientEmail          string           `json:"patient_email" validate:"required,email,max=254"`
	PatientPhone          string           `json:"patient_phone" validate:"required,phone"`
	PatientNIC            *string          `json:"patient_nic" validate:"omitempty,max=20"`
	PatientDOB            *time.Time       `json:"patient_dob"`
	PatientGender         *string          `json:"patient_gender" validate:"omitempty,oneof=male female other"`
	EmergencyContactName  *string          `json:"emergency_contact_name" validate:"omitempty,max=200"`
	EmergencyContactPhone *string          `json:"emergency_contact_phone" validate:"omitempty,phone"`
	MedicalHistory        *string          `json:"medical_history" validate:"omitempty,max=4000"`
	CurrentMedications    *string          `json:"current_medications" validate:"omitempty,max=4000"`
	Allergies             *string          `json:"allergies" validate:"omitempty,max=2000"`
	Notes                 *string          `json:"notes" validate:"omitempty,max=2000"`
	IsNewPatient          *bool            `json:"is_new_patient"`
	EstimatedWaitTime     *int             `json:"estimated_wait_time" validate:"omitempty,gte=0"`
	ConsultationFee       *decimal.Decimal `json:"consultation_fee"`
	TotalAmount           *decimal.Decimal `json:"total_amount"`
	Status                Status           `json:"status" validate:"omitempty,oneof=CONFIRMED RESCHEDULED"`
	PaymentStatus         PaymentStatus    `json:"payment_status" validate:"omitempty,oneof=PENDING PAID"`
}

// Filter narrows ListAppointments. Zero values are ignored.
type Filter struct {
	SessionID    *uuid.UUID
	PatientEmail string
	Status       Status
	BookedByID   *uuid.UUID
	HospitalID   *uuid.UUID
}

// View is an appointment with the display fields of its session, doctor
// and hospital.
type View struct {
	Appointment
	DoctorID     uuid.UUID `json:"doctor_id"`
	DoctorName   string    `json:"doctor_name"`
	HospitalID   uuid.UUID `json:"hospital_id"`
	HospitalName string    `json:"hospital_name"`
	SessionStart time.Time `json:"session_start"`
	SessionEnd   time.Time `json:"session_end"`
	SessionTime  string    `json:"session_time"`
	Type         string    `json:"booking_type"`
}
