package appointment

import "github.com/medichannel/channeling/internal/platform/lifecycle"

type Status string

const (
	StatusConfirmed   Status = "CONFIRMED"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
	StatusRescheduled Status = "RESCHEDULED"
)

// Active statuses hold a place in the session: they count against capacity
// and keep their queue position.
func (s Status) Active() bool {
	return s == StatusConfirmed || s == StatusRescheduled
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Lifecycle is the appointment status table. Completed and cancelled are
// terminal; a rescheduled appointment may be rescheduled again.
var Lifecycle = lifecycle.New("appointment", StatusConfirmed, map[Status][]Status{
	StatusConfirmed:   {StatusCompleted, StatusCancelled, StatusRescheduled},
	StatusRescheduled: {StatusCompleted, StatusCancelled, StatusRescheduled},
})

// PaymentLifecycle lets a failed payment be retried. Paid is terminal.
var PaymentLifecycle = lifecycle.New("payment", PaymentPending, map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentPaid, PaymentFailed},
	PaymentFailed:  {PaymentPending, PaymentPaid},
})
