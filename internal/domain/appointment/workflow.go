package appointment

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medichannel/channeling/internal/platform/apperr"
)

// CheckCapacity rejects a booking once the active appointments have filled
// the session.
func CheckCapacity(sessionID uuid.UUID, capacity, activeCount int) error {
	if activeCount >= capacity {
		return apperr.CapacityExceeded("session", sessionID.String(), capacity)
	}
	return nil
}

// NextQueuePosition is one past the number of active appointments. When a
// cancellation has left a gap below the highest active position, the
// position continues after the highest one instead so it is never shared.
// Existing positions are never renumbered.
func NextQueuePosition(activeCount, highestActive int) int {
	if highestActive > activeCount {
		return highestActive + 1
	}
	return activeCount + 1
}

// ResolveFee picks the caller's fee, then the doctor's published fee, then zero.
func ResolveFee(explicit, doctorFee *decimal.Decimal) decimal.Decimal {
	switch {
	case explicit != nil:
		return *explicit
	case doctorFee != nil:
		return *doctorFee
	default:
		return decimal.Zero
	}
}

// ResolveTotal picks the caller's total, falling back to the resolved fee.
func ResolveTotal(explicit *decimal.Decimal, fee decimal.Decimal) decimal.Decimal {
	if explicit != nil {
		return *explicit
	}
	return fee
}

// EstimatedWait gives the minutes until a patient at position is seen,
// assuming each earlier patient takes one slot.
func EstimatedWait(position, slotMinutes int) int {
	if position <= 1 || slotMinutes <= 0 {
		return 0
	}
	return (position - 1) * slotMinutes
}

func checkAmounts(in CreateInput) []apperr.FieldError {
	var fields []apperr.FieldError
	if in.ConsultationFee != nil && in.ConsultationFee.IsNegative() {
		fields = append(fields, apperr.FieldError{Field: "consultation_fee", Message: "must not be negative"})
	}
	if in.TotalAmount != nil && in.TotalAmount.IsNegative() {
		fields = append(fields, apperr.FieldError{Field: "total_amount", Message: "must not be negative"})
	}
	return fields
}
