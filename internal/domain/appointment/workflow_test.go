package appointment

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/medichannel/channeling/internal/platform/apperr"
)

func TestCheckCapacity(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name     string
		capacity int
		active   int
		full     bool
	}{
		{"empty session", 10, 0, false},
		{"one place left", 10, 9, false},
		{"exactly full", 10, 10, true},
		{"over full after capacity reduction", 5, 7, true},
		{"single place", 1, 0, false},
		{"single place taken", 1, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckCapacity(id, tt.capacity, tt.active)
			if !tt.full {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)
			assert.Contains(t, err.Error(), id.String())
		})
	}
}

func TestNextQueuePosition(t *testing.T) {
	tests := []struct {
		name    string
		active  int
		highest int
		want    int
	}{
		{"first booking", 0, 0, 1},
		{"no gaps", 3, 3, 4},
		{"gap below highest", 2, 3, 4},
		{"everyone before the last cancelled", 1, 5, 6},
		{"highest cancelled leaves no gap", 2, 2, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextQueuePosition(tt.active, tt.highest))
		})
	}
}

func TestResolveFee(t *testing.T) {
	explicit := decimal.NewFromInt(1800)
	doctorFee := decimal.RequireFromString("2500.00")

	assert.True(t, ResolveFee(&explicit, &doctorFee).Equal(explicit))
	assert.True(t, ResolveFee(nil, &doctorFee).Equal(doctorFee))
	assert.True(t, ResolveFee(nil, nil).IsZero())

	zero := decimal.Zero
	assert.True(t, ResolveFee(&zero, &doctorFee).IsZero(), "an explicit zero fee is kept")
}

func TestResolveTotal(t *testing.T) {
	fee := decimal.NewFromInt(2500)
	total := decimal.RequireFromString("2750.50")

	assert.True(t, ResolveTotal(&total, fee).Equal(total))
	assert.True(t, ResolveTotal(nil, fee).Equal(fee))
}

func TestEstimatedWait(t *testing.T) {
	assert.Equal(t, 0, EstimatedWait(1, 15))
	assert.Equal(t, 45, EstimatedWait(4, 15))
	assert.Equal(t, 0, EstimatedWait(4, 0))
	assert.Equal(t, 0, EstimatedWait(0, 15))
}

func TestCheckAmounts(t *testing.T) {
	assert.Empty(t, checkAmounts(CreateInput{}))
	assert.Empty(t, checkAmounts(CreateInput{ConsultationFee: dec("0"), TotalAmount: dec("10")}))

	fields := checkAmounts(CreateInput{ConsultationFee: dec("-0.01"), TotalAmount: dec("-1")})
	if assert.Len(t, fields, 2) {
		assert.Equal(t, "consultation_fee", fields[0].Field)
		assert.Equal(t, "total_amount", fields[1].Field)
	}
}
