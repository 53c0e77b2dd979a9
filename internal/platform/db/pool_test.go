package db

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewPool_InvalidURL(t *testing.T) {
	_, err := NewPool(context.Background(), PoolConfig{URL: "://not a url"})
	if err == nil {
		t.Fatal("expected error for malformed database url")
	}
}

func TestNullDecimal(t *testing.T) {
	if NullDecimal(nil).Valid {
		t.Error("expected nil to map to an invalid NullDecimal")
	}

	fee := decimal.RequireFromString("2500.00")
	nd := NullDecimal(&fee)
	if !nd.Valid || !nd.Decimal.Equal(fee) {
		t.Errorf("unexpected NullDecimal: %+v", nd)
	}

	back := DecimalPtr(nd)
	if back == nil || !back.Equal(fee) {
		t.Errorf("expected round trip to %s, got %v", fee, back)
	}
	if DecimalPtr(decimal.NullDecimal{}) != nil {
		t.Error("expected nil for invalid NullDecimal")
	}
}
