package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     int64
	}{
		{name: "whole dollars", amount: "110.00", currency: "USD", want: 11000},
		{name: "rupees to paise", amount: "499.99", currency: "INR", want: 49999},
		{name: "rounds half up", amount: "10.005", currency: "USD", want: 1001},
		{name: "rounds down", amount: "10.004", currency: "USD", want: 1000},
		{name: "zero decimal currency", amount: "1200", currency: "JPY", want: 1200},
		{name: "three decimal currency", amount: "1.2345", currency: "KWD", want: 1235},
		{name: "lowercase code", amount: "1", currency: "usd", want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToMinorUnits(decimal.RequireFromString(tt.amount), tt.currency)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToMinorUnits_AvoidsFloatDrift(t *testing.T) {
	// 0.1 + 0.2 in float64 is 0.30000000000000004
	total := decimal.RequireFromString("0.1").Add(decimal.RequireFromString("0.2"))
	assert.Equal(t, int64(30), ToMinorUnits(total, "USD"))
}

func TestFromMinorUnits(t *testing.T) {
	assert.Equal(t, "110", FromMinorUnits(11000, "USD").String())
	assert.Equal(t, "1200", FromMinorUnits(1200, "JPY").String())
}

func TestDecimalJSONIsNumber(t *testing.T) {
	data, err := json.Marshal(OrderLineItem{UnitPrice: decimal.RequireFromString("12.50"), Quantity: 1})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"unit_price":12.5`)
}
