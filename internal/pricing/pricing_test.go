package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLineTotal(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		discount string
		qty      int
		want     string
	}{
		{"no discount", "50", "0", 1, "50"},
		{"ten percent", "100", "10", 2, "180"},
		{"full discount", "100", "100", 3, "0"},
		{"quantity floored", "20", "0", 0, "20"},
		{"discount above range clamped", "10", "150", 1, "0"},
		{"negative discount clamped", "10", "-5", 2, "20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LineTotal(decimal.RequireFromString(tt.price), decimal.RequireFromString(tt.discount), tt.qty)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestParseDiscount(t *testing.T) {
	assert.True(t, ParseDiscount("").IsZero())
	assert.True(t, ParseDiscount("   ").IsZero())
	assert.True(t, ParseDiscount("abc").IsZero())
	assert.True(t, ParseDiscount("12.5").Equal(decimal.RequireFromString("12.5")))
	assert.True(t, ParseDiscount("12,5").Equal(decimal.RequireFromString("12.5")))
	assert.True(t, ParseDiscount("15%").Equal(decimal.NewFromInt(15)))
	assert.True(t, ParseDiscount("250").Equal(decimal.NewFromInt(100)))
	assert.True(t, ParseDiscount("-3").IsZero())
}

func TestFloorQuantity(t *testing.T) {
	for _, q := range []int{0, -1, -100} {
		assert.Equal(t, 1, FloorQuantity(q))
	}
	assert.Equal(t, 7, FloorQuantity(7))
}
