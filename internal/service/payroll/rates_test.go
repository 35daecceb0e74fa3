package payroll

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMinuteRate(t *testing.T) {
	// 9600 over 20 working days of 8 hours is 1 per minute.
	rate := minuteRate(decimal.NewFromInt(9600), 20, 30)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)), "rate = %s", rate)

	// Without attendance the calendar days drive the rate.
	rate = minuteRate(decimal.NewFromInt(14400), 0, 30)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)), "rate = %s", rate)

	assert.True(t, minuteRate(decimal.NewFromInt(9600), 0, 0).IsZero())
}

func TestStandardRates(t *testing.T) {
	rate := decimal.NewFromInt(2)
	var rates StandardRates

	assert.True(t, rates.MissingWorkPenalty(rate, 30).Equal(decimal.NewFromInt(60)))
	assert.True(t, rates.LatenessPenalty(rate, 30).Equal(decimal.NewFromInt(30)))
	assert.True(t, rates.OvertimePay(rate, 30).Equal(decimal.NewFromInt(90)))

	assert.True(t, rates.MissingWorkPenalty(rate, 0).IsZero())
	assert.True(t, rates.LatenessPenalty(rate, -5).IsZero())
	assert.True(t, rates.OvertimePay(rate, 0).IsZero())
}
