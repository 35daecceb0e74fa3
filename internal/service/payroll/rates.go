package payroll

import "github.com/shopspring/decimal"

var (
	latenessFactor = decimal.NewFromFloat(0.5)
	overtimeFactor = decimal.NewFromFloat(1.5)
	hoursPerDay    = decimal.NewFromInt(8)
	minutesPerHour = decimal.NewFromInt(60)
)

// RateCalculator converts attendance minutes into money. Implementations can
// plug in company-specific rules; StandardRates is the built-in fallback.
type RateCalculator interface {
	MissingWorkPenalty(minuteRate decimal.Decimal, minutes int) decimal.Decimal
	LatenessPenalty(minuteRate decimal.Decimal, minutes int) decimal.Decimal
	OvertimePay(minuteRate decimal.Decimal, minutes int) decimal.Decimal
}

// StandardRates prices missing work at the full minute rate, lateness at half
// rate, and overtime at 1.5x.
type StandardRates struct{}

func (StandardRates) MissingWorkPenalty(minuteRate decimal.Decimal, minutes int) decimal.Decimal {
	if minutes <= 0 {
		return decimal.Zero
	}
	return minuteRate.Mul(decimal.NewFromInt(int64(minutes)))
}

func (StandardRates) LatenessPenalty(minuteRate decimal.Decimal, minutes int) decimal.Decimal {
	if minutes <= 0 {
		return decimal.Zero
	}
	return minuteRate.Mul(decimal.NewFromInt(int64(minutes))).Mul(latenessFactor)
}

func (StandardRates) OvertimePay(minuteRate decimal.Decimal, minutes int) decimal.Decimal {
	if minutes <= 0 {
		return decimal.Zero
	}
	return minuteRate.Mul(decimal.NewFromInt(int64(minutes))).Mul(overtimeFactor)
}

// minuteRate derives the per-minute wage from base salary. Working days from
// the attendance summary are preferred; calendar days in the period are the
// fallback when no attendance was captured.
func minuteRate(baseSalary decimal.Decimal, workingDays, daysInPeriod int) decimal.Decimal {
	days := workingDays
	if days <= 0 {
		days = daysInPeriod
	}
	if days <= 0 {
		return decimal.Zero
	}
	totalMinutes := decimal.NewFromInt(int64(days)).Mul(hoursPerDay).Mul(minutesPerHour)
	return baseSalary.Div(totalMinutes)
}
