package pricing

import "github.com/shopspring/decimal"

// Money represents a monetary value stored in whole currency units.
type Money = int64

const bpsScale = 10000

var bpsDivisor = decimal.NewFromInt(bpsScale)

// applyBps returns amount × bps / 10000 rounded half away from zero.
func applyBps(amount Money, bps int64) Money {
	return round(decimal.NewFromInt(amount).Mul(decimal.NewFromInt(bps)).Div(bpsDivisor))
}

// applyBpsTimes returns amount × bps × n / 10000 with a single rounding step.
func applyBpsTimes(amount Money, bps int64, n int) Money {
	v := decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(bps)).
		Mul(decimal.NewFromInt(int64(n))).
		Div(bpsDivisor)
	return round(v)
}

// divide returns amount / n rounded half away from zero. n must be positive.
func divide(amount Money, n int) Money {
	return round(decimal.NewFromInt(amount).Div(decimal.NewFromInt(int64(n))))
}

func round(v decimal.Decimal) Money {
	return v.Round(0).IntPart()
}
