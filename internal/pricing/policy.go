package pricing

import (
	"fmt"
	"strings"
)

// Policy names accepted by PolicyByName.
const (
	PolicyDownPaymentSplit = "downPaymentSplit"
	PolicyFlatRentalFee    = "flatRentalFee"
)

// Installment holds the policy-specific figures of an installment plan.
type Installment struct {
	DownPayment      Money
	RemainingBalance Money
	Fees             Money
	FinalTotal       Money
	MonthlyPayment   Money
}

// Policy splits an order value across installment months. months is always >= 2.
type Policy interface {
	Name() string
	Installment(totalOrderValue Money, months int, rates Rates) Installment
}

// DownPaymentSplit takes a down payment up front and charges a monthly
// service fee on the remaining balance.
type DownPaymentSplit struct{}

// Name implements Policy.
func (DownPaymentSplit) Name() string { return PolicyDownPaymentSplit }

// Installment implements Policy. The down payment and remaining balance are
// rounded independently so their sum may differ from totalOrderValue by one.
func (DownPaymentSplit) Installment(totalOrderValue Money, months int, rates Rates) Installment {
	down := applyBps(totalOrderValue, rates.DownPaymentBps)
	remaining := applyBps(totalOrderValue, bpsScale-rates.DownPaymentBps)
	fees := applyBpsTimes(remaining, rates.ServiceFeeBps, months)
	return Installment{
		DownPayment:      down,
		RemainingBalance: remaining,
		Fees:             fees,
		FinalTotal:       down + remaining + fees,
		MonthlyPayment:   divide(remaining+fees, months),
	}
}

// FlatRentalFee spreads the whole order value across the months and adds a
// flat monthly rental fee without a down payment.
type FlatRentalFee struct{}

// Name implements Policy.
func (FlatRentalFee) Name() string { return PolicyFlatRentalFee }

// Installment implements Policy.
func (FlatRentalFee) Installment(totalOrderValue Money, months int, rates Rates) Installment {
	fees := applyBpsTimes(totalOrderValue, rates.RentalFeeBps, months)
	final := totalOrderValue + fees
	return Installment{
		RemainingBalance: totalOrderValue,
		Fees:             fees,
		FinalTotal:       final,
		MonthlyPayment:   divide(final, months),
	}
}

// PolicyByName resolves a configured policy name. Empty selects the default.
func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", strings.ToLower(PolicyDownPaymentSplit), "downpayment", "split":
		return DownPaymentSplit{}, nil
	case strings.ToLower(PolicyFlatRentalFee), "rental", "flat":
		return FlatRentalFee{}, nil
	default:
		return nil, fmt.Errorf("pricing: unknown policy %q", name)
	}
}
