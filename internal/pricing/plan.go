package pricing

import "slices"

// DefaultDeliveryFee applies when the destination lookup has nothing better.
const DefaultDeliveryFee Money = 5000

// Limits on engine input. Within them every intermediate amount fits in int64.
const (
	MaxAmount            Money = 1_000_000_000_000_000
	MaxInstallmentMonths       = 600
	MaxRateBps                 = bpsScale
)

// PaymentType labels how a breakdown is settled.
type PaymentType string

const (
	PaymentFull        PaymentType = "full"
	PaymentInstallment PaymentType = "installment"
)

// Plan is the payment configuration chosen for a checkout.
type Plan struct {
	// InstallmentMonths of 0 or 1 means pay in full.
	InstallmentMonths int   `json:"installmentMonths"`
	IncludeInsurance  bool  `json:"includeInsurance"`
	DeliveryFee       Money `json:"deliveryFee"`
}

// IsInstallment reports whether the plan spreads payment across months.
func (p Plan) IsInstallment() bool {
	return p.InstallmentMonths >= 2
}

// Durations lists the installment lengths offered to customers.
type Durations []int

// DefaultDurations returns the standard month options.
func DefaultDurations() Durations {
	return Durations{1, 3, 6, 9, 12, 24}
}

// Supports reports whether months is selectable. Zero always means pay in full.
func (d Durations) Supports(months int) bool {
	if months == 0 {
		return true
	}
	return slices.Contains(d, months)
}
