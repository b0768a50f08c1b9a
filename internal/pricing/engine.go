package pricing

import "fmt"

// Rates are the percentages used by the engine, in basis points.
type Rates struct {
	VATBps         int64
	InsuranceBps   int64
	DownPaymentBps int64
	// ServiceFeeBps and RentalFeeBps are charged once per installment month.
	ServiceFeeBps int64
	RentalFeeBps  int64
}

// Validate reports the first rate outside [0, MaxRateBps].
func (r Rates) Validate() error {
	for _, rate := range []struct {
		name string
		bps  int64
	}{
		{"vatBps", r.VATBps},
		{"insuranceBps", r.InsuranceBps},
		{"downPaymentBps", r.DownPaymentBps},
		{"serviceFeeBps", r.ServiceFeeBps},
		{"rentalFeeBps", r.RentalFeeBps},
	} {
		if rate.bps < 0 || rate.bps > MaxRateBps {
			return invalid("rates", fmt.Sprintf("%s must be between 0 and %d", rate.name, MaxRateBps))
		}
	}
	return nil
}

// DefaultRates returns 7.5% VAT, 2% insurance, a 70/30 split, a 5% monthly
// service fee and a 1% monthly rental fee.
func DefaultRates() Rates {
	return Rates{
		VATBps:         750,
		InsuranceBps:   200,
		DownPaymentBps: 7000,
		ServiceFeeBps:  500,
		RentalFeeBps:   100,
	}
}

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Breakdown is the itemised result of applying a plan to a subtotal.
type Breakdown struct {
	Subtotal          Money       `json:"subtotal"`
	VAT               Money       `json:"vat"`
	DeliveryFee       Money       `json:"deliveryFee"`
	Insurance         Money       `json:"insurance"`
	TotalOrderValue   Money       `json:"totalOrderValue"`
	DownPayment       Money       `json:"downPayment"`
	RemainingBalance  Money       `json:"remainingBalance"`
	ServiceFees       Money       `json:"serviceFees"`
	FinalTotal        Money       `json:"finalTotal"`
	MonthlyPayment    Money       `json:"monthlyPayment"`
	InstallmentMonths int         `json:"installmentMonths"`
	PaymentType       PaymentType `json:"paymentType"`
	Policy            string      `json:"policy"`
}

// Engine computes breakdowns with a fixed set of rates and an installment policy.
type Engine struct {
	Rates  Rates
	Policy Policy
}

// NewEngine constructs an engine. A nil policy selects DownPaymentSplit.
func NewEngine(rates Rates, policy Policy) *Engine {
	if policy == nil {
		policy = DownPaymentSplit{}
	}
	return &Engine{Rates: rates, Policy: policy}
}

var defaultEngine = NewEngine(DefaultRates(), DownPaymentSplit{})

// Compute prices subtotal under plan using the default rates and policy.
func Compute(subtotal Money, plan Plan) (Breakdown, error) {
	return defaultEngine.Compute(subtotal, plan)
}

// ComputeItems sums items and prices the result under plan with the default engine.
func ComputeItems(items []Item, plan Plan) (Breakdown, error) {
	return defaultEngine.ComputeItems(items, plan)
}

// Subtotal sums qty × unit price, skipping non-positive quantities. It
// fails with a ValidationError on a negative price or when the sum would
// exceed MaxAmount.
func Subtotal(items []Item) (Money, error) {
	var subtotal Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		if it.UnitPrice < 0 {
			return 0, invalid("unitPrice", "must not be negative")
		}
		if it.UnitPrice > 0 && Money(it.Qty) > (MaxAmount-subtotal)/it.UnitPrice {
			return 0, invalid("subtotal", fmt.Sprintf("must not exceed %d", MaxAmount))
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	return subtotal, nil
}

// ComputeItems sums items and prices the result under plan.
func (e *Engine) ComputeItems(items []Item, plan Plan) (Breakdown, error) {
	subtotal, err := Subtotal(items)
	if err != nil {
		return Breakdown{}, err
	}
	return e.Compute(subtotal, plan)
}

// Compute prices subtotal under plan. Every intermediate amount is rounded
// before it feeds the next step.
func (e *Engine) Compute(subtotal Money, plan Plan) (Breakdown, error) {
	if e == nil {
		return defaultEngine.Compute(subtotal, plan)
	}
	if err := e.validate(subtotal, plan); err != nil {
		return Breakdown{}, err
	}
	policy := e.policy()

	vat := applyBps(subtotal, e.Rates.VATBps)
	var insurance Money
	if plan.IncludeInsurance {
		insurance = applyBps(subtotal, e.Rates.InsuranceBps)
	}
	tov := subtotal + vat + plan.DeliveryFee + insurance

	b := Breakdown{
		Subtotal:          subtotal,
		VAT:               vat,
		DeliveryFee:       plan.DeliveryFee,
		Insurance:         insurance,
		TotalOrderValue:   tov,
		InstallmentMonths: plan.InstallmentMonths,
		Policy:            policy.Name(),
	}
	if !plan.IsInstallment() {
		b.FinalTotal = tov
		b.PaymentType = PaymentFull
		return b, nil
	}
	inst := policy.Installment(tov, plan.InstallmentMonths, e.Rates)
	b.DownPayment = inst.DownPayment
	b.RemainingBalance = inst.RemainingBalance
	b.ServiceFees = inst.Fees
	b.FinalTotal = inst.FinalTotal
	b.MonthlyPayment = inst.MonthlyPayment
	b.PaymentType = PaymentInstallment
	return b, nil
}

func (e *Engine) validate(subtotal Money, plan Plan) error {
	switch {
	case subtotal < 0:
		return invalid("subtotal", "must not be negative")
	case subtotal > MaxAmount:
		return invalid("subtotal", fmt.Sprintf("must not exceed %d", MaxAmount))
	case plan.InstallmentMonths < 0:
		return invalid("installmentMonths", "must not be negative")
	case plan.InstallmentMonths > MaxInstallmentMonths:
		return invalid("installmentMonths", fmt.Sprintf("must not exceed %d", MaxInstallmentMonths))
	case plan.DeliveryFee < 0:
		return invalid("deliveryFee", "must not be negative")
	case plan.DeliveryFee > MaxAmount:
		return invalid("deliveryFee", fmt.Sprintf("must not exceed %d", MaxAmount))
	}
	return e.Rates.Validate()
}

func (e *Engine) policy() Policy {
	if e.Policy == nil {
		return DownPaymentSplit{}
	}
	return e.Policy
}
