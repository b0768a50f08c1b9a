package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/backend-mebel/internal/pricing"
)

// PlanCatalog is the YAML file describing offered plans, rates and delivery
// fees. Omitted fields keep their defaults.
//
//	policy: flatRentalFee
//	installmentMonths: [3, 6, 12]
//	rates:
//	  vatBps: 750
//	delivery:
//	  default: 5000
//	  fees:
//	    lagos: 3000
type PlanCatalog struct {
	Policy            string          `yaml:"policy"`
	InstallmentMonths []int           `yaml:"installmentMonths"`
	Rates             *catalogRates   `yaml:"rates"`
	Delivery          catalogDelivery `yaml:"delivery"`
}

type catalogRates struct {
	VATBps         *int64 `yaml:"vatBps"`
	InsuranceBps   *int64 `yaml:"insuranceBps"`
	DownPaymentBps *int64 `yaml:"downPaymentBps"`
	ServiceFeeBps  *int64 `yaml:"serviceFeeBps"`
	RentalFeeBps   *int64 `yaml:"rentalFeeBps"`
}

type catalogDelivery struct {
	Default *int64           `yaml:"default"`
	Fees    map[string]int64 `yaml:"fees"`
}

// LoadPlanCatalog reads and validates the catalog at path.
func LoadPlanCatalog(path string) (*PlanCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog: %w", err)
	}
	return ParsePlanCatalog(data)
}

// ParsePlanCatalog decodes catalog YAML, rejecting unknown keys.
func ParsePlanCatalog(data []byte) (*PlanCatalog, error) {
	var c PlanCatalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode plan catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("plan catalog: %w", err)
	}
	return &c, nil
}

func (c *PlanCatalog) validate() error {
	if c.Policy != "" {
		if _, err := pricing.PolicyByName(c.Policy); err != nil {
			return err
		}
	}
	for _, m := range c.InstallmentMonths {
		if m <= 0 || m > pricing.MaxInstallmentMonths {
			return fmt.Errorf("installment months must be between 1 and %d, got %d", pricing.MaxInstallmentMonths, m)
		}
	}
	if c.Rates != nil {
		for name, v := range map[string]*int64{
			"vatBps":         c.Rates.VATBps,
			"insuranceBps":   c.Rates.InsuranceBps,
			"downPaymentBps": c.Rates.DownPaymentBps,
			"serviceFeeBps":  c.Rates.ServiceFeeBps,
			"rentalFeeBps":   c.Rates.RentalFeeBps,
		} {
			if v != nil && *v < 0 {
				return fmt.Errorf("rates.%s must not be negative", name)
			}
		}
	}
	if d := c.Delivery.Default; d != nil && *d < 0 {
		return fmt.Errorf("delivery.default must not be negative")
	}
	for dest, fee := range c.Delivery.Fees {
		if fee < 0 {
			return fmt.Errorf("delivery fee for %q must not be negative", dest)
		}
	}
	return nil
}

func (c *PlanCatalog) apply(cfg *Config) {
	if c.Policy != "" {
		cfg.PricingPolicy = c.Policy
	}
	if len(c.InstallmentMonths) > 0 {
		cfg.InstallmentMonths = pricing.Durations(c.InstallmentMonths)
	}
	if r := c.Rates; r != nil {
		setIf(&cfg.Rates.VATBps, r.VATBps)
		setIf(&cfg.Rates.InsuranceBps, r.InsuranceBps)
		setIf(&cfg.Rates.DownPaymentBps, r.DownPaymentBps)
		setIf(&cfg.Rates.ServiceFeeBps, r.ServiceFeeBps)
		setIf(&cfg.Rates.RentalFeeBps, r.RentalFeeBps)
	}
	setIf(&cfg.DefaultDeliveryFee, c.Delivery.Default)
	if len(c.Delivery.Fees) > 0 {
		cfg.DeliveryFees = c.Delivery.Fees
	}
}

func setIf(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}
