package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/backend-mebel/internal/pricing"
	"github.com/noah-isme/backend-mebel/internal/shipping"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CartTTL            time.Duration
	SnapshotTimeout    time.Duration
	CORSAllowedOrigins []string
	RateLimit          string
	SessionLockWait    time.Duration
	MaxBodyBytes       int64
	HSTSMaxAge         int
	CurrencyCode       string
	OrderNumberPrefix  string

	Rates              pricing.Rates
	PricingPolicy      string
	InstallmentMonths  pricing.Durations
	DefaultDeliveryFee int64
	DeliveryFees       map[string]int64
	PlanCatalogPath    string

	SessionCookieName string
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    http.SameSite

	Obs Obs
}

// Obs groups logging, metrics and tracing settings.
type Obs struct {
	LogFormat          string
	LogLevel           string
	MetricsEnabled     bool
	MetricsNamespace   string
	MetricsBuckets     string
	TracingEnabled     bool
	TracingExporter    string
	OTLPEndpoint       string
	SamplingRatio      float64
	HealthRedisTimeout time.Duration
}

// Load reads configuration from environment variables and optional .env files.
// A plan catalog named by PLAN_CATALOG_PATH is applied first; explicit
// environment values override it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var errs []error
	duration := func(key, fallback string) time.Duration {
		d, err := parseDuration(k.String(key), fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CartTTL:            duration("CART_TTL", "720h"),
		SnapshotTimeout:    duration("SNAPSHOT_TIMEOUT", "2s"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		RateLimit:          valueOrDefault(k.String("RATE_LIMIT"), "120-M"),
		SessionLockWait:    duration("SESSION_LOCK_WAIT", "5s"),
		MaxBodyBytes:       64 << 10,
		CurrencyCode:       valueOrDefault(k.String("CURRENCY_CODE"), "NGN"),
		OrderNumberPrefix:  valueOrDefault(k.String("ORDER_NUMBER_PREFIX"), "MBL-"),
		Rates:              pricing.DefaultRates(),
		PricingPolicy:      pricing.PolicyDownPaymentSplit,
		InstallmentMonths:  pricing.DefaultDurations(),
		DefaultDeliveryFee: shipping.DefaultFee,
		DeliveryFees:       map[string]int64{},
		PlanCatalogPath:    strings.TrimSpace(k.String("PLAN_CATALOG_PATH")),
		SessionCookieName:  valueOrDefault(k.String("SESSION_COOKIE_NAME"), "sid"),
		CookieDomain:       strings.TrimSpace(k.String("COOKIE_DOMAIN")),
		CookieSecure:       parseBool(k.String("COOKIE_SECURE"), false),
		CookieSameSite:     parseSameSite(k.String("COOKIE_SAMESITE")),
		Obs: Obs{
			LogFormat:          valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:           valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:     parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace:   valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "mebel"),
			MetricsBuckets:     k.String("OBS_METRICS_BUCKETS_MS"),
			TracingEnabled:     parseBool(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:    valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:       strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			HealthRedisTimeout: duration("HEALTH_READY_REDIS_TIMEOUT", "300ms"),
		},
	}

	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}

	ratio, err := parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1)
	if err != nil {
		errs = append(errs, fmt.Errorf("OBS_TRACING_SAMPLING_RATIO: %w", err))
	}
	cfg.Obs.SamplingRatio = ratio

	if cfg.PlanCatalogPath != "" {
		catalog, err := LoadPlanCatalog(cfg.PlanCatalogPath)
		if err != nil {
			return nil, err
		}
		catalog.apply(cfg)
	}

	errs = append(errs,
		overrideBps(k, "VAT_RATE_BPS", &cfg.Rates.VATBps),
		overrideBps(k, "INSURANCE_RATE_BPS", &cfg.Rates.InsuranceBps),
		overrideBps(k, "DOWN_PAYMENT_BPS", &cfg.Rates.DownPaymentBps),
		overrideBps(k, "SERVICE_FEE_BPS", &cfg.Rates.ServiceFeeBps),
		overrideBps(k, "RENTAL_FEE_BPS", &cfg.Rates.RentalFeeBps),
	)
	if raw := strings.TrimSpace(k.String("MAX_BODY_BYTES")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("MAX_BODY_BYTES: must be a non-negative integer, got %q", raw))
		} else {
			cfg.MaxBodyBytes = n
		}
	}
	if raw := strings.TrimSpace(k.String("HSTS_MAX_AGE")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("HSTS_MAX_AGE: must be a non-negative integer, got %q", raw))
		} else {
			cfg.HSTSMaxAge = n
		}
	}
	if raw := strings.TrimSpace(k.String("DEFAULT_DELIVERY_FEE")); raw != "" {
		fee, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || fee < 0 {
			errs = append(errs, fmt.Errorf("DEFAULT_DELIVERY_FEE: must be a non-negative integer, got %q", raw))
		} else {
			cfg.DefaultDeliveryFee = fee
		}
	}
	if raw := k.String("DELIVERY_FEES"); strings.TrimSpace(raw) != "" {
		fees, err := shipping.ParseFees(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("DELIVERY_FEES: %w", err))
		} else {
			cfg.DeliveryFees = fees
		}
	}
	if raw := k.String("PLAN_INSTALLMENT_MONTHS"); strings.TrimSpace(raw) != "" {
		months, err := parseMonths(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("PLAN_INSTALLMENT_MONTHS: %w", err))
		} else {
			cfg.InstallmentMonths = months
		}
	}
	if raw := strings.TrimSpace(k.String("PRICING_POLICY")); raw != "" {
		cfg.PricingPolicy = raw
	}
	if _, err := pricing.PolicyByName(cfg.PricingPolicy); err != nil {
		errs = append(errs, fmt.Errorf("PRICING_POLICY: %w", err))
	}
	if err := cfg.Rates.Validate(); err != nil {
		errs = append(errs, err)
	}
	if cfg.DefaultDeliveryFee > pricing.MaxAmount {
		errs = append(errs, fmt.Errorf("DEFAULT_DELIVERY_FEE: must not exceed %d", pricing.MaxAmount))
	}
	for dest, fee := range cfg.DeliveryFees {
		if fee > pricing.MaxAmount {
			errs = append(errs, fmt.Errorf("DELIVERY_FEES: fee for %q must not exceed %d", dest, pricing.MaxAmount))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// Policy resolves the configured default pricing policy.
func (c *Config) Policy() pricing.Policy {
	p, err := pricing.PolicyByName(c.PricingPolicy)
	if err != nil {
		return pricing.DownPaymentSplit{}
	}
	return p
}

// FeeTable builds the delivery fee lookup.
func (c *Config) FeeTable() *shipping.FeeTable {
	return shipping.NewFeeTable(c.DeliveryFees, c.DefaultDeliveryFee)
}

func overrideBps(k *koanf.Koanf, key string, dst *int64) error {
	raw := strings.TrimSpace(k.String(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return fmt.Errorf("%s: must be a non-negative integer, got %q", key, raw)
	}
	*dst = v
	return nil
}

func parseMonths(value string) (pricing.Durations, error) {
	parts := splitAndTrim(value)
	out := make(pricing.Durations, 0, len(parts))
	for _, part := range parts {
		m, err := strconv.Atoi(part)
		if err != nil || m <= 0 || m > pricing.MaxInstallmentMonths {
			return nil, fmt.Errorf("invalid month count %q", part)
		}
		out = append(out, m)
	}
	return out, nil
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

// parseDuration falls back on empty input. Invalid or negative values return
// the fallback together with an error.
func parseDuration(value, fallback string) (time.Duration, error) {
	def, _ := time.ParseDuration(fallback)
	raw := strings.TrimSpace(value)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def, fmt.Errorf("invalid duration %q", raw)
	}
	if d < 0 {
		return def, fmt.Errorf("must not be negative, got %q", raw)
	}
	return d, nil
}

func parseFloat(value string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
