package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/scentmarket/internal/pricing"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	CORSAllowedOrigins []string
	TrustedProxies     []netip.Prefix
	CurrencyCode       string
	RunMigrations      bool

	IdempotencyTTL      time.Duration
	CheckoutLockTTL     time.Duration
	CheckoutMaxAttempts int
	CouponPreviewLimit  int
	CouponPreviewWindow time.Duration
	APIRateLimit        string
	ProductCacheTTL     time.Duration
	AuditEnabled        bool

	WorkerConcurrency int
	LoyaltyQueue      string

	Pricing pricing.Policy
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:              valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:         k.String("DATABASE_URL"),
		RedisURL:            k.String("REDIS_URL"),
		JWTSecret:           k.String("JWT_SECRET"),
		JWTIssuer:           strings.TrimSpace(k.String("JWT_ISSUER")),
		CORSAllowedOrigins:  splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CurrencyCode:        strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "USD")),
		RunMigrations:       parseBool(valueOrDefault(k.String("DB_RUN_MIGRATIONS"), "true")),
		IdempotencyTTL:      parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CheckoutLockTTL:     parseDuration(k.String("CHECKOUT_LOCK_TTL"), "10s"),
		CheckoutMaxAttempts: parseInt(k.String("CHECKOUT_MAX_ATTEMPTS"), 3),
		CouponPreviewLimit:  parseInt(k.String("COUPON_PREVIEW_RATE_LIMIT"), 20),
		CouponPreviewWindow: parseDuration(k.String("COUPON_PREVIEW_RATE_WINDOW"), "1m"),
		APIRateLimit:        valueOrDefault(k.String("API_RATE_LIMIT"), "300-M"),
		ProductCacheTTL:     parseDuration(k.String("PRODUCT_CACHE_TTL"), "30s"),
		AuditEnabled:        parseBool(valueOrDefault(k.String("AUDIT_ENABLED"), "true")),
		WorkerConcurrency:   parseInt(k.String("WORKER_CONCURRENCY"), 10),
		LoyaltyQueue:        valueOrDefault(k.String("LOYALTY_QUEUE"), "loyalty"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	proxies, err := parsePrefixes(k.String("TRUSTED_PROXY_CIDRS"))
	if err != nil {
		return nil, fmt.Errorf("TRUSTED_PROXY_CIDRS: %w", err)
	}
	cfg.TrustedProxies = proxies

	policy, err := loadPolicy(k)
	if err != nil {
		return nil, err
	}
	cfg.Pricing = policy

	return cfg, nil
}

func loadPolicy(k *koanf.Koanf) (pricing.Policy, error) {
	var errs []error
	dec := func(key, fallback string) decimal.Decimal {
		d, err := parseDecimal(k.String(key), fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}

	policy := pricing.Policy{
		TaxRate:               dec("PRICING_TAX_RATE", "0.05"),
		FreeShippingThreshold: dec("PRICING_FREE_SHIPPING_THRESHOLD", "300"),
		CoinValue:             dec("PRICING_COIN_VALUE", "1"),
		CoinsEarnRate:         dec("PRICING_COINS_EARN_RATE", "0.01"),
		MaxRedemptionFraction: dec("PRICING_MAX_REDEMPTION_FRACTION", "0.5"),
		GiftFees: pricing.GiftFees{
			pricing.WrapBasic:   dec("PRICING_GIFT_FEE_BASIC", "10"),
			pricing.WrapPremium: dec("PRICING_GIFT_FEE_PREMIUM", "20"),
			pricing.WrapLuxury:  dec("PRICING_GIFT_FEE_LUXURY", "35"),
		},
	}
	if raw := strings.TrimSpace(k.String("PRICING_FLAT_SHIPPING_FEE")); raw == "" {
		errs = append(errs, errors.New("PRICING_FLAT_SHIPPING_FEE is required"))
	} else {
		fee := dec("PRICING_FLAT_SHIPPING_FEE", "")
		policy.FlatShippingFee = &fee
	}
	if len(errs) > 0 {
		return pricing.Policy{}, errors.Join(errs...)
	}
	if err := policy.Validate(); err != nil {
		return pricing.Policy{}, err
	}
	return policy, nil
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

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// parseDecimal uses fallback only for empty values; malformed input is an error.
func parseDecimal(value, fallback string) (decimal.Decimal, error) {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	return decimal.NewFromString(base)
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

func parsePrefixes(value string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range splitAndTrim(value) {
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			addr, addrErr := netip.ParseAddr(raw)
			if addrErr != nil {
				return nil, err
			}
			prefix = netip.PrefixFrom(addr, addr.BitLen())
		}
		out = append(out, prefix.Masked())
	}
	return out, nil
}
