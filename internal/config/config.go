package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/cartify/internal/service"
	pkgconfig "github.com/Skotchmaster/cartify/pkg/config"
	"github.com/Skotchmaster/cartify/pkg/db"
)

type Config struct {
	pkgconfig.Config

	Checkout          service.CheckoutConfig
	IdempotencyTTL    time.Duration
	SeedAdminPassword string
}

// Load reads the environment. DATABASE_URL and JWT_SECRET are required.
func Load() (Config, error) {
	base := pkgconfig.Load()
	def := service.DefaultCheckoutConfig()

	cfg := Config{
		Config: base,
		Checkout: service.CheckoutConfig{
			TxTimeout:   pkgconfig.EnvDurationDefault("CHECKOUT_TX_TIMEOUT", def.TxTimeout),
			MaxAttempts: pkgconfig.EnvIntDefault("CHECKOUT_MAX_ATTEMPTS", def.MaxAttempts),
			Backoff:     pkgconfig.EnvDurationDefault("CHECKOUT_BACKOFF", def.Backoff),
		},
		IdempotencyTTL:    pkgconfig.EnvDurationDefault("IDEMPOTENCY_TTL", 24*time.Hour),
		SeedAdminPassword: pkgconfig.EnvDefault("SEED_ADMIN_PASSWORD", "admin12345"),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if err := pkgconfig.NonEmpty(c.DatabaseURL, "DATABASE_URL"); err != nil {
		errs = append(errs, err)
	}
	if err := pkgconfig.NonEmpty(string(c.JWTAccessSecret), "JWT_SECRET"); err != nil {
		errs = append(errs, err)
	}
	switch c.DatabaseDriver {
	case db.DriverPostgres, db.DriverMySQL, db.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver))
	}
	if c.Checkout.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("CHECKOUT_MAX_ATTEMPTS must be at least 1, got %d", c.Checkout.MaxAttempts))
	}
	if c.Checkout.TxTimeout <= 0 {
		errs = append(errs, errors.New("CHECKOUT_TX_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}
