package infra

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/spinforge/aleatest/internal/domain"
	"github.com/spinforge/aleatest/internal/harness"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Target platform
	BaseURL       string `env:"ALEA_BASE_URL" envDefault:"http://localhost:4002"`
	SigningSecret string `env:"ALEA_SIGNING_SECRET" envDefault:"change-me-in-production"`
	BrandID       string `env:"ALEA_BRAND_ID" envDefault:"1"`

	// Default request identity
	PlayerID        string `env:"ALEA_PLAYER_ID" envDefault:"player-1"`
	CasinoSessionID string `env:"ALEA_CASINO_SESSION_ID" envDefault:"session-1"`
	GameID          string `env:"ALEA_GAME_ID" envDefault:"101"`
	SoftwareID      string `env:"ALEA_SOFTWARE_ID" envDefault:"42"`
	IntegratorID    string `env:"ALEA_INTEGRATOR_ID" envDefault:"7"`
	Currency        string `env:"ALEA_CURRENCY" envDefault:"EUR"`

	// Fixtures
	FixturePath string `env:"ALEA_FIXTURES" envDefault:"testdata/scenarios.json"`

	// Stub wallet
	StubWalletPort     int    `env:"STUB_WALLET_PORT" envDefault:"4002"`
	StubInitialBalance string `env:"STUB_INITIAL_BALANCE" envDefault:"1000.00"`

	// Run-result store (disabled when DATABASE_URL is empty)
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"aleatest"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"aleatest"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"aleatest"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaTopic   string `env:"KAFKA_TOPIC" envDefault:"aleatest.scenario.finished"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure configuration that must not run against a
// real platform. Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.SigningSecret == "change-me-in-production" {
		return fmt.Errorf("ALEA_SIGNING_SECRET is set to the insecure default; set the shared secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// HarnessDefaults maps the config's identity fields onto builder defaults.
func (c *Config) HarnessDefaults() harness.Defaults {
	return harness.Defaults{
		GameID:          c.GameID,
		SoftwareID:      c.SoftwareID,
		IntegratorID:    c.IntegratorID,
		PlayerID:        c.PlayerID,
		Currency:        c.Currency,
		CasinoSessionID: c.CasinoSessionID,
	}
}

// InitialBalance parses the stub wallet's seed balance.
func (c *Config) InitialBalance() (domain.Cents, error) {
	return domain.ParseCents(c.StubInitialBalance)
}
