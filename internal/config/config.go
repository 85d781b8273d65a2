// Package config содержит логику чтения конфигурации инвестиционной платформы.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// Config содержит параметры конфигурации платформы.
// Десятичные поля разбираются из строк, decimal.Decimal реализует
// encoding.TextUnmarshaler.
type Config struct {
	RunAddress      string `env:"RUN_ADDRESS"`
	DatabaseURI     string `env:"DATABASE_URI"`
	JWTSecret       string `env:"JWT_SECRET"`
	EventWebhookURL string `env:"EVENT_WEBHOOK_URL"`
	AccrualSchedule string `env:"ACCRUAL_SCHEDULE" envDefault:"5 0 * * *"`

	RateArToUsdt           decimal.Decimal `env:"RATE_AR_TO_USDT" envDefault:"0.0002"`
	RateUsdtToAr           decimal.Decimal `env:"RATE_USDT_TO_AR" envDefault:"5000"`
	RatePointsToArInvestor decimal.Decimal `env:"RATE_POINTS_INVESTOR" envDefault:"100"`
	RatePointsToArStandard decimal.Decimal `env:"RATE_POINTS_STANDARD" envDefault:"50"`

	WithdrawalFeeRate decimal.Decimal `env:"WITHDRAWAL_FEE_RATE" envDefault:"0.1"`
	MinDepositAr      decimal.Decimal `env:"MIN_DEPOSIT_AR" envDefault:"1000"`
	MinDepositUsdt    decimal.Decimal `env:"MIN_DEPOSIT_USDT" envDefault:"1"`
	MinWithdrawalAr   decimal.Decimal `env:"MIN_WITHDRAWAL_AR" envDefault:"5000"`
	MinWithdrawalUsdt decimal.Decimal `env:"MIN_WITHDRAWAL_USDT" envDefault:"1"`
	SignupBonusAr     decimal.Decimal `env:"SIGNUP_BONUS_AR" envDefault:"1000"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}
