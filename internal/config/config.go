package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	// Cron expressions for the two background sweeps.
	BeneficiarySweepSchedule string `env:"BENEFICIARY_SWEEP_SCHEDULE" envDefault:"* * * * *"`
	AutoPaySchedule          string `env:"AUTO_PAY_SCHEDULE" envDefault:"*/5 * * * *"`

	TransferTimeout     time.Duration `env:"TRANSFER_TIMEOUT" envDefault:"5s"`
	TransferMaxAttempts int           `env:"TRANSFER_MAX_ATTEMPTS" envDefault:"3"`

	// Default per-beneficiary daily transfer cap in minor units, and how long
	// a newly added beneficiary stays blocked before transfers are allowed.
	BeneficiaryDailyLimit    int64         `env:"BENEFICIARY_DAILY_LIMIT" envDefault:"10000000"`
	BeneficiaryCoolingPeriod time.Duration `env:"BENEFICIARY_COOLING_PERIOD" envDefault:"30m"`

	// Optional AMQP endpoint for transfer-outcome events. Empty means
	// outcomes are only logged.
	AMQPURL        string `env:"AMQP_URL"`
	NotifyExchange string `env:"NOTIFY_EXCHANGE" envDefault:"meridian.events"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
