package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN        string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL        string `env:"RABBITMQ_URL,required=true"`
	RedisURL           string `env:"REDIS_URL,required=true"`
	ProviderBaseURL    string `env:"PROVIDER_BASE_URL,required=true"`
	CredentialKey      string `env:"CREDENTIAL_KEY,default=default"`
	RenewalIntervalHrs int    `env:"RENEWAL_INTERVAL_HOURS,default=24"`
	DispatchRatePerSec int    `env:"DISPATCH_RATE_PER_SEC,default=100"`
	WorkerConcurrency  int    `env:"WORKER_CONCURRENCY,default=16"`
	MaxDispatchRetries int    `env:"MAX_DISPATCH_RETRIES,default=5"`
	ScanIntervalSecs   int    `env:"SCAN_INTERVAL_SECS,default=5"`
	APIPort            int    `env:"API_PORT,default=8080"`
	LogLevel           string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// RenewalInterval is the cadence of the credential renewal schedule.
func (c *Config) RenewalInterval() time.Duration {
	return time.Duration(c.RenewalIntervalHrs) * time.Hour
}

// ScanInterval is the cadence of the batch and retry scanners.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSecs) * time.Second
}
