package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort        string        `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	DBMaxConns      int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBAutoMigrate   bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	SendRateWindow  time.Duration `env:"SEND_RATE_WINDOW" envDefault:"1m"`
	SendRateMax     int           `env:"SEND_RATE_MAX" envDefault:"0"` // 0 desactiva el límite de envíos
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// UsesPostgres indica si hay un DSN configurado; sin él se usa el store en memoria.
func (c *Config) UsesPostgres() bool {
	return c != nil && c.DatabaseURL != ""
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
