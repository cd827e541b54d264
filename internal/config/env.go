package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// AppConfig holds everything the server and admin binaries read from the environment.
type AppConfig struct {
	HTTPAddr       string   `env:"HTTP_ADDR" envDefault:":8080"`
	StorageDriver  string   `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseDSN    string   `env:"DATABASE_DSN" envDefault:"host=localhost user=user password=password dbname=supportdesk port=5432 sslmode=disable"`
	RedisAddr      string   `env:"REDIS_ADDR"`
	RedisPassword  string   `env:"REDIS_PASSWORD"`
	RedisDB        int      `env:"REDIS_DB" envDefault:"0"`
	JWTSecret      string   `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer      string   `env:"JWT_ISSUER"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	KafkaBrokers   []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic     string   `env:"KAFKA_TOPIC" envDefault:"support.session-events"`

	MessageLimit  int           `env:"RATE_LIMIT_MESSAGES" envDefault:"30"`
	MessageWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	LimitStrategy string        `env:"RATE_LIMIT_STRATEGY" envDefault:"fixed"`
}

// Load reads an optional .env file and parses the environment into an AppConfig.
func Load() (AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not loaded, using process environment")
	}

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if cfg.MessageLimit <= 0 {
		cfg.MessageLimit = DefaultMessageLimit
	}
	if cfg.MessageWindow <= 0 {
		cfg.MessageWindow = DefaultMessageWindow
	}
	return cfg, nil
}

// OriginAllowed reports whether a browser origin may open a websocket.
// An empty allow list accepts every origin.
func (c AppConfig) OriginAllowed(origin string) bool {
	if len(c.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, allowed := range c.AllowedOrigins {
		if strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	return false
}
