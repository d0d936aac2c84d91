// Package config loads server configuration from the environment.
package config

import (
	"time"

	"github.com/joho/godotenv"
)

// Config is the whole server configuration.  Auth settings sit at the top
// level; each infrastructure concern has its own section.
type Config struct {
	Env         string
	Port        string
	LogLevel    string
	CORSOrigins []string // allowed browser origins for the public page

	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int

	DB        DBConfig
	Redis     RedisConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Realtime  RealtimeConfig
	Events    EventsConfig
}

// DBConfig locates the MySQL server and sizes the connection pool.
type DBConfig struct {
	User string
	Pass string
	Host string
	Port string
	Name string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// ConnectTimeout bounds how long startup keeps retrying the first ping,
	// so the server can come up alongside a database that is still booting.
	ConnectTimeout time.Duration
}

// EventsConfig points at the broker that relays wishlist events between
// server instances.  An empty URL keeps events in-process.
type EventsConfig struct {
	RabbitURL string
	Exchange  string
}

// Load reads a .env file when present (real environment variables win) and
// then the environment.  All missing or malformed required variables are
// reported together in the returned error.
func Load() (Config, error) {
	_ = godotenv.Load()
	var e env
	cfg := Config{
		Env:         e.required("APP_ENV"),
		Port:        e.required("APP_PORT"),
		LogLevel:    e.str("LOG_LEVEL", "info"),
		CORSOrigins: e.list("CORS_ORIGINS", "http://localhost:3000"),

		JWTSecret:      e.required("JWT_SECRET"),
		AccessTTLMin:   e.requiredInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: e.requiredInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     e.requiredInt("BCRYPT_COST"),

		DB: DBConfig{
			User:            e.required("DB_USER"),
			Pass:            e.str("DB_PASS", ""),
			Host:            e.required("DB_HOST"),
			Port:            e.required("DB_PORT"),
			Name:            e.required("DB_NAME"),
			MaxOpenConns:    e.integer("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    e.integer("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: e.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnectTimeout:  e.duration("DB_CONNECT_TIMEOUT", 30*time.Second),
		},
		Redis:     loadRedis(&e),
		Cache:     loadCache(&e),
		RateLimit: loadRateLimit(&e),
		Realtime:  loadRealtime(&e),
		Events: EventsConfig{
			RabbitURL: e.str("RABBITMQ_URL", e.str("AMQP_URL", "")),
			Exchange:  e.str("EVENTS_EXCHANGE", "wishly.events"),
		},
	}
	if cfg.DB.MaxIdleConns > cfg.DB.MaxOpenConns {
		cfg.DB.MaxIdleConns = cfg.DB.MaxOpenConns
	}
	return cfg, e.err()
}
