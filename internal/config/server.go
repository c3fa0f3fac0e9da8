package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ServerEnvPrefix префикс переменных окружения сервера (OFFLINEKIT_SERVER_ADDR, ...)
const ServerEnvPrefix = "offlinekit_server"

// Server flag names
const (
	FlagAddr      = "addr"
	FlagDBPath    = "db"
	FlagJWTSecret = "jwt-secret"
	FlagRateLimit = "rate-limit"
	FlagRateBurst = "rate-burst"
	FlagTokenTTL  = "token-ttl"
)

// Server конфигурация эталонного сервера
type Server struct {
	Addr      string
	DBPath    string
	JWTSecret string
	LogLevel  string
	RateLimit float64 // RateLimit запросов в секунду на клиента (0 = без ограничения)
	RateBurst int
	TokenTTL  time.Duration // TokenTTL срок жизни токенов команды token
}

// ServerDefault returns the server defaults.
func ServerDefault() Server {
	return Server{
		Addr:      ":8080",
		DBPath:    "offlinekit-server.db",
		LogLevel:  "info",
		RateLimit: 50,
		RateBurst: 100,
		TokenTTL:  30 * 24 * time.Hour,
	}
}

// Validate checks the server values.
func (s Server) Validate() error {
	switch {
	case s.Addr == "":
		return fmt.Errorf("%w: listen address is empty", ErrInvalidConfig)
	case s.DBPath == "":
		return fmt.Errorf("%w: database path is empty", ErrInvalidConfig)
	case len(s.JWTSecret) < 32:
		return fmt.Errorf("%w: jwt secret must be at least 32 bytes", ErrInvalidConfig)
	case s.RateLimit < 0 || s.RateBurst < 0:
		return fmt.Errorf("%w: rate limit is negative", ErrInvalidConfig)
	}
	return nil
}

// SlogLevel converts LogLevel into a slog level.
func (s Server) SlogLevel() slog.Level {
	return Config{LogLevel: s.LogLevel}.SlogLevel()
}

// RegisterServerFlags adds the server flags with their defaults to fs.
func RegisterServerFlags(fs *pflag.FlagSet) {
	d := ServerDefault()
	fs.String(FlagAddr, d.Addr, "listen address")
	fs.String(FlagDBPath, d.DBPath, "path to the SQLite database")
	fs.String(FlagJWTSecret, "", "HMAC secret for bearer tokens (at least 32 bytes)")
	fs.String(FlagLogLevel, d.LogLevel, "log level (debug, info, warn, error)")
	fs.Float64(FlagRateLimit, d.RateLimit, "requests per second per client (0 = unlimited)")
	fs.Int(FlagRateBurst, d.RateBurst, "request burst per client")
	fs.Duration(FlagTokenTTL, d.TokenTTL, "lifetime of issued tokens")
}

// ServerFromViper builds a Server config from flags and environment.
func ServerFromViper(v *viper.Viper) (Server, error) {
	s := Server{
		Addr:      v.GetString(FlagAddr),
		DBPath:    v.GetString(FlagDBPath),
		JWTSecret: v.GetString(FlagJWTSecret),
		LogLevel:  v.GetString(FlagLogLevel),
		RateLimit: v.GetFloat64(FlagRateLimit),
		RateBurst: v.GetInt(FlagRateBurst),
		TokenTTL:  v.GetDuration(FlagTokenTTL),
	}
	return s, s.Validate()
}
