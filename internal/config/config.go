// Package config holds the tunables shared by the client components.
// Values are populated by the CLI from flags, environment and .env files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// Bus transports
const (
	BusMemory    = "memory"
	BusDir       = "dir"
	BusWebsocket = "websocket"
)

var (
	// ErrInvalidConfig indicates that a config value is out of range
	ErrInvalidConfig = errors.New("invalid config")
)

// Config конфигурация клиента
type Config struct {
	DataDir   string // DataDir общий каталог данных ("origin")
	ServerURL string // ServerURL адрес удалённого сервера
	Token     string // Token bearer токен для сервера
	TabID     string // TabID идентификатор вкладки ("" = сгенерировать)
	Bus       string // Bus транспорт межвкладочных сообщений: memory, dir, websocket

	// Passphrase включает шифрование долговременного уровня, если не пустая
	Passphrase string
	LogLevel   string

	FastQuotaBytes  int64   // FastQuotaBytes лимит быстрого уровня
	HighWaterMark   float64 // HighWaterMark доля квоты, после которой хранилище считается деградировавшим
	CompressAtBytes int     // CompressAtBytes порог сжатия значений долговременного уровня

	ConflictThreshold time.Duration
	AttemptCeiling    int // AttemptCeiling мутация становится abandoned, когда число неудач превышает его
	RequestTimeout    time.Duration
	SyncInterval      time.Duration // SyncInterval период автоматической синхронизации при наличии очереди
	SyncBurst         int           // SyncBurst сколько автоматических проходов разрешено подряд
	SyncMinGap        time.Duration // SyncMinGap минимальный интервал между автоматическими проходами
	PingInterval      time.Duration
	SyncConcurrency   int // SyncConcurrency сколько сущностей отправляются параллельно
	AutosaveDelay     time.Duration
	DraftMaxAge       time.Duration // DraftMaxAge возраст, после которого черновики удаляются при деградации
	BroadcastTTL      time.Duration // BroadcastTTL срок жизни файлов DirBus
}

// Default returns the configuration every component assumes when nothing
// is overridden.
func Default() Config {
	return Config{
		DataDir:           filepath.Join(".", ".offlinekit"),
		ServerURL:         "http://localhost:8080",
		Bus:               BusDir,
		LogLevel:          "info",
		FastQuotaBytes:    5 << 20,
		HighWaterMark:     0.9,
		CompressAtBytes:   4 << 10,
		ConflictThreshold: 5 * time.Second,
		AttemptCeiling:    5,
		RequestTimeout:    15 * time.Second,
		SyncInterval:      30 * time.Second,
		SyncBurst:         1,
		SyncMinGap:        2 * time.Second,
		PingInterval:      10 * time.Second,
		SyncConcurrency:   4,
		AutosaveDelay:     time.Second,
		DraftMaxAge:       7 * 24 * time.Hour,
		BroadcastTTL:      time.Minute,
	}
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch {
	case c.DataDir == "":
		return fmt.Errorf("%w: data dir is empty", ErrInvalidConfig)
	case c.AttemptCeiling < 1:
		return fmt.Errorf("%w: attempt ceiling must be positive", ErrInvalidConfig)
	case c.ConflictThreshold < 0:
		return fmt.Errorf("%w: conflict threshold is negative", ErrInvalidConfig)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("%w: request timeout must be positive", ErrInvalidConfig)
	case c.SyncInterval <= 0, c.PingInterval <= 0:
		return fmt.Errorf("%w: intervals must be positive", ErrInvalidConfig)
	case c.SyncConcurrency < 1:
		return fmt.Errorf("%w: sync concurrency must be positive", ErrInvalidConfig)
	case c.HighWaterMark <= 0 || c.HighWaterMark > 1:
		return fmt.Errorf("%w: high water mark must be in (0, 1]", ErrInvalidConfig)
	}

	switch c.Bus {
	case BusMemory, BusDir, BusWebsocket:
	default:
		return fmt.Errorf("%w: unknown bus %q", ErrInvalidConfig, c.Bus)
	}
	return nil
}

// SlogLevel converts LogLevel into a slog level. Unknown names map to Info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FastPath путь к файлу быстрого уровня (bbolt)
func (c Config) FastPath() string { return filepath.Join(c.DataDir, "fast.db") }

// DurablePath путь к файлу долговременного уровня (sqlite)
func (c Config) DurablePath() string { return filepath.Join(c.DataDir, "durable.db") }

// BroadcastDir каталог файловой шины межвкладочных сообщений
func (c Config) BroadcastDir() string { return filepath.Join(c.DataDir, "broadcast") }
