package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix префикс переменных окружения клиента (OFFLINEKIT_DATA_DIR, ...)
const EnvPrefix = "offlinekit"

// Client flag names. Each is also read from OFFLINEKIT_<NAME>.
const (
	FlagDataDir           = "data-dir"
	FlagServer            = "server"
	FlagToken             = "token"
	FlagTabID             = "tab-id"
	FlagBus               = "bus"
	FlagPassphrase        = "passphrase"
	FlagLogLevel          = "log-level"
	FlagFastQuota         = "fast-quota"
	FlagHighWaterMark     = "high-water-mark"
	FlagCompressAt        = "compress-at"
	FlagConflictThreshold = "conflict-threshold"
	FlagAttemptCeiling    = "attempt-ceiling"
	FlagRequestTimeout    = "request-timeout"
	FlagSyncInterval      = "sync-interval"
	FlagSyncBurst         = "sync-burst"
	FlagSyncMinGap        = "sync-min-gap"
	FlagPingInterval      = "ping-interval"
	FlagSyncConcurrency   = "sync-concurrency"
	FlagAutosaveDelay     = "autosave-delay"
	FlagDraftMaxAge       = "draft-max-age"
	FlagBroadcastTTL      = "broadcast-ttl"
)

// RegisterFlags adds the client flags with their defaults to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(FlagDataDir, d.DataDir, "directory shared by every tab of this client")
	fs.String(FlagServer, d.ServerURL, "server URL")
	fs.String(FlagToken, "", "bearer token for the server")
	fs.String(FlagTabID, "", "stable id of this tab (generated when empty)")
	fs.String(FlagBus, d.Bus, "cross-tab transport: memory, dir or websocket")
	fs.String(FlagPassphrase, "", "encrypt the durable tier (not recommended on the command line, use OFFLINEKIT_PASSPHRASE)")
	fs.String(FlagLogLevel, d.LogLevel, "log level (debug, info, warn, error)")
	fs.Int64(FlagFastQuota, d.FastQuotaBytes, "byte quota of the fast tier")
	fs.Float64(FlagHighWaterMark, d.HighWaterMark, "share of the fast tier quota after which storage is reported degraded")
	fs.Int(FlagCompressAt, d.CompressAtBytes, "compress durable values of at least this many bytes (0 = never)")
	fs.Duration(FlagConflictThreshold, d.ConflictThreshold, "timestamp gap above which concurrent tab edits conflict")
	fs.Int(FlagAttemptCeiling, d.AttemptCeiling, "a mutation is abandoned once its failed attempts exceed this")
	fs.Duration(FlagRequestTimeout, d.RequestTimeout, "limit of one delivery attempt")
	fs.Duration(FlagSyncInterval, d.SyncInterval, "period of automatic sync while online")
	fs.Int(FlagSyncBurst, d.SyncBurst, "automatic sync passes allowed back to back")
	fs.Duration(FlagSyncMinGap, d.SyncMinGap, "minimum gap between automatic sync passes")
	fs.Duration(FlagPingInterval, d.PingInterval, "connectivity probe period")
	fs.Int(FlagSyncConcurrency, d.SyncConcurrency, "entities delivered in parallel")
	fs.Duration(FlagAutosaveDelay, d.AutosaveDelay, "debounce delay of draft autosave")
	fs.Duration(FlagDraftMaxAge, d.DraftMaxAge, "drafts older than this are pruned while storage is degraded")
	fs.Duration(FlagBroadcastTTL, d.BroadcastTTL, "lifetime of cross-tab message files")
}

// NewViper loads .env and .env.local from the working directory and
// returns a viper bound to fs and to environment variables with prefix.
// Variables already set in the environment win over .env files.
func NewViper(fs *pflag.FlagSet, prefix string) (*viper.Viper, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	return v, nil
}

// FromViper builds a client Config from flags and environment and
// validates it.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		DataDir:           v.GetString(FlagDataDir),
		ServerURL:         v.GetString(FlagServer),
		Token:             v.GetString(FlagToken),
		TabID:             v.GetString(FlagTabID),
		Bus:               v.GetString(FlagBus),
		Passphrase:        v.GetString(FlagPassphrase),
		LogLevel:          v.GetString(FlagLogLevel),
		FastQuotaBytes:    v.GetInt64(FlagFastQuota),
		HighWaterMark:     v.GetFloat64(FlagHighWaterMark),
		CompressAtBytes:   v.GetInt(FlagCompressAt),
		ConflictThreshold: v.GetDuration(FlagConflictThreshold),
		AttemptCeiling:    v.GetInt(FlagAttemptCeiling),
		RequestTimeout:    v.GetDuration(FlagRequestTimeout),
		SyncInterval:      v.GetDuration(FlagSyncInterval),
		SyncBurst:         v.GetInt(FlagSyncBurst),
		SyncMinGap:        v.GetDuration(FlagSyncMinGap),
		PingInterval:      v.GetDuration(FlagPingInterval),
		SyncConcurrency:   v.GetInt(FlagSyncConcurrency),
		AutosaveDelay:     v.GetDuration(FlagAutosaveDelay),
		DraftMaxAge:       v.GetDuration(FlagDraftMaxAge),
		BroadcastTTL:      v.GetDuration(FlagBroadcastTTL),
	}
	return cfg, cfg.Validate()
}
