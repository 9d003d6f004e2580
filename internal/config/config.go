// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes bot settings such as
// the transport token, owner allowlist, moderation thresholds, game timings,
// database location, the ops HTTP server, logging, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings for the ops API.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-modbot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LogConfig controls the global zerolog logger.
type LogConfig struct {
	Level      string // debug|info|warn|error|fatal|panic
	Pretty     bool   // console writer instead of JSON
	File       string // optional rotated log file (lumberjack)
	MaxSizeMB  int    // rotate after this many megabytes
	MaxBackups int    // rotated files to keep
	MaxAgeDays int    // days to keep rotated files
}

// DBConfig selects the persistence backend.
type DBConfig struct {
	Driver string // sqlite|postgres
	Path   string // SQLite file path
	DSN    string // Postgres DSN
}

// OpsConfig configures the operational HTTP server (health, metrics, admin API).
type OpsConfig struct {
	Enabled      bool
	Port         string
	AdminToken   string        // X-Admin-Token required on /api/v1 when set
	ReadTimeout  time.Duration // e.g. 10s
	WriteTimeout time.Duration // e.g. 15s
	IdleTimeout  time.Duration // e.g. 60s
	GinMode      string        // debug|release|test
	RateRPS      float64       // tokens per second (>= 0)
	RateBurst    int           // bucket size (>= 1)
	CORS         CORSConfig
	Security     SecurityConfig
}

// ModerationConfig holds the anti-spam and report thresholds.
type ModerationConfig struct {
	WarnMax              int           // warnings before a mute
	MuteDuration         time.Duration // mute length at WarnMax
	SpamMode             string        // window|bucket
	SpamLimit            int           // messages (window) or bucket capacity
	SpamWindow           time.Duration // window length or full refill time
	SpamEntryTTL         time.Duration // idle per-key detector state lifetime
	WarnCacheTTL         time.Duration // cached warning count lifetime
	WarnDecayWindow      time.Duration // one warning is forgiven per window
	WarnCleanupInterval  time.Duration // how often the decay pass runs
	ReportThrottle       time.Duration // delay between reports from one user
	ReportMuteDuration   time.Duration // "mute30" complaint action length
	ProcessedRetention   time.Duration // processed complaint ledger retention
	SettingsCacheSliding time.Duration // chat settings cache sliding TTL
}

// GamesConfig holds mini-game timings.
type GamesConfig struct {
	CrocodileTimeout       time.Duration
	CrocodileResetOnChange bool   // word change restarts the timeout
	CrocodileWordsPath     string // optional word list override
	RollDefaultDuration    time.Duration
	RollMaxDuration        time.Duration
}

// Config holds all configuration values for the application.
type Config struct {
	// Transport
	BotToken    string        // BOT_TOKEN
	PollTimeout time.Duration // long polling timeout
	OwnerIDs    []int64       // OWNER_IDS (CSV)

	Log        LogConfig
	DB         DBConfig
	Ops        OpsConfig
	Moderation ModerationConfig
	Games      GamesConfig

	// Observability
	OTEL OTELConfig
}

// IsOwner reports whether id is in the owner allowlist.
func (c Config) IsOwner(id int64) bool {
	for _, o := range c.OwnerIDs {
		if o == id {
			return true
		}
	}
	return false
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		BotToken:    strings.TrimSpace(getenv("BOT_TOKEN", "")),
		PollTimeout: getdur("POLL_TIMEOUT", 10*time.Second),
		OwnerIDs:    splitIDs(getenv("OWNER_IDS", "")),

		Log: LogConfig{
			Level:      strings.ToLower(getenv("LOG_LEVEL", "info")),
			Pretty:     getbool("LOG_PRETTY", false),
			File:       getenv("LOG_FILE", ""),
			MaxSizeMB:  getint("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getint("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getint("LOG_MAX_AGE_DAYS", 28),
		},

		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "modbot.db"),
			DSN:    getenv("DB_DSN", ""),
		},

		Ops: OpsConfig{
			Enabled:      getbool("OPS_ENABLED", true),
			Port:         getenv("OPS_PORT", "8080"),
			AdminToken:   getenv("OPS_ADMIN_TOKEN", ""),
			ReadTimeout:  getdur("OPS_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getdur("OPS_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getdur("OPS_IDLE_TIMEOUT", 60*time.Second),
			GinMode:      strings.ToLower(getenv("GIN_MODE", "release")),
			RateRPS:      getfloat("OPS_RATE_RPS", 5.0),
			RateBurst:    getint("OPS_RATE_BURST", 10),
			CORS: CORSConfig{
				AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
			},
			Security: SecurityConfig{
				EnableHSTS: getbool("ENABLE_HSTS", false),
				HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
			},
		},

		Moderation: ModerationConfig{
			WarnMax:              getint("WARN_MAX", 3),
			MuteDuration:         getdur("MUTE_DURATION", 24*time.Hour),
			SpamMode:             strings.ToLower(getenv("SPAM_MODE", "window")),
			SpamLimit:            getint("SPAM_LIMIT", 5),
			SpamWindow:           getdur("SPAM_WINDOW", 2*time.Second),
			SpamEntryTTL:         getdur("SPAM_ENTRY_TTL", 5*time.Second),
			WarnCacheTTL:         getdur("WARN_CACHE_TTL", 5*time.Second),
			WarnDecayWindow:      getdur("WARN_DECAY_WINDOW", 3*time.Minute),
			WarnCleanupInterval:  getdur("WARN_CLEANUP_INTERVAL", time.Minute),
			ReportThrottle:       getdur("REPORT_THROTTLE", 180*time.Second),
			ReportMuteDuration:   getdur("REPORT_MUTE_DURATION", 30*time.Minute),
			ProcessedRetention:   getdur("PROCESSED_RETENTION", 72*time.Hour),
			SettingsCacheSliding: getdur("SETTINGS_CACHE_SLIDING", 15*time.Minute),
		},

		Games: GamesConfig{
			CrocodileTimeout:       getdur("CROCODILE_TIMEOUT", 15*time.Minute),
			CrocodileResetOnChange: getbool("CROCODILE_RESET_ON_CHANGE", false),
			CrocodileWordsPath:     getenv("CROCODILE_WORDS_PATH", ""),
			RollDefaultDuration:    getdur("ROLL_DEFAULT_DURATION", 5*time.Minute),
			RollMaxDuration:        getdur("ROLL_MAX_DURATION", time.Hour),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-modbot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.Log.Level == "warning" {
		cfg.Log.Level = "warn"
	}
	switch cfg.Ops.GinMode {
	case "debug", "release", "test":
	default:
		cfg.Ops.GinMode = "release"
	}
	if cfg.Moderation.SpamMode == "tokenbucket" {
		cfg.Moderation.SpamMode = "bucket"
	}

	// --- validation ---
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return cfg, errors.New("DB_DSN must be set when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.Ops.Enabled && strings.TrimSpace(cfg.Ops.Port) == "" {
		return cfg, errors.New("OPS_PORT must not be empty")
	}
	if cfg.Ops.ReadTimeout <= 0 || cfg.Ops.WriteTimeout <= 0 || cfg.Ops.IdleTimeout <= 0 {
		return cfg, errors.New("ops timeouts must be positive durations")
	}
	if cfg.Ops.RateRPS < 0 {
		return cfg, errors.New("OPS_RATE_RPS must be >= 0")
	}
	if cfg.Ops.RateBurst < 1 {
		return cfg, errors.New("OPS_RATE_BURST must be >= 1")
	}
	if cfg.Ops.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}

	m := cfg.Moderation
	if m.WarnMax < 1 {
		return cfg, errors.New("WARN_MAX must be >= 1")
	}
	switch m.SpamMode {
	case "window", "bucket":
	default:
		return cfg, errors.New("SPAM_MODE must be one of: window, bucket")
	}
	if m.SpamLimit < 1 {
		return cfg, errors.New("SPAM_LIMIT must be >= 1")
	}
	if m.MuteDuration <= 0 || m.SpamWindow <= 0 || m.SpamEntryTTL <= 0 || m.WarnCacheTTL <= 0 ||
		m.WarnDecayWindow <= 0 || m.WarnCleanupInterval <= 0 || m.ReportThrottle <= 0 ||
		m.ReportMuteDuration <= 0 || m.ProcessedRetention <= 0 || m.SettingsCacheSliding <= 0 {
		return cfg, errors.New("moderation durations must be positive")
	}
	// Detector state must outlive one window or bucket refill.
	if m.SpamEntryTTL < m.SpamWindow {
		return cfg, errors.New("SPAM_ENTRY_TTL must be >= SPAM_WINDOW")
	}

	g := cfg.Games
	if g.CrocodileTimeout <= 0 || g.RollDefaultDuration <= 0 || g.RollMaxDuration <= 0 {
		return cfg, errors.New("game durations must be positive")
	}
	if g.RollDefaultDuration > g.RollMaxDuration {
		return cfg, errors.New("ROLL_DEFAULT_DURATION must not exceed ROLL_MAX_DURATION")
	}

	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// splitIDs parses a CSV of numeric ids, skipping anything that does not parse.
func splitIDs(s string) []int64 {
	parts := splitCSV(s)
	if len(parts) == 0 {
		return nil
	}
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		if id, err := strconv.ParseInt(p, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}
