package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.Moderation.WarnMax != 3 || cfg.Games.CrocodileTimeout != 15*time.Minute {
		t.Fatalf("unexpected defaults from MustLoad: %+v", cfg)
	}
}

// --- Load success + normalization + parsing ---

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	m := cfg.Moderation
	if m.SpamMode != "window" || m.SpamLimit != 5 || m.SpamWindow != 2*time.Second ||
		m.SpamEntryTTL != 5*time.Second || m.WarnCacheTTL != 5*time.Second ||
		m.MuteDuration != 24*time.Hour || m.ReportThrottle != 180*time.Second ||
		m.ReportMuteDuration != 30*time.Minute || m.ProcessedRetention != 72*time.Hour ||
		m.SettingsCacheSliding != 15*time.Minute || m.WarnDecayWindow != 3*time.Minute {
		t.Fatalf("moderation defaults unexpected: %+v", m)
	}
	g := cfg.Games
	if g.CrocodileResetOnChange || g.CrocodileWordsPath != "" ||
		g.RollDefaultDuration != 5*time.Minute || g.RollMaxDuration != time.Hour {
		t.Fatalf("games defaults unexpected: %+v", g)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.Path != "modbot.db" {
		t.Fatalf("db defaults unexpected: %+v", cfg.DB)
	}
	if !cfg.Ops.Enabled || cfg.Ops.Port != "8080" || cfg.Ops.GinMode != "release" {
		t.Fatalf("ops defaults unexpected: %+v", cfg.Ops)
	}
	if cfg.OTEL.Enabled || cfg.OTEL.ServiceName != "go-modbot" {
		t.Fatalf("otel defaults unexpected: %+v", cfg.OTEL)
	}
	if cfg.OwnerIDs != nil {
		t.Fatalf("owners should be empty, got %v", cfg.OwnerIDs)
	}
}

func TestLoad_Success_Overrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "  123:abc  ")
	t.Setenv("POLL_TIMEOUT", "30s")
	t.Setenv("OWNER_IDS", " 11, x ,22,")

	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("LOG_FILE", "/var/log/modbot.log")
	t.Setenv("LOG_MAX_BACKUPS", "nope") // -> default 5

	t.Setenv("DB_DRIVER", "POSTGRES")
	t.Setenv("DB_DSN", "postgres://u:p@db/modbot")

	t.Setenv("OPS_PORT", "9090")
	t.Setenv("OPS_ADMIN_TOKEN", "s3cret")
	t.Setenv("GIN_MODE", "weird")    // will normalize to "release"
	t.Setenv("OPS_RATE_RPS", "x")    // -> default 5.0
	t.Setenv("OPS_RATE_BURST", "20") // parsed
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	t.Setenv("SPAM_MODE", "TokenBucket") // will normalize to "bucket"
	t.Setenv("SPAM_LIMIT", "3")
	t.Setenv("SPAM_WINDOW", "4s")
	t.Setenv("WARN_MAX", "5")
	t.Setenv("REPORT_THROTTLE", "1m")

	t.Setenv("CROCODILE_TIMEOUT", "2m")
	t.Setenv("CROCODILE_RESET_ON_CHANGE", "on")
	t.Setenv("ROLL_DEFAULT_DURATION", "10m")

	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.BotToken != "123:abc" || cfg.PollTimeout != 30*time.Second {
		t.Fatalf("transport fields unexpected: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.OwnerIDs, []int64{11, 22}) {
		t.Fatalf("owner ids unexpected: %#v", cfg.OwnerIDs)
	}
	if !cfg.IsOwner(22) || cfg.IsOwner(33) {
		t.Fatalf("IsOwner mismatch")
	}

	if cfg.Log.Level != "warn" || !cfg.Log.Pretty || cfg.Log.File != "/var/log/modbot.log" || cfg.Log.MaxBackups != 5 {
		t.Fatalf("logging unexpected: %+v", cfg.Log)
	}
	if cfg.DB.Driver != "postgres" || cfg.DB.DSN != "postgres://u:p@db/modbot" {
		t.Fatalf("db unexpected: %+v", cfg.DB)
	}

	o := cfg.Ops
	if o.Port != "9090" || o.AdminToken != "s3cret" || o.GinMode != "release" || o.RateRPS != 5.0 || o.RateBurst != 20 {
		t.Fatalf("ops unexpected: %+v", o)
	}
	if !reflect.DeepEqual(o.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", o.CORS.AllowedOrigins)
	}
	if !o.Security.EnableHSTS || o.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", o.Security)
	}

	m := cfg.Moderation
	if m.SpamMode != "bucket" || m.SpamLimit != 3 || m.SpamWindow != 4*time.Second || m.WarnMax != 5 || m.ReportThrottle != time.Minute {
		t.Fatalf("moderation unexpected: %+v", m)
	}
	g := cfg.Games
	if g.CrocodileTimeout != 2*time.Minute || !g.CrocodileResetOnChange || g.RollDefaultDuration != 10*time.Minute {
		t.Fatalf("games unexpected: %+v", g)
	}

	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"invalid LOG_LEVEL", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"unknown DB_DRIVER", map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{"empty DB_PATH", map[string]string{"DB_PATH": "   "}, "DB_PATH must not be empty"},
		{"postgres without DSN", map[string]string{"DB_DRIVER": "postgres"}, "DB_DSN"},
		{"empty OPS_PORT", map[string]string{"OPS_PORT": "  "}, "OPS_PORT must not be empty"},
		{"non-positive timeouts", map[string]string{"OPS_READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"rate rps negative", map[string]string{"OPS_RATE_RPS": "-1"}, "OPS_RATE_RPS"},
		{"rate burst < 1", map[string]string{"OPS_RATE_BURST": "0"}, "OPS_RATE_BURST"},
		{"hsts max age negative", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"warn max < 1", map[string]string{"WARN_MAX": "0"}, "WARN_MAX"},
		{"unknown spam mode", map[string]string{"SPAM_MODE": "leaky"}, "SPAM_MODE"},
		{"spam limit < 1", map[string]string{"SPAM_LIMIT": "0"}, "SPAM_LIMIT"},
		{"zero throttle", map[string]string{"REPORT_THROTTLE": "0s"}, "moderation durations"},
		{"bucket entry ttl below refill time", map[string]string{"SPAM_MODE": "bucket", "SPAM_WINDOW": "10s", "SPAM_ENTRY_TTL": "5s"}, "SPAM_ENTRY_TTL"},
		{"window entry ttl below window", map[string]string{"SPAM_WINDOW": "6s", "SPAM_ENTRY_TTL": "5s"}, "SPAM_ENTRY_TTL"},
		{"zero crocodile timeout", map[string]string{"CROCODILE_TIMEOUT": "0s"}, "game durations"},
		{"roll default above max", map[string]string{"ROLL_DEFAULT_DURATION": "2h"}, "ROLL_DEFAULT_DURATION"},
		{"otel sample ratio out of range", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil || !containsErr(err, tc.want) {
				t.Fatalf("expected %q validation error, got: %v", tc.want, err)
			}
		})
	}
}

func TestLoad_OpsDisabledSkipsPortCheck(t *testing.T) {
	t.Setenv("OPS_ENABLED", "false")
	t.Setenv("OPS_PORT", " ")
	if _, err := Load(); err != nil {
		t.Fatalf("disabled ops server should not require a port: %v", err)
	}
}

// --- helpers ---

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_getfloat_getint_getdur(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat default on bad parse failed")
	}

	t.Setenv("I_VALID", "42")
	if getint("I_VALID", 0) != 42 {
		t.Fatalf("getint parse failed")
	}
	t.Setenv("I_BAD", "x")
	if getint("I_BAD", 7) != 7 {
		t.Fatalf("getint default on bad parse failed")
	}

	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
	t.Setenv("D_BAD", "zzz")
	if getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur default on bad parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	trueVals := []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"}
	for i, v := range trueVals {
		k := "B_T_" + config_strconv(i)
		t.Setenv(k, v)
		if !getbool(k, false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	falseVals := []string{"0", "false", "FALSE", " no ", "N", "off", "Off"}
	for i, v := range falseVals {
		k := "B_F_" + config_strconv(i)
		t.Setenv(k, v)
		if getbool(k, true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	t.Setenv("B_EMPTY", "")
	if !getbool("B_EMPTY", true) || getbool("B_EMPTY", false) {
		t.Fatalf("getbool default behavior unexpected")
	}
}

func TestHelpers_splitCSV_splitIDs(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV mismatch: got %#v", got)
	}
	if out := splitIDs(""); out != nil {
		t.Fatalf("splitIDs empty should return nil")
	}
	if got := splitIDs("-100, 7 ,abc,1e3"); !reflect.DeepEqual(got, []int64{-100, 7}) {
		t.Fatalf("splitIDs mismatch: got %#v", got)
	}
}

// small helper (avoid fmt just for ints)
func config_strconv(i int) string { return string('a' + rune(i)) }

// Ensure tests don't pick up a developer's environment.
func TestMain(m *testing.M) {
	for _, k := range []string{"BOT_TOKEN", "OWNER_IDS", "DB_DRIVER", "DB_PATH", "DB_DSN", "LOG_LEVEL", "SPAM_MODE", "OPS_PORT"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}
