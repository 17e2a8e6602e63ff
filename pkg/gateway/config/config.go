package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/branding"
	"github.com/Sanchay-T/gemini-live-medical-intake/pkg/gateway/intakestore"
)

const (
	DefaultLiveModel       = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultExtractionModel = "gemini-2.0-flash-exp"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
	"http://localhost:3001",
	"http://localhost:3002",
	"http://127.0.0.1:3001",
	"http://127.0.0.1:3002",
}

type Config struct {
	Addr     string
	LogLevel slog.Level

	GeminiAPIKey    string
	LiveModel       string
	ExtractionModel string

	// Browser origins allowed for CORS and the WebSocket Origin check.
	CORSAllowedOrigins map[string]struct{}

	// Clinic identity; file values from BrandingFile override the env keys.
	Branding     branding.Branding
	BrandingFile string

	SaveConversations bool
	StoreDriver       string
	StorageDir        string
	StoreDSN          string

	EnableSessionLogs bool
	SessionLogDir     string

	AIConnectTimeout  time.Duration
	ExtractionTimeout time.Duration

	// Live WebSocket mode (/ws).
	LiveMaxMessageBytes        int64
	LiveWSPingInterval         time.Duration
	LiveWSWriteTimeout         time.Duration
	LiveMaxAudioFPS            int
	LiveMaxAudioBytesPerSecond int64
	LiveInboundBurstSeconds    int

	MetricsEnabled bool

	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:            envOr("INTAKE_ADDR", ":8000"),
		GeminiAPIKey:    strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		LiveModel:       envOr("INTAKE_LIVE_MODEL", DefaultLiveModel),
		ExtractionModel: envOr("INTAKE_EXTRACTION_MODEL", DefaultExtractionModel),
		Branding: branding.Branding{
			ClinicName:    envOr("INTAKE_CLINIC_NAME", "Medical Center"),
			Specialty:     envOr("INTAKE_SPECIALTY", "Primary Care"),
			GreetingStyle: strings.ToLower(envOr("INTAKE_GREETING_STYLE", branding.StyleWarm)),
			VoiceModel:    envOr("INTAKE_VOICE_MODEL", "Puck"),
		},
		BrandingFile:               strings.TrimSpace(os.Getenv("INTAKE_BRANDING_FILE")),
		CORSAllowedOrigins:         make(map[string]struct{}),
		SaveConversations:          envBoolOr("INTAKE_SAVE_CONVERSATIONS", true),
		StoreDriver:                strings.ToLower(envOr("INTAKE_STORE_DRIVER", intakestore.DriverFile)),
		StorageDir:                 envOr("INTAKE_CONVERSATION_STORAGE_PATH", "./conversations"),
		StoreDSN:                   strings.TrimSpace(os.Getenv("INTAKE_STORE_DSN")),
		EnableSessionLogs:          envBoolOr("INTAKE_ENABLE_SESSION_LOGS", true),
		SessionLogDir:              envOr("INTAKE_SESSION_LOG_PATH", "./session_logs"),
		AIConnectTimeout:           envDurationOr("INTAKE_AI_CONNECT_TIMEOUT", 15*time.Second),
		ExtractionTimeout:          envDurationOr("INTAKE_EXTRACTION_TIMEOUT", 30*time.Second),
		LiveMaxMessageBytes:        envInt64Or("INTAKE_LIVE_MAX_MESSAGE_BYTES", 1<<20),
		LiveWSPingInterval:         envDurationOr("INTAKE_LIVE_WS_PING_INTERVAL", 20*time.Second),
		LiveWSWriteTimeout:         envDurationOr("INTAKE_LIVE_WS_WRITE_TIMEOUT", 5*time.Second),
		LiveMaxAudioFPS:            envIntOr("INTAKE_LIVE_MAX_AUDIO_FPS", 0),
		LiveMaxAudioBytesPerSecond: envInt64Or("INTAKE_LIVE_MAX_AUDIO_BPS", 0),
		LiveInboundBurstSeconds:    envIntOr("INTAKE_LIVE_INBOUND_BURST_SECONDS", 2),
		MetricsEnabled:             envBoolOr("INTAKE_METRICS_ENABLED", true),
		ReadHeaderTimeout:          envDurationOr("INTAKE_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod:        envDurationOr("INTAKE_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(envOr("INTAKE_LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("INTAKE_LOG_LEVEL must be one of debug|info|warn|error")
	}

	origins := splitCSV(os.Getenv("INTAKE_CORS_ORIGINS"))
	if len(origins) == 0 {
		origins = defaultCORSOrigins
	}
	for _, origin := range origins {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.BrandingFile != "" {
		b, err := branding.LoadFile(cfg.BrandingFile, cfg.Branding)
		if err != nil {
			return Config{}, fmt.Errorf("INTAKE_BRANDING_FILE: %w", err)
		}
		cfg.Branding = b
	}

	if cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("GEMINI_API_KEY must be set")
	}
	if !branding.IsValidVoice(cfg.Branding.VoiceModel) {
		return Config{}, fmt.Errorf("INTAKE_VOICE_MODEL must be one of %s", strings.Join(branding.Voices, "|"))
	}
	switch cfg.StoreDriver {
	case intakestore.DriverFile:
	case intakestore.DriverSQLite, intakestore.DriverPostgres:
		if cfg.StoreDSN == "" {
			return Config{}, fmt.Errorf("INTAKE_STORE_DSN must be set when INTAKE_STORE_DRIVER=%s", cfg.StoreDriver)
		}
	default:
		return Config{}, fmt.Errorf("INTAKE_STORE_DRIVER must be one of file|sqlite|postgres")
	}
	if cfg.AIConnectTimeout < 0 {
		return Config{}, fmt.Errorf("INTAKE_AI_CONNECT_TIMEOUT must be >= 0")
	}
	if cfg.ExtractionTimeout < 0 {
		return Config{}, fmt.Errorf("INTAKE_EXTRACTION_TIMEOUT must be >= 0")
	}
	if cfg.LiveMaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("INTAKE_LIVE_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.LiveWSPingInterval <= 0 {
		return Config{}, fmt.Errorf("INTAKE_LIVE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.LiveWSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("INTAKE_LIVE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.LiveMaxAudioFPS < 0 {
		return Config{}, fmt.Errorf("INTAKE_LIVE_MAX_AUDIO_FPS must be >= 0")
	}
	if cfg.LiveMaxAudioBytesPerSecond < 0 {
		return Config{}, fmt.Errorf("INTAKE_LIVE_MAX_AUDIO_BPS must be >= 0")
	}
	if cfg.LiveInboundBurstSeconds < 0 {
		return Config{}, fmt.Errorf("INTAKE_LIVE_INBOUND_BURST_SECONDS must be >= 0")
	}
	if (cfg.LiveMaxAudioFPS > 0 || cfg.LiveMaxAudioBytesPerSecond > 0) && cfg.LiveInboundBurstSeconds < 1 {
		return Config{}, fmt.Errorf("INTAKE_LIVE_INBOUND_BURST_SECONDS must be >= 1 when inbound audio limits are enabled")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("INTAKE_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("INTAKE_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

// OriginAllowed reports whether a browser Origin is on the allowlist. An empty
// origin comes from a non-browser client and is allowed.
func (c Config) OriginAllowed(origin string) bool {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return true
	}
	_, ok := c.CORSAllowedOrigins[origin]
	return ok
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
