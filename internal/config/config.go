// Package config provides configuration loading from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/usestring/perfrelay/pkg/gemini"
	"github.com/usestring/perfrelay/pkg/jsoncompact"
	"github.com/usestring/perfrelay/pkg/lighthouse"
	"github.com/usestring/perfrelay/pkg/pagespeed"
	"github.com/usestring/perfrelay/pkg/retry"
)

// DefaultPort matches the port the bundled frontend expects.
const DefaultPort = 4001

// DefaultMaxBodyBytes is the inbound JSON body limit (2 MB).
const DefaultMaxBodyBytes = 2 << 20

// Config holds all configuration for the relay. It is built once at startup
// and never modified.
type Config struct {
	Port       int    // PORT, default 4001
	ListenAddr string // LISTEN_ADDR, default ":<PORT>"

	PageSpeedAPIKey  string        // PAGESPEED_API_KEY
	PageSpeedBaseURL string        // PAGESPEED_BASE_URL, default "https://www.googleapis.com"
	PageSpeedTimeout time.Duration // PAGESPEED_TIMEOUT_MS, default 90000ms

	GeminiAPIKey  string        // GEMINI_API_KEY
	GeminiBaseURL string        // GEMINI_BASE_URL, default "https://generativelanguage.googleapis.com"
	GeminiModel   string        // GEMINI_MODEL, default "gemini-2.5-pro"
	GeminiTimeout time.Duration // GEMINI_TIMEOUT_MS, default 120000ms

	// Outbound retry for Gemini calls
	RetryMaxAttempts int           // RETRY_MAX_ATTEMPTS, default 3
	RetryBaseDelay   time.Duration // RETRY_BASE_DELAY_MS, default 500ms
	RetryJitter      time.Duration // RETRY_JITTER_MS, default 300ms

	// Outbound rate limit for Gemini calls (0 = unlimited)
	GeminiRateLimitRPM   int // GEMINI_RATE_LIMIT_RPM, default 0
	GeminiRateLimitBurst int // GEMINI_RATE_LIMIT_BURST, default 1

	// Prompt construction
	PromptMaxChars int    // PROMPT_MAX_CHARS, default 15000
	PromptLanguage string // PROMPT_LANGUAGE, default "English"

	// PageSpeed response cache (0 items = disabled)
	PageSpeedCacheMaxItems int           // PAGESPEED_CACHE_MAX_ITEMS, default 0
	PageSpeedCacheTTL      time.Duration // PAGESPEED_CACHE_TTL_MS, default 300000ms (5m)

	// HTTP server
	MaxBodyBytes       int64         // MAX_BODY_BYTES, default 2097152 (2MB)
	CORSAllowedOrigins []string      // CORS_ALLOWED_ORIGINS, comma separated, default "*"
	ShutdownTimeout    time.Duration // SHUTDOWN_TIMEOUT_MS, default 10000ms
	ServeUI            bool          // SERVE_UI, default true

	// Compaction of PageSpeed reports returned by MCP tools
	CompactMaxArrayItems int // COMPACT_MAX_ARRAY_ITEMS
	CompactMaxStringLen  int // COMPACT_MAX_STRING_LEN

	// Logging configuration
	LogLevel      string // LOG_LEVEL, default "info"
	LogFormat     string // LOG_FORMAT, "text" or "json", default "text"
	LogFile       string // LOG_FILE, default "" (stderr only)
	LogMaxSizeMB  int    // LOG_MAX_SIZE_MB, default 10
	LogMaxBackups int    // LOG_MAX_BACKUPS, default 5
	LogMaxAgeDays int    // LOG_MAX_AGE_DAYS, default 28
	LogCompress   bool   // LOG_COMPRESS, default true
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	port := getEnvInt("PORT", DefaultPort)

	return &Config{
		Port:       port,
		ListenAddr: getEnvString("LISTEN_ADDR", ":"+strconv.Itoa(port)),

		PageSpeedAPIKey:  getEnvString("PAGESPEED_API_KEY", ""),
		PageSpeedBaseURL: getEnvString("PAGESPEED_BASE_URL", pagespeed.DefaultBaseURL),
		PageSpeedTimeout: getEnvDurationMs("PAGESPEED_TIMEOUT_MS", 90000),

		GeminiAPIKey:  getEnvString("GEMINI_API_KEY", ""),
		GeminiBaseURL: getEnvString("GEMINI_BASE_URL", gemini.DefaultBaseURL),
		GeminiModel:   getEnvString("GEMINI_MODEL", gemini.DefaultModel),
		GeminiTimeout: getEnvDurationMs("GEMINI_TIMEOUT_MS", 120000),

		RetryMaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", retry.DefaultMaxAttempts),
		RetryBaseDelay:   getEnvDurationMs("RETRY_BASE_DELAY_MS", int(retry.DefaultBaseDelay/time.Millisecond)),
		RetryJitter:      getEnvDurationMs("RETRY_JITTER_MS", int(retry.DefaultMaxJitter/time.Millisecond)),

		GeminiRateLimitRPM:   getEnvInt("GEMINI_RATE_LIMIT_RPM", 0),
		GeminiRateLimitBurst: getEnvInt("GEMINI_RATE_LIMIT_BURST", 1),

		PromptMaxChars: getEnvInt("PROMPT_MAX_CHARS", lighthouse.DefaultMaxChars),
		PromptLanguage: getEnvString("PROMPT_LANGUAGE", "English"),

		PageSpeedCacheMaxItems: getEnvInt("PAGESPEED_CACHE_MAX_ITEMS", 0),
		PageSpeedCacheTTL:      getEnvDurationMs("PAGESPEED_CACHE_TTL_MS", 300000),

		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", DefaultMaxBodyBytes)),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		ShutdownTimeout:    getEnvDurationMs("SHUTDOWN_TIMEOUT_MS", 10000),
		ServeUI:            getEnvBool("SERVE_UI", true),

		CompactMaxArrayItems: getEnvInt("COMPACT_MAX_ARRAY_ITEMS", jsoncompact.DefaultMaxArrayItems),
		CompactMaxStringLen:  getEnvInt("COMPACT_MAX_STRING_LEN", jsoncompact.DefaultMaxStringLen),

		LogLevel:      getEnvString("LOG_LEVEL", "info"),
		LogFormat:     getEnvString("LOG_FORMAT", "text"),
		LogFile:       getEnvString("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 10),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}

// RetryConfig returns the outbound retry settings.
func (c *Config) RetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts: c.RetryMaxAttempts,
		BaseDelay:   c.RetryBaseDelay,
		MaxJitter:   c.RetryJitter,
	}
}

// Warnings lists settings that let the process start but will make upstream
// calls fail.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.PageSpeedAPIKey == "" {
		warnings = append(warnings, "PAGESPEED_API_KEY is not set; PageSpeed requests are sent without a key")
	}
	if c.GeminiAPIKey == "" {
		warnings = append(warnings, "GEMINI_API_KEY is not set; Gemini requests will be rejected upstream")
	}
	if c.RetryMaxAttempts < 1 {
		warnings = append(warnings, fmt.Sprintf("RETRY_MAX_ATTEMPTS=%d is below 1; using %d", c.RetryMaxAttempts, retry.DefaultMaxAttempts))
	}
	return warnings
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		switch v {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultVal
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDurationMs(key string, defaultMs int) time.Duration {
	ms := getEnvInt(key, defaultMs)
	return time.Duration(ms) * time.Millisecond
}

func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
