package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// MaxUploadBytes is the per-file size threshold for ingest. Files over
	// the limit are excluded from their batch before any model call.
	MaxUploadBytes int64 `json:"max_upload_bytes"`

	// TitleMinChars rejects fallback title candidates at or under this
	// trimmed length.
	TitleMinChars int `json:"title_min_chars"`

	// TitleMaxChars truncates fallback titles to this display length.
	TitleMaxChars int `json:"title_max_chars"`

	// RequestTimeoutSecs bounds each transcribe/polish call. 0 disables
	// the timeout entirely.
	RequestTimeoutSecs int `json:"request_timeout_secs,omitempty"`

	// ModelBaseURL is the generateContent-style endpoint for the
	// transcription/polishing model.
	ModelBaseURL string `json:"model_base_url,omitempty"`

	// ModelName selects the model at the endpoint.
	ModelName string `json:"model_name,omitempty"`

	// APIKeyEnv names the environment variable holding the model API key.
	APIKeyEnv string `json:"api_key_env,omitempty"`

	// AudioInput names the preferred capture device; empty means the
	// system default source.
	AudioInput string `json:"audio_input,omitempty"`

	// WebBind and WebPort configure the web UI listener.
	WebBind string `json:"web_bind,omitempty"`
	WebPort int    `json:"web_port,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized.
	// 0 means use sql.DB default. Only set if you experience contention.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from
	// registration. Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxUploadBytes:     25 << 20,
		TitleMinChars:      3,
		TitleMaxChars:      60,
		RequestTimeoutSecs: 120,
		ModelBaseURL:       "https://generativelanguage.googleapis.com",
		ModelName:          "gemini-2.5-flash",
		APIKeyEnv:          "MURMUR_API_KEY",
		WebBind:            "127.0.0.1",
		WebPort:            7161,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.murmur.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.MaxUploadBytes = overlay.MaxUploadBytes
	if result.MaxUploadBytes == 0 {
		result.MaxUploadBytes = base.MaxUploadBytes
	}

	result.TitleMinChars = overlay.TitleMinChars
	if result.TitleMinChars == 0 {
		result.TitleMinChars = base.TitleMinChars
	}

	result.TitleMaxChars = overlay.TitleMaxChars
	if result.TitleMaxChars == 0 {
		result.TitleMaxChars = base.TitleMaxChars
	}

	result.RequestTimeoutSecs = overlay.RequestTimeoutSecs
	if result.RequestTimeoutSecs == 0 {
		result.RequestTimeoutSecs = base.RequestTimeoutSecs
	}

	result.ModelBaseURL = firstNonEmpty(overlay.ModelBaseURL, base.ModelBaseURL)
	result.ModelName = firstNonEmpty(overlay.ModelName, base.ModelName)
	result.APIKeyEnv = firstNonEmpty(overlay.APIKeyEnv, base.APIKeyEnv)
	result.AudioInput = firstNonEmpty(overlay.AudioInput, base.AudioInput)
	result.WebBind = firstNonEmpty(overlay.WebBind, base.WebBind)

	result.WebPort = overlay.WebPort
	if result.WebPort == 0 {
		result.WebPort = base.WebPort
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
