package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// CORS is the opt-in cross-origin policy of the HTTP API.
type CORS struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
}

// Config holds runtime parameters for the service.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
	// Servers are backend base URLs in priority order.
	Servers                []string `json:"servers" yaml:"servers" toml:"servers"`
	MaxConcurrency         int      `json:"max_concurrency" yaml:"max_concurrency" toml:"max_concurrency"`
	RefreshIntervalSeconds int      `json:"refresh_interval_seconds" yaml:"refresh_interval_seconds" toml:"refresh_interval_seconds"`
	ManifestTimeoutSeconds int      `json:"manifest_timeout_seconds" yaml:"manifest_timeout_seconds" toml:"manifest_timeout_seconds"`
	// AcquireTimeoutSeconds bounds /acquire waits without a positive timeout_ms; 0 waits for the client.
	AcquireTimeoutSeconds int    `json:"acquire_timeout_seconds" yaml:"acquire_timeout_seconds" toml:"acquire_timeout_seconds"`
	LogLevel              string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat             string `json:"log_format" yaml:"log_format" toml:"log_format"`
	// HTTPLogLevel is the per-request log level when a request asks for none: off|error|info|debug.
	HTTPLogLevel string `json:"http_log_level" yaml:"http_log_level" toml:"http_log_level"`
	MaxBodyBytes int64  `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORS         CORS   `json:"cors" yaml:"cors" toml:"cors"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		Addr:                   ":8080",
		MaxConcurrency:         1,
		RefreshIntervalSeconds: 60,
		ManifestTimeoutSeconds: 10,
		LogLevel:               "info",
		LogFormat:              "json",
		MaxBodyBytes:           1 << 20,
		CORS: CORS{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		},
	}
}

// Load reads a configuration file based on its extension on top of Default().
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	path, err := ExpandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from INFERPOOL_* variables read through getenv.
// Unset or empty variables leave the field alone.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("INFERPOOL_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := getenv("INFERPOOL_SERVERS"); v != "" {
		cfg.Servers = SplitCSV(v)
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"INFERPOOL_MAX_CONCURRENCY", &cfg.MaxConcurrency},
		{"INFERPOOL_REFRESH_INTERVAL_SECONDS", &cfg.RefreshIntervalSeconds},
		{"INFERPOOL_MANIFEST_TIMEOUT_SECONDS", &cfg.ManifestTimeoutSeconds},
		{"INFERPOOL_ACQUIRE_TIMEOUT_SECONDS", &cfg.AcquireTimeoutSeconds},
	}
	for _, e := range ints {
		v := getenv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", e.key, err)
		}
		*e.dst = n
	}
	if v := getenv("INFERPOOL_MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("INFERPOOL_MAX_BODY_BYTES: %w", err)
		}
		cfg.MaxBodyBytes = n
	}
	if v := getenv("INFERPOOL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("INFERPOOL_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := getenv("INFERPOOL_HTTP_LOG_LEVEL"); v != "" {
		cfg.HTTPLogLevel = v
	}
	if v := getenv("INFERPOOL_CORS_ENABLED"); v != "" {
		s := strings.ToLower(v)
		cfg.CORS.Enabled = s == "1" || s == "true" || s == "yes"
	}
	if v := getenv("INFERPOOL_CORS_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = SplitCSV(v)
	}
	return nil
}

// Validate reports every problem found in cfg at once.
func (c Config) Validate() error {
	var errs []error
	if len(c.Servers) == 0 {
		errs = append(errs, errors.New("at least one server is required"))
	}
	for _, s := range c.Servers {
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("server %q: want an absolute http(s) URL", s))
		}
	}
	if c.RefreshIntervalSeconds < 0 {
		errs = append(errs, errors.New("refresh_interval_seconds must be >= 0"))
	}
	if c.ManifestTimeoutSeconds < 0 {
		errs = append(errs, errors.New("manifest_timeout_seconds must be >= 0"))
	}
	if c.AcquireTimeoutSeconds < 0 {
		errs = append(errs, errors.New("acquire_timeout_seconds must be >= 0"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log_format %q: want json or console", c.LogFormat))
	}
	switch c.HTTPLogLevel {
	case "", "off", "error", "info", "debug":
	default:
		errs = append(errs, fmt.Errorf("http_log_level %q: want off, error, info or debug", c.HTTPLogLevel))
	}
	return errors.Join(errs...)
}

func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

func (c Config) ManifestTimeout() time.Duration {
	return time.Duration(c.ManifestTimeoutSeconds) * time.Second
}

func (c Config) AcquireTimeout() time.Duration {
	return time.Duration(c.AcquireTimeoutSeconds) * time.Second
}

// ExpandHome replaces a leading "~/" (or a lone "~") with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// SplitCSV splits a comma separated list, trimming blanks and dropping empties.
func SplitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
