package config

import (
	"strings"
	"testing"
)

func TestLoad_NonexistentFile(t *testing.T) {
	if _, err := Load("/definitely/not/a/real/file-12345.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "bad.yaml", "addr: :8080\n: broken\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected YAML unmarshal error")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "bad.json", `{ "addr": ":8080", "servers": }`)
	if _, err := Load(p); err == nil {
		t.Fatalf("expected JSON unmarshal error")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "bad.toml", "addr=:8080\nservers\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected TOML unmarshal error")
	}
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestApplyEnv_Overrides(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(&cfg, envMap(map[string]string{
		"INFERPOOL_ADDR":                     ":9000",
		"INFERPOOL_SERVERS":                  "http://a:1, http://b:2",
		"INFERPOOL_MAX_CONCURRENCY":          "4",
		"INFERPOOL_REFRESH_INTERVAL_SECONDS": "0",
		"INFERPOOL_MAX_BODY_BYTES":           "2048",
		"INFERPOOL_LOG_FORMAT":               "console",
		"INFERPOOL_CORS_ENABLED":             "true",
		"INFERPOOL_CORS_ORIGINS":             "http://ui",
		"INFERPOOL_HTTP_LOG_LEVEL":           "debug",
	}))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Addr != ":9000" || len(cfg.Servers) != 2 || cfg.Servers[1] != "http://b:2" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.MaxConcurrency != 4 || cfg.RefreshIntervalSeconds != 0 || cfg.MaxBodyBytes != 2048 {
		t.Fatalf("numeric overrides not applied: %+v", cfg)
	}
	if cfg.LogFormat != "console" || !cfg.CORS.Enabled || cfg.CORS.AllowedOrigins[0] != "http://ui" || cfg.HTTPLogLevel != "debug" {
		t.Fatalf("string overrides not applied: %+v", cfg)
	}
	// untouched
	if cfg.ManifestTimeoutSeconds != 10 || cfg.LogLevel != "info" {
		t.Fatalf("unset variables changed cfg: %+v", cfg)
	}
}

func TestApplyEnv_BadInt(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(&cfg, envMap(map[string]string{"INFERPOOL_MAX_CONCURRENCY": "many"}))
	if err == nil || !strings.Contains(err.Error(), "INFERPOOL_MAX_CONCURRENCY") {
		t.Fatalf("expected error naming the variable, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Servers = []string{"http://a:1"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := Default()
	bad.Servers = []string{"a:1", "ftp://x"}
	bad.LogLevel = "loud"
	bad.LogFormat = "xml"
	bad.RefreshIntervalSeconds = -1
	bad.HTTPLogLevel = "verbose"
	err := bad.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{`"a:1"`, `"ftp://x"`, "log_level", "log_format", "refresh_interval_seconds", "http_log_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestValidate_NoServers(t *testing.T) {
	if err := Default().Validate(); err == nil {
		t.Fatalf("expected error without servers")
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	cases := map[string]string{
		"":              "",
		"/etc/x.yaml":   "/etc/x.yaml",
		"~":             "/home/tester",
		"~/cfg/ip.yaml": "/home/tester/cfg/ip.yaml",
		"~other/x.yaml": "~other/x.yaml",
		"relative.toml": "relative.toml",
	}
	for in, want := range cases {
		got, err := ExpandHome(in)
		if err != nil {
			t.Fatalf("ExpandHome(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ExpandHome(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoad_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeTempFile(t, home, "ip.yaml", "addr: :4444\n")
	cfg, err := Load("~/ip.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":4444" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}
