package config

import (
	"log/slog"
	"testing"
	"time"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("tabletalk-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Fatalf("Session.TTL = %v", cfg.Session.TTL)
	}
	if cfg.Session.MaxUploadBytes != 32<<20 {
		t.Fatalf("Session.MaxUploadBytes = %d", cfg.Session.MaxUploadBytes)
	}
	if cfg.Session.MaxDatasets != 8 {
		t.Fatalf("Session.MaxDatasets = %d", cfg.Session.MaxDatasets)
	}
	if cfg.UI.PreviewRows != 5 {
		t.Fatalf("UI.PreviewRows = %d", cfg.UI.PreviewRows)
	}
	if cfg.AI.Enabled() {
		t.Fatal("AI should be disabled without an api key")
	}
	if cfg.AI.Model != "gpt-5" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.MaxRetries != 2 {
		t.Fatalf("AI.MaxRetries = %d", cfg.AI.MaxRetries)
	}
	if cfg.History.Enabled() {
		t.Fatal("History should be disabled without a DSN")
	}
}

func TestLoadTestProfileDefaults(t *testing.T) {
	cfg, err := Load("tabletalk-api", mapLookup(map[string]string{"TABLETALK_PROFILE": "test"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":18080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelWarn {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("tabletalk-api", mapLookup(map[string]string{"TABLETALK_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	cfg, err := Load("tabletalk-api", mapLookup(map[string]string{
		"TABLETALK_HTTP_ADDR":                ":9090",
		"TABLETALK_SESSION_TTL":              "5m",
		"TABLETALK_SESSION_MAX_UPLOAD_BYTES": "1024",
		"TABLETALK_AI_API_KEY":               "sk-test",
		"TABLETALK_AI_MODEL":                 "local-model",
		"TABLETALK_AI_MAX_RETRIES":           "0",
		"TABLETALK_HISTORY_DSN":              "postgres://localhost/tabletalk",
		"TABLETALK_LOG_LEVEL":                "error",
		"TABLETALK_LOG_JSON":                 "false",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":9090" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Session.TTL != 5*time.Minute {
		t.Fatalf("Session.TTL = %v", cfg.Session.TTL)
	}
	if cfg.Session.MaxUploadBytes != 1024 {
		t.Fatalf("Session.MaxUploadBytes = %d", cfg.Session.MaxUploadBytes)
	}
	if !cfg.AI.Enabled() || cfg.AI.Model != "local-model" || cfg.AI.MaxRetries != 0 {
		t.Fatalf("AI = %+v", cfg.AI)
	}
	if !cfg.History.Enabled() {
		t.Fatal("History should be enabled with a DSN")
	}
	if cfg.Observability.LogLevel != slog.LevelError || cfg.Observability.LogJSON {
		t.Fatalf("Observability = %+v", cfg.Observability)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"bad profile":  {"TABLETALK_PROFILE": "staging"},
		"bad duration": {"TABLETALK_SESSION_TTL": "soon"},
		"bad int":      {"TABLETALK_UI_PREVIEW_ROWS": "many"},
		"bad level":    {"TABLETALK_LOG_LEVEL": "loud"},
		"bad bool":     {"TABLETALK_LOG_JSON": "yep"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load("tabletalk-api", mapLookup(env)); err == nil {
				t.Fatal("Load() should fail")
			}
		})
	}
}
