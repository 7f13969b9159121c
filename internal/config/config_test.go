package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("PORTAL_API_BASE_URL")
	os.Unsetenv("PORTAL_CACHE_SIZE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIBaseURL != "http://localhost:8000" {
		t.Errorf("expected default base URL, got %s", cfg.APIBaseURL)
	}
	if cfg.CacheSize != 512 {
		t.Errorf("expected default cache size 512, got %d", cfg.CacheSize)
	}
	if cfg.ColorMode != "auto" {
		t.Errorf("expected default color mode auto, got %s", cfg.ColorMode)
	}
	if cfg.RequestTimeout != 30 {
		t.Errorf("expected default timeout 30, got %d", cfg.RequestTimeout)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	os.Setenv("PORTAL_API_BASE_URL", "https://records.example.org")
	defer os.Unsetenv("PORTAL_API_BASE_URL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIBaseURL != "https://records.example.org" {
		t.Errorf("expected env base URL, got %s", cfg.APIBaseURL)
	}
}

func TestConfig_APIRoot(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8000", "http://localhost:8000/api/"},
		{"http://localhost:8000/", "http://localhost:8000/api/"},
		{"https://records.example.org//", "https://records.example.org/api/"},
	}

	for _, tc := range tests {
		c := &Config{APIBaseURL: tc.base}
		if got := c.APIRoot(); got != tc.want {
			t.Errorf("APIRoot(%q) = %q, want %q", tc.base, got, tc.want)
		}
	}
}

func TestConfig_ResolvedSessionFile(t *testing.T) {
	c := &Config{SessionFile: "/tmp/custom.json"}
	if got := c.ResolvedSessionFile(); got != "/tmp/custom.json" {
		t.Errorf("expected explicit path, got %s", got)
	}

	c = &Config{}
	got := c.ResolvedSessionFile()
	if got == "" {
		t.Fatal("expected non-empty default session file path")
	}
}
