package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Model.BaseURL != "http://localhost:8000/v1" {
		t.Errorf("BaseURL = %q", cfg.Model.BaseURL)
	}
	if cfg.Model.Name != "autoglm-phone-9b" {
		t.Errorf("Name = %q", cfg.Model.Name)
	}
	if cfg.Model.MaxTokens != 3000 || cfg.Model.TopP != 0.85 || cfg.Model.FrequencyPenalty != 0.2 {
		t.Errorf("unexpected sampling defaults: %+v", cfg.Model)
	}
	if cfg.Agent.MaxSteps != 50 {
		t.Errorf("MaxSteps = %d", cfg.Agent.MaxSteps)
	}
	if cfg.Image.TargetBytes != 25600 {
		t.Errorf("TargetBytes = %d", cfg.Image.TargetBytes)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	env := map[string]string{
		"PHONE_AGENT_BASE_URL":      "http://model:9000/v1",
		"PHONE_AGENT_API_KEY":       "secret",
		"PHONE_AGENT_MODEL":         "other-model",
		"AUTOGM_CONNECT_MODE":       "SHIZUKU",
		"PHONE_AGENT_EXECUTION_ENV": "VIRTUAL_ISOLATED",
		"PHONE_AGENT_DISPLAY_ID":    " 7 ",
		"INTERNAL_ADB_PATH":         "/data/adb",
		"PHONE_AGENT_MAX_STEPS":     "12",
		"AUTOGLM_STT_NORMALIZE":     "yes",
	}
	cfg := DefaultConfig()
	if err := loadFromEnv(cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("loadFromEnv() error = %v", err)
	}

	if cfg.Model.BaseURL != "http://model:9000/v1" || cfg.Model.APIKey != "secret" || cfg.Model.Name != "other-model" {
		t.Errorf("model overrides not applied: %+v", cfg.Model)
	}
	if cfg.Device.ConnectMode != ModeBroker {
		t.Errorf("ConnectMode = %q, want %q", cfg.Device.ConnectMode, ModeBroker)
	}
	if !cfg.VirtualDisplay() || cfg.Device.DisplayID != "7" {
		t.Errorf("display not configured: %+v", cfg.Device)
	}
	if cfg.Device.ADBPath != "/data/adb" {
		t.Errorf("ADBPath = %q", cfg.Device.ADBPath)
	}
	if cfg.Agent.MaxSteps != 12 {
		t.Errorf("MaxSteps = %d", cfg.Agent.MaxSteps)
	}
	if !cfg.Speech.Normalize {
		t.Error("speech normalize not enabled")
	}
}

func TestLoadFromEnvBadNumber(t *testing.T) {
	cfg := DefaultConfig()
	err := loadFromEnv(cfg, func(k string) string {
		if k == "PHONE_AGENT_MAX_STEPS" {
			return "many"
		}
		return ""
	})
	if err == nil {
		t.Fatal("expected error for non-numeric max steps")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"empty base url", func(c *Config) { c.Model.BaseURL = " " }, ErrMissingBaseURL},
		{"empty model", func(c *Config) { c.Model.Name = "" }, ErrMissingModel},
		{"bad mode", func(c *Config) { c.Device.ConnectMode = "bluetooth" }, ErrBadConnectMode},
		{"broker without url", func(c *Config) { c.Device.ConnectMode = ModeBroker }, ErrMissingBroker},
		{"bad display", func(c *Config) { c.Device.DisplayID = "x1" }, ErrBadDisplay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "model:\n  name: file-model\n  max_tokens: 100\nagent:\n  delay_min: 500ms\n  delay_max: 1s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	if err := loadFromFile(cfg, path); err != nil {
		t.Fatalf("loadFromFile() error = %v", err)
	}
	if cfg.Model.Name != "file-model" || cfg.Model.MaxTokens != 100 {
		t.Errorf("file values not applied: %+v", cfg.Model)
	}
	if cfg.Agent.DelayMin != 500*time.Millisecond {
		t.Errorf("DelayMin = %s", cfg.Agent.DelayMin)
	}
	if cfg.Model.BaseURL != "http://localhost:8000/v1" {
		t.Errorf("unset keys should keep defaults, BaseURL = %q", cfg.Model.BaseURL)
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("model:\n  name: first\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan *Config, 4)
	go Watch(ctx, path, func(c *Config) { changed <- c })

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("model:\n  name: second\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changed:
		if c.Model.Name != "second" {
			t.Errorf("reloaded name = %q", c.Model.Name)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
}
