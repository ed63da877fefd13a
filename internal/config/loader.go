package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const appName = "phone-agent"

// Load builds the configuration from defaults, an optional .env file, the
// YAML config file and environment variables, in that order. An empty path
// means the default location; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := loadFromEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPath returns $XDG_CONFIG_HOME/phone-agent/config.yaml or the
// equivalent under ~/.config.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName, "config.yaml")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func loadFromEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("PHONE_AGENT_BASE_URL"); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := getenv("PHONE_AGENT_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := getenv("PHONE_AGENT_MODEL"); v != "" {
		cfg.Model.Name = v
	}
	if v := getenv("PHONE_AGENT_LANG"); v != "" {
		cfg.Agent.Lang = v
	}
	if v := getenv("PHONE_AGENT_MAX_STEPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PHONE_AGENT_MAX_STEPS: %w", err)
		}
		cfg.Agent.MaxSteps = n
	}

	mode := getenv("PHONE_AGENT_CONNECT_MODE")
	if mode == "" {
		mode = getenv("AUTOGM_CONNECT_MODE")
	}
	if mode != "" {
		cfg.Device.ConnectMode = normalizeConnectMode(mode)
	}
	if v := getenv("PHONE_AGENT_EXECUTION_ENV"); v != "" {
		cfg.Device.ExecutionEnv = normalizeExecutionEnv(v)
	}
	if v := strings.TrimSpace(getenv("PHONE_AGENT_DISPLAY_ID")); v != "" {
		cfg.Device.DisplayID = v
	}
	if v := getenv("INTERNAL_ADB_PATH"); v != "" {
		cfg.Device.ADBPath = v
	}
	if v := getenv("PHONE_AGENT_SERIAL"); v != "" {
		cfg.Device.Serial = v
	}
	if v := getenv("PHONE_AGENT_BROKER_URL"); v != "" {
		cfg.Device.BrokerURL = v
	}
	if v := getenv("PHONE_AGENT_BROKER_TOKEN"); v != "" {
		cfg.Device.BrokerToken = v
	}

	if v := getenv("ZHIPU_API_KEY"); v != "" {
		cfg.Speech.APIKey = v
	}
	if v := getenv("AUTOGLM_STT_NORMALIZE"); v != "" {
		cfg.Speech.Normalize = parseBool(v)
	}
	if v := getenv("AUTOGLM_STT_TARGET_PEAK"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Speech.TargetPeak = f
		}
	}
	if v := getenv("AUTOGLM_STT_MAX_GAIN"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Speech.MaxGain = f
		}
	}
	if v := getenv("PHONE_AGENT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv("PHONE_AGENT_MODEL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PHONE_AGENT_MODEL_TIMEOUT: %w", err)
		}
		cfg.Model.Timeout = d
	}
	return nil
}

func normalizeConnectMode(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "shizuku", "broker", "privileged":
		return ModeBroker
	case "adb", "shell", "":
		return ModeADB
	default:
		return strings.ToLower(strings.TrimSpace(v))
	}
}

func normalizeExecutionEnv(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "virtual_isolated", "virtual":
		return EnvVirtualIsolated
	default:
		return EnvDirect
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
