package config

import (
	"fmt"
	"strings"
	"time"
)

// Connect modes.
const (
	ModeADB    = "adb"
	ModeBroker = "broker"
)

// Execution environments.
const (
	EnvDirect          = "direct"
	EnvVirtualIsolated = "virtual_isolated"
)

// Config is the full application configuration.
type Config struct {
	Model  ModelConfig  `yaml:"model"`
	Agent  AgentConfig  `yaml:"agent"`
	Device DeviceConfig `yaml:"device"`
	Image  ImageConfig  `yaml:"image"`
	Server ServerConfig `yaml:"server"`
	Speech SpeechConfig `yaml:"speech"`
	Log    LogConfig    `yaml:"log"`
}

// ModelConfig describes the OpenAI-compatible decision model endpoint.
type ModelConfig struct {
	BaseURL          string         `yaml:"base_url"`
	APIKey           string         `yaml:"api_key"`
	Name             string         `yaml:"name"`
	MaxTokens        int            `yaml:"max_tokens"`
	Temperature      float64        `yaml:"temperature"`
	TopP             float64        `yaml:"top_p"`
	FrequencyPenalty float64        `yaml:"frequency_penalty"`
	Timeout          time.Duration  `yaml:"timeout"`
	// ExtraBody is merged into every chat completion request.
	ExtraBody        map[string]any `yaml:"extra_body"`
}

type AgentConfig struct {
	MaxSteps     int           `yaml:"max_steps"`
	Lang         string        `yaml:"lang"`
	PollInterval time.Duration `yaml:"poll_interval"`
	DelayMin     time.Duration `yaml:"delay_min"`
	DelayMax     time.Duration `yaml:"delay_max"`
}

type DeviceConfig struct {
	ConnectMode  string `yaml:"connect_mode"`
	Serial       string `yaml:"serial"`
	ADBPath      string `yaml:"adb_path"`
	DisplayID    string `yaml:"display_id"`
	ExecutionEnv string `yaml:"execution_env"`
	BrokerURL    string `yaml:"broker_url"`
	BrokerToken  string `yaml:"broker_token"`
}

type ImageConfig struct {
	TargetBytes int `yaml:"target_bytes"`
}

type ServerConfig struct {
	Bind string `yaml:"bind"`
}

type SpeechConfig struct {
	// APIKey is an "id.secret" pair; empty falls back to the model key.
	APIKey     string  `yaml:"api_key"`
	Endpoint   string  `yaml:"endpoint"`
	Model      string  `yaml:"model"`
	Normalize  bool    `yaml:"normalize"`
	TargetPeak float64 `yaml:"target_peak"`
	MaxGain    float64 `yaml:"max_gain"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			BaseURL:          "http://localhost:8000/v1",
			APIKey:           "EMPTY",
			Name:             "autoglm-phone-9b",
			MaxTokens:        3000,
			Temperature:      0.0,
			TopP:             0.85,
			FrequencyPenalty: 0.2,
			Timeout:          2 * time.Minute,
		},
		Agent: AgentConfig{
			MaxSteps:     50,
			Lang:         "en",
			PollInterval: 200 * time.Millisecond,
			DelayMin:     time.Second,
			DelayMax:     2 * time.Second,
		},
		Device: DeviceConfig{
			ConnectMode:  ModeADB,
			ADBPath:      "adb",
			ExecutionEnv: EnvDirect,
		},
		Image: ImageConfig{
			TargetBytes: 25 * 1024,
		},
		Server: ServerConfig{
			Bind: "127.0.0.1:8080",
		},
		Speech: SpeechConfig{
			Endpoint:   "https://open.bigmodel.cn/api/paas/v4/audio/transcriptions",
			Model:      "glm-asr-2512",
			TargetPeak: 0.6,
			MaxGain:    8,
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// VirtualDisplay reports whether actions must be routed to the configured
// secondary display.
func (c *Config) VirtualDisplay() bool {
	return c.Device.ExecutionEnv == EnvVirtualIsolated && c.Device.DisplayID != ""
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Model.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	if strings.TrimSpace(c.Model.Name) == "" {
		return ErrMissingModel
	}
	switch c.Device.ConnectMode {
	case ModeADB, ModeBroker:
	default:
		return fmt.Errorf("%w: %q", ErrBadConnectMode, c.Device.ConnectMode)
	}
	if c.Device.ConnectMode == ModeBroker && c.Device.BrokerURL == "" {
		return ErrMissingBroker
	}
	if d := c.Device.DisplayID; d != "" {
		for _, r := range d {
			if r < '0' || r > '9' {
				return fmt.Errorf("%w: %q", ErrBadDisplay, d)
			}
		}
	}
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("max_steps must be positive, got %d", c.Agent.MaxSteps)
	}
	if c.Agent.DelayMax < c.Agent.DelayMin {
		return fmt.Errorf("delay_max %s is below delay_min %s", c.Agent.DelayMax, c.Agent.DelayMin)
	}
	return nil
}

// ConfigError is a validation failure.
type ConfigError string

func (e ConfigError) Error() string {
	return string(e)
}

const (
	ErrMissingBaseURL ConfigError = "model base_url is empty: set PHONE_AGENT_BASE_URL"
	ErrMissingModel   ConfigError = "model name is empty: set PHONE_AGENT_MODEL"
	ErrBadConnectMode ConfigError = "connect_mode must be adb or broker"
	ErrMissingBroker  ConfigError = "broker mode needs broker_url: set PHONE_AGENT_BROKER_URL"
	ErrBadDisplay     ConfigError = "display_id must be a non-negative integer"
)
