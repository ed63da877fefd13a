package main

import (
	"fmt"
	"time"

	"phone-agent/internal/action"
	"phone-agent/internal/broker"
	"phone-agent/internal/config"
	"phone-agent/internal/device"
	imagepkg "phone-agent/internal/image"
	"phone-agent/internal/llm"
	"phone-agent/internal/packages"
	"phone-agent/internal/speech"
	"phone-agent/internal/task"
	"phone-agent/internal/token"
)

// resolverBackend is a device backend that exposes its package resolver.
type resolverBackend interface {
	device.Backend
	Resolver() *packages.Resolver
}

// buildBackend creates the backend selected by the connect mode. The
// returned function releases its transport.
func buildBackend(cfg *config.Config) (resolverBackend, func(), error) {
	imageOpts := imagepkg.DefaultOptions()
	if cfg.Image.TargetBytes > 0 {
		imageOpts.TargetBytes = cfg.Image.TargetBytes
	}
	opts := device.Options{
		Timing: device.DefaultTiming(),
		Image:  imageOpts,
		Apps:   packages.DefaultApps,
	}
	if cfg.VirtualDisplay() {
		opts.DisplayID = cfg.Device.DisplayID
	}

	switch cfg.Device.ConnectMode {
	case config.ModeADB:
		b := device.NewShellBackend(device.ShellOptions{
			Options: opts,
			ADBPath: cfg.Device.ADBPath,
			Serial:  cfg.Device.Serial,
		})
		return b, func() {}, nil
	case config.ModeBroker:
		client := broker.NewClient(cfg.Device.BrokerURL, cfg.Device.BrokerToken)
		b := device.NewBrokerBackend(client, opts)
		return b, func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrBadConnectMode, cfg.Device.ConnectMode)
	}
}

func buildLLMClient(cfg *config.Config) *llm.OpenAIClient {
	return llm.NewOpenAIClient(llm.ProviderConfig{
		APIKey:     cfg.Model.APIKey,
		BaseURL:    cfg.Model.BaseURL,
		Timeout:    cfg.Model.Timeout,
		MaxRetries: 1,
		ExtraBody:  cfg.Model.ExtraBody,
	})
}

func buildModel(cfg *config.Config, tokens *token.Tracker) (*llm.ModelClient, func()) {
	client := buildLLMClient(cfg)
	mc := llm.NewModelClient(client, llm.ModelConfig{
		Model:            cfg.Model.Name,
		MaxTokens:        cfg.Model.MaxTokens,
		Temperature:      cfg.Model.Temperature,
		TopP:             cfg.Model.TopP,
		FrequencyPenalty: cfg.Model.FrequencyPenalty,
	}, tokens)
	return mc, func() { client.Close() }
}

func buildLoop(cfg *config.Config, backend device.Backend, model task.Decider, sink task.Sink, takeover action.TakeoverFunc) *task.Loop {
	return task.NewLoop(task.LoopConfig{
		Backend:      backend,
		Model:        model,
		Sink:         sink,
		Takeover:     takeover,
		PollInterval: cfg.Agent.PollInterval,
		DelayMin:     cfg.Agent.DelayMin,
		DelayMax:     cfg.Agent.DelayMax,
	})
}

// buildSpeech returns nil when no usable key is configured.
func buildSpeech(cfg *config.Config) *speech.Client {
	key := cfg.Speech.APIKey
	if key == "" {
		key = cfg.Model.APIKey
	}
	if key == "" || key == "EMPTY" {
		return nil
	}
	return speech.NewClient(speech.Options{
		Endpoint:   cfg.Speech.Endpoint,
		Model:      cfg.Speech.Model,
		Normalize:  cfg.Speech.Normalize,
		TargetPeak: cfg.Speech.TargetPeak,
		MaxGain:    cfg.Speech.MaxGain,
		Timeout:    time.Minute,
	}, speech.NewSignedToken(key, time.Hour))
}
