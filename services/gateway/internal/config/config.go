package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location, overridable with
// GATEWAY_CONFIG_PATH.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	TokenSecret string `yaml:"tokenSecret"`

	IdentityURL      string `yaml:"identityURL"`
	RecordingURL     string `yaml:"recordingURL"`
	TranscriptionURL string `yaml:"transcriptionURL"`
	SummarizationURL string `yaml:"summarizationURL"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	RegisterRateLimitPerMinute int `yaml:"registerRateLimitPerMinute"`
	LoginRateLimitPerMinute    int `yaml:"loginRateLimitPerMinute"`

	ProbeTimeout      string   `yaml:"probeTimeout"`
	MaxUploadBytes    int64    `yaml:"maxUploadBytes"`
	AllowedExtensions []string `yaml:"allowedExtensions"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	if v := os.Getenv("GATEWAY_CONFIG_PATH"); v != "" {
		path = v
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("TOKEN_SECRET"); v != "" {
		cfg.TokenSecret = v
	}
	if v := os.Getenv("IDENTITY_URL"); v != "" {
		cfg.IdentityURL = v
	}
	if v := os.Getenv("RECORDING_URL"); v != "" {
		cfg.RecordingURL = v
	}
	if v := os.Getenv("TRANSCRIPTION_URL"); v != "" {
		cfg.TranscriptionURL = v
	}
	if v := os.Getenv("SUMMARIZATION_URL"); v != "" {
		cfg.SummarizationURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseProbeTimeout parses the configured probe timeout, defaulting to
// ten seconds when unset.
func ParseProbeTimeout(cfg FileConfig) (time.Duration, error) {
	if strings.TrimSpace(cfg.ProbeTimeout) == "" {
		return 10 * time.Second, nil
	}
	d, err := time.ParseDuration(cfg.ProbeTimeout)
	if err != nil {
		return 0, fmt.Errorf("parse probeTimeout: %w", err)
	}
	if d <= 0 {
		return 0, errors.New("config: probeTimeout must be positive")
	}
	return d, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.TokenSecret == "" {
		return errors.New("config: tokenSecret is required (set TOKEN_SECRET)")
	}
	if cfg.IdentityURL == "" {
		return errors.New("config: identityURL is required (set IDENTITY_URL)")
	}
	if cfg.RecordingURL == "" {
		return errors.New("config: recordingURL is required (set RECORDING_URL)")
	}
	if cfg.TranscriptionURL == "" {
		return errors.New("config: transcriptionURL is required (set TRANSCRIPTION_URL)")
	}
	if cfg.SummarizationURL == "" {
		return errors.New("config: summarizationURL is required (set SUMMARIZATION_URL)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set REDIS_ADDR)")
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be >= 0")
	}
	return nil
}
