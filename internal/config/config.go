// Package config loads burnchat settings.
package config

import (
	"fmt"
	"time"

	"github.com/hammamikhairi/burnchat/internal/domain"
)

// Config holds every runtime setting. The message lifetime is not here:
// it is fixed.
type Config struct {
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
	LogFile        string        `mapstructure:"log_file" yaml:"log_file"`
	SenderID       string        `mapstructure:"sender_id" yaml:"sender_id"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	SettleDelay    time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	MaxCandidates  int           `mapstructure:"max_candidates" yaml:"max_candidates"`
	DictionaryPath string        `mapstructure:"dictionary_path" yaml:"dictionary_path"`
	CanvasWidth    int           `mapstructure:"canvas_width" yaml:"canvas_width"`
	CanvasHeight   int           `mapstructure:"canvas_height" yaml:"canvas_height"`

	Recognizer RecognizerConfig `mapstructure:"recognizer" yaml:"recognizer"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry" yaml:"telemetry"`
	Audio      AudioConfig      `mapstructure:"audio" yaml:"audio"`
}

// RecognizerConfig points at an OpenAI-compatible chat-completions
// endpoint. An empty endpoint disables handwriting recognition.
type RecognizerConfig struct {
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey   string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model    string        `mapstructure:"model" yaml:"model"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`

	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

// AudioConfig controls voice message playback.
type AudioConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:      "info",
		LogFile:       ".burnchat-logs/burnchat.log",
		SenderID:      string(domain.SenderUser),
		SweepInterval: 100 * time.Millisecond,
		SettleDelay:   800 * time.Millisecond,
		MaxCandidates: 8,
		CanvasWidth:   320,
		CanvasHeight:  320,
		Recognizer: RecognizerConfig{
			Timeout:   15 * time.Second,
			MaxTokens: 200,
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
			Dir:     ".burnchat-logs/telemetry",
		},
		Audio: AudioConfig{
			Enabled: true,
		},
	}
}

// Sender returns the configured sender identity.
func (c Config) Sender() domain.Sender {
	return domain.Sender(c.SenderID)
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	switch c.Sender() {
	case domain.SenderUser, domain.SenderBlade, domain.SenderHead:
	default:
		return fmt.Errorf("sender_id %q: must be user, blade or head", c.SenderID)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %s", c.SweepInterval)
	}
	if c.SettleDelay <= 0 {
		return fmt.Errorf("settle_delay must be positive, got %s", c.SettleDelay)
	}
	if c.MaxCandidates < 1 || c.MaxCandidates > 8 {
		return fmt.Errorf("max_candidates must be between 1 and 8, got %d", c.MaxCandidates)
	}
	if c.Recognizer.Temperature < 0 || c.Recognizer.Temperature > 2 {
		return fmt.Errorf("recognizer.temperature must be between 0 and 2, got %g", c.Recognizer.Temperature)
	}
	if c.Recognizer.MaxTokens < 1 {
		return fmt.Errorf("recognizer.max_tokens must be positive, got %d", c.Recognizer.MaxTokens)
	}
	if c.CanvasWidth <= 0 || c.CanvasHeight <= 0 {
		return fmt.Errorf("canvas size must be positive, got %dx%d", c.CanvasWidth, c.CanvasHeight)
	}
	return nil
}
