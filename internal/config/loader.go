package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hammamikhairi/burnchat/internal/logger"
)

const (
	envPrefix         = "BURNCHAT"
	defaultConfigName = "burnchat.yaml"
)

// FlagKeys maps CLI flag names to config keys.
var FlagKeys = map[string]string{
	"log-level":  "log_level",
	"log-file":   "log_file",
	"sender":     "sender_id",
	"dictionary": "dictionary_path",
	"endpoint":   "recognizer.endpoint",
	"model":      "recognizer.model",
	"telemetry":  "telemetry.enabled",
	"audio":      "audio.enabled",
}

// Load resolves configuration. Precedence: defaults < config file < env
// vars (BURNCHAT_ prefix, dots become underscores) < changed flags.
// A missing config file is not an error. flags may be nil.
func Load(log *logger.Logger, explicitPath string, flags *pflag.FlagSet) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return cfg, "", fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	configPath := ResolvePath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
		log.Debug("no config file at %s, using defaults", configPath)
	} else {
		log.Debug("loaded config from %s", configPath)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, configPath, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, configPath, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("sender_id", cfg.SenderID)
	v.SetDefault("sweep_interval", cfg.SweepInterval)
	v.SetDefault("settle_delay", cfg.SettleDelay)
	v.SetDefault("max_candidates", cfg.MaxCandidates)
	v.SetDefault("dictionary_path", cfg.DictionaryPath)
	v.SetDefault("canvas_width", cfg.CanvasWidth)
	v.SetDefault("canvas_height", cfg.CanvasHeight)
	v.SetDefault("recognizer.endpoint", cfg.Recognizer.Endpoint)
	v.SetDefault("recognizer.api_key", cfg.Recognizer.APIKey)
	v.SetDefault("recognizer.model", cfg.Recognizer.Model)
	v.SetDefault("recognizer.timeout", cfg.Recognizer.Timeout)
	v.SetDefault("recognizer.temperature", cfg.Recognizer.Temperature)
	v.SetDefault("recognizer.max_tokens", cfg.Recognizer.MaxTokens)
	v.SetDefault("telemetry.enabled", cfg.Telemetry.Enabled)
	v.SetDefault("telemetry.dir", cfg.Telemetry.Dir)
	v.SetDefault("audio.enabled", cfg.Audio.Enabled)
}

// ResolvePath returns explicitPath, or burnchat.yaml in the working
// directory.
func ResolvePath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
