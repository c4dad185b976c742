package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "LINECHAT"
	envConfigDefaultPath = "LINECHAT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load resolves the configuration for the chat server and returns it with
// the path of the file it came from. Precedence: defaults < config file <
// LINECHAT_* env vars. A missing file is created from the defaults. The
// result is validated, so a bad file or env value fails here rather than
// when a listener is bound.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	cfg := Default()
	path := resolveConfigPath(explicitPath)
	v := newViper(cfg, path)

	if err := readOrCreate(v, cfg, path, logger); err != nil {
		return cfg, path, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, path, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, path, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, path, nil
}

// newViper registers every config key with its default so env vars bind
// even when the file omits the key.
func newViper(cfg Config, path string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults(cfg) {
		v.SetDefault(key, value)
	}
	return v
}

func defaults(cfg Config) map[string]any {
	return map[string]any{
		"addr":                cfg.Addr,
		"http_addr":           cfg.HTTPAddr,
		"log_level":           cfg.LogLevel,
		"idle_timeout":        cfg.IdleTimeout,
		"write_timeout":       cfg.WriteTimeout,
		"max_line_bytes":      cfg.MaxLineBytes,
		"shutdown_timeout":    cfg.ShutdownTimeout,
		"read_header_timeout": cfg.ReadHeaderTimeout,
	}
}

// readOrCreate reads path into v. When the file does not exist the
// defaults are written there; failing to write it only costs a warning.
func readOrCreate(v *viper.Viper, cfg Config, path string, logger *zerolog.Logger) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config: %w", err)
	}

	if err := writeDefaultConfig(path, cfg); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to write default config")
		return nil
	}
	logger.Info().Str("path", path).Msg("created default config")
	if err := v.ReadInConfig(); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to read config after writing default")
	}
	return nil
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Marshal renders cfg the way it is stored in a config file.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
