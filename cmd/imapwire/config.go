package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/meszmate/imap-codec/wire"
)

// Environment variables that override the config file.
const (
	EnvLogLevel       = "IMAPWIRE_LOG_LEVEL"
	EnvChunkSize      = "IMAPWIRE_CHUNK_SIZE"
	EnvMaxLiteralSize = "IMAPWIRE_MAX_LITERAL_SIZE"
	EnvLiteralPlus    = "IMAPWIRE_LITERAL_PLUS"
	EnvLiteralMinus   = "IMAPWIRE_LITERAL_MINUS"
)

// Config holds the settings shared by all subcommands.
type Config struct {
	LogLevel       string `yaml:"log_level" toml:"log_level"`
	ChunkSize      int    `yaml:"chunk_size" toml:"chunk_size"`
	MaxLiteralSize int64  `yaml:"max_literal_size" toml:"max_literal_size"`
	LiteralPlus    bool   `yaml:"literal_plus" toml:"literal_plus"`
	LiteralMinus   bool   `yaml:"literal_minus" toml:"literal_minus"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		LogLevel:       "info",
		ChunkSize:      4096,
		MaxLiteralSize: wire.MaxLiteralSize,
	}
}

// loadConfig reads path, picking the format from its extension, on top of
// DefaultConfig. An empty path yields the defaults.
func loadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return loadTOML(path, cfg)
	case ".yaml", ".yml", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
		return cfg, nil
	default:
		return Config{}, errors.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

type fileConfig struct {
	LogLevel       string `toml:"log_level"`
	ChunkSize      int    `toml:"chunk_size"`
	MaxLiteralSize int64  `toml:"max_literal_size"`
	LiteralPlus    bool   `toml:"literal_plus"`
	LiteralMinus   bool   `toml:"literal_minus"`
}

func loadTOML(path string, cfg Config) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, errors.Wrap(err, "load config")
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("chunk_size") {
		cfg.ChunkSize = raw.ChunkSize
	}
	if meta.IsDefined("max_literal_size") {
		cfg.MaxLiteralSize = raw.MaxLiteralSize
	}
	if meta.IsDefined("literal_plus") {
		cfg.LiteralPlus = raw.LiteralPlus
	}
	if meta.IsDefined("literal_minus") {
		cfg.LiteralMinus = raw.LiteralMinus
	}
	return cfg, nil
}

// loadEnvFile loads KEY=VALUE pairs from path into the environment. A missing
// file is not an error. Variables already set are left alone.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return errors.Wrap(godotenv.Load(path), "load env file")
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(getenv(EnvChunkSize)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parse %s", EnvChunkSize)
		}
		cfg.ChunkSize = n
	}
	if v := strings.TrimSpace(getenv(EnvMaxLiteralSize)); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "parse %s", EnvMaxLiteralSize)
		}
		cfg.MaxLiteralSize = n
	}
	if v, ok := parseBool(getenv(EnvLiteralPlus)); ok {
		cfg.LiteralPlus = v
	}
	if v, ok := parseBool(getenv(EnvLiteralMinus)); ok {
		cfg.LiteralMinus = v
	}
	return nil
}

func (cfg Config) validate() error {
	if cfg.ChunkSize <= 0 {
		return errors.Errorf("chunk_size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.MaxLiteralSize <= 0 || cfg.MaxLiteralSize > wire.MaxLiteralSize {
		return errors.Errorf("max_literal_size must be in 1..%d, got %d", wire.MaxLiteralSize, cfg.MaxLiteralSize)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		return errors.Wrap(err, "log_level")
	}
	return nil
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
