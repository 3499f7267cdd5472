package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meszmate/imap-codec/wire"
)

func TestLoadConfig_Default(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, wire.MaxLiteralSize, cfg.MaxLiteralSize)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeFile(t, "imapwire.yaml", "chunk_size: 7\nliteral_plus: true\n")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.ChunkSize)
	assert.True(t, cfg.LiteralPlus)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, wire.MaxLiteralSize, cfg.MaxLiteralSize)
}

func TestLoadConfig_TOML(t *testing.T) {
	path := writeFile(t, "imapwire.toml", "log_level = \"debug\"\nmax_literal_size = 100\nliteral_minus = true\n")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, int64(100), cfg.MaxLiteralSize)
	assert.True(t, cfg.LiteralMinus)
	assert.Equal(t, 4096, cfg.ChunkSize)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unsupported format", "imapwire.ini", "chunk_size=1"},
		{"bad yaml", "imapwire.yaml", "chunk_size: [1\n"},
		{"bad toml", "imapwire.toml", "chunk_size = \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeFile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		EnvLogLevel:       " warn ",
		EnvChunkSize:      "1",
		EnvMaxLiteralSize: "2048",
		EnvLiteralPlus:    "true",
		EnvLiteralMinus:   "not-a-bool",
	}
	cfg := DefaultConfig()
	require.NoError(t, applyEnvOverrides(&cfg, func(k string) string { return env[k] }))

	assert.Equal(t, Config{
		LogLevel:       "warn",
		ChunkSize:      1,
		MaxLiteralSize: 2048,
		LiteralPlus:    true,
	}, cfg)
}

func TestApplyEnvOverrides_InvalidNumbers(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"chunk size", EnvChunkSize},
		{"max literal size", EnvMaxLiteralSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			err := applyEnvOverrides(&cfg, func(k string) string {
				if k == tt.key {
					return "many"
				}
				return ""
			})
			assert.Error(t, err)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero chunk", func(c *Config) { c.ChunkSize = 0 }, true},
		{"zero literal limit", func(c *Config) { c.MaxLiteralSize = 0 }, true},
		{"literal limit above maximum", func(c *Config) { c.MaxLiteralSize = wire.MaxLiteralSize + 1 }, true},
		{"unknown level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"upper-case level", func(c *Config) { c.LogLevel = "DEBUG" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.validate())
			} else {
				assert.NoError(t, cfg.validate())
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, loadEnvFile(""))
	assert.NoError(t, loadEnvFile("/nonexistent/.env"))

	const key = "IMAPWIRE_TEST_ENV_FILE_MARKER"
	t.Cleanup(func() { os.Unsetenv(key) })
	require.NoError(t, loadEnvFile(writeFile(t, ".env", key+"=loaded\n")))
	assert.Equal(t, "loaded", os.Getenv(key))
}
