package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvURL, EnvUsername, EnvPassword, EnvMediaRoot, EnvLogLevel} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
server:
  url: "http://mayan.local:8000"
  username: "admin"
  password: "secret"
  timeout: 5s
  rate_limit: 2.5

storage:
  media_root: "/var/lib/mayan"

hashing:
  algorithm: "sha256"
  isolate_failures: true

ui:
  color: false

log:
  level: "debug"
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://mayan.local:8000", config.Server.URL)
	assert.Equal(t, "admin", config.Server.Username)
	assert.Equal(t, "secret", config.Server.Password)
	assert.Equal(t, 5*time.Second, config.Server.Timeout)
	assert.Equal(t, 2.5, config.Server.RateLimit)
	assert.Equal(t, "/var/lib/mayan", config.Storage.MediaRoot)
	assert.Equal(t, "sha256", config.Hashing.Algorithm)
	assert.True(t, config.Hashing.IsolateFailures)
	assert.False(t, config.ColorEnabled())
	assert.True(t, config.ProgressEnabled())
	assert.Equal(t, "debug", config.Log.Level)
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  url: http://localhost\n"), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, DefaultTimeout, config.Server.Timeout)
	assert.Equal(t, DefaultRateLimit, config.Server.RateLimit)
	assert.Equal(t, DefaultAlgorithm, config.Hashing.Algorithm)
	assert.Equal(t, DefaultLogLevel, config.Log.Level)
	assert.True(t, config.ColorEnabled())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [unclosed"), 0644))

	_, err := LoadConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error parsing config file")
}

func TestConfigValidation(t *testing.T) {
	mediaRoot := t.TempDir()
	notADir := filepath.Join(mediaRoot, "file.txt")
	require.NoError(t, os.WriteFile(notADir, []byte("x"), 0644))

	valid := func() Config {
		var c Config
		c.Server.URL = "https://mayan.example.com"
		c.Server.Username = "admin"
		c.Server.Timeout = time.Second
		c.Server.RateLimit = 1
		c.Storage.MediaRoot = mediaRoot
		c.Hashing.Algorithm = "md5"
		c.Log.Level = "info"
		return c
	}

	tests := []struct {
		name          string
		mutate        func(c *Config)
		errorMessages []string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name: "missing url and username",
			mutate: func(c *Config) {
				c.Server.URL = ""
				c.Server.Username = ""
			},
			errorMessages: []string{
				"server.url: server URL is required",
				"server.username: username is required",
			},
		},
		{
			name: "url without scheme",
			mutate: func(c *Config) {
				c.Server.URL = "mayan.example.com"
			},
			errorMessages: []string{"server.url: invalid server URL"},
		},
		{
			name: "non positive limits",
			mutate: func(c *Config) {
				c.Server.Timeout = 0
				c.Server.RateLimit = -1
			},
			errorMessages: []string{
				"server.timeout: timeout must be positive",
				"server.rate_limit: rate_limit must be positive",
			},
		},
		{
			name: "media root missing",
			mutate: func(c *Config) {
				c.Storage.MediaRoot = filepath.Join(mediaRoot, "missing")
			},
			errorMessages: []string{"storage.media_root: media root is not accessible"},
		},
		{
			name: "media root is a file",
			mutate: func(c *Config) {
				c.Storage.MediaRoot = notADir
			},
			errorMessages: []string{"storage.media_root: media root must be a directory"},
		},
		{
			name: "unknown algorithm and level",
			mutate: func(c *Config) {
				c.Hashing.Algorithm = "crc32"
				c.Log.Level = "loud"
			},
			errorMessages: []string{
				"hashing.algorithm: unsupported algorithm",
				"log.level: unknown log level",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(&config)

			errors := config.Validate()
			assert.Len(t, errors, len(tt.errorMessages))
			for i, msg := range tt.errorMessages {
				assert.Contains(t, errors[i].Error(), msg)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvURL, "http://env-mayan:8000")
	t.Setenv(EnvUsername, "env-user")
	t.Setenv(EnvPassword, "env-pass")
	t.Setenv(EnvMediaRoot, "/srv/media")
	t.Setenv(EnvLogLevel, "debug")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-mayan:8000", config.Server.URL)
	assert.Equal(t, "env-user", config.Server.Username)
	assert.Equal(t, "env-pass", config.Server.Password)
	assert.Equal(t, "/srv/media", config.Storage.MediaRoot)
	assert.Equal(t, "debug", config.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	const fresh = "EDMS_DEDUPE_TEST_FRESH"
	const preset = "EDMS_DEDUPE_TEST_PRESET"

	os.Unsetenv(fresh)
	t.Cleanup(func() { os.Unsetenv(fresh) })
	t.Setenv(preset, "from-environment")

	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envPath, []byte(fresh+"=from-file\n"+preset+"=from-file\n"), 0644))

	require.NoError(t, loadDotEnv(envPath))

	assert.Equal(t, "from-file", os.Getenv(fresh))
	assert.Equal(t, "from-environment", os.Getenv(preset))
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestLoadConfigMalformedDotEnv(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BAD-KEY=value\n"), 0644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	config, err := LoadConfig("")
	assert.Nil(t, config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading .env")
}
