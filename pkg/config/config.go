package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		URL       string        `yaml:"url"`
		Username  string        `yaml:"username"`
		Password  string        `yaml:"password"`
		Timeout   time.Duration `yaml:"timeout"`
		RateLimit float64       `yaml:"rate_limit"`
	} `yaml:"server"`

	Storage struct {
		MediaRoot string `yaml:"media_root"`
	} `yaml:"storage"`

	Hashing struct {
		Algorithm       string `yaml:"algorithm"`
		IsolateFailures bool   `yaml:"isolate_failures"`
	} `yaml:"hashing"`

	UI struct {
		Color    *bool `yaml:"color"`
		Progress *bool `yaml:"progress"`
	} `yaml:"ui"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Environment variables understood on top of the config file.
const (
	EnvURL       = "URL"
	EnvUsername  = "USERNAME"
	EnvPassword  = "PASSWORD"
	EnvMediaRoot = "DOCUMENT_PATH"
	EnvLogLevel  = "EDMS_LOG_LEVEL"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10.0
	DefaultAlgorithm = "md5"
	DefaultLogLevel  = "warn"
)

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/edms-dedupe/config.yaml"),
			"/etc/edms-dedupe/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

// ColorEnabled reports whether colorized output is on. Unset means on.
func (c *Config) ColorEnabled() bool {
	return c.UI.Color == nil || *c.UI.Color
}

// ProgressEnabled reports whether progress bars are drawn. Unset means on.
func (c *Config) ProgressEnabled() bool {
	return c.UI.Progress == nil || *c.UI.Progress
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

// loadDotEnv reads KEY=value pairs from path into the environment. Variables
// that are already set win over the file.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}

func applyDefaults(config *Config) {
	if config.Server.Timeout == 0 {
		config.Server.Timeout = DefaultTimeout
	}
	if config.Server.RateLimit == 0 {
		config.Server.RateLimit = DefaultRateLimit
	}
	if config.Hashing.Algorithm == "" {
		config.Hashing.Algorithm = DefaultAlgorithm
	}
	if config.Log.Level == "" {
		config.Log.Level = DefaultLogLevel
	}
}

func mergeWithEnv(config *Config) {
	if url := os.Getenv(EnvURL); url != "" {
		config.Server.URL = url
	}
	if username := os.Getenv(EnvUsername); username != "" {
		config.Server.Username = username
	}
	if password := os.Getenv(EnvPassword); password != "" {
		config.Server.Password = password
	}
	if root := os.Getenv(EnvMediaRoot); root != "" {
		config.Storage.MediaRoot = root
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		config.Log.Level = level
	}
}
