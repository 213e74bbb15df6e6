package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	knownAlgorithms = []string{"md5", "sha1", "sha256"}
	knownLogLevels  = []string{"trace", "debug", "info", "warn", "error"}
)

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate server config
	if c.Server.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "server.url",
			Message: "server URL is required",
		})
	} else if u, err := url.Parse(c.Server.URL); err != nil || u.Host == "" ||
		(u.Scheme != "http" && u.Scheme != "https") {
		errors = append(errors, ValidationError{
			Field:   "server.url",
			Message: fmt.Sprintf("invalid server URL: %s", c.Server.URL),
		})
	}

	if c.Server.Username == "" {
		errors = append(errors, ValidationError{
			Field:   "server.username",
			Message: "username is required",
		})
	}

	if c.Server.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.timeout",
			Message: "timeout must be positive",
		})
	}

	if c.Server.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	// Validate storage config
	if c.Storage.MediaRoot == "" {
		errors = append(errors, ValidationError{
			Field:   "storage.media_root",
			Message: "media root is required",
		})
	} else if info, err := os.Stat(c.Storage.MediaRoot); err != nil {
		errors = append(errors, ValidationError{
			Field:   "storage.media_root",
			Message: fmt.Sprintf("media root is not accessible: %v", err),
		})
	} else if !info.IsDir() {
		errors = append(errors, ValidationError{
			Field:   "storage.media_root",
			Message: "media root must be a directory",
		})
	}

	if !contains(knownAlgorithms, strings.ToLower(c.Hashing.Algorithm)) {
		errors = append(errors, ValidationError{
			Field:   "hashing.algorithm",
			Message: fmt.Sprintf("unsupported algorithm %q (want one of %s)", c.Hashing.Algorithm, strings.Join(knownAlgorithms, ", ")),
		})
	}

	if !contains(knownLogLevels, strings.ToLower(c.Log.Level)) {
		errors = append(errors, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("unknown log level %q", c.Log.Level),
		})
	}

	return errors
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
