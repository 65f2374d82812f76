package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader loads configuration from a YAML file, .env files and environment
// variables, in increasing order of precedence. Tests can override Lookup and
// ReadFile to inject deterministic inputs.
type Loader struct {
	Lookup      func(string) (string, bool)
	ReadFile    func(string) ([]byte, error)
	DotEnvFiles []string
}

// Load assembles and validates the configuration
func (l Loader) Load() (Config, error) {
	if l.ReadFile == nil {
		l.ReadFile = os.ReadFile
	}
	lookup, err := l.lookup()
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if path, ok := lookup("CONFIG_FILE"); ok && strings.TrimSpace(path) != "" {
		if err := l.applyYAML(strings.TrimSpace(path), &cfg); err != nil {
			return Config{}, err
		}
	}

	overrideString(lookup, "PORT", &cfg.Port)
	overrideString(lookup, "LOG_LEVEL", &cfg.LogLevel)
	overrideString(lookup, "JWT_SECRET", &cfg.JWTSecret)
	overrideString(lookup, "RECOGNIZER", &cfg.Recognizer)
	overrideString(lookup, "HISTORY_BACKEND", &cfg.History.Backend)
	overrideString(lookup, "MONGODB_URI", &cfg.Mongo.URI)
	overrideString(lookup, "MONGODB_DATABASE", &cfg.Mongo.Database)

	if value, ok := lookupTrimmed(lookup, "ACRCLOUD_EXTRACTOR"); ok {
		cfg.ACRCloud.Extractor = strings.Fields(value)
	}
	if value, ok := lookupTrimmed(lookup, "REQUIRE_MIC_PERMISSION"); ok {
		required, err := strconv.ParseBool(value)
		if err != nil {
			return Config{}, fmt.Errorf("config: REQUIRE_MIC_PERMISSION: %w", err)
		}
		cfg.RequireMicPermission = &required
	}

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"TOKEN_TTL", &cfg.TokenTTL},
		{"ACRCLOUD_RECOGNIZE_INTERVAL", &cfg.ACRCloud.RecognizeInterval},
		{"ACRCLOUD_MAX_RECORD_DURATION", &cfg.ACRCloud.MaxRecordDuration},
		{"HISTORY_RETENTION", &cfg.History.Retention},
		{"HISTORY_CLEANUP_INTERVAL", &cfg.History.CleanupInterval},
	}
	for _, d := range durations {
		if err := overrideDuration(lookup, d.key, d.target); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// lookup layers the .env files under the process environment
func (l Loader) lookup() (func(string) (string, bool), error) {
	base := l.Lookup
	if base == nil {
		base = os.LookupEnv
	}

	dotenv := map[string]string{}
	for _, file := range l.DotEnvFiles {
		values, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
		for key, value := range values {
			if _, seen := dotenv[key]; !seen {
				dotenv[key] = value
			}
		}
	}

	return func(key string) (string, bool) {
		if value, ok := base(key); ok {
			return value, true
		}
		value, ok := dotenv[key]
		return value, ok
	}, nil
}

func (l Loader) applyYAML(path string, cfg *Config) error {
	raw, err := l.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return nil
}

func lookupTrimmed(lookup func(string) (string, bool), key string) (string, bool) {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookupTrimmed(lookup, key); ok {
		*target = value
	}
}

func overrideDuration(lookup func(string) (string, bool), key string, target *time.Duration) error {
	value, ok := lookupTrimmed(lookup, key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = d
	return nil
}
