package config

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	DefaultPort                 = "8080"
	DefaultLogLevel             = "info"
	DefaultTokenTTL             = 24 * time.Hour
	DefaultRecognizer           = RecognizerACRCloud
	DefaultRecognizeInterval    = 4 * time.Second
	DefaultMaxRecordDuration    = 12 * time.Second
	DefaultHistoryBackend       = HistoryMemory
	DefaultHistoryRetention     = 30 * 24 * time.Hour
	DefaultHistoryCleanupPeriod = time.Hour
	DefaultMongoDatabase        = "acrbridge"
)

// Recognizer backends
const (
	RecognizerACRCloud = "acrcloud"
	RecognizerMock     = "mock"
)

// History backends
const (
	HistoryMemory = "memory"
	HistoryMongo  = "mongo"
	HistoryNone   = "none"
)

// Config is the server bootstrap configuration
type Config struct {
	Port                 string         `yaml:"port"`
	LogLevel             string         `yaml:"log_level"`
	JWTSecret            string         `yaml:"jwt_secret"`
	TokenTTL             time.Duration  `yaml:"token_ttl"`
	RequireMicPermission *bool          `yaml:"require_mic_permission"`
	Recognizer           string         `yaml:"recognizer"`
	ACRCloud             ACRCloudConfig `yaml:"acrcloud"`
	History              HistoryConfig  `yaml:"history"`
	Mongo                MongoConfig    `yaml:"mongo"`
	Devices              []DeviceConfig `yaml:"devices"`
}

// ACRCloudConfig tunes the vendor adapter
type ACRCloudConfig struct {
	// Extractor is the fingerprint extractor argv, with {input} and {output}
	// placeholders.
	Extractor         []string      `yaml:"extractor"`
	RecognizeInterval time.Duration `yaml:"recognize_interval"`
	MaxRecordDuration time.Duration `yaml:"max_record_duration"`
}

// HistoryConfig selects where delivered results are kept
type HistoryConfig struct {
	Backend         string        `yaml:"backend"`
	Retention       time.Duration `yaml:"retention"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// DeviceConfig seeds the device registry
type DeviceConfig struct {
	SerialNumber string `yaml:"serial_number"`
	Secret       string `yaml:"secret"`
	Model        string `yaml:"model"`
}

// MicPermissionRequired reports whether setUp waits for a microphone grant
func (c Config) MicPermissionRequired() bool {
	return c.RequireMicPermission == nil || *c.RequireMicPermission
}

// Validate applies defaults, checks required fields, and rejects out-of-range
// values.
func (c *Config) Validate() error {
	if c.Port == "" {
		c.Port = DefaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: invalid log level %q", c.LogLevel)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("config: jwt secret is required")
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = DefaultTokenTTL
	}
	if c.TokenTTL < 0 {
		return fmt.Errorf("config: token ttl must be positive, got %s", c.TokenTTL)
	}

	if c.Recognizer == "" {
		c.Recognizer = DefaultRecognizer
	}
	switch c.Recognizer {
	case RecognizerACRCloud, RecognizerMock:
	default:
		return fmt.Errorf("config: unknown recognizer %q", c.Recognizer)
	}
	if c.ACRCloud.RecognizeInterval == 0 {
		c.ACRCloud.RecognizeInterval = DefaultRecognizeInterval
	}
	if c.ACRCloud.MaxRecordDuration == 0 {
		c.ACRCloud.MaxRecordDuration = DefaultMaxRecordDuration
	}
	if c.ACRCloud.RecognizeInterval < 0 || c.ACRCloud.MaxRecordDuration < 0 {
		return fmt.Errorf("config: acrcloud durations must be positive")
	}
	if c.ACRCloud.MaxRecordDuration < c.ACRCloud.RecognizeInterval {
		return fmt.Errorf("config: max record duration %s is shorter than recognize interval %s",
			c.ACRCloud.MaxRecordDuration, c.ACRCloud.RecognizeInterval)
	}

	if c.History.Backend == "" {
		c.History.Backend = DefaultHistoryBackend
	}
	switch c.History.Backend {
	case HistoryMemory, HistoryNone:
	case HistoryMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("config: mongo uri is required for the mongo history backend")
		}
	default:
		return fmt.Errorf("config: unknown history backend %q", c.History.Backend)
	}
	if c.History.Retention == 0 {
		c.History.Retention = DefaultHistoryRetention
	}
	if c.History.CleanupInterval == 0 {
		c.History.CleanupInterval = DefaultHistoryCleanupPeriod
	}
	if c.History.Retention < 0 || c.History.CleanupInterval < 0 {
		return fmt.Errorf("config: history durations must be positive")
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = DefaultMongoDatabase
	}

	for i, device := range c.Devices {
		if device.SerialNumber == "" || device.Secret == "" {
			return fmt.Errorf("config: device %d needs a serial number and a secret", i)
		}
	}
	return nil
}
