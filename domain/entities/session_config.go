package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Protocol is the network protocol the recognition client talks to its host with
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
)

// Recorder defaults used when setUp does not override them.
const (
	DefaultRecorderSampleRate = 8000
	DefaultRecorderChannels   = 1
	DefaultRequestTimeout     = 10 * time.Second
)

// Bounds of a 16-bit PCM stream accepted from a host
const (
	MaxSampleRate = 192000
	MaxChannels   = 8
)

// ValidateAudioFormat checks the sample rate and channel count of host PCM
func ValidateAudioFormat(sampleRate, channels int) error {
	if sampleRate <= 0 || sampleRate > MaxSampleRate {
		return fmt.Errorf("sample rate must be between 1 and %d, got %d", MaxSampleRate, sampleRate)
	}
	if channels <= 0 || channels > MaxChannels {
		return fmt.Errorf("channels must be between 1 and %d, got %d", MaxChannels, channels)
	}
	return nil
}

// ParseProtocol converts a case-insensitive protocol name into a Protocol
func ParseProtocol(value string) (Protocol, error) {
	switch Protocol(strings.ToLower(strings.TrimSpace(value))) {
	case ProtocolHTTP:
		return ProtocolHTTP, nil
	case ProtocolHTTPS, "":
		return ProtocolHTTPS, nil
	default:
		return "", fmt.Errorf("unsupported protocol %q", value)
	}
}

// SessionConfig holds the recognition credentials and recorder settings of one
// bridge session. It is built by setUp and never mutated afterwards.
type SessionConfig struct {
	AccessKey      string        `json:"access_key"`
	AccessSecret   string        `json:"-"`
	Host           string        `json:"host"`
	Protocol       Protocol      `json:"protocol"`
	SampleRate     int           `json:"sample_rate"`
	Channels       int           `json:"channels"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// NewSessionConfig creates a config with the default recorder settings
func NewSessionConfig(accessKey, accessSecret, host string) SessionConfig {
	return SessionConfig{
		AccessKey:      accessKey,
		AccessSecret:   accessSecret,
		Host:           host,
		Protocol:       ProtocolHTTPS,
		SampleRate:     DefaultRecorderSampleRate,
		Channels:       DefaultRecorderChannels,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// Validate reports the first invalid field
func (c SessionConfig) Validate() error {
	if c.AccessKey == "" {
		return errors.New("access key is required")
	}
	if c.AccessSecret == "" {
		return errors.New("access secret is required")
	}
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Protocol != ProtocolHTTP && c.Protocol != ProtocolHTTPS {
		return fmt.Errorf("unsupported protocol %q", c.Protocol)
	}
	if err := ValidateAudioFormat(c.SampleRate, c.Channels); err != nil {
		return err
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

// BaseURL returns the scheme and host of the recognition endpoint
func (c SessionConfig) BaseURL() string {
	host := strings.TrimRight(c.Host, "/")
	if strings.Contains(host, "://") {
		return host
	}
	return string(c.Protocol) + "://" + host
}

// BytesPerSecond is the size of one second of 16-bit PCM at this config
func (c SessionConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * 2
}
