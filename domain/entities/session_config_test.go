package entities

import (
	"testing"
	"time"
)

func TestNewSessionConfigDefaults(t *testing.T) {
	cfg := NewSessionConfig("key", "secret", "identify-eu-west-1.acrcloud.com")

	if cfg.Protocol != ProtocolHTTPS {
		t.Errorf("Expected protocol %s, got %s", ProtocolHTTPS, cfg.Protocol)
	}
	if cfg.SampleRate != 8000 {
		t.Errorf("Expected sample rate 8000, got %d", cfg.SampleRate)
	}
	if cfg.Channels != 1 {
		t.Errorf("Expected 1 channel, got %d", cfg.Channels)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("Expected request timeout 10s, got %s", cfg.RequestTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid, got %v", err)
	}
}

func TestSessionConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *SessionConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *SessionConfig) {}},
		{name: "missing access key", mutate: func(c *SessionConfig) { c.AccessKey = "" }, wantErr: true},
		{name: "missing access secret", mutate: func(c *SessionConfig) { c.AccessSecret = "" }, wantErr: true},
		{name: "missing host", mutate: func(c *SessionConfig) { c.Host = "" }, wantErr: true},
		{name: "unknown protocol", mutate: func(c *SessionConfig) { c.Protocol = "ftp" }, wantErr: true},
		{name: "zero sample rate", mutate: func(c *SessionConfig) { c.SampleRate = 0 }, wantErr: true},
		{name: "negative channels", mutate: func(c *SessionConfig) { c.Channels = -1 }, wantErr: true},
		{name: "too many channels", mutate: func(c *SessionConfig) { c.Channels = MaxChannels + 1 }, wantErr: true},
		{name: "max channels", mutate: func(c *SessionConfig) { c.Channels = MaxChannels }},
		{name: "sample rate too high", mutate: func(c *SessionConfig) { c.SampleRate = MaxSampleRate + 1 }, wantErr: true},
		{name: "zero timeout", mutate: func(c *SessionConfig) { c.RequestTimeout = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewSessionConfig("key", "secret", "example.com")
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAudioFormat(t *testing.T) {
	tests := []struct {
		sampleRate, channels int
		wantErr              bool
	}{
		{16000, 2, false},
		{8000, 1, false},
		{-8000, 0, true},
		{16000, 0, true},
		{0, 2, true},
		{16000, 70000, true},
	}

	for _, tt := range tests {
		err := ValidateAudioFormat(tt.sampleRate, tt.channels)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateAudioFormat(%d, %d) error = %v, wantErr %v", tt.sampleRate, tt.channels, err, tt.wantErr)
		}
	}
}

func TestParseProtocol(t *testing.T) {
	tests := map[string]Protocol{
		"http":   ProtocolHTTP,
		"HTTPS":  ProtocolHTTPS,
		"":       ProtocolHTTPS,
		" Http ": ProtocolHTTP,
	}
	for input, want := range tests {
		got, err := ParseProtocol(input)
		if err != nil {
			t.Errorf("ParseProtocol(%q) returned error %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseProtocol(%q) = %s, want %s", input, got, want)
		}
	}

	if _, err := ParseProtocol("ws"); err == nil {
		t.Error("Expected error for unsupported protocol")
	}
}

func TestSessionConfigBaseURL(t *testing.T) {
	cfg := NewSessionConfig("key", "secret", "example.com/")
	if got := cfg.BaseURL(); got != "https://example.com" {
		t.Errorf("Expected https://example.com, got %s", got)
	}

	cfg.Protocol = ProtocolHTTP
	if got := cfg.BaseURL(); got != "http://example.com" {
		t.Errorf("Expected http://example.com, got %s", got)
	}

	cfg.Host = "http://127.0.0.1:9000"
	if got := cfg.BaseURL(); got != "http://127.0.0.1:9000" {
		t.Errorf("Expected host with scheme to be kept, got %s", got)
	}

	if got := cfg.BytesPerSecond(); got != 16000 {
		t.Errorf("Expected 16000 bytes per second, got %d", got)
	}
}

func TestRecognitionValidate(t *testing.T) {
	rec := NewRecognition("device-1", "session-1", RecognitionSourceListen, `{"status":{"code":0}}`)
	if rec.ID == "" {
		t.Fatal("Expected generated ID")
	}
	if err := rec.Validate(); err != nil {
		t.Errorf("Expected valid recognition, got %v", err)
	}

	rec.Source = "unknown"
	if err := rec.Validate(); err == nil {
		t.Error("Expected error for unknown source")
	}

	rec.Source = RecognitionSourceFingerprint
	rec.DeviceID = ""
	if err := rec.Validate(); err == nil {
		t.Error("Expected error for missing device ID")
	}
}

func TestRecognitionMatched(t *testing.T) {
	rec := NewRecognition("device-1", "session-1", RecognitionSourceListen, "{}")
	rec.Summary = RecognitionSummary{StatusCode: 1001, StatusMessage: "No result"}
	if rec.Matched() {
		t.Error("No-result recognition should not be matched")
	}

	rec.Summary = RecognitionSummary{StatusCode: 0, Title: "Hey Jude"}
	if !rec.Matched() {
		t.Error("Successful recognition with a title should be matched")
	}
}
