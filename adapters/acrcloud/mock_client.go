package acrcloud

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/acrbridge/domain/entities"
	"github.com/satriahrh/acrbridge/domain/repositories"
)

// MockResultPayload is the canned match returned by the mock client
const MockResultPayload = `{"status":{"msg":"Success","code":0,"version":"1.0"},"metadata":{"music":[{"title":"Mock Song","acrid":"mock-acrid","artists":[{"name":"Mock Artist"}],"album":{"name":"Mock Album"}}]}}`

// MockFactory builds MockClients and keeps track of them for inspection
type MockFactory struct {
	logger *zap.Logger
	// ResultAfter is the amount of recorded audio after which a client emits
	// MockResultPayload. Zero disables automatic results.
	ResultAfter int

	mu      sync.Mutex
	clients []*MockClient
}

// Ensure MockFactory implements the RecognitionClientFactory interface
var _ repositories.RecognitionClientFactory = (*MockFactory)(nil)

// NewMockFactory creates a mock factory
func NewMockFactory(logger *zap.Logger) *MockFactory {
	return &MockFactory{logger: logger}
}

// NewClient implements repositories.RecognitionClientFactory
func (f *MockFactory) NewClient(config entities.SessionConfig, listener repositories.RecognitionListener) (repositories.RecognitionClient, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	f.logger.Info("Creating mock recognition client",
		zap.String("host", config.Host),
		zap.Int("sampleRate", config.SampleRate),
		zap.Int("channels", config.Channels))

	client := &MockClient{
		config:      config,
		listener:    listener,
		logger:      f.logger,
		resultAfter: f.ResultAfter,
	}

	f.mu.Lock()
	f.clients = append(f.clients, client)
	f.mu.Unlock()

	return client, nil
}

// LastClient returns the most recently created client, or nil
func (f *MockFactory) LastClient() *MockClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clients) == 0 {
		return nil
	}
	return f.clients[len(f.clients)-1]
}

// Clients returns every client created so far
func (f *MockFactory) Clients() []*MockClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*MockClient(nil), f.clients...)
}

// MockClient is a placeholder recognition client for development and tests
type MockClient struct {
	config      entities.SessionConfig
	listener    repositories.RecognitionListener
	logger      *zap.Logger
	resultAfter int

	mu        sync.Mutex
	recording bool
	closed    bool
	recorded  int
	starts    int
	stops     int
}

// StartRecording implements repositories.RecognitionClient
func (m *MockClient) StartRecording(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.recording {
		return ErrAlreadyRecording
	}
	m.recording = true
	m.recorded = 0
	m.starts++
	m.logger.Info("Mock recording started")
	return nil
}

// StopRecording implements repositories.RecognitionClient
func (m *MockClient) StopRecording() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recording {
		m.recording = false
		m.stops++
	}
}

// WriteAudio implements repositories.RecognitionClient
func (m *MockClient) WriteAudio(pcm []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if !m.recording {
		m.mu.Unlock()
		return nil
	}
	m.recorded += len(pcm)
	emit := m.resultAfter > 0 && m.recorded >= m.resultAfter
	if emit {
		m.recording = false
	}
	m.mu.Unlock()

	m.listener.OnVolumeChanged(Volume(pcm))
	if emit {
		go m.listener.OnResult(MockResultPayload)
	}
	return nil
}

// RecognizeFingerprint implements repositories.RecognitionClient
func (m *MockClient) RecognizeFingerprint(ctx context.Context, fingerprint []byte) (string, error) {
	if m.isClosed() {
		return "", ErrClosed
	}
	if len(fingerprint) == 0 {
		return errorPayload(StatusNoResult, "No result"), nil
	}
	return MockResultPayload, nil
}

// Close implements repositories.RecognitionClient
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recording = false
	m.closed = true
	return nil
}

// EmitResult simulates the vendor delivering a result from its own goroutine
func (m *MockClient) EmitResult(payload string) {
	m.listener.OnResult(payload)
}

// EmitVolume simulates a vendor volume callback
func (m *MockClient) EmitVolume(volume float64) {
	m.listener.OnVolumeChanged(volume)
}

// Recording reports whether the client is recording
func (m *MockClient) Recording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recording
}

// Closed reports whether Close was called
func (m *MockClient) Closed() bool {
	return m.isClosed()
}

// Config returns the config the client was built with
func (m *MockClient) Config() entities.SessionConfig {
	return m.config
}

// Counts returns how many times recording was started and stopped
func (m *MockClient) Counts() (starts, stops int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts, m.stops
}

func (m *MockClient) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockFingerprinter derives a deterministic pseudo fingerprint from the PCM
type MockFingerprinter struct{}

// Ensure MockFingerprinter implements the Fingerprinter interface
var _ repositories.Fingerprinter = MockFingerprinter{}

// CreateFingerprint implements repositories.Fingerprinter
func (MockFingerprinter) CreateFingerprint(ctx context.Context, pcm []byte, sampleRate, channels int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, errors.New("mock: empty pcm data")
	}
	h := sha256.New()
	h.Write(pcm)
	binary.Write(h, binary.LittleEndian, int32(sampleRate))
	binary.Write(h, binary.LittleEndian, int32(channels))
	return h.Sum(nil), nil
}
