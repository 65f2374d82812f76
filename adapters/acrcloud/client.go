package acrcloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/acrbridge/domain/entities"
	"github.com/satriahrh/acrbridge/domain/repositories"
)

const (
	defaultRecognizeInterval = 4 * time.Second
	defaultMaxRecordDuration = 12 * time.Second
	maxResponseBytes         = 1 << 20
)

var (
	// ErrAlreadyRecording is returned by StartRecording on a recording client
	ErrAlreadyRecording = errors.New("acrcloud: already recording")
	// ErrClosed is returned by operations on a closed client
	ErrClosed = errors.New("acrcloud: client closed")
)

// Options tunes the recording behaviour of clients built by a Factory.
// Zero values fall back to the defaults.
type Options struct {
	// RecognizeInterval is the amount of new audio collected between two
	// identify requests while recording.
	RecognizeInterval time.Duration
	// MaxRecordDuration caps the audio window sent per request. Once this much
	// audio has been recorded, the next response is delivered even if empty.
	MaxRecordDuration time.Duration
	// HTTPClient overrides the client used for identify requests
	HTTPClient *http.Client
}

func (o Options) withDefaults() Options {
	if o.RecognizeInterval <= 0 {
		o.RecognizeInterval = defaultRecognizeInterval
	}
	if o.MaxRecordDuration <= 0 {
		o.MaxRecordDuration = defaultMaxRecordDuration
	}
	if o.MaxRecordDuration < o.RecognizeInterval {
		o.MaxRecordDuration = o.RecognizeInterval
	}
	return o
}

// Client implements RecognitionClient against the ACRCloud identify API.
// Recorded audio comes from the host through WriteAudio.
type Client struct {
	config     entities.SessionConfig
	options    Options
	httpClient *http.Client
	listener   repositories.RecognitionListener
	logger     *zap.Logger
	now        func() time.Time

	mu         sync.Mutex
	closed     bool
	recording  bool
	generation uint64
	buffer     []byte
	sinceLast  int
	recorded   int
	inFlight   bool
	recCtx     context.Context
	cancel     context.CancelFunc
}

// Ensure Client implements the RecognitionClient interface
var _ repositories.RecognitionClient = (*Client)(nil)

// NewClient creates a client for one session config
func NewClient(config entities.SessionConfig, listener repositories.RecognitionListener, options Options, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	if listener == nil {
		return nil, errors.New("listener is required")
	}

	options = options.withDefaults()
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.RequestTimeout}
	}

	return &Client{
		config:     config,
		options:    options,
		httpClient: httpClient,
		listener:   listener,
		logger:     logger.With(zap.String("host", config.Host)),
		now:        time.Now,
	}, nil
}

// Identify uploads a sample and returns the raw response body
func (c *Client) Identify(ctx context.Context, sample []byte, dataType DataType) (string, error) {
	timestamp := c.now().Unix()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fields := map[string]string{
		"access_key":        c.config.AccessKey,
		"data_type":         string(dataType),
		"signature_version": signatureVersion,
		"signature":         Sign(c.config.AccessKey, c.config.AccessSecret, dataType, timestamp),
		"sample_bytes":      strconv.Itoa(len(sample)),
		"timestamp":         strconv.FormatInt(timestamp, 10),
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return "", fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}
	part, err := writer.CreateFormFile("sample", "sample")
	if err != nil {
		return "", fmt.Errorf("failed to create sample part: %w", err)
	}
	if _, err := part.Write(sample); err != nil {
		return "", fmt.Errorf("failed to write sample: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL()+identifyPath, body)
	if err != nil {
		return "", fmt.Errorf("failed to create identify request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("identify request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read identify response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("identify returned status %d: %s", resp.StatusCode, string(payload))
	}

	return string(payload), nil
}

// RecognizeFingerprint implements repositories.RecognitionClient. Transport
// failures are returned as a vendor status payload, not as an error.
func (c *Client) RecognizeFingerprint(ctx context.Context, fingerprint []byte) (string, error) {
	if c.isClosed() {
		return "", ErrClosed
	}

	payload, err := c.Identify(ctx, fingerprint, DataTypeFingerprint)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.Warn("Fingerprint identify failed", zap.Error(err))
		return errorPayload(StatusHTTPError, "HTTP Error: "+err.Error()), nil
	}
	return payload, nil
}

// StartRecording implements repositories.RecognitionClient
func (c *Client) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.recording {
		return ErrAlreadyRecording
	}

	recCtx, cancel := context.WithCancel(ctx)
	c.generation++
	c.recording = true
	c.buffer = c.buffer[:0]
	c.sinceLast = 0
	c.recorded = 0
	c.inFlight = false
	c.recCtx = recCtx
	c.cancel = cancel

	c.logger.Debug("Recording started", zap.Uint64("generation", c.generation))
	return nil
}

// StopRecording implements repositories.RecognitionClient
func (c *Client) StopRecording() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Client) stopLocked() {
	if !c.recording {
		return
	}
	c.recording = false
	c.generation++
	c.buffer = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.recCtx = nil
}

// WriteAudio implements repositories.RecognitionClient
func (c *Client) WriteAudio(pcm []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.recording || len(pcm) == 0 {
		c.mu.Unlock()
		return nil
	}

	maxBytes := pcmBytes(c.options.MaxRecordDuration, c.config)
	intervalBytes := pcmBytes(c.options.RecognizeInterval, c.config)

	c.buffer = append(c.buffer, pcm...)
	if len(c.buffer) > maxBytes {
		c.buffer = c.buffer[len(c.buffer)-maxBytes:]
	}
	c.recorded += len(pcm)
	c.sinceLast += len(pcm)

	var (
		window     []byte
		final      bool
		generation = c.generation
		ctx        context.Context
	)
	if c.sinceLast >= intervalBytes && !c.inFlight {
		window = make([]byte, len(c.buffer))
		copy(window, c.buffer)
		final = c.recorded >= maxBytes
		c.sinceLast = 0
		c.inFlight = true
		ctx = c.recCtx
	}
	c.mu.Unlock()

	c.listener.OnVolumeChanged(Volume(pcm))

	if window != nil {
		go c.identifyWindow(ctx, generation, window, final)
	}
	return nil
}

// identifyWindow recognizes one recorded window and decides whether the
// response ends the recording.
func (c *Client) identifyWindow(ctx context.Context, generation uint64, window []byte, final bool) {
	sample := EncodeWAV(window, c.config.SampleRate, c.config.Channels)
	payload, err := c.Identify(ctx, sample, DataTypeAudio)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("Audio identify failed", zap.Error(err))
		payload = errorPayload(StatusHTTPError, "HTTP Error: "+err.Error())
	}

	c.mu.Lock()
	if generation != c.generation || !c.recording {
		c.mu.Unlock()
		return
	}

	code := statusCode(payload)
	if code == StatusNoResult && !final {
		c.inFlight = false
		c.mu.Unlock()
		c.logger.Debug("No result yet, keep recording", zap.Int("bytes", len(window)))
		return
	}
	c.stopLocked()
	c.mu.Unlock()

	c.listener.OnResult(payload)
}

// Close implements repositories.RecognitionClient
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.closed = true
	return nil
}

// Recording reports whether audio is currently being captured
func (c *Client) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
