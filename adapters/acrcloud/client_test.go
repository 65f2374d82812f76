package acrcloud

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satriahrh/acrbridge/domain/entities"
)

type recordingListener struct {
	results chan string
	volumes chan float64
}

func newRecordingListener() *recordingListener {
	return &recordingListener{
		results: make(chan string, 4),
		volumes: make(chan float64, 256),
	}
}

func (l *recordingListener) OnResult(result string) { l.results <- result }

func (l *recordingListener) OnVolumeChanged(volume float64) {
	select {
	case l.volumes <- volume:
	default:
	}
}

func testConfig(host string) entities.SessionConfig {
	cfg := entities.NewSessionConfig("test-key", "test-secret", host)
	cfg.Protocol = entities.ProtocolHTTP
	return cfg
}

func TestClient_IdentifySignsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/identify", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}

		timestamp, err := strconv.ParseInt(r.FormValue("timestamp"), 10, 64)
		assert.NoError(t, err)
		assert.Equal(t, "test-key", r.FormValue("access_key"))
		assert.Equal(t, "fingerprint", r.FormValue("data_type"))
		assert.Equal(t, "1", r.FormValue("signature_version"))
		assert.Equal(t, "3", r.FormValue("sample_bytes"))
		assert.Equal(t, Sign("test-key", "test-secret", DataTypeFingerprint, timestamp), r.FormValue("signature"))

		file, _, err := r.FormFile("sample")
		if assert.NoError(t, err) {
			sample, err := io.ReadAll(file)
			assert.NoError(t, err)
			assert.Equal(t, []byte{1, 2, 3}, sample)
		}

		w.Write([]byte(MockResultPayload))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), newRecordingListener(), Options{}, zap.NewNop())
	require.NoError(t, err)

	payload, err := client.RecognizeFingerprint(context.Background(), []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, MockResultPayload, payload)
}

func TestClient_RecognizeFingerprintEncodesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL), newRecordingListener(), Options{}, zap.NewNop())
	require.NoError(t, err)

	payload, err := client.RecognizeFingerprint(context.Background(), []byte{1})
	require.NoError(t, err)

	summary, err := ParseResult(payload)
	require.NoError(t, err)
	assert.Equal(t, StatusHTTPError, summary.StatusCode)
	assert.Contains(t, summary.StatusMessage, "HTTP Error")
}

func TestClient_RecognizeFingerprintAfterClose(t *testing.T) {
	client, err := NewClient(testConfig("example.com"), newRecordingListener(), Options{}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = client.RecognizeFingerprint(context.Background(), []byte{1})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewClient_RejectsInvalidConfig(t *testing.T) {
	_, err := NewClient(entities.SessionConfig{}, newRecordingListener(), Options{}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewClient(testConfig("example.com"), nil, Options{}, zap.NewNop())
	assert.Error(t, err)
}

func TestClient_RecordingDeliversResultAfterNoResult(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "audio", r.FormValue("data_type"))

		if requests.Add(1) == 1 {
			w.Write([]byte(errorPayload(StatusNoResult, "No result")))
			return
		}
		w.Write([]byte(MockResultPayload))
	}))
	defer server.Close()

	listener := newRecordingListener()
	client, err := NewClient(testConfig(server.URL), listener, Options{
		RecognizeInterval: 100 * time.Millisecond,
		MaxRecordDuration: time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.StartRecording(context.Background()))
	assert.ErrorIs(t, client.StartRecording(context.Background()), ErrAlreadyRecording)

	frame := make([]byte, 1600) // 100ms at 8kHz mono
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	var result string
	for result == "" {
		select {
		case result = <-listener.results:
		case <-ticker.C:
			require.NoError(t, client.WriteAudio(frame))
		case <-deadline:
			t.Fatal("Timed out waiting for recognition result")
		}
	}

	assert.Equal(t, MockResultPayload, result)
	assert.GreaterOrEqual(t, requests.Load(), int32(2))
	assert.False(t, client.Recording(), "result should stop recording")

	select {
	case v := <-listener.volumes:
		assert.Equal(t, 0.0, v)
	default:
		t.Error("Expected volume callbacks while recording")
	}
}

func TestClient_WriteAudioWhileIdleIsDropped(t *testing.T) {
	listener := newRecordingListener()
	client, err := NewClient(testConfig("example.com"), listener, Options{}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, client.WriteAudio(make([]byte, 320)))
	assert.Empty(t, listener.volumes)

	require.NoError(t, client.StartRecording(context.Background()))
	client.StopRecording()
	client.StopRecording()
	assert.False(t, client.Recording())

	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.WriteAudio(make([]byte, 320)), ErrClosed)
	assert.ErrorIs(t, client.StartRecording(context.Background()), ErrClosed)
}

func TestOptionsWithDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	assert.Equal(t, 4*time.Second, opts.RecognizeInterval)
	assert.Equal(t, 12*time.Second, opts.MaxRecordDuration)

	opts = Options{RecognizeInterval: 5 * time.Second, MaxRecordDuration: time.Second}.withDefaults()
	assert.Equal(t, 5*time.Second, opts.MaxRecordDuration)
}
