package repositories

import (
	"context"

	"github.com/satriahrh/acrbridge/domain/entities"
)

// RecognitionListener receives asynchronous callbacks from a recognition
// client. Implementations must tolerate calls from any goroutine.
type RecognitionListener interface {
	OnResult(result string)
	OnVolumeChanged(volume float64)
}

// RecognitionClient abstracts the vendor recognition SDK
type RecognitionClient interface {
	// StartRecording begins capturing the audio written through WriteAudio and
	// recognizing it in the background. The result arrives via the listener.
	StartRecording(ctx context.Context) error
	// StopRecording is idempotent
	StopRecording()
	// WriteAudio feeds 16-bit little-endian PCM captured by the host.
	// Audio written while not recording is dropped.
	WriteAudio(pcm []byte) error
	// RecognizeFingerprint sends a fingerprint to the recognition backend and
	// returns the vendor payload unmodified.
	RecognizeFingerprint(ctx context.Context, fingerprint []byte) (string, error)
	Close() error
}

// RecognitionClientFactory builds a client for one session config
type RecognitionClientFactory interface {
	NewClient(config entities.SessionConfig, listener RecognitionListener) (RecognitionClient, error)
}

// Fingerprinter creates vendor fingerprints from raw PCM
type Fingerprinter interface {
	CreateFingerprint(ctx context.Context, pcm []byte, sampleRate, channels int) ([]byte, error)
}

// ResultParser extracts the indexable summary of a vendor payload
type ResultParser func(payload string) (entities.RecognitionSummary, error)
