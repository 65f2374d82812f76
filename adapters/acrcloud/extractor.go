package acrcloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/acrbridge/domain/repositories"
)

// Placeholders substituted in the extractor command line
const (
	InputPlaceholder  = "{input}"
	OutputPlaceholder = "{output}"
)

var (
	// ErrExtractorNotConfigured is returned when no extractor command is set
	ErrExtractorNotConfigured = errors.New("acrcloud: fingerprint extractor not configured")
	// ErrEmptyFingerprint is returned when the extractor produced no bytes
	ErrEmptyFingerprint = errors.New("acrcloud: extractor produced an empty fingerprint")
)

// ExecFingerprinter creates fingerprints by running the vendor extraction tool
// over a temporary WAV file. The fingerprint is read from {output} when the
// tool writes it, otherwise from its stdout.
type ExecFingerprinter struct {
	command []string
	logger  *zap.Logger
}

// Ensure ExecFingerprinter implements the Fingerprinter interface
var _ repositories.Fingerprinter = (*ExecFingerprinter)(nil)

// NewExecFingerprinter creates a fingerprinter for the given argv
func NewExecFingerprinter(command []string, logger *zap.Logger) *ExecFingerprinter {
	return &ExecFingerprinter{
		command: command,
		logger:  logger,
	}
}

// CreateFingerprint implements repositories.Fingerprinter
func (f *ExecFingerprinter) CreateFingerprint(ctx context.Context, pcm []byte, sampleRate, channels int) ([]byte, error) {
	if len(f.command) == 0 {
		return nil, ErrExtractorNotConfigured
	}
	if len(pcm) == 0 {
		return nil, errors.New("acrcloud: empty pcm data")
	}
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("acrcloud: invalid audio format %d Hz x %d", sampleRate, channels)
	}

	dir, err := os.MkdirTemp("", "acrbridge-fp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "sample.wav")
	output := filepath.Join(dir, "sample.fp")
	if err := os.WriteFile(input, EncodeWAV(pcm, sampleRate, channels), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write sample: %w", err)
	}

	args := make([]string, len(f.command))
	for i, arg := range f.command {
		arg = strings.ReplaceAll(arg, InputPlaceholder, input)
		args[i] = strings.ReplaceAll(arg, OutputPlaceholder, output)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("extractor failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	fingerprint, err := os.ReadFile(output)
	if errors.Is(err, os.ErrNotExist) {
		fingerprint = stdout.Bytes()
	} else if err != nil {
		return nil, fmt.Errorf("failed to read fingerprint: %w", err)
	}
	if len(fingerprint) == 0 {
		return nil, ErrEmptyFingerprint
	}

	f.logger.Debug("Fingerprint created",
		zap.Int("pcmBytes", len(pcm)),
		zap.Int("fingerprintBytes", len(fingerprint)))
	return fingerprint, nil
}
