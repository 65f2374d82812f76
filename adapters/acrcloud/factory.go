package acrcloud

import (
	"go.uber.org/zap"

	"github.com/satriahrh/acrbridge/domain/entities"
	"github.com/satriahrh/acrbridge/domain/repositories"
)

// Factory builds ACRCloud clients sharing the same recording options
type Factory struct {
	options Options
	logger  *zap.Logger
}

// Ensure Factory implements the RecognitionClientFactory interface
var _ repositories.RecognitionClientFactory = (*Factory)(nil)

// NewFactory creates a client factory
func NewFactory(options Options, logger *zap.Logger) *Factory {
	return &Factory{
		options: options.withDefaults(),
		logger:  logger,
	}
}

// NewClient implements repositories.RecognitionClientFactory
func (f *Factory) NewClient(config entities.SessionConfig, listener repositories.RecognitionListener) (repositories.RecognitionClient, error) {
	return NewClient(config, listener, f.options, f.logger)
}
