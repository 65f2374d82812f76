package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/acrbridge/domain/entities"
	"github.com/satriahrh/acrbridge/domain/repositories"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// HistoryService records recognition results delivered to devices and serves
// them back per device.
type HistoryService struct {
	repo   repositories.RecognitionRepository
	parser repositories.ResultParser
	logger *zap.Logger
}

// NewHistoryService creates a new history service
func NewHistoryService(
	repo repositories.RecognitionRepository,
	parser repositories.ResultParser,
	logger *zap.Logger,
) *HistoryService {
	return &HistoryService{
		repo:   repo,
		parser: parser,
		logger: logger,
	}
}

// Record stores one vendor payload. A payload that cannot be summarised is
// still stored with an empty summary.
func (s *HistoryService) Record(ctx context.Context, deviceID, sessionID string, source entities.RecognitionSource, payload string) error {
	if deviceID == "" {
		return errors.New("device ID cannot be empty")
	}

	recognition := entities.NewRecognition(deviceID, sessionID, source, payload)
	if s.parser != nil {
		summary, err := s.parser(payload)
		if err != nil {
			s.logger.Warn("Failed to parse recognition payload",
				zap.String("deviceID", deviceID),
				zap.String("sessionID", sessionID),
				zap.Error(err))
		} else {
			recognition.Summary = summary
		}
	}

	if err := s.repo.Save(ctx, recognition); err != nil {
		return fmt.Errorf("failed to save recognition: %w", err)
	}

	s.logger.Info("Recognition recorded",
		zap.String("deviceID", deviceID),
		zap.String("sessionID", sessionID),
		zap.String("source", string(source)),
		zap.Int("statusCode", recognition.Summary.StatusCode),
		zap.Bool("matched", recognition.Matched()),
		zap.String("title", recognition.Summary.Title))
	return nil
}

// List returns the newest recognitions of a device. The limit is clamped to
// MaxHistoryLimit and defaults to DefaultHistoryLimit.
func (s *HistoryService) List(ctx context.Context, deviceID string, limit int) ([]*entities.Recognition, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	recognitions, err := s.repo.ListByDeviceID(ctx, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recognitions: %w", err)
	}
	return recognitions, nil
}
