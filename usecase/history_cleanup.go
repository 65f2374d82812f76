package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/acrbridge/domain/repositories"
)

// HistoryCleanupService periodically deletes recognitions past retention
type HistoryCleanupService struct {
	repo      repositories.RecognitionRepository
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewHistoryCleanupService creates a new cleanup service
func NewHistoryCleanupService(repo repositories.RecognitionRepository, retention, interval time.Duration, logger *zap.Logger) *HistoryCleanupService {
	return &HistoryCleanupService{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *HistoryCleanupService) Start() {
	s.wg.Add(1)
	go s.cleanupLoop()
	s.logger.Info("History cleanup service started",
		zap.Duration("retention", s.retention),
		zap.Duration("interval", s.interval))
}

// Stop gracefully stops the cleanup service
func (s *HistoryCleanupService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	s.logger.Info("History cleanup service stopped")
}

func (s *HistoryCleanupService) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunCleanup()
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunCleanup()
		}
	}
}

// RunCleanup deletes everything older than the retention window once
func (s *HistoryCleanupService) RunCleanup() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := s.now().Add(-s.retention)
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to delete expired recognitions", zap.Error(err))
		return 0
	}

	s.logger.Debug("History cleanup completed", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	return deleted
}
