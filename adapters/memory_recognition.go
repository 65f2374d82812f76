package adapters

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/satriahrh/acrbridge/domain/entities"
	"github.com/satriahrh/acrbridge/domain/repositories"
)

// MemoryRecognitionRepository keeps recognition history in process memory
type MemoryRecognitionRepository struct {
	mu       sync.RWMutex
	byDevice map[string][]*entities.Recognition
}

// Ensure MemoryRecognitionRepository implements the RecognitionRepository interface
var _ repositories.RecognitionRepository = (*MemoryRecognitionRepository)(nil)

// NewMemoryRecognitionRepository creates an empty history store
func NewMemoryRecognitionRepository() *MemoryRecognitionRepository {
	return &MemoryRecognitionRepository{
		byDevice: make(map[string][]*entities.Recognition),
	}
}

// Save implements RecognitionRepository interface
func (m *MemoryRecognitionRepository) Save(ctx context.Context, recognition *entities.Recognition) error {
	if recognition == nil {
		return errors.New("recognition cannot be nil")
	}
	if err := recognition.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *recognition
	m.byDevice[recognition.DeviceID] = append(m.byDevice[recognition.DeviceID], &stored)
	return nil
}

// ListByDeviceID implements RecognitionRepository interface
func (m *MemoryRecognitionRepository) ListByDeviceID(ctx context.Context, deviceID string, limit int) ([]*entities.Recognition, error) {
	if deviceID == "" {
		return nil, errors.New("device ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.byDevice[deviceID]
	result := make([]*entities.Recognition, 0, len(stored))
	for _, recognition := range stored {
		recognitionCopy := *recognition
		result = append(result, &recognitionCopy)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// DeleteOlderThan implements RecognitionRepository interface
func (m *MemoryRecognitionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for deviceID, stored := range m.byDevice {
		kept := stored[:0]
		for _, recognition := range stored {
			if recognition.CreatedAt.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, recognition)
		}
		if len(kept) == 0 {
			delete(m.byDevice, deviceID)
			continue
		}
		m.byDevice[deviceID] = kept
	}
	return deleted, nil
}
