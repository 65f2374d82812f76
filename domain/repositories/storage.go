package repositories

import (
	"context"
	"time"

	"github.com/satriahrh/acrbridge/domain/entities"
)

// DeviceRepository defines data access methods for devices
type DeviceRepository interface {
	Create(ctx context.Context, device *entities.Device) error
	GetByID(ctx context.Context, id string) (*entities.Device, error)
	GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Device, error)
	// ValidateDevice validates device credentials for authentication
	ValidateDevice(serialNumber, secret string) (*entities.Device, error)
}

// RecognitionRepository stores recognition results delivered to devices
type RecognitionRepository interface {
	Save(ctx context.Context, recognition *entities.Recognition) error
	// ListByDeviceID returns the newest recognitions first
	ListByDeviceID(ctx context.Context, deviceID string, limit int) ([]*entities.Recognition, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
