package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/acrbridge/domain/entities"
	"github.com/satriahrh/acrbridge/domain/repositories"
)

var (
	ErrDeviceNotFound     = errors.New("device not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateSerial    = errors.New("device with this serial number already exists")
)

// MemoryDeviceRepository is an in-memory implementation of DeviceRepository.
// Devices are seeded at startup with Register.
type MemoryDeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]*entities.Device // id -> device
	serials map[string]*entities.Device // serial_number -> device
	secrets map[string]string           // serial_number -> secret
}

// Ensure MemoryDeviceRepository implements the DeviceRepository interface
var _ repositories.DeviceRepository = (*MemoryDeviceRepository)(nil)

// NewMemoryDeviceRepository creates an empty device repository
func NewMemoryDeviceRepository() *MemoryDeviceRepository {
	return &MemoryDeviceRepository{
		devices: make(map[string]*entities.Device),
		serials: make(map[string]*entities.Device),
		secrets: make(map[string]string),
	}
}

// Register creates a device together with its authentication secret
func (m *MemoryDeviceRepository) Register(ctx context.Context, serialNumber, secret, model string) (*entities.Device, error) {
	if secret == "" {
		return nil, errors.New("secret cannot be empty")
	}
	if model == "" {
		model = "generic"
	}

	device := &entities.Device{SerialNumber: serialNumber, Model: model}
	if err := m.Create(ctx, device); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.secrets[serialNumber] = secret
	m.mu.Unlock()
	return device, nil
}

// ValidateDevice validates device credentials (serial number + secret)
func (m *MemoryDeviceRepository) ValidateDevice(serialNumber, secret string) (*entities.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	storedSecret, exists := m.secrets[serialNumber]
	if !exists {
		return nil, ErrDeviceNotFound
	}
	if storedSecret != secret {
		return nil, ErrInvalidCredentials
	}

	device, exists := m.serials[serialNumber]
	if !exists {
		return nil, ErrDeviceNotFound
	}
	deviceCopy := *device
	return &deviceCopy, nil
}

// Create implements DeviceRepository interface
func (m *MemoryDeviceRepository) Create(ctx context.Context, device *entities.Device) error {
	if device == nil {
		return errors.New("device cannot be nil")
	}
	if err := device.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.serials[device.SerialNumber]; exists {
		return ErrDuplicateSerial
	}
	if device.ID == "" {
		device.ID = uuid.New().String()
	}

	now := time.Now()
	device.CreatedAt = now
	device.UpdatedAt = now

	deviceCopy := *device
	m.devices[device.ID] = &deviceCopy
	m.serials[device.SerialNumber] = &deviceCopy
	return nil
}

// GetByID implements DeviceRepository interface
func (m *MemoryDeviceRepository) GetByID(ctx context.Context, id string) (*entities.Device, error) {
	if id == "" {
		return nil, errors.New("device ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	device, exists := m.devices[id]
	if !exists {
		return nil, ErrDeviceNotFound
	}
	// Return a copy to prevent external modifications
	deviceCopy := *device
	return &deviceCopy, nil
}

// GetBySerialNumber implements DeviceRepository interface
func (m *MemoryDeviceRepository) GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Device, error) {
	if serialNumber == "" {
		return nil, errors.New("serial number cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	device, exists := m.serials[serialNumber]
	if !exists {
		return nil, ErrDeviceNotFound
	}
	deviceCopy := *device
	return &deviceCopy, nil
}
