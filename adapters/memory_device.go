package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avisense/birdwatch/domain/entities"
)

// MemoryDeviceRepository is an in-memory implementation of DeviceRepository.
// It backs deployments that run without MongoDB and every unit test; the
// registry is small (hundreds of sensors), so a map under an RWMutex is
// plenty.
type MemoryDeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]*entities.Device // imsi -> device
}

// NewMemoryDeviceRepository creates an empty in-memory device registry.
func NewMemoryDeviceRepository() *MemoryDeviceRepository {
	return &MemoryDeviceRepository{
		devices: make(map[string]*entities.Device),
	}
}

// GetByIMSI implements DeviceRepository. Unknown devices return (nil, nil).
func (m *MemoryDeviceRepository) GetByIMSI(ctx context.Context, imsi string) (*entities.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	device, ok := m.devices[imsi]
	if !ok {
		return nil, nil
	}
	deviceCopy := *device
	return &deviceCopy, nil
}

// Create implements DeviceRepository.
func (m *MemoryDeviceRepository) Create(ctx context.Context, device *entities.Device) error {
	if device == nil {
		return errors.New("device cannot be nil")
	}
	if err := device.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.devices[device.IMSI]; exists {
		return errors.New("device with this imsi already exists")
	}

	now := time.Now()
	device.CreatedAt = now
	device.UpdatedAt = now

	deviceCopy := *device
	m.devices[device.IMSI] = &deviceCopy
	return nil
}

// List implements DeviceRepository.
func (m *MemoryDeviceRepository) List(ctx context.Context) ([]*entities.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*entities.Device, 0, len(m.devices))
	for _, device := range m.devices {
		deviceCopy := *device
		result = append(result, &deviceCopy)
	}
	return result, nil
}
