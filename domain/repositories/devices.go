package repositories

import (
	"context"

	"github.com/avisense/birdwatch/domain/entities"
)

// DeviceRepository is the device registry capability. The ingestion core
// only reads from it, to enrich observations with the sensor's deployment
// location.
type DeviceRepository interface {
	// GetByIMSI returns the device registered under imsi, or (nil, nil)
	// when the device is unknown. Unknown devices are not an error: their
	// observations simply carry no coordinates.
	GetByIMSI(ctx context.Context, imsi string) (*entities.Device, error)
	Create(ctx context.Context, device *entities.Device) error
	List(ctx context.Context) ([]*entities.Device, error)
}
