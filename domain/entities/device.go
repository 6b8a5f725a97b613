package entities

import (
	"errors"
	"time"
)

// Location is a device's deployment position.
type Location struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// Device represents a registered field sensor.
type Device struct {
	IMSI      string    `json:"imsi" bson:"_id"`
	Name      string    `json:"name,omitempty" bson:"name,omitempty"`
	Latitude  float64   `json:"latitude" bson:"latitude"`
	Longitude float64   `json:"longitude" bson:"longitude"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Location returns the device's position as a Location value.
func (d *Device) Location() Location {
	return Location{Latitude: d.Latitude, Longitude: d.Longitude}
}

func (d *Device) Validate() error {
	if len(d.IMSI) != 15 {
		return errors.New("imsi must be 15 digits")
	}
	for _, c := range d.IMSI {
		if c < '0' || c > '9' {
			return errors.New("imsi must be 15 digits")
		}
	}
	return nil
}
