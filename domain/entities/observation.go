package entities

import "time"

// ObservationValue holds the classifier verdict for a recording. A nil
// Classification after ClassifiedAt is set means the classifier ran but
// found no confident species match; before that it simply means "not yet
// classified".
type ObservationValue struct {
	Classification *string `json:"classification" bson:"classification"`
	IsRedlisted    *bool   `json:"is_redlisted" bson:"is_redlisted"`
}

// Observation is the durable record for one recording event, keyed by the
// recording's file id. It is created pending on the first frame and mutated
// twice more: artifact path on reassembly, value on classification.
type Observation struct {
	ID           string           `json:"id" bson:"_id"`
	DeviceID     string           `json:"imsi" bson:"imsi"`
	Value        ObservationValue `json:"value" bson:"value"`
	Timestamp    time.Time        `json:"timestamp" bson:"timestamp"`
	Latitude     *float64         `json:"latitude" bson:"latitude"`
	Longitude    *float64         `json:"longitude" bson:"longitude"`
	FilePath     *string          `json:"file_path" bson:"file_path"`
	ClassifiedAt *time.Time       `json:"classified_at,omitempty" bson:"classified_at,omitempty"`
}

// NewPendingObservation builds the initial record written on a recording's
// first frame. Location is optional: unregistered devices observe without
// coordinates.
func NewPendingObservation(fileID, deviceID string, location *Location) *Observation {
	obs := &Observation{
		ID:        fileID,
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
	}
	if location != nil {
		lat, lon := location.Latitude, location.Longitude
		obs.Latitude = &lat
		obs.Longitude = &lon
	}
	return obs
}

// ClassificationResult is what the external classifier capability returns.
// A nil Label is a valid terminal answer: no confident match.
type ClassificationResult struct {
	Label       *string `json:"classification"`
	IsRedlisted *bool   `json:"is_redlisted"`
}
