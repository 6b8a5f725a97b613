package websocket

import "time"

// EventType defines the type of event pushed to dashboard clients
type EventType string

// Supported event types
const (
	EventObservationCreated    EventType = "observation_created"
	EventArtifactReassembled   EventType = "artifact_reassembled"
	EventObservationClassified EventType = "observation_classified"
	EventUploadIncomplete      EventType = "upload_incomplete"
)

// Event is one observation lifecycle notification, serialized as JSON on
// the feed.
type Event struct {
	Type           EventType `json:"type"`
	FileID         string    `json:"file_id"`
	DeviceID       string    `json:"imsi,omitempty"`
	FilePath       string    `json:"file_path,omitempty"`
	Classification *string   `json:"classification,omitempty"`
	Timestamp      string    `json:"timestamp"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(eventType EventType, fileID, deviceID string) Event {
	return Event{
		Type:      eventType,
		FileID:    fileID,
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
