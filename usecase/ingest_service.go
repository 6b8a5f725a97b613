package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/avisense/birdwatch/domain/entities"
	"github.com/avisense/birdwatch/domain/repositories"
	"github.com/avisense/birdwatch/internal/classify"
	"github.com/avisense/birdwatch/internal/upload"
	"github.com/avisense/birdwatch/internal/websocket"
)

// finalizeTimeout bounds one complete finalize attempt: gap wait,
// reassembly, and the artifact attach.
const finalizeTimeout = 2 * time.Minute

// IngestService orchestrates the chunked-upload pipeline: store the
// segment, register the observation on the first frame, and on the winning
// end-of-stream claim run reassembly and hand the artifact to the
// classification dispatcher.
//
// Many uploads from many devices run concurrently; everything here is
// keyed by file id and the only cross-request coordination is the upload
// tracker's claim.
type IngestService struct {
	segments     repositories.SegmentStore
	observations repositories.ObservationRepository
	devices      repositories.DeviceRepository
	tracker      *upload.Tracker
	reassembler  *Reassembler
	dispatcher   *classify.Dispatcher
	hub          *websocket.Hub
	logger       *zap.Logger
}

// NewIngestService wires the pipeline.
func NewIngestService(
	segments repositories.SegmentStore,
	observations repositories.ObservationRepository,
	devices repositories.DeviceRepository,
	tracker *upload.Tracker,
	reassembler *Reassembler,
	dispatcher *classify.Dispatcher,
	hub *websocket.Hub,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		segments:     segments,
		observations: observations,
		devices:      devices,
		tracker:      tracker,
		reassembler:  reassembler,
		dispatcher:   dispatcher,
		hub:          hub,
		logger:       logger,
	}
}

// HandleFrame processes one decoded frame. It returns only synchronous-path
// errors (segment or observation storage); everything after the
// end-of-stream claim runs in the background and surfaces through logs and
// persisted state.
func (s *IngestService) HandleFrame(ctx context.Context, frame *entities.Frame) error {
	if err := s.segments.Put(ctx, frame.DeviceID, frame.FileID, frame.Sequence, frame.Payload); err != nil {
		return err
	}

	// Observe only after the payload is durable, so a finalize attempt
	// never sees a sequence number whose bytes might still be missing.
	accepted := s.tracker.Observe(frame.FileID, frame.Sequence)
	if !accepted {
		// Late retransmission of an already finalized upload. The segment
		// overwrite above was idempotent and harmless; nothing else may
		// run again.
		s.logger.Debug("Frame for finalized upload ignored",
			zap.String("fileID", frame.FileID),
			zap.Uint16("sequence", frame.Sequence))
		return nil
	}

	if frame.Sequence == 0 {
		if err := s.registerObservation(ctx, frame); err != nil {
			return err
		}
	}

	if frame.EndOfStream && s.tracker.ClaimFinalize(frame.FileID, frame.Sequence) {
		go s.finalize(frame.DeviceID, frame.FileID, frame.Sequence, frame.Format)
	}
	return nil
}

// registerObservation creates the pending observation for a recording's
// first frame, enriched with the device's registered location when the
// registry knows the sensor.
func (s *IngestService) registerObservation(ctx context.Context, frame *entities.Frame) error {
	var location *entities.Location
	device, err := s.devices.GetByIMSI(ctx, frame.DeviceID)
	if err != nil {
		// The registry is a read-only enrichment source; a lookup fault
		// must not reject the frame.
		s.logger.Warn("Device lookup failed",
			zap.String("imsi", frame.DeviceID),
			zap.Error(err))
	} else if device != nil {
		loc := device.Location()
		location = &loc
	}

	observation := entities.NewPendingObservation(frame.FileID, frame.DeviceID, location)
	if err := s.observations.CreatePending(ctx, observation); err != nil {
		return err
	}

	s.hub.Broadcast(websocket.NewEvent(websocket.EventObservationCreated, frame.FileID, frame.DeviceID))
	return nil
}

// finalize runs the once-per-upload tail of the pipeline. The caller holds
// the tracker's claim; on any failure the claim is released so a later
// end-of-stream event can retry, and the upload stays in finalizing.
func (s *IngestService) finalize(deviceID, fileID string, finalSeq uint16, format entities.AudioFormat) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	missing, err := s.tracker.AwaitComplete(ctx, fileID)
	if err != nil || len(missing) > 0 {
		if err == nil {
			err = entities.ErrIncompleteUpload
		}
		s.logger.Error("Upload incomplete after gap wait",
			zap.String("fileID", fileID),
			zap.Int("missingSegments", len(missing)),
			zap.Error(err))
		s.tracker.AbortFinalize(fileID)
		s.hub.Broadcast(websocket.NewEvent(websocket.EventUploadIncomplete, fileID, deviceID))
		return
	}

	path, err := s.reassembler.Reassemble(ctx, deviceID, fileID, finalSeq, format)
	if err != nil {
		s.logger.Error("Reassembly failed",
			zap.String("fileID", fileID),
			zap.Error(err))
		s.tracker.AbortFinalize(fileID)
		return
	}

	if err := s.observations.AttachArtifact(ctx, fileID, path); err != nil {
		s.logger.Error("Failed to attach artifact to observation",
			zap.String("fileID", fileID),
			zap.String("path", path),
			zap.Error(err))
		s.tracker.AbortFinalize(fileID)
		return
	}

	event := websocket.NewEvent(websocket.EventArtifactReassembled, fileID, deviceID)
	event.FilePath = path
	s.hub.Broadcast(event)

	s.dispatcher.Dispatch(fileID, deviceID, path)
}
