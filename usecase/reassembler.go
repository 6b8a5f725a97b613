package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/avisense/birdwatch/domain/entities"
	"github.com/avisense/birdwatch/domain/repositories"
	"github.com/avisense/birdwatch/internal/wav"
)

// Reassembler turns a complete set of segments back into one playable
// recording: a synthesized WAV header followed by the payloads of sequences
// 0..finalSeq in order. Re-running it over the same segment set produces
// byte-identical output.
type Reassembler struct {
	segments repositories.SegmentStore
	logger   *zap.Logger
}

// NewReassembler creates a reassembler over the given segment store.
func NewReassembler(segments repositories.SegmentStore, logger *zap.Logger) *Reassembler {
	return &Reassembler{segments: segments, logger: logger}
}

// Reassemble builds and stores the artifact for fileID, returning its
// path. The caller must hold the upload tracker's finalize claim so two
// goroutines never write the same artifact concurrently.
func (r *Reassembler) Reassemble(ctx context.Context, deviceID, fileID string, finalSeq uint16, format entities.AudioFormat) (string, error) {
	segments, err := r.segments.ListRange(ctx, deviceID, fileID, finalSeq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entities.ErrReassemblyFailed, err)
	}

	// The header's size fields depend on the total payload length, so the
	// full segment set has to be in hand before a single byte is written.
	total := 0
	for seq, segment := range segments {
		if segment == nil {
			return "", fmt.Errorf("%w: segment %d of %s is absent", entities.ErrReassemblyFailed, seq, fileID)
		}
		total += len(segment)
	}

	artifact := make([]byte, 0, wav.HeaderSize+total)
	artifact = append(artifact, wav.SynthesizeHeader(format, total)...)
	for _, segment := range segments {
		artifact = append(artifact, segment...)
	}

	path, err := r.segments.WriteArtifact(ctx, deviceID, fileID, artifact)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entities.ErrReassemblyFailed, err)
	}

	r.logger.Info("Recording reassembled",
		zap.String("fileID", fileID),
		zap.String("path", path),
		zap.Int("segments", len(segments)),
		zap.Int("dataBytes", total))
	return path, nil
}
