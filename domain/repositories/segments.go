package repositories

import "context"

// SegmentStore persists raw frame payloads keyed by (device, file, sequence)
// and the final reassembled artifact keyed by (device, file).
//
// Put has overwrite semantics: retransmitted frames rewrite the same key and
// the last write wins without torn writes. Get and ListRange report absent
// segments as nil payloads rather than errors, since gaps are an expected
// condition during reception.
type SegmentStore interface {
	Put(ctx context.Context, deviceID, fileID string, sequence uint16, payload []byte) error
	Get(ctx context.Context, deviceID, fileID string, sequence uint16) ([]byte, error)
	// ListRange returns payloads for sequences 0..maxSequence in ascending
	// order. The returned slice always has maxSequence+1 entries; a nil
	// entry marks a segment that was never stored.
	ListRange(ctx context.Context, deviceID, fileID string, maxSequence uint16) ([][]byte, error)

	// WriteArtifact durably stores the reassembled recording and returns
	// its addressable path. Writing the same bytes twice is idempotent.
	WriteArtifact(ctx context.Context, deviceID, fileID string, artifact []byte) (string, error)
	// ArtifactPath returns where the artifact for (deviceID, fileID) lives
	// or would live; it does not imply existence.
	ArtifactPath(deviceID, fileID string) string
}
