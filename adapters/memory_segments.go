package adapters

import (
	"context"
	"sync"

	"github.com/avisense/birdwatch/domain/repositories"
)

// MemorySegmentStore is an in-memory SegmentStore with the same overwrite
// and gap-reporting semantics as the filesystem store. It exists for tests
// and for running the server without durable audio storage.
type MemorySegmentStore struct {
	mu        sync.RWMutex
	segments  map[segmentKey][]byte
	artifacts map[string][]byte // deviceID/fileID -> artifact bytes
}

type segmentKey struct {
	deviceID string
	fileID   string
	sequence uint16
}

// NewMemorySegmentStore creates an empty in-memory store.
func NewMemorySegmentStore() *MemorySegmentStore {
	return &MemorySegmentStore{
		segments:  make(map[segmentKey][]byte),
		artifacts: make(map[string][]byte),
	}
}

var _ repositories.SegmentStore = (*MemorySegmentStore)(nil)

// Put implements SegmentStore; last write for a key wins.
func (m *MemorySegmentStore) Put(ctx context.Context, deviceID, fileID string, sequence uint16, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.segments[segmentKey{deviceID, fileID, sequence}] = append([]byte(nil), payload...)
	return nil
}

// Get implements SegmentStore; absent segments return (nil, nil).
func (m *MemorySegmentStore) Get(ctx context.Context, deviceID, fileID string, sequence uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	payload, ok := m.segments[segmentKey{deviceID, fileID, sequence}]
	if !ok {
		return nil, nil
	}
	// A present zero-length segment must come back non-nil: nil means
	// absent, matching the filesystem store.
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

// ListRange implements SegmentStore; gaps surface as nil entries.
func (m *MemorySegmentStore) ListRange(ctx context.Context, deviceID, fileID string, maxSequence uint16) ([][]byte, error) {
	segments := make([][]byte, int(maxSequence)+1)
	for seq := 0; seq <= int(maxSequence); seq++ {
		payload, err := m.Get(ctx, deviceID, fileID, uint16(seq))
		if err != nil {
			return nil, err
		}
		segments[seq] = payload
	}
	return segments, nil
}

// WriteArtifact implements SegmentStore.
func (m *MemorySegmentStore) WriteArtifact(ctx context.Context, deviceID, fileID string, artifact []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.ArtifactPath(deviceID, fileID)
	m.artifacts[path] = append([]byte(nil), artifact...)
	return path, nil
}

// ArtifactPath implements SegmentStore.
func (m *MemorySegmentStore) ArtifactPath(deviceID, fileID string) string {
	return deviceID + "/" + fileID + ".wav"
}

// Artifact returns the stored artifact bytes for assertions in tests.
func (m *MemorySegmentStore) Artifact(deviceID, fileID string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	artifact, ok := m.artifacts[m.ArtifactPath(deviceID, fileID)]
	return artifact, ok
}
