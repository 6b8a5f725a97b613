// Package blob implements the segment and artifact store on the local
// filesystem, using the layout the sensors' original backend established:
//
//	{base}/{imsi}/segmented/{fileID}/{seq}.bin   one file per segment
//	{base}/{imsi}/{fileID}.wav                   the reassembled artifact
package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/avisense/birdwatch/domain/entities"
	"github.com/avisense/birdwatch/domain/repositories"
)

// FilesystemStore is a SegmentStore backed by a directory tree. Writes go
// through a temp file and a rename, so a retransmitted frame overwriting
// its segment can never leave a torn file behind and the last write wins.
type FilesystemStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewFilesystemStore creates the store rooted at baseDir, creating the
// directory if needed.
func NewFilesystemStore(baseDir string, logger *zap.Logger) (*FilesystemStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	return &FilesystemStore{baseDir: baseDir, logger: logger}, nil
}

var _ repositories.SegmentStore = (*FilesystemStore)(nil)

// Put implements repositories.SegmentStore.
func (s *FilesystemStore) Put(ctx context.Context, deviceID, fileID string, sequence uint16, payload []byte) error {
	dir := s.segmentDir(deviceID, fileID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", entities.ErrStorageUnavailable, err)
	}
	path := filepath.Join(dir, strconv.Itoa(int(sequence))+".bin")
	if err := writeAtomic(path, payload); err != nil {
		return fmt.Errorf("%w: segment %s/%d: %v", entities.ErrStorageUnavailable, fileID, sequence, err)
	}
	s.logger.Debug("segment stored",
		zap.String("fileID", fileID),
		zap.Uint16("sequence", sequence),
		zap.Int("bytes", len(payload)))
	return nil
}

// Get implements repositories.SegmentStore. Absent segments return
// (nil, nil).
func (s *FilesystemStore) Get(ctx context.Context, deviceID, fileID string, sequence uint16) ([]byte, error) {
	path := filepath.Join(s.segmentDir(deviceID, fileID), strconv.Itoa(int(sequence))+".bin")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: segment %s/%d: %v", entities.ErrStorageUnavailable, fileID, sequence, err)
	}
	return data, nil
}

// ListRange implements repositories.SegmentStore. Gaps surface as nil
// entries rather than being skipped.
func (s *FilesystemStore) ListRange(ctx context.Context, deviceID, fileID string, maxSequence uint16) ([][]byte, error) {
	segments := make([][]byte, int(maxSequence)+1)
	for seq := 0; seq <= int(maxSequence); seq++ {
		data, err := s.Get(ctx, deviceID, fileID, uint16(seq))
		if err != nil {
			return nil, err
		}
		segments[seq] = data
	}
	return segments, nil
}

// WriteArtifact implements repositories.SegmentStore.
func (s *FilesystemStore) WriteArtifact(ctx context.Context, deviceID, fileID string, artifact []byte) (string, error) {
	path := s.ArtifactPath(deviceID, fileID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", entities.ErrStorageUnavailable, err)
	}
	if err := writeAtomic(path, artifact); err != nil {
		return "", fmt.Errorf("%w: artifact %s: %v", entities.ErrStorageUnavailable, fileID, err)
	}
	return path, nil
}

// ArtifactPath implements repositories.SegmentStore.
func (s *FilesystemStore) ArtifactPath(deviceID, fileID string) string {
	return filepath.Join(s.baseDir, deviceID, fileID+".wav")
}

func (s *FilesystemStore) segmentDir(deviceID, fileID string) string {
	return filepath.Join(s.baseDir, deviceID, "segmented", fileID)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
