package blob

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

const (
	testIMSI   = "123456789012345"
	testFileID = "a2c82ef2-0fbc-4a2d-9a4f-bd7f153523d8"
)

func newTestStore(t *testing.T) *FilesystemStore {
	t.Helper()
	store, err := NewFilesystemStore(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewFilesystemStore failed: %v", err)
	}
	return store
}

func TestPutAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	payload := []byte{0x01, 0x02, 0x03}
	if err := store.Put(ctx, testIMSI, testFileID, 0, payload); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, testIMSI, testFileID, 0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Expected %v, got %v", payload, got)
	}
}

func TestGetAbsentSegment(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Get(context.Background(), testIMSI, testFileID, 9)
	if err != nil {
		t.Fatalf("Absent segment must not be an error, got %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for absent segment, got %v", got)
	}
}

func TestPutOverwriteLastWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, testIMSI, testFileID, 4, []byte{0xAA}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, testIMSI, testFileID, 4, []byte{0xBB, 0xCC}); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}

	got, err := store.Get(ctx, testIMSI, testFileID, 4)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte{0xBB, 0xCC}) {
		t.Errorf("Expected last write to win, got %v", got)
	}
}

func TestListRangeReportsGaps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Put(ctx, testIMSI, testFileID, 0, []byte{0x01})
	store.Put(ctx, testIMSI, testFileID, 2, []byte{0x03})

	segments, err := store.ListRange(ctx, testIMSI, testFileID, 2)
	if err != nil {
		t.Fatalf("ListRange failed: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(segments))
	}
	if segments[0] == nil || segments[2] == nil {
		t.Error("Present segments must not be nil")
	}
	if segments[1] != nil {
		t.Errorf("Expected nil for the gap at sequence 1, got %v", segments[1])
	}
}

func TestWriteArtifact(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	artifact := []byte("RIFF....WAVE")
	path, err := store.WriteArtifact(ctx, testIMSI, testFileID, artifact)
	if err != nil {
		t.Fatalf("WriteArtifact failed: %v", err)
	}
	if path != store.ArtifactPath(testIMSI, testFileID) {
		t.Errorf("WriteArtifact returned %q, ArtifactPath says %q", path, store.ArtifactPath(testIMSI, testFileID))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(data, artifact) {
		t.Error("Artifact bytes on disk differ from what was written")
	}
}

func TestStorageLayout(t *testing.T) {
	base := t.TempDir()
	store, err := NewFilesystemStore(base, zap.NewNop())
	if err != nil {
		t.Fatalf("NewFilesystemStore failed: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, testIMSI, testFileID, 3, []byte{0x01}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := store.WriteArtifact(ctx, testIMSI, testFileID, []byte{0x02}); err != nil {
		t.Fatalf("WriteArtifact failed: %v", err)
	}

	segmentPath := filepath.Join(base, testIMSI, "segmented", testFileID, "3.bin")
	if _, err := os.Stat(segmentPath); err != nil {
		t.Errorf("Expected segment at %s: %v", segmentPath, err)
	}
	artifactPath := filepath.Join(base, testIMSI, testFileID+".wav")
	if _, err := os.Stat(artifactPath); err != nil {
		t.Errorf("Expected artifact at %s: %v", artifactPath, err)
	}
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	base := t.TempDir()
	store, err := NewFilesystemStore(base, zap.NewNop())
	if err != nil {
		t.Fatalf("NewFilesystemStore failed: %v", err)
	}

	store.Put(context.Background(), testIMSI, testFileID, 0, []byte{0x01})

	entries, err := os.ReadDir(filepath.Join(base, testIMSI, "segmented", testFileID))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "0.bin" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected only 0.bin, found %v", names)
	}
}
