package wav

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/avisense/birdwatch/domain/entities"
)

func TestSynthesizeHeader(t *testing.T) {
	format := entities.AudioFormat{SampleRate: 16000, BitsPerSample: 16, Channels: 1}
	dataSize := 1000

	header := SynthesizeHeader(format, dataSize)

	if len(header) != HeaderSize {
		t.Fatalf("Expected %d byte header, got %d", HeaderSize, len(header))
	}

	t.Run("ChunkTags", func(t *testing.T) {
		if !bytes.Equal(header[0:4], []byte("RIFF")) {
			t.Errorf("Expected RIFF tag, got %q", header[0:4])
		}
		if !bytes.Equal(header[8:12], []byte("WAVE")) {
			t.Errorf("Expected WAVE tag, got %q", header[8:12])
		}
		if !bytes.Equal(header[12:16], []byte("fmt ")) {
			t.Errorf("Expected fmt tag, got %q", header[12:16])
		}
		if !bytes.Equal(header[36:40], []byte("data")) {
			t.Errorf("Expected data tag, got %q", header[36:40])
		}
	})

	t.Run("FormatFields", func(t *testing.T) {
		if got := binary.LittleEndian.Uint16(header[20:22]); got != 1 {
			t.Errorf("Expected PCM format tag 1, got %d", got)
		}
		if got := binary.LittleEndian.Uint16(header[22:24]); got != 1 {
			t.Errorf("Expected 1 channel, got %d", got)
		}
		if got := binary.LittleEndian.Uint32(header[24:28]); got != 16000 {
			t.Errorf("Expected sample rate 16000, got %d", got)
		}
		if got := binary.LittleEndian.Uint32(header[28:32]); got != 32000 {
			t.Errorf("Expected byte rate 32000, got %d", got)
		}
		if got := binary.LittleEndian.Uint16(header[32:34]); got != 2 {
			t.Errorf("Expected block align 2, got %d", got)
		}
		if got := binary.LittleEndian.Uint16(header[34:36]); got != 16 {
			t.Errorf("Expected 16 bits per sample, got %d", got)
		}
	})

	t.Run("SizeFields", func(t *testing.T) {
		if got := binary.LittleEndian.Uint32(header[4:8]); got != uint32(dataSize+36) {
			t.Errorf("Expected overall size %d, got %d", dataSize+36, got)
		}
		if got := binary.LittleEndian.Uint32(header[40:44]); got != uint32(dataSize) {
			t.Errorf("Expected data size %d, got %d", dataSize, got)
		}
	})
}

func TestSynthesizeHeaderDeterministic(t *testing.T) {
	format := entities.AudioFormat{SampleRate: 48000, BitsPerSample: 16, Channels: 2}
	a := SynthesizeHeader(format, 4096)
	b := SynthesizeHeader(format, 4096)
	if !bytes.Equal(a, b) {
		t.Error("Header synthesis must be deterministic")
	}
}

func TestDerivedRates(t *testing.T) {
	format := entities.AudioFormat{SampleRate: 22050, BitsPerSample: 8, Channels: 2}
	if got := ByteRate(format); got != 44100 {
		t.Errorf("Expected byte rate 44100, got %d", got)
	}
	if got := BlockAlign(format); got != 2 {
		t.Errorf("Expected block align 2, got %d", got)
	}
}
