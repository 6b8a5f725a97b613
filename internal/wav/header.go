// Package wav synthesizes the RIFF/WAV container header the transport
// strips before the recording leaves the sensor.
package wav

import (
	"encoding/binary"

	"github.com/avisense/birdwatch/domain/entities"
)

// HeaderSize is the fixed length of the synthesized PCM header.
const HeaderSize = 44

// Header field offsets that depend on the total payload length and are
// patched in after every segment is known.
const (
	riffSizeOffset = 4
	dataSizeOffset = 40
)

// ByteRate derives bytes per second from the PCM parameters.
func ByteRate(f entities.AudioFormat) int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

// BlockAlign derives the size of one sample frame across all channels.
func BlockAlign(f entities.AudioFormat) int {
	return f.Channels * f.BitsPerSample / 8
}

// SynthesizeHeader builds the 44-byte canonical PCM WAV header for a data
// chunk of dataSize bytes. The two size fields are written as zero first
// and patched at their reserved offsets once the total is known, matching
// how the header would be fixed up on a streaming write.
func SynthesizeHeader(f entities.AudioFormat, dataSize int) []byte {
	h := make([]byte, 0, HeaderSize)

	h = append(h, "RIFF"...)
	h = append(h, 0, 0, 0, 0) // overall size, patched below
	h = append(h, "WAVE"...)

	h = append(h, "fmt "...)
	h = binary.LittleEndian.AppendUint32(h, 16) // PCM fmt chunk size
	h = binary.LittleEndian.AppendUint16(h, 1)  // audio format: PCM
	h = binary.LittleEndian.AppendUint16(h, uint16(f.Channels))
	h = binary.LittleEndian.AppendUint32(h, uint32(f.SampleRate))
	h = binary.LittleEndian.AppendUint32(h, uint32(ByteRate(f)))
	h = binary.LittleEndian.AppendUint16(h, uint16(BlockAlign(f)))
	h = binary.LittleEndian.AppendUint16(h, uint16(f.BitsPerSample))

	h = append(h, "data"...)
	h = append(h, 0, 0, 0, 0) // data size, patched below

	// Overall size excludes the RIFF tag and the size field itself.
	binary.LittleEndian.PutUint32(h[riffSizeOffset:], uint32(dataSize+HeaderSize-8))
	binary.LittleEndian.PutUint32(h[dataSizeOffset:], uint32(dataSize))

	return h
}
