// Package frame decodes the binary chunk format the field sensors upload.
// Decoding is a pure transform from bytes to an entities.Frame; all I/O
// stays with the caller.
package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/avisense/birdwatch/domain/entities"
)

// Wire format v1, fixed 33-byte header:
//
//	offset  0  15-byte ASCII-digit IMSI
//	offset 15  16-byte file id (raw UUID bytes)
//	offset 31   2-byte big-endian sequence number
//	offset 33  payload, optionally terminated by the end marker
const (
	imsiLen     = 15
	fileIDLen   = 16
	sequenceLen = 2
	headerLenV1 = imsiLen + fileIDLen + sequenceLen
)

// endMarker is the reserved trailing byte pair signaling the last frame of
// a file. It is stripped from the stored payload.
var endMarker = []byte{0xFF, 0xD9}

// DecodeBinary parses a v1 binary frame. The audio format comes from
// out-of-band transport headers and is attached verbatim. End-of-stream is
// signaled in-band by the trailing marker; a frame whose payload is exactly
// the marker is valid and means the stream ends with zero new bytes.
func DecodeBinary(buf []byte, format entities.AudioFormat) (*entities.Frame, error) {
	if len(buf) < headerLenV1 {
		return nil, fmt.Errorf("%w: buffer of %d bytes is shorter than the %d-byte header",
			entities.ErrMalformedFrame, len(buf), headerLenV1)
	}

	imsi := string(buf[:imsiLen])
	if err := validateIMSI(imsi); err != nil {
		return nil, err
	}

	fileID, err := uuid.FromBytes(buf[imsiLen : imsiLen+fileIDLen])
	if err != nil {
		return nil, fmt.Errorf("%w: file id: %v", entities.ErrMalformedFrame, err)
	}

	sequence := binary.BigEndian.Uint16(buf[imsiLen+fileIDLen : headerLenV1])

	payload := buf[headerLenV1:]
	eos := bytes.HasSuffix(payload, endMarker)
	if eos {
		payload = payload[:len(payload)-len(endMarker)]
	}

	return &entities.Frame{
		DeviceID:    imsi,
		FileID:      fileID.String(),
		Sequence:    sequence,
		Payload:     append([]byte(nil), payload...),
		EndOfStream: eos,
		Format:      format,
	}, nil
}

// Header holds the raw out-of-band field values for header-mode deployments,
// where the request body is pure payload and all metadata travels in HTTP
// headers. Values are kept as strings so the decoder owns every parse
// failure.
type Header struct {
	IMSI          string
	FileID        string
	Sequence      string
	EndOfStream   string
	SampleRate    string
	BitsPerSample string
}

// DecodeHeaders parses a header-mode frame. The body is taken as payload
// unmodified: in this mode the end marker bytes are ordinary data, and
// end-of-stream comes only from the explicit flag.
func DecodeHeaders(h Header, body []byte) (*entities.Frame, error) {
	if err := validateIMSI(h.IMSI); err != nil {
		return nil, err
	}

	fileID, err := uuid.Parse(h.FileID)
	if err != nil {
		return nil, fmt.Errorf("%w: file id %q: %v", entities.ErrMalformedFrame, h.FileID, err)
	}

	sequence, err := strconv.ParseUint(h.Sequence, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: sequence number %q", entities.ErrMalformedFrame, h.Sequence)
	}

	format, err := parseFormat(h.SampleRate, h.BitsPerSample)
	if err != nil {
		return nil, err
	}

	return &entities.Frame{
		DeviceID:    h.IMSI,
		FileID:      fileID.String(),
		Sequence:    uint16(sequence),
		Payload:     append([]byte(nil), body...),
		EndOfStream: h.EndOfStream == "true",
		Format:      format,
	}, nil
}

// ParseFormat parses the optional audio format headers, falling back to the
// firmware defaults field by field.
func ParseFormat(sampleRate, bitsPerSample string) (entities.AudioFormat, error) {
	return parseFormat(sampleRate, bitsPerSample)
}

func parseFormat(sampleRate, bitsPerSample string) (entities.AudioFormat, error) {
	format := entities.DefaultAudioFormat
	if sampleRate != "" {
		v, err := strconv.Atoi(sampleRate)
		if err != nil || v <= 0 {
			return format, fmt.Errorf("%w: sample rate %q", entities.ErrMalformedFrame, sampleRate)
		}
		format.SampleRate = v
	}
	if bitsPerSample != "" {
		v, err := strconv.Atoi(bitsPerSample)
		if err != nil || v <= 0 {
			return format, fmt.Errorf("%w: bits per sample %q", entities.ErrMalformedFrame, bitsPerSample)
		}
		format.BitsPerSample = v
	}
	return format, nil
}

func validateIMSI(imsi string) error {
	if len(imsi) != imsiLen {
		return fmt.Errorf("%w: imsi must be %d digits, got %d bytes",
			entities.ErrMalformedFrame, imsiLen, len(imsi))
	}
	for _, c := range imsi {
		if c < '0' || c > '9' {
			return fmt.Errorf("%w: imsi contains non-digit byte", entities.ErrMalformedFrame)
		}
	}
	return nil
}
