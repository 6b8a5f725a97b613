// Command sensorsim replays a WAV file against a running server the way a
// field sensor would: stripped of its header, chunked into binary frames,
// optionally shuffled and with duplicates, so the reassembly path can be
// exercised end to end without hardware.
package main

import (
	"bytes"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

const wavHeaderSize = 44

func main() {
	var (
		server    = flag.String("server", "http://localhost:8080", "server base URL")
		imsi      = flag.String("imsi", "123456789012345", "device IMSI")
		wavPath   = flag.String("wav", "", "WAV file to replay (a 1s test tone is synthesized when empty)")
		chunkSize = flag.Int("chunk", 4096, "payload bytes per frame")
		shuffle   = flag.Bool("shuffle", false, "deliver frames out of order")
		dupes     = flag.Bool("dupes", false, "retransmit a few frames")
	)
	flag.Parse()

	data, err := audioData(*wavPath)
	if err != nil {
		log.Fatalf("Failed to load audio: %v", err)
	}

	fileID := uuid.New()
	frames := buildFrames(*imsi, fileID, data, *chunkSize)
	log.Printf("Uploading %d bytes as %d frames, file %s", len(data), len(frames), fileID)

	order := make([]int, len(frames))
	for i := range order {
		order[i] = i
	}
	if *shuffle {
		rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	if *dupes && len(order) > 1 {
		order = append(order, order[0], order[len(order)-1])
	}

	client := &http.Client{Timeout: 30 * time.Second}
	for _, idx := range order {
		if err := postFrame(client, *server, frames[idx]); err != nil {
			log.Fatalf("Frame %d failed: %v", idx, err)
		}
	}
	log.Printf("Done; artifact should appear at %s/audio_files/%s/%s", *server, *imsi, fileID)
}

// buildFrames splits data into binary frames; the last one carries the end
// marker.
func buildFrames(imsi string, fileID uuid.UUID, data []byte, chunkSize int) [][]byte {
	var frames [][]byte
	for seq, offset := 0, 0; offset < len(data) || seq == 0; seq++ {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}

		frame := make([]byte, 0, 33+chunkSize+2)
		frame = append(frame, imsi...)
		frame = append(frame, fileID[:]...)
		frame = binary.BigEndian.AppendUint16(frame, uint16(seq))
		frame = append(frame, data[offset:end]...)
		if end == len(data) {
			frame = append(frame, 0xFF, 0xD9)
		}
		frames = append(frames, frame)

		offset = end
		if offset == len(data) {
			break
		}
	}
	return frames
}

func postFrame(client *http.Client, server string, frame []byte) error {
	resp, err := client.Post(server+"/upload-audio", "application/octet-stream", bytes.NewReader(frame))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("server answered %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// audioData returns the raw PCM payload to upload: a WAV file minus its
// header, or a synthesized 440 Hz tone when no file is given.
func audioData(path string) ([]byte, error) {
	if path == "" {
		return sineTone(16000, time.Second), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) <= wavHeaderSize || !bytes.HasPrefix(data, []byte("RIFF")) {
		return nil, fmt.Errorf("%s does not look like a WAV file", path)
	}
	return data[wavHeaderSize:], nil
}

func sineTone(sampleRate int, d time.Duration) []byte {
	samples := int(float64(sampleRate) * d.Seconds())
	buf := make([]byte, 0, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(v))
	}
	return buf
}
