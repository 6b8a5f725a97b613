package entities

// AudioFormat is the side-channel PCM description a sensor sends alongside
// its frames. The transport strips the container header, so these three
// numbers are all the server gets to rebuild one.
type AudioFormat struct {
	SampleRate    int `json:"sample_rate"`
	BitsPerSample int `json:"bits_per_sample"`
	Channels      int `json:"channels"`
}

// DefaultAudioFormat matches the firmware's fixed recording settings and is
// used when a sensor omits the format headers.
var DefaultAudioFormat = AudioFormat{
	SampleRate:    16000,
	BitsPerSample: 16,
	Channels:      1,
}

// Frame is one decoded unit of a chunked upload request.
//
// Sequence numbers start at 0 and are assigned by the sensor; a frame may be
// retransmitted, so the same (FileID, Sequence) pair can arrive more than
// once and must be handled idempotently.
type Frame struct {
	DeviceID    string // 15-digit IMSI assigned by the transport
	FileID      string // UUID grouping all frames of one recording
	Sequence    uint16
	Payload     []byte // audio sample data, end marker already stripped
	EndOfStream bool
	Format      AudioFormat
}
