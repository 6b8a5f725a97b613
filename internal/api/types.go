package api

import "time"

// Frame encoding modes a deployment can run. Binary deployments put all
// metadata in the 33-byte frame header and signal end-of-stream in-band;
// header deployments move everything into X- headers.
const (
	FrameEncodingBinary  = "binary"
	FrameEncodingHeaders = "headers"
)

// Config selects the deployment-specific behavior of the HTTP surface.
type Config struct {
	// FrameEncoding is "binary" or "headers".
	FrameEncoding string
	// MaxFrameBytes caps the accepted upload body size.
	MaxFrameBytes int64
	// APIKey is the shared secret exchanged for dashboard tokens.
	APIKey string
}

// TokenRequest represents the request payload for dashboard authentication
type TokenRequest struct {
	APIKey  string `json:"api_key" validate:"required"`
	Subject string `json:"subject"`
}

// TokenResponse represents the response payload for dashboard authentication
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UploadResponse acknowledges an accepted frame
type UploadResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
