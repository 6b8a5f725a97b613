// Package birdnet calls the external BirdNET analyzer service. The analyzer
// shares the audio volume with this server, so classification is requested
// by artifact path and the service answers with a species label or no
// confident match.
package birdnet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/avisense/birdwatch/domain/entities"
	"github.com/avisense/birdwatch/domain/repositories"
)

const (
	defaultBaseURL = "http://localhost:8090"
	defaultTimeout = 60 * time.Second // model inference takes seconds
)

// Config holds configuration for the analyzer client.
// Optional fields with defaults:
// - BaseURL: analyzer service base URL (default: "http://localhost:8090",
//   overridden by the ANALYZER_URL environment variable)
// - Timeout: per-request timeout (default: 60s)
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements the Classifier interface against the analyzer's HTTP
// API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an analyzer client.
func NewClient(config Config, logger *zap.Logger) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("ANALYZER_URL")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

var _ repositories.Classifier = (*Client)(nil)

type analyzeRequest struct {
	FilePath string `json:"file_path"`
}

type analyzeResponse struct {
	Classification *string `json:"classification"`
	IsRedlisted    *bool   `json:"is_redlisted"`
}

// Classify implements repositories.Classifier.
func (c *Client) Classify(ctx context.Context, filePath string) (entities.ClassificationResult, error) {
	body, err := json.Marshal(analyzeRequest{FilePath: filePath})
	if err != nil {
		return entities.ClassificationResult{}, fmt.Errorf("%w: encode request: %v", entities.ErrClassificationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return entities.ClassificationResult{}, fmt.Errorf("%w: build request: %v", entities.ErrClassificationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return entities.ClassificationResult{}, fmt.Errorf("%w: %v", entities.ErrClassificationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return entities.ClassificationResult{}, fmt.Errorf("%w: analyzer returned %d: %s",
			entities.ErrClassificationFailed, resp.StatusCode, bytes.TrimSpace(detail))
	}

	var parsed analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return entities.ClassificationResult{}, fmt.Errorf("%w: decode response: %v", entities.ErrClassificationFailed, err)
	}

	if parsed.Classification == nil {
		c.logger.Info("analyzer found no confident match", zap.String("filePath", filePath))
	} else {
		c.logger.Info("analyzer classified recording",
			zap.String("filePath", filePath),
			zap.String("classification", *parsed.Classification))
	}

	return entities.ClassificationResult{
		Label:       parsed.Classification,
		IsRedlisted: parsed.IsRedlisted,
	}, nil
}
