package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/avisense/birdwatch/domain/entities"
	"github.com/avisense/birdwatch/domain/repositories"
	"github.com/avisense/birdwatch/internal/auth"
	"github.com/avisense/birdwatch/internal/frame"
	"github.com/avisense/birdwatch/internal/websocket"
	"github.com/avisense/birdwatch/usecase"
)

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	cfg Config,
	ingest *usecase.IngestService,
	observations repositories.ObservationRepository,
	devices repositories.DeviceRepository,
	logs repositories.LogRepository,
	segments repositories.SegmentStore,
	hub *websocket.Hub,
	logger *zap.Logger,
) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "birdwatch-server",
		})
	})

	// Sensor-facing surface: no authentication, per the transport's
	// constraints the devices cannot carry credentials.
	e.POST("/upload-audio", func(c echo.Context) error {
		return uploadAudio(c, cfg, ingest, logger)
	})
	e.POST("/span/webhook", func(c echo.Context) error {
		return spanWebhook(c, logs, logger)
	})
	e.GET("/audio_files/:imsi/:fileID", func(c echo.Context) error {
		return getAudioFile(c, segments)
	})

	// Dashboard token exchange
	e.POST("/auth/token", func(c echo.Context) error {
		return issueToken(c, cfg, logger)
	})

	// Dashboard APIs, JWT protected
	v1 := e.Group("/api/v1", dashboardAuth(logger))
	v1.GET("/observations", func(c echo.Context) error {
		return getObservations(c, observations, logger)
	})
	v1.POST("/observations", func(c echo.Context) error {
		return postObservation(c, observations, logger)
	})
	v1.GET("/logs", func(c echo.Context) error {
		return getLogs(c, logs, logger)
	})
	v1.GET("/devices", func(c echo.Context) error {
		return getDevices(c, devices, logger)
	})
	v1.POST("/devices", func(c echo.Context) error {
		return postDevice(c, devices, logger)
	})

	// Live observation feed with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return feedWithAuth(hub, c, logger)
	})
}

// uploadAudio ingests one frame per request. The response codes are part of
// the sensor protocol: 200 for any accepted frame (final or not), 4xx for
// frames that can never be accepted, 5xx for transient storage trouble
// worth a retransmission.
func uploadAudio(c echo.Context, cfg Config, ingest *usecase.IngestService, logger *zap.Logger) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, cfg.MaxFrameBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unreadable_body",
			Message: "Could not read request body",
		})
	}
	if int64(len(body)) > cfg.MaxFrameBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:   "frame_too_large",
			Message: "Frame exceeds the configured maximum size",
		})
	}

	header := c.Request().Header
	var decoded *entities.Frame
	switch cfg.FrameEncoding {
	case FrameEncodingHeaders:
		decoded, err = frame.DecodeHeaders(frame.Header{
			IMSI:          header.Get("X-IMSI"),
			FileID:        header.Get("X-File-ID"),
			Sequence:      header.Get("X-Sequence-Number"),
			EndOfStream:   header.Get("X-End-Of-File"),
			SampleRate:    header.Get("X-Sample-Rate"),
			BitsPerSample: header.Get("X-Bits-Per-Sample"),
		}, body)
	default:
		// Binary deployments signal end-of-stream in-band only. An
		// explicit flag alongside the marker means the sender is mixing
		// signaling modes; reject rather than guess.
		if header.Get("X-End-Of-File") != "" {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "mixed_signaling",
				Message: "X-End-Of-File is not valid for binary frame deployments",
			})
		}
		var format entities.AudioFormat
		format, err = frame.ParseFormat(header.Get("X-Sample-Rate"), header.Get("X-Bits-Per-Sample"))
		if err == nil {
			decoded, err = frame.DecodeBinary(body, format)
		}
	}
	if err != nil {
		logger.Warn("Rejected malformed frame", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "malformed_frame",
			Message: err.Error(),
		})
	}

	if err := ingest.HandleFrame(c.Request().Context(), decoded); err != nil {
		logger.Error("Frame ingestion failed",
			zap.String("fileID", decoded.FileID),
			zap.Uint16("sequence", decoded.Sequence),
			zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, entities.ErrStorageUnavailable) {
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, ErrorResponse{
			Error:   "storage_error",
			Message: "An error occurred while processing the audio frame",
		})
	}

	return c.JSON(http.StatusOK, UploadResponse{Message: "Audio frame accepted"})
}

func getObservations(c echo.Context, observations repositories.ObservationRepository, logger *zap.Logger) error {
	var from *time.Time
	if raw := c.QueryParam("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_from",
				Message: "from must be an RFC 3339 timestamp",
			})
		}
		from = &parsed
	}

	result, err := observations.List(c.Request().Context(), from)
	if err != nil {
		logger.Error("Failed to list observations", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
	return c.JSON(http.StatusOK, result)
}

func postObservation(c echo.Context, observations repositories.ObservationRepository, logger *zap.Logger) error {
	var observation entities.Observation
	if err := c.Bind(&observation); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if observation.ID == "" {
		observation.ID = uuid.NewString()
	}
	if observation.Timestamp.IsZero() {
		observation.Timestamp = time.Now().UTC()
	}

	if err := observations.Create(c.Request().Context(), &observation); err != nil {
		logger.Error("Failed to create observation", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
	return c.JSON(http.StatusOK, map[string]string{"id": observation.ID})
}

func getLogs(c echo.Context, logs repositories.LogRepository, logger *zap.Logger) error {
	page := intQueryParam(c, "page", 1)
	limit := intQueryParam(c, "limit", 10)

	result, err := logs.List(c.Request().Context(), page, limit)
	if err != nil {
		logger.Error("Failed to list logs", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
	return c.JSON(http.StatusOK, result)
}

func spanWebhook(c echo.Context, logs repositories.LogRepository, logger *zap.Logger) error {
	var payload entities.SpanWebhookPayload
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "invalid_payload",
			Message: "Could not validate request body",
		})
	}
	if len(payload.Messages) == 0 {
		return c.NoContent(http.StatusOK)
	}

	if err := logs.InsertMany(c.Request().Context(), payload.Messages); err != nil {
		logger.Error("Failed to store gateway messages", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
	logger.Info("Stored gateway messages", zap.Int("count", len(payload.Messages)))
	return c.NoContent(http.StatusOK)
}

func getAudioFile(c echo.Context, segments repositories.SegmentStore) error {
	path := segments.ArtifactPath(c.Param("imsi"), c.Param("fileID"))
	if _, err := os.Stat(path); err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "File not found",
		})
	}
	return c.File(path)
}

func getDevices(c echo.Context, devices repositories.DeviceRepository, logger *zap.Logger) error {
	result, err := devices.List(c.Request().Context())
	if err != nil {
		logger.Error("Failed to list devices", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
	return c.JSON(http.StatusOK, result)
}

func postDevice(c echo.Context, devices repositories.DeviceRepository, logger *zap.Logger) error {
	var device entities.Device
	if err := c.Bind(&device); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if err := device.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_device",
			Message: err.Error(),
		})
	}

	if err := devices.Create(c.Request().Context(), &device); err != nil {
		logger.Error("Failed to register device", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error"})
	}
	return c.JSON(http.StatusOK, device)
}

func issueToken(c echo.Context, cfg Config, logger *zap.Logger) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if cfg.APIKey == "" || req.APIKey != cfg.APIKey {
		logger.Warn("Dashboard authentication failed")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid API key",
		})
	}

	subject := req.Subject
	if subject == "" {
		subject = "dashboard"
	}
	token, err := auth.GenerateDashboardToken(subject)
	if err != nil {
		logger.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})
}

// dashboardAuth validates the Bearer token on dashboard routes.
func dashboardAuth(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := bearerClaims(c)
			if err != nil {
				logger.Warn("Rejected dashboard request", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "A valid bearer token is required",
				})
			}
			c.Set("subject", claims.Subject)
			return next(c)
		}
	}
}

// feedWithAuth handles feed connections with JWT validation.
func feedWithAuth(hub *websocket.Hub, c echo.Context, logger *zap.Logger) error {
	claims, err := bearerClaims(c)
	if err != nil {
		logger.Warn("Feed connection rejected", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "A valid bearer token is required",
		})
	}
	return websocket.HandleFeed(hub, c, claims.Subject, logger)
}

func bearerClaims(c echo.Context) (*auth.JWTClaims, error) {
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}
	if token == "" {
		// The browser WebSocket API cannot set headers; allow the token
		// as a query parameter on the feed route.
		token = c.QueryParam("token")
	}
	if token == "" {
		return nil, errors.New("missing bearer token")
	}
	return auth.ValidateToken(token)
}

func intQueryParam(c echo.Context, name string, fallback int) int {
	value, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
