package api

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/avisense/birdwatch/adapters"
	"github.com/avisense/birdwatch/adapters/birdnet"
	"github.com/avisense/birdwatch/internal/classify"
	"github.com/avisense/birdwatch/internal/upload"
	"github.com/avisense/birdwatch/internal/websocket"
	"github.com/avisense/birdwatch/usecase"
)

const testIMSI = "123456789012345"

type testServer struct {
	echo *echo.Echo
	logs *adapters.MemoryLogRepository
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	logger := zap.NewNop()

	segments := adapters.NewMemorySegmentStore()
	observations := adapters.NewMemoryObservationRepository()
	devices := adapters.NewMemoryDeviceRepository()
	logs := adapters.NewMemoryLogRepository()
	classifier := birdnet.NewMockClassifier("Turdus merula", logger)

	tracker := upload.NewTracker(50*time.Millisecond, logger)
	tracker.SetPollInterval(5 * time.Millisecond)

	hub := websocket.NewHub(logger)
	go hub.Run()

	dispatcher := classify.NewDispatcher(classifier, observations, tracker, hub, logger)
	dispatcher.Start(1)
	t.Cleanup(dispatcher.Stop)

	reassembler := usecase.NewReassembler(segments, logger)
	ingest := usecase.NewIngestService(segments, observations, devices, tracker, reassembler, dispatcher, hub, logger)

	e := echo.New()
	InitRoutes(e, cfg, ingest, observations, devices, logs, segments, hub, logger)

	return &testServer{echo: e, logs: logs}
}

func defaultConfig() Config {
	return Config{
		FrameEncoding: FrameEncodingBinary,
		MaxFrameBytes: 1 << 20,
		APIKey:        "test-api-key",
	}
}

func binaryFrame(imsi string, fileID uuid.UUID, sequence uint16, payload []byte, marker bool) []byte {
	buf := make([]byte, 0, 33+len(payload)+2)
	buf = append(buf, imsi...)
	buf = append(buf, fileID[:]...)
	buf = binary.BigEndian.AppendUint16(buf, sequence)
	buf = append(buf, payload...)
	if marker {
		buf = append(buf, 0xFF, 0xD9)
	}
	return buf
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestUploadAudioBinary(t *testing.T) {
	server := newTestServer(t, defaultConfig())
	fileID := uuid.New()

	t.Run("AcceptedFrame", func(t *testing.T) {
		body := binaryFrame(testIMSI, fileID, 0, []byte{0x01, 0x02}, false)
		req := httptest.NewRequest(http.MethodPost, "/upload-audio", bytes.NewReader(body))
		rec := server.do(req)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("MalformedFrame", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload-audio", bytes.NewReader([]byte("too short")))
		rec := server.do(req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
		var resp ErrorResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Error != "malformed_frame" {
			t.Errorf("Expected malformed_frame, got %q", resp.Error)
		}
	})

	t.Run("MixedSignalingRejected", func(t *testing.T) {
		body := binaryFrame(testIMSI, fileID, 1, []byte{0x01}, true)
		req := httptest.NewRequest(http.MethodPost, "/upload-audio", bytes.NewReader(body))
		req.Header.Set("X-End-Of-File", "true")
		rec := server.do(req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
		var resp ErrorResponse
		json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Error != "mixed_signaling" {
			t.Errorf("Expected mixed_signaling, got %q", resp.Error)
		}
	})

	t.Run("OversizedFrame", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.MaxFrameBytes = 64
		small := newTestServer(t, cfg)

		body := binaryFrame(testIMSI, fileID, 0, make([]byte, 128), false)
		req := httptest.NewRequest(http.MethodPost, "/upload-audio", bytes.NewReader(body))
		rec := small.do(req)
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("Expected 413, got %d", rec.Code)
		}
	})
}

func TestUploadAudioHeaders(t *testing.T) {
	cfg := defaultConfig()
	cfg.FrameEncoding = FrameEncodingHeaders
	server := newTestServer(t, cfg)
	fileID := uuid.NewString()

	t.Run("AcceptedFrame", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload-audio", bytes.NewReader([]byte{0x01, 0x02}))
		req.Header.Set("X-IMSI", testIMSI)
		req.Header.Set("X-File-ID", fileID)
		req.Header.Set("X-Sequence-Number", "0")
		rec := server.do(req)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("BadSequence", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload-audio", bytes.NewReader([]byte{0x01}))
		req.Header.Set("X-IMSI", testIMSI)
		req.Header.Set("X-File-ID", fileID)
		req.Header.Set("X-Sequence-Number", "not-a-number")
		rec := server.do(req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})
}

func TestDashboardAuth(t *testing.T) {
	server := newTestServer(t, defaultConfig())

	t.Run("WrongAPIKey", func(t *testing.T) {
		body, _ := json.Marshal(TokenRequest{APIKey: "wrong"})
		req := httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := server.do(req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})

	t.Run("MissingToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/observations", nil)
		rec := server.do(req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})

	t.Run("TokenRoundTrip", func(t *testing.T) {
		body, _ := json.Marshal(TokenRequest{APIKey: "test-api-key", Subject: "ops"})
		req := httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := server.do(req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var token TokenResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &token); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}

		listReq := httptest.NewRequest(http.MethodGet, "/api/v1/observations", nil)
		listReq.Header.Set("Authorization", "Bearer "+token.Token)
		listRec := server.do(listReq)
		if listRec.Code != http.StatusOK {
			t.Errorf("Expected 200 with valid token, got %d", listRec.Code)
		}
	})
}

func TestObservationsFromFilter(t *testing.T) {
	server := newTestServer(t, defaultConfig())
	token := server.issueToken(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/observations?from=yesterday", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := server.do(req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a non RFC 3339 from, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/observations?from="+time.Now().UTC().Format(time.RFC3339), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = server.do(req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func (s *testServer) issueToken(t *testing.T) string {
	t.Helper()
	body, _ := json.Marshal(TokenRequest{APIKey: "test-api-key"})
	req := httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := s.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Token exchange failed: %d %s", rec.Code, rec.Body.String())
	}
	var token TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &token); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	return token.Token
}

func TestSpanWebhook(t *testing.T) {
	server := newTestServer(t, defaultConfig())

	t.Run("StoresMessages", func(t *testing.T) {
		payload := `{"messages":[{"device":{"deviceId":"d1","collectionId":"c1"},"payload":"aGVsbG8=","received":1724800000000,"type":"data","transport":"udp"}]}`
		req := httptest.NewRequest(http.MethodPost, "/span/webhook", bytes.NewReader([]byte(payload)))
		req.Header.Set("Content-Type", "application/json")
		rec := server.do(req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		stored, err := server.logs.List(req.Context(), 1, 10)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(stored) != 1 {
			t.Errorf("Expected 1 stored message, got %d", len(stored))
		}
	})

	t.Run("EmptyBatchIsOK", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/span/webhook", bytes.NewReader([]byte(`{"messages":[]}`)))
		req.Header.Set("Content-Type", "application/json")
		rec := server.do(req)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rec.Code)
		}
	})
}

func TestPostDeviceValidation(t *testing.T) {
	server := newTestServer(t, defaultConfig())
	token := server.issueToken(t)

	body, _ := json.Marshal(map[string]string{"imsi": "not-an-imsi"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := server.do(req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestGetAudioFileNotFound(t *testing.T) {
	server := newTestServer(t, defaultConfig())

	req := httptest.NewRequest(http.MethodGet, "/audio_files/"+testIMSI+"/"+uuid.NewString(), nil)
	rec := server.do(req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	server := newTestServer(t, defaultConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := server.do(req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}
