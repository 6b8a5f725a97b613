package birdnet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/avisense/birdwatch/domain/entities"
)

func TestClassify(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/analyze" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			FilePath string `json:"file_path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Decode request failed: %v", err)
		}
		gotPath = req.FilePath

		label := "Turdus merula"
		redlisted := false
		json.NewEncoder(w).Encode(analyzeResponse{Classification: &label, IsRedlisted: &redlisted})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
	result, err := client.Classify(context.Background(), "audio_files/123456789012345/abc.wav")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if gotPath != "audio_files/123456789012345/abc.wav" {
		t.Errorf("Analyzer received path %q", gotPath)
	}
	if result.Label == nil || *result.Label != "Turdus merula" {
		t.Errorf("Expected label, got %v", result.Label)
	}
	if result.IsRedlisted == nil || *result.IsRedlisted {
		t.Errorf("Expected is_redlisted false, got %v", result.IsRedlisted)
	}
}

func TestClassifyNoConfidentMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The analyzer answers with explicit nulls when nothing matched.
		w.Write([]byte(`{"classification": null, "is_redlisted": null}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
	result, err := client.Classify(context.Background(), "some.wav")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.Label != nil {
		t.Errorf("Expected nil label, got %q", *result.Label)
	}
}

func TestClassifyAnalyzerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
	_, err := client.Classify(context.Background(), "some.wav")
	if !errors.Is(err, entities.ErrClassificationFailed) {
		t.Errorf("Expected ErrClassificationFailed, got %v", err)
	}
}

func TestClassifyUnreachableAnalyzer(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, zap.NewNop())
	_, err := client.Classify(context.Background(), "some.wav")
	if !errors.Is(err, entities.ErrClassificationFailed) {
		t.Errorf("Expected ErrClassificationFailed, got %v", err)
	}
}

func TestClassifyHonorsContext(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server starts its background read and can
		// observe the client disconnect; otherwise r.Context() never fires
		// and Close deadlocks.
		io.Copy(io.Discard, r.Body)
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.Classify(ctx, "some.wav")
	if err == nil {
		t.Error("Expected an error after context cancellation")
	}
}
