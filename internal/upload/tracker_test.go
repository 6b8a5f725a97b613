package upload

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/avisense/birdwatch/domain/entities"
)

func newTestTracker(gapWait time.Duration) *Tracker {
	t := NewTracker(gapWait, zap.NewNop())
	t.SetPollInterval(5 * time.Millisecond)
	return t
}

func TestObserveLifecycle(t *testing.T) {
	tracker := newTestTracker(50 * time.Millisecond)

	if !tracker.Observe("f1", 0) {
		t.Fatal("First frame must be accepted")
	}
	state, ok := tracker.State("f1")
	if !ok || state != entities.UploadStateReceiving {
		t.Errorf("Expected receiving state, got %v (%v)", state, ok)
	}

	tracker.Observe("f1", 1)
	if !tracker.ClaimFinalize("f1", 1) {
		t.Fatal("First end-of-stream must win the claim")
	}
	state, _ = tracker.State("f1")
	if state != entities.UploadStateFinalizing {
		t.Errorf("Expected finalizing state, got %v", state)
	}

	tracker.MarkDone("f1")
	state, _ = tracker.State("f1")
	if state != entities.UploadStateDone {
		t.Errorf("Expected done state, got %v", state)
	}

	if tracker.Observe("f1", 0) {
		t.Error("Frames for a done upload must be rejected")
	}
	if tracker.ClaimFinalize("f1", 1) {
		t.Error("A done upload must never be claimable again")
	}
}

func TestClaimFinalizeSingleWinner(t *testing.T) {
	tracker := newTestTracker(50 * time.Millisecond)
	tracker.Observe("f1", 0)
	tracker.Observe("f1", 1)

	const claimers = 32
	var wg sync.WaitGroup
	wins := make(chan bool, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- tracker.ClaimFinalize("f1", 1)
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("Expected exactly one claim winner, got %d", winners)
	}
}

func TestAbortFinalizeReArmsClaim(t *testing.T) {
	tracker := newTestTracker(50 * time.Millisecond)
	tracker.Observe("f1", 0)

	if !tracker.ClaimFinalize("f1", 0) {
		t.Fatal("First claim should win")
	}
	if tracker.ClaimFinalize("f1", 0) {
		t.Fatal("Claim must latch while an attempt is in flight")
	}

	tracker.AbortFinalize("f1")
	state, _ := tracker.State("f1")
	if state != entities.UploadStateFinalizing {
		t.Errorf("Aborted upload must stay finalizing, got %v", state)
	}
	if !tracker.ClaimFinalize("f1", 0) {
		t.Error("A later end-of-stream event must be able to re-claim after abort")
	}
}

func TestClaimRejectsTruncatingFinalSequence(t *testing.T) {
	tracker := newTestTracker(50 * time.Millisecond)
	tracker.Observe("f1", 0)
	tracker.Observe("f1", 5)

	if tracker.ClaimFinalize("f1", 3) {
		t.Error("Claim with final sequence below the observed maximum must fail")
	}
}

func TestAwaitCompleteReportsGaps(t *testing.T) {
	tracker := newTestTracker(30 * time.Millisecond)
	tracker.Observe("f1", 0)
	tracker.Observe("f1", 2)
	tracker.ClaimFinalize("f1", 2)

	missing, err := tracker.AwaitComplete(context.Background(), "f1")
	if err != nil {
		t.Fatalf("AwaitComplete failed: %v", err)
	}
	if len(missing) != 1 || missing[0] != 1 {
		t.Errorf("Expected missing [1], got %v", missing)
	}
}

func TestAwaitCompleteToleratesLateSegment(t *testing.T) {
	tracker := newTestTracker(500 * time.Millisecond)
	tracker.Observe("f1", 0)
	tracker.Observe("f1", 2)
	tracker.ClaimFinalize("f1", 2)

	// Segment 1 lands while the finalizer is inside its bounded wait.
	go func() {
		time.Sleep(20 * time.Millisecond)
		tracker.Observe("f1", 1)
	}()

	missing, err := tracker.AwaitComplete(context.Background(), "f1")
	if err != nil {
		t.Fatalf("AwaitComplete failed: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("Expected no missing segments, got %v", missing)
	}
}

func TestAwaitCompleteHonorsContext(t *testing.T) {
	tracker := newTestTracker(10 * time.Second)
	tracker.Observe("f1", 1)
	tracker.ClaimFinalize("f1", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	missing, err := tracker.AwaitComplete(ctx, "f1")
	if err == nil {
		t.Error("Expected a context error")
	}
	if len(missing) == 0 {
		t.Error("Expected segment 0 to be reported missing")
	}
}
