// Package upload tracks per-recording reception state and owns the
// exactly-once finalize claim that guards reassembly and classification
// dispatch against duplicate end-of-stream frames.
package upload

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/avisense/birdwatch/domain/entities"
)

const defaultPollInterval = 100 * time.Millisecond

// Tracker is the process-wide source of truth for which file ids have been
// reassembled and dispatched. Uploads move receiving -> finalizing -> done;
// done records are retained as tombstones so a file id can never be
// re-created after finalization, even if a duplicate end-of-stream frame
// shows up much later.
type Tracker struct {
	mu      sync.Mutex
	uploads map[string]*uploadState

	gapWait time.Duration
	poll    time.Duration
	logger  *zap.Logger
}

type uploadState struct {
	phase    entities.UploadState
	received map[uint16]struct{}
	maxSeen  uint16
	finalSeq uint16
	// claimed latches while a finalize attempt is in flight. It is cleared
	// on failure so a later end-of-stream event can retry, and becomes
	// irrelevant once the phase reaches done.
	claimed bool
}

// NewTracker creates a tracker. gapWait bounds how long a finalize attempt
// waits for outstanding earlier segments before declaring the upload
// incomplete.
func NewTracker(gapWait time.Duration, logger *zap.Logger) *Tracker {
	return &Tracker{
		uploads: make(map[string]*uploadState),
		gapWait: gapWait,
		poll:    defaultPollInterval,
		logger:  logger,
	}
}

// Observe records that the segment for (fileID, sequence) has been durably
// stored. It creates the upload on the first frame of a file. Frames for a
// finalized upload are ignored and Observe reports false; the caller has
// already stored the payload, which is harmless, but nothing may re-trigger
// downstream work.
func (t *Tracker) Observe(fileID string, sequence uint16) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.uploads[fileID]
	if !ok {
		u = &uploadState{
			phase:    entities.UploadStateReceiving,
			received: make(map[uint16]struct{}),
		}
		t.uploads[fileID] = u
	}
	if u.phase == entities.UploadStateDone {
		return false
	}
	u.received[sequence] = struct{}{}
	if sequence > u.maxSeen {
		u.maxSeen = sequence
	}
	return true
}

// ClaimFinalize attempts to win the one-shot finalize claim for fileID,
// triggered by an end-of-stream frame carrying finalSeq as the terminal
// sequence number. Exactly one concurrent caller wins; losers get false and
// must not reassemble or dispatch. The claim is re-armed by AbortFinalize
// after a failed attempt.
func (t *Tracker) ClaimFinalize(fileID string, finalSeq uint16) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.uploads[fileID]
	if !ok || u.phase == entities.UploadStateDone || u.claimed {
		return false
	}
	if u.maxSeen > finalSeq {
		// Frames beyond the declared end of stream: the sender is
		// confused, refuse to finalize a truncated artifact.
		t.logger.Warn("end-of-stream sequence below observed maximum",
			zap.String("fileID", fileID),
			zap.Uint16("finalSeq", finalSeq),
			zap.Uint16("maxSeen", u.maxSeen))
		return false
	}
	u.claimed = true
	u.phase = entities.UploadStateFinalizing
	u.finalSeq = finalSeq
	return true
}

// AwaitComplete blocks until every sequence 0..finalSeq has been observed,
// the bounded gap wait expires, or ctx is done. It returns the sequence
// numbers still missing; an empty result means the upload is complete. The
// wait tolerates store writes of earlier frames that are still in flight on
// other request goroutines.
func (t *Tracker) AwaitComplete(ctx context.Context, fileID string) ([]uint16, error) {
	deadline := time.Now().Add(t.gapWait)
	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	for {
		missing := t.missing(fileID)
		if len(missing) == 0 {
			return nil, nil
		}
		if time.Now().After(deadline) {
			return missing, nil
		}
		select {
		case <-ctx.Done():
			return missing, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *Tracker) missing(fileID string) []uint16 {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.uploads[fileID]
	if !ok {
		return nil
	}
	var missing []uint16
	for seq := uint16(0); ; seq++ {
		if _, ok := u.received[seq]; !ok {
			missing = append(missing, seq)
		}
		if seq == u.finalSeq {
			break
		}
	}
	return missing
}

// AbortFinalize releases the finalize claim after a failed attempt. The
// upload stays in the finalizing phase and a later end-of-stream event may
// claim it again.
func (t *Tracker) AbortFinalize(fileID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if u, ok := t.uploads[fileID]; ok && u.phase != entities.UploadStateDone {
		u.claimed = false
	}
}

// MarkDone archives the upload once reassembly and classification dispatch
// have both completed. Only the tombstone phase is retained; the received
// set is dropped.
func (t *Tracker) MarkDone(fileID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.uploads[fileID] = &uploadState{phase: entities.UploadStateDone}
}

// State reports the phase of fileID's upload, if one has been seen.
func (t *Tracker) State(fileID string) (entities.UploadState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.uploads[fileID]
	if !ok {
		return "", false
	}
	return u.phase, true
}

// SetPollInterval overrides the gap-wait poll cadence. Used by tests to
// keep the bounded wait fast.
func (t *Tracker) SetPollInterval(d time.Duration) {
	t.poll = d
}
