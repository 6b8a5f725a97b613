// Package classify runs species classification off the request path. Jobs
// are queued to a small worker pool so the upload response never waits on
// model inference.
package classify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/avisense/birdwatch/domain/repositories"
	"github.com/avisense/birdwatch/internal/upload"
	"github.com/avisense/birdwatch/internal/websocket"
)

const (
	defaultQueueSize  = 64
	defaultJobTimeout = 2 * time.Minute
)

// Dispatcher invokes the classifier capability at most once per file id per
// upload lifecycle. The caller holds the tracker's finalize claim, so only
// one dispatch can ever be enqueued for a given lifecycle; the dispatcher's
// job is to run it off-path, record the result, and drive the upload to
// done. Classifier failures are logged and swallowed: the observation just
// keeps an unset classification.
type Dispatcher struct {
	classifier   repositories.Classifier
	observations repositories.ObservationRepository
	tracker      *upload.Tracker
	hub          *websocket.Hub
	logger       *zap.Logger

	jobs       chan job
	jobTimeout time.Duration
	wg         sync.WaitGroup
}

type job struct {
	fileID       string
	deviceID     string
	artifactPath string
}

// NewDispatcher creates a dispatcher; call Start before dispatching.
func NewDispatcher(
	classifier repositories.Classifier,
	observations repositories.ObservationRepository,
	tracker *upload.Tracker,
	hub *websocket.Hub,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		classifier:   classifier,
		observations: observations,
		tracker:      tracker,
		hub:          hub,
		logger:       logger,
		jobs:         make(chan job, defaultQueueSize),
		jobTimeout:   defaultJobTimeout,
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Stop drains the queue and waits for in-flight jobs.
func (d *Dispatcher) Stop() {
	close(d.jobs)
	d.wg.Wait()
}

// Dispatch queues classification of a reassembled artifact. It blocks if
// the queue is full; callers run on background finalize goroutines, never
// on the HTTP response path.
func (d *Dispatcher) Dispatch(fileID, deviceID, artifactPath string) {
	d.jobs <- job{fileID: fileID, deviceID: deviceID, artifactPath: artifactPath}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.process(j)
	}
}

func (d *Dispatcher) process(j job) {
	// The upload reaches done whatever happens below; classification is
	// best effort and must never undo a completed reassembly.
	defer d.tracker.MarkDone(j.fileID)

	ctx, cancel := context.WithTimeout(context.Background(), d.jobTimeout)
	defer cancel()

	result, err := d.classifier.Classify(ctx, j.artifactPath)
	if err != nil {
		d.logger.Error("Classification failed",
			zap.String("fileID", j.fileID),
			zap.String("artifactPath", j.artifactPath),
			zap.Error(err))
		return
	}

	if err := d.observations.AttachClassification(ctx, j.fileID, result); err != nil {
		d.logger.Error("Failed to record classification",
			zap.String("fileID", j.fileID),
			zap.Error(err))
		return
	}

	event := websocket.NewEvent(websocket.EventObservationClassified, j.fileID, j.deviceID)
	event.Classification = result.Label
	d.hub.Broadcast(event)
}
