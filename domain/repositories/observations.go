package repositories

import (
	"context"
	"time"

	"github.com/avisense/birdwatch/domain/entities"
)

// ObservationRepository stores observation records keyed by file id.
//
// CreatePending, AttachArtifact and AttachClassification are the three
// mutations the ingestion pipeline performs, in that order. All are
// idempotent upserts: CreatePending is a no-op when the record already
// exists (retransmitted first frames), and neither attach operation may
// clobber a previously set non-nil artifact path or classification with nil.
type ObservationRepository interface {
	CreatePending(ctx context.Context, observation *entities.Observation) error
	AttachArtifact(ctx context.Context, fileID, path string) error
	AttachClassification(ctx context.Context, fileID string, result entities.ClassificationResult) error

	GetByID(ctx context.Context, fileID string) (*entities.Observation, error)
	// List returns observations, newest first. A non-nil from filters to
	// observations at or after that instant.
	List(ctx context.Context, from *time.Time) ([]*entities.Observation, error)
	// Create inserts a manually reported observation (dashboard surface).
	Create(ctx context.Context, observation *entities.Observation) error
}
