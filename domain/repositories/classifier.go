package repositories

import (
	"context"

	"github.com/avisense/birdwatch/domain/entities"
)

// Classifier is the opaque species classification capability: given the
// path of a reassembled recording, return a species label or no confident
// match. Calls may take seconds and may fail; the dispatcher treats both as
// best-effort.
type Classifier interface {
	Classify(ctx context.Context, filePath string) (entities.ClassificationResult, error)
}
