package repositories

import (
	"context"

	"github.com/avisense/birdwatch/domain/entities"
)

// LogRepository stores raw gateway messages for operator debugging.
type LogRepository interface {
	InsertMany(ctx context.Context, messages []entities.SpanMessage) error
	// List returns one page of messages sorted by received time, newest
	// first. Pages are 1-based.
	List(ctx context.Context, page, limit int) ([]entities.SpanMessage, error)
}
