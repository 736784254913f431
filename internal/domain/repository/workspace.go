package repository

import (
	"context"

	"sitebuilder/internal/domain/entity"
)

// ArtifactValidator checks a generated artifact before it is written.
// A returned error rejects the artifact; notes are informational.
type ArtifactValidator interface {
	Validate(ctx context.Context, artifact entity.Artifact) ([]entity.ValidationNote, error)
}

// EventPublisher receives pipeline stage transitions.
type EventPublisher interface {
	Publish(ev entity.StageEvent)
}
