package repository

import (
	"context"

	"sitebuilder/internal/domain/entity"
)

// LLMGenerator turns a brief into a site artifact.
type LLMGenerator interface {
	// Generate asks the model for the site files and validates their shape.
	Generate(ctx context.Context, brief string, prompt entity.Prompt) (entity.Artifact, error)
}
