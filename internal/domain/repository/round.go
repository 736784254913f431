package repository

import (
	"context"

	"sitebuilder/internal/domain/entity"
)

// RoundRepository stores the history of handled rounds.
type RoundRepository interface {
	Save(ctx context.Context, rec *entity.RoundRecord) error
	ListByTask(ctx context.Context, task string) ([]*entity.RoundRecord, error)
}
