// Package memory is the in-process RoundRepository used when no MongoDB
// is configured. History is lost on restart.
package memory

import (
	"context"
	"sync"

	"sitebuilder/internal/domain/entity"
	"sitebuilder/internal/domain/repository"
)

type RoundRepo struct {
	mu     sync.RWMutex
	byID   map[string]*entity.RoundRecord
	byTask map[string][]string
}

var _ repository.RoundRepository = (*RoundRepo)(nil)

func NewRoundRepo() *RoundRepo {
	return &RoundRepo{
		byID:   make(map[string]*entity.RoundRecord),
		byTask: make(map[string][]string),
	}
}

func (r *RoundRepo) Save(_ context.Context, rec *entity.RoundRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *rec
	if _, ok := r.byID[rec.ID]; !ok {
		r.byTask[rec.Task] = append(r.byTask[rec.Task], rec.ID)
	}
	r.byID[rec.ID] = &cp
	return nil
}

func (r *RoundRepo) ListByTask(_ context.Context, task string) ([]*entity.RoundRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byTask[task]
	out := make([]*entity.RoundRecord, 0, len(ids))
	for _, id := range ids {
		cp := *r.byID[id]
		out = append(out, &cp)
	}
	return out, nil
}
