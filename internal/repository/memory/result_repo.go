// Package memory holds in-process repository implementations used when no
// database is configured.
package memory

import (
	"context"
	"sync"

	"bloodagent/internal/domain"
	"bloodagent/internal/port"
)

type resultRepo struct {
	mu      sync.RWMutex
	results map[string]*domain.PipelineResult
}

// NewResultRepo creates an in-memory ResultRepository.
func NewResultRepo() port.ResultRepository {
	return &resultRepo{results: make(map[string]*domain.PipelineResult)}
}

func (r *resultRepo) Insert(_ context.Context, result *domain.PipelineResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.results[result.DocumentID]; ok {
		return domain.ErrResultExists
	}
	r.results[result.DocumentID] = result.Clone()
	return nil
}

func (r *resultRepo) GetByID(_ context.Context, documentID string) (*domain.PipelineResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.results[documentID]
	if !ok {
		return nil, domain.ErrResultNotFound
	}
	return res.Clone(), nil
}
