package port

import (
	"context"

	"bloodagent/internal/domain"
)

// ResultRepository stores terminal pipeline results. Each document identifier
// can be inserted once; a second insert returns domain.ErrResultExists.
type ResultRepository interface {
	Insert(ctx context.Context, result *domain.PipelineResult) error
	GetByID(ctx context.Context, documentID string) (*domain.PipelineResult, error)
}
