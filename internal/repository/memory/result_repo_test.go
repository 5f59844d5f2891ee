package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodagent/internal/domain"
	"bloodagent/internal/repository/memory"
)

func terminalResult(id string) *domain.PipelineResult {
	doc := domain.NewDocument("report.txt", domain.MediaKindText, "text/plain", []byte("Glucose 5.1"))
	res := domain.NewPipelineResult(id, &doc, domain.ModelConfig{Provider: domain.ProviderOpenAI, Model: "gpt-4o"}, time.Now())
	res.State = domain.StateCompleted
	return res
}

func TestResultRepo_InsertOnce(t *testing.T) {
	repo := memory.NewResultRepo()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, terminalResult("doc-1")))
	err := repo.Insert(ctx, terminalResult("doc-1"))

	assert.ErrorIs(t, err, domain.ErrResultExists)
}

func TestResultRepo_GetByID(t *testing.T) {
	repo := memory.NewResultRepo()
	ctx := context.Background()
	in := terminalResult("doc-1")
	require.NoError(t, repo.Insert(ctx, in))

	got, err := repo.GetByID(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, got.State)

	got.Stages[0].Status = domain.StageStatusFailed
	again, err := repo.GetByID(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageStatusPending, again.Stages[0].Status, "stored copy must not be shared")

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrResultNotFound)
}
