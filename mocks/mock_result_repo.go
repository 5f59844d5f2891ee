package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"bloodagent/internal/domain"
)

// MockResultRepo is a mock implementation of port.ResultRepository.
type MockResultRepo struct {
	mock.Mock
}

func (m *MockResultRepo) Insert(ctx context.Context, result *domain.PipelineResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockResultRepo) GetByID(ctx context.Context, documentID string) (*domain.PipelineResult, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PipelineResult), args.Error(1)
}
