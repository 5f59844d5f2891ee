package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"bloodagent/internal/domain"
	"bloodagent/internal/service"
)

// MockPipelineService is a mock implementation of service.PipelineService.
type MockPipelineService struct {
	mock.Mock
}

func (m *MockPipelineService) Submit(ctx context.Context, batch domain.Batch) (*service.BatchRun, error) {
	args := m.Called(ctx, batch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BatchRun), args.Error(1)
}

func (m *MockPipelineService) Run(ctx context.Context, batch domain.Batch) ([]*domain.PipelineResult, error) {
	args := m.Called(ctx, batch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PipelineResult), args.Error(1)
}

func (m *MockPipelineService) Result(ctx context.Context, documentID string) (*domain.PipelineResult, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PipelineResult), args.Error(1)
}

func (m *MockPipelineService) Progress(documentID string) (*domain.PipelineResult, bool) {
	args := m.Called(documentID)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*domain.PipelineResult), args.Bool(1)
}
