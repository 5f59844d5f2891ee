package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"bloodagent/internal/domain"
	"bloodagent/internal/port"
)

// MockProviderClient is a mock implementation of port.ProviderClient.
type MockProviderClient struct {
	mock.Mock
}

func (m *MockProviderClient) CompleteText(ctx context.Context, prompt, text string) (string, error) {
	args := m.Called(ctx, prompt, text)
	return args.String(0), args.Error(1)
}

func (m *MockProviderClient) CompleteVision(ctx context.Context, prompt string, image domain.Image) (string, error) {
	args := m.Called(ctx, prompt, image)
	return args.String(0), args.Error(1)
}

func (m *MockProviderClient) CompleteStructured(ctx context.Context, prompt string, schema port.Schema) (*port.StructuredOutput, error) {
	args := m.Called(ctx, prompt, schema)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.StructuredOutput), args.Error(1)
}
