package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"bloodagent/internal/port"
)

// MockLOINCRepo is a mock implementation of port.LOINCRepository.
type MockLOINCRepo struct {
	mock.Mock
}

func (m *MockLOINCRepo) LoadAll(ctx context.Context) ([]port.LOINCEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]port.LOINCEntry), args.Error(1)
}
