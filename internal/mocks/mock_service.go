package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockBlacklistScreen struct {
	mock.Mock
}

func (m *MockBlacklistScreen) Check(ctx context.Context, email, phone string) (string, bool, error) {
	args := m.Called(ctx, email, phone)
	return args.String(0), args.Bool(1), args.Error(2)
}

// NewMockBlacklistScreen creates a new mock blacklist screen instance
func NewMockBlacklistScreen() *MockBlacklistScreen {
	return &MockBlacklistScreen{}
}
