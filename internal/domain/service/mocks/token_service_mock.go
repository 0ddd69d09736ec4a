package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/ssoguard/internal/domain/models"
)

type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Issue(ctx context.Context, principalName string, authorities models.AuthoritySet) (*models.Token, error) {
	args := m.Called(ctx, principalName, authorities)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Token), args.Error(1)
}

func (m *MockTokenService) Validate(ctx context.Context, tokenString string) bool {
	args := m.Called(ctx, tokenString)
	return args.Bool(0)
}

func (m *MockTokenService) Refresh(ctx context.Context, tokenString string) (*models.Token, error) {
	args := m.Called(ctx, tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Token), args.Error(1)
}

func (m *MockTokenService) Introspect(ctx context.Context, tokenString string) models.Introspection {
	args := m.Called(ctx, tokenString)
	return args.Get(0).(models.Introspection)
}

func (m *MockTokenService) Revoke(ctx context.Context, tokenString string) error {
	args := m.Called(ctx, tokenString)
	return args.Error(0)
}

func (m *MockTokenService) ToPrincipal(ctx context.Context, tokenString string) (*models.Principal, error) {
	args := m.Called(ctx, tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Principal), args.Error(1)
}
