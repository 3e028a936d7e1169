package mocks

import (
	"context"
	"net/url"

	"marketplace-service/internal/domain"
	"marketplace-service/internal/infra/lock"
	"marketplace-service/internal/infra/payment"

	"github.com/stretchr/testify/mock"
)

type MockGateway struct {
	mock.Mock
}

type MockPublisher struct {
	mock.Mock
}

type MockOrderCache struct {
	mock.Mock
}

type MockLocker struct {
	mock.Mock
}

func (m *MockGateway) Provider() payment.Provider {
	return payment.ProviderVNPay
}

func (m *MockGateway) CreatePayment(ctx context.Context, req payment.CreatePaymentRequest) (*payment.CreatePaymentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CreatePaymentResult), args.Error(1)
}

func (m *MockGateway) CheckPaymentStatus(ctx context.Context, req payment.StatusRequest) (*payment.StatusResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.StatusResult), args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.RefundResult), args.Error(1)
}

func (m *MockGateway) ParseCallback(params url.Values) (*payment.Notification, error) {
	args := m.Called(params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Notification), args.Error(1)
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, message any) error {
	args := m.Called(ctx, topic, message)
	return args.Error(0)
}

func (m *MockOrderCache) Get(ctx context.Context, orderID uint64) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderCache) Set(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderCache) Delete(ctx context.Context, orderID uint64) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

// Lock returns a no-op unlock when the expectation supplies none.
func (m *MockLocker) Lock(ctx context.Context, key string) (lock.Unlock, error) {
	args := m.Called(ctx, key)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	if u, ok := args.Get(0).(lock.Unlock); ok && u != nil {
		return u, nil
	}
	return func(context.Context) error { return nil }, nil
}
