package service

import (
	"context"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"orderflow/internal/gateway"
	"orderflow/internal/model"
	"orderflow/internal/store"
)

type StoreMock struct {
	mock.Mock
	store.OrderStore
}

func (m *StoreMock) InsertPending(ctx context.Context, o store.NewOrder) (model.Order, error) {
	args := m.Called(ctx, o)
	return args.Get(0).(model.Order), args.Error(1)
}

func (m *StoreMock) UpdateOutcome(ctx context.Context, id int64, ps model.PaymentStatus) (model.Order, error) {
	args := m.Called(ctx, id, ps)
	return args.Get(0).(model.Order), args.Error(1)
}

func (m *StoreMock) Get(ctx context.Context, id int64) (model.Order, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Order), args.Error(1)
}

func (m *StoreMock) List(ctx context.Context, limit int) ([]model.Order, error) {
	args := m.Called(ctx, limit)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Error(1)
}

func (m *StoreMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// countingAuthorizer records how often the gateway was called.
type countingAuthorizer struct {
	next  gateway.Authorizer
	calls atomic.Int64
}

func (c *countingAuthorizer) Authorize(ctx context.Context, req gateway.Request) (gateway.Result, error) {
	c.calls.Add(1)
	return c.next.Authorize(ctx, req)
}
