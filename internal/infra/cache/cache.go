package cache

import (
	"context"
	"errors"

	"marketplace-service/internal/domain"
)

type OrderCache interface {
	Get(ctx context.Context, orderID uint64) (*domain.Order, error)
	Set(ctx context.Context, order *domain.Order) error
	Delete(ctx context.Context, orderID uint64) error
}

var ErrCacheMiss = errors.New("cache miss")

// Noop never stores anything; every Get misses.
type Noop struct{}

func (Noop) Get(context.Context, uint64) (*domain.Order, error) { return nil, ErrCacheMiss }
func (Noop) Set(context.Context, *domain.Order) error           { return nil }
func (Noop) Delete(context.Context, uint64) error               { return nil }
