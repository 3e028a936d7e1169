package lock

import (
	"context"
	"errors"
)

// Unlock releases a held lock.
type Unlock func(ctx context.Context) error

type Locker interface {
	// Lock blocks until key is held, the retry budget is spent or ctx ends.
	Lock(ctx context.Context, key string) (Unlock, error)
}

var ErrNotObtained = errors.New("lock: not obtained")

// Noop hands out locks without coordination. Correctness then rests on the
// database row lock alone.
type Noop struct{}

func (Noop) Lock(context.Context, string) (Unlock, error) {
	return func(context.Context) error { return nil }, nil
}
