package rabbitmq

import (
	"context"
	"time"

	"github.com/avast/retry-go"
)

// RetryingPublisher retries transient publish failures with a fixed delay.
type RetryingPublisher struct {
	next     PublisherInterface
	attempts uint
	delay    time.Duration
}

func NewRetryingPublisher(next PublisherInterface, attempts uint, delay time.Duration) *RetryingPublisher {
	return &RetryingPublisher{next: next, attempts: attempts, delay: delay}
}

func (r *RetryingPublisher) Publish(ctx context.Context, routingKey string, data any) error {
	return retry.Do(
		func() error {
			return r.next.Publish(ctx, routingKey, data)
		},
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil
		}),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(r.delay),
		retry.Attempts(r.attempts),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Info("publish retry", "pattern", routingKey, "attempt", n+1, "error", err.Error())
		}),
	)
}

// LogPublisher only logs events. It stands in when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, routingKey string, data any) error {
	logger.Info("event", "pattern", routingKey, "data", data)
	return nil
}
