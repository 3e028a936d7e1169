package services

import (
	"context"
	"time"

	rabbit "marketplace-service/internal/infra/rabbitmq"

	"github.com/go-logr/logr"
)

const publishTimeout = 5 * time.Second

type pendingEvent struct {
	pattern string
	data    any
}

// publishAll sends events collected during a committed transaction. A
// failure is logged and never undoes the commit.
func publishAll(ctx context.Context, pub rabbit.PublisherInterface, log logr.Logger, events []pendingEvent) {
	if pub == nil || len(events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	for _, e := range events {
		if err := pub.Publish(ctx, e.pattern, e.data); err != nil {
			log.Error(err, "failed to publish event", "pattern", e.pattern)
			continue
		}
		log.V(1).Info("published event", "pattern", e.pattern)
	}
}
