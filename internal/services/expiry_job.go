package services

import (
	"context"
	"fmt"
	"sync"

	"marketplace-service/internal/infra/logging"

	"github.com/go-logr/logr"
	"github.com/robfig/cron"
)

type orderExpirer interface {
	ExpirePendingOrders(ctx context.Context) (int, error)
}

// ExpiryJob periodically cancels pending orders whose payment never arrived.
type ExpiryJob struct {
	orders   orderExpirer
	schedule string
	cron     *cron.Cron
	logger   logr.Logger

	mu      sync.Mutex
	running bool
}

func NewExpiryJob(orders orderExpirer, schedule string) (*ExpiryJob, error) {
	if _, err := cron.Parse(schedule); err != nil {
		return nil, fmt.Errorf("order expiry schedule %q: %w", schedule, err)
	}
	return &ExpiryJob{
		orders:   orders,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logging.New("expiry_job"),
	}, nil
}

func (j *ExpiryJob) Start() error {
	if err := j.cron.AddFunc(j.schedule, j.Run); err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info("order expiry scheduled", "schedule", j.schedule)
	return nil
}

func (j *ExpiryJob) Stop() { j.cron.Stop() }

// Run performs one sweep. Overlapping ticks are skipped.
func (j *ExpiryJob) Run() {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		j.logger.V(1).Info("previous sweep still running, skipping")
		return
	}
	j.running = true
	j.mu.Unlock()
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	n, err := j.orders.ExpirePendingOrders(context.Background())
	if err != nil {
		j.logger.Error(err, "order expiry sweep failed")
		return
	}
	if n > 0 {
		j.logger.Info("expired pending orders", "count", n)
	}
}
