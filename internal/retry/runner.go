// Package retry drives redelivery of update notifications whose first
// attempt failed. Tasks live in the store, so pending deliveries survive
// restarts; the runner scans for due tasks and replays them with growing
// delays until they succeed or run out of attempts.
package retry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/fedshare/fedshare-go/internal/config"
	"github.com/fedshare/fedshare-go/internal/platform/logutil"
	"github.com/fedshare/fedshare-go/internal/store"
)

// Deliverer performs one delivery attempt for a queued notification.
type Deliverer interface {
	Deliver(ctx context.Context, remote, remoteShareID, token, action string, data map[string]string) error
}

// Runner periodically replays due retry tasks.
type Runner struct {
	retries     store.RetryStore
	deliverer   Deliverer
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a runner from the retry section of the configuration.
func New(retries store.RetryStore, deliverer Deliverer, cfg *config.RetryConfig, logger *slog.Logger) *Runner {
	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 20
	}
	return &Runner{
		retries:     retries,
		deliverer:   deliverer,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logutil.OrNoop(logger),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the scan loop. Stop shuts it down.
func (r *Runner) Start(ctx context.Context) {
	go r.loop(ctx)
}

// Stop halts the loop and waits for an in-flight scan to finish.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			r.runOnce(ctx, time.Now())
		}
	}
}

// runOnce replays every task that is due at now.
func (r *Runner) runOnce(ctx context.Context, now time.Time) {
	tasks, err := r.retries.DueRetries(ctx, now.Unix())
	if err != nil {
		r.logger.Error("cannot load due retry tasks", "error", err)
		return
	}

	for _, task := range tasks {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		default:
		}
		r.process(ctx, task, now)
	}
}

func (r *Runner) process(ctx context.Context, task *store.RetryTask, now time.Time) {
	data, err := task.GetData()
	if err != nil {
		r.logger.Error("dropping retry task with unreadable payload",
			"task_id", task.ID, "action", task.Action, "error", err)
		r.deleteTask(ctx, task)
		return
	}

	err = r.deliverer.Deliver(ctx, task.Remote, task.RemoteShareID, task.Token, task.Action, data)
	if err == nil {
		r.logger.Info("queued notification delivered",
			"remote", task.Remote, "action", task.Action, "attempt", task.Attempt)
		r.deleteTask(ctx, task)
		return
	}

	if task.Attempt >= r.maxAttempts {
		r.logger.Warn("giving up on notification",
			"remote", task.Remote, "action", task.Action, "attempt", task.Attempt, "error", err)
		r.deleteTask(ctx, task)
		return
	}

	task.Attempt++
	task.NextAttemptAt = now.Add(r.delayFor(task.Attempt)).Unix()
	if err := r.retries.RescheduleRetry(ctx, task); err != nil {
		r.logger.Error("cannot reschedule retry task", "task_id", task.ID, "error", err)
	}
}

// delayFor computes the wait before the given attempt. Delays grow
// exponentially from the scan interval and are capped, with jitter so
// replays against a recovering server spread out.
func (r *Runner) delayFor(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.interval
	b.MaxInterval = 24 * time.Hour

	delay := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

func (r *Runner) deleteTask(ctx context.Context, task *store.RetryTask) {
	if err := r.retries.DeleteRetry(ctx, task.ID); err != nil {
		r.logger.Error("cannot delete retry task", "task_id", task.ID, "error", err)
	}
}
