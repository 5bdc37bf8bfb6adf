package scheduler

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval matches classic cron's minute granularity.
const DefaultPollInterval = 1 * time.Minute

// Daemon runs the centralized schedule poller. One daemon serves all
// schedules regardless of their individual cron expressions.
type Daemon struct {
	scheduler *Scheduler
	interval  time.Duration
	ticker    *time.Ticker
	done      chan struct{}
	started   bool
	mu        sync.Mutex
}

func NewDaemon(scheduler *Scheduler, interval time.Duration) *Daemon {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Daemon{
		scheduler: scheduler,
		interval:  interval,
	}
}

// Start begins polling for due schedules. Calling Start on a started
// daemon is a no-op.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil
	}

	d.scheduler.logger.Info("Starting schedule poller", "interval", d.interval)

	d.ticker = time.NewTicker(d.interval)
	d.done = make(chan struct{})
	d.started = true

	go d.poll(ctx)

	return nil
}

// Stop gracefully shuts down the poller.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil
	}

	d.scheduler.logger.Info("Stopping schedule poller")

	if d.ticker != nil {
		d.ticker.Stop()
	}

	// Close rather than send: the poller may be mid-poll, and a dropped
	// one-shot send would leave it parked on a stopped ticker.
	close(d.done)

	d.started = false

	return nil
}

func (d *Daemon) poll(ctx context.Context) {
	for {
		select {
		case <-d.done:
			return
		case <-ctx.Done():
			return
		case <-d.ticker.C:
			now := time.Now().UTC()
			if err := d.scheduler.ProcessDueSchedules(ctx, now); err != nil {
				d.scheduler.logger.Error("Failed to process due schedules", "error", err)
			}
		}
	}
}
