package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bissquit/newsroom/internal/domain"
	"github.com/bissquit/newsroom/internal/pkg/ctxlog"
)

// Pusher delivers one message to one push endpoint.
type Pusher interface {
	Push(ctx context.Context, sub domain.PushSubscription, message []byte) error
}

// DeliveryConfig contains push delivery configuration.
type DeliveryConfig struct {
	Workers           int
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultDeliveryConfig returns default push delivery configuration.
func DefaultDeliveryConfig() DeliveryConfig {
	return DeliveryConfig{
		Workers:           5,
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// DeliveryStats summarizes one delivery run.
type DeliveryStats struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Removed int `json:"removed"`
}

type pushStatus string

const (
	pushStatusSent    pushStatus = "sent"
	pushStatusFailed  pushStatus = "failed"
	pushStatusRemoved pushStatus = "removed"
)

func (s *DeliveryStats) add(status pushStatus) {
	switch status {
	case pushStatusSent:
		s.Sent++
	case pushStatusRemoved:
		s.Removed++
	default:
		s.Failed++
	}
}

type pushJob struct {
	sub     domain.PushSubscription
	message []byte
}

// Deliverer sends push payloads to every endpoint of their recipients.
type Deliverer struct {
	config DeliveryConfig
	store  PushStore
	pusher Pusher
	sleep  func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	stopped  bool
	done     chan struct{}
	inflight sync.WaitGroup
}

// NewDeliverer creates a push deliverer. A nil pusher disables delivery.
func NewDeliverer(config DeliveryConfig, store PushStore, pusher Pusher) *Deliverer {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	d := &Deliverer{
		config: config,
		store:  store,
		pusher: pusher,
		done:   make(chan struct{}),
	}
	d.sleep = d.pause
	return d
}

// Enabled reports whether a pusher is configured.
func (d *Deliverer) Enabled() bool {
	return d != nil && d.pusher != nil
}

// Deliver sends every delivery and returns the outcome counts. Endpoints the
// push service reports as gone are deleted.
func (d *Deliverer) Deliver(ctx context.Context, deliveries []domain.PushDelivery) DeliveryStats {
	var stats DeliveryStats
	if !d.Enabled() || len(deliveries) == 0 {
		return stats
	}
	logger := ctxlog.FromContext(ctx)

	jobs, err := d.jobs(ctx, deliveries)
	if err != nil {
		logger.Error("failed to prepare push delivery", "error", err)
		return stats
	}
	if len(jobs) == 0 {
		return stats
	}

	queue := make(chan pushJob)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i := 0; i < min(d.config.Workers, len(jobs)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				status := d.send(ctx, job)
				mu.Lock()
				stats.add(status)
				mu.Unlock()
			}
		}()
	}

	for _, job := range jobs {
		queue <- job
	}
	close(queue)
	wg.Wait()

	logger.Info("push delivery finished",
		"sent", stats.Sent,
		"failed", stats.Failed,
		"removed", stats.Removed,
	)
	return stats
}

// Go runs Deliver in the background, detached from ctx cancellation.
// Deliveries submitted after Stop are dropped.
func (d *Deliverer) Go(ctx context.Context, deliveries []domain.PushDelivery) {
	if !d.Enabled() || len(deliveries) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		ctxlog.FromContext(ctx).Warn("push delivery dropped, deliverer stopped")
		return
	}

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		d.Deliver(context.WithoutCancel(ctx), deliveries)
	}()
}

// Stop refuses new background deliveries, cuts pending retry backoffs short
// and waits for running deliveries until ctx expires.
func (d *Deliverer) Stop(ctx context.Context) error {
	if d == nil {
		return nil
	}

	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.done)
	}
	d.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for push delivery: %w", ctx.Err())
	}
}

func (d *Deliverer) jobs(ctx context.Context, deliveries []domain.PushDelivery) ([]pushJob, error) {
	var jobs []pushJob
	for _, delivery := range deliveries {
		if len(delivery.UserIDs) == 0 {
			continue
		}
		message, err := json.Marshal(delivery.Payload)
		if err != nil {
			return nil, err
		}
		subs, err := d.store.ListPushSubscriptions(ctx, delivery.UserIDs)
		if err != nil {
			return nil, err
		}
		for _, sub := range subs {
			jobs = append(jobs, pushJob{sub: sub, message: message})
		}
	}
	return jobs, nil
}

func (d *Deliverer) send(ctx context.Context, job pushJob) pushStatus {
	logger := ctxlog.FromContext(ctx).With("subscription_id", job.sub.ID)
	start := time.Now()

	var err error
	for attempt := 1; ; attempt++ {
		err = d.pusher.Push(ctx, job.sub, job.message)
		if err == nil {
			recordPush(string(pushStatusSent), time.Since(start))
			return pushStatusSent
		}

		if errors.Is(err, ErrEndpointGone) {
			if delErr := d.store.DeletePushEndpoint(ctx, job.sub.Endpoint); delErr != nil {
				logger.Error("failed to delete stale push endpoint", "error", delErr)
			}
			recordPush(string(pushStatusRemoved), time.Since(start))
			return pushStatusRemoved
		}

		if !isRetryable(err) || attempt >= d.config.MaxAttempts {
			break
		}
		if sleepErr := d.sleep(ctx, d.backoff(attempt)); sleepErr != nil {
			break
		}
	}

	logger.Warn("push send failed", "error", err)
	recordPush(string(pushStatusFailed), time.Since(start))
	return pushStatusFailed
}

// backoff returns the wait before retry number attempt.
func (d *Deliverer) backoff(attempt int) time.Duration {
	backoff := float64(d.config.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= d.config.BackoffMultiplier
	}

	if backoff > float64(d.config.MaxBackoff) {
		backoff = float64(d.config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// pause waits for dur unless ctx ends or the deliverer is stopped first.
func (d *Deliverer) pause(ctx context.Context, dur time.Duration) error {
	timer := time.NewTimer(dur)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return errDelivererStopped
	case <-timer.C:
		return nil
	}
}

var errDelivererStopped = errors.New("deliverer stopped")

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	var r interface{ IsRetryable() bool }
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	// Default: retry unknown errors
	return true
}

// RetryableError wraps an error and marks it as retryable or not.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

// IsRetryable returns whether the error is retryable.
func (e *RetryableError) IsRetryable() bool {
	return e.Retryable
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a retryable error.
func NewRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: true}
}

// NewNonRetryableError creates a non-retryable error.
func NewNonRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: false}
}
