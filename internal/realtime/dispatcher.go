package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DispatcherConfig controls the concurrency characteristics of the dispatcher.
type DispatcherConfig struct {
	QueueSize int
	Workers   int
}

// Dispatcher fans social events out to live connections from a worker pool,
// keeping slow websocket writes off the request path. Delivery is best
// effort; events for offline users are dropped.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger

	jobs   chan dispatchJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type dispatchJob struct {
	userID string
	event  Event
}

// NewDispatcher constructs a background worker pool that delivers events.
func NewDispatcher(registry *Registry, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dispatcher{
		registry: registry,
		logger:   logger,
		jobs:     make(chan dispatchJob, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}

	return d
}

// SendFriendEvent queues a friendship event for the user. Events for users
// with no live connection are dropped at enqueue, as are events hitting a
// full queue or a closed dispatcher; the notification row is the durable
// record.
func (d *Dispatcher) SendFriendEvent(userID, actorID, kind, message string) {
	if d.registry == nil {
		d.logger.Error("event dispatcher missing registry")
		return
	}
	if !d.registry.Connected(userID) {
		d.logger.Debug("user offline, skipping event", "userId", userID, "kind", kind)
		return
	}

	job := dispatchJob{
		userID: userID,
		event: Event{
			Kind:    kind,
			ActorID: actorID,
			Message: message,
			SentAt:  time.Now().UTC(),
		},
	}

	select {
	case <-d.ctx.Done():
		d.logger.Warn("event dispatcher closed, dropping event", "userId", userID, "kind", kind)
	case d.jobs <- job:
	default:
		d.logger.Warn("event queue full, dropping event", "userId", userID, "kind", kind)
	}
}

// Shutdown stops the worker pool. Events still queued are dropped; delivery
// is best effort by contract.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.once.Do(d.cancel)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case job := <-d.jobs:
			d.registry.Send(job.userID, job.event)
		}
	}
}
