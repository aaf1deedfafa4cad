package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

// ErrQueueFull is returned when an event is dropped because the queue is full.
var ErrQueueFull = errors.New("notify: queue full, event dropped")

// ErrClosed is returned for events offered after Close.
var ErrClosed = errors.New("notify: dispatcher closed")

type asyncJob struct {
	kind string
	send func(ctx context.Context) error
}

// AsyncConfig tunes the queue in front of the wrapped dispatcher.
type AsyncConfig struct {
	QueueSize int           // buffered events before dropping
	PerSecond float64       // delivery rate; <= 0 means unlimited
	Timeout   time.Duration // per delivery
}

// Async accepts events without blocking and delivers them from a single
// background worker, paced by a token bucket.
type Async struct {
	next    Dispatcher
	queue   chan asyncJob
	limiter *rate.Limiter
	timeout time.Duration
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAsync(next Dispatcher, cfg AsyncConfig, log zerolog.Logger) *Async {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if cfg.PerSecond > 0 {
		limit = rate.Limit(cfg.PerSecond)
		burst = int(cfg.PerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	a := &Async{
		next:    next,
		queue:   make(chan asyncJob, cfg.QueueSize),
		limiter: rate.NewLimiter(limit, burst),
		timeout: cfg.Timeout,
		log:     log.With().Str("component", "notify.async").Logger(),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) NotifyFailureBatch(_ context.Context, failures []model.FailureReport) error {
	batch := append([]model.FailureReport(nil), failures...)
	return a.offer(asyncJob{kind: KindFailureBatch, send: func(ctx context.Context) error {
		return a.next.NotifyFailureBatch(ctx, batch)
	}})
}

func (a *Async) NotifyUpcoming(_ context.Context, s model.Schedule) error {
	return a.offer(asyncJob{kind: KindUpcoming, send: func(ctx context.Context) error {
		return a.next.NotifyUpcoming(ctx, s)
	}})
}

func (a *Async) NotifyPublished(_ context.Context, s model.Schedule) error {
	return a.offer(asyncJob{kind: KindPublished, send: func(ctx context.Context) error {
		return a.next.NotifyPublished(ctx, s)
	}})
}

func (a *Async) offer(job asyncJob) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- job:
		return nil
	default:
		a.log.Warn().Str("kind", job.kind).Msg("notification queue full, dropping event")
		return ErrQueueFull
	}
}

func (a *Async) run() {
	defer close(a.done)
	for job := range a.queue {
		_ = a.limiter.Wait(context.Background())

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := job.send(ctx); err != nil {
			a.log.Error().Err(err).Str("kind", job.kind).Msg("notification delivery failed")
		}
		cancel()
	}
}

// Close stops accepting events and waits until the queue is drained or ctx ends.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "notify: drain queue")
	}
}
