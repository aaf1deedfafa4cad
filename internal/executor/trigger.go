package executor

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
)

// Trigger fires RunWithRetry on a fixed interval. A tick that arrives while
// the previous sweep is still running is skipped.
type Trigger struct {
	exec *Executor
	c    *cron.Cron
	log  zerolog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	last   Summary
}

func NewTrigger(exec *Executor, interval time.Duration, log zerolog.Logger) (*Trigger, error) {
	if interval <= 0 {
		return nil, errors.Newf("sweep interval must be positive, got %s", interval)
	}
	l := cronLogger{log: log.With().Str("component", "trigger").Logger()}
	t := &Trigger{
		exec: exec,
		log:  l.log,
		c:    cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l))),
	}
	if _, err := t.c.AddFunc("@every "+interval.String(), t.tick); err != nil {
		return nil, errors.Wrapf(err, "register sweep every %s", interval)
	}
	return t, nil
}

func (t *Trigger) Start(ctx context.Context) {
	t.mu.Lock()
	t.ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()
	t.c.Start()
	t.log.Info().Msg("sweep trigger started")
}

// Stop cancels the running sweep and waits for it, or for ctx.
func (t *Trigger) Stop(ctx context.Context) error {
	done := t.c.Stop()
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.mu.Unlock()

	select {
	case <-done.Done():
		t.log.Info().Msg("sweep trigger stopped")
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "wait for running sweep")
	}
}

// Last returns the summary of the most recent successful sweep.
func (t *Trigger) Last() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func (t *Trigger) tick() {
	t.mu.Lock()
	ctx := t.ctx
	t.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	sum, err := t.exec.RunWithRetry(ctx)
	if err != nil {
		return
	}
	t.mu.Lock()
	t.last = sum
	t.mu.Unlock()
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
