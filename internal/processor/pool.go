// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

// Package processor runs the worker pool that drains the priority queue,
// turns each processing event into insights and hands them to delivery.
//
// Per-event failures, including panics, are logged and counted; the event is
// dropped (or re-enqueued when retries are configured) and the worker moves
// on. Nothing a handler does can stop the pool.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/insightstream/internal/cache"
	"github.com/tomtom215/insightstream/internal/intelligence"
	"github.com/tomtom215/insightstream/internal/logging"
	"github.com/tomtom215/insightstream/internal/metrics"
	"github.com/tomtom215/insightstream/internal/models"
	"github.com/tomtom215/insightstream/internal/queue"
)

var (
	// ErrStopped is returned when work is offered to a pool that is not running.
	ErrStopped = errors.New("processor: not running")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("processor: already started")

	// ErrStopTimeout is returned by Stop when workers did not finish in time.
	ErrStopTimeout = errors.New("processor: workers did not stop in time")

	// ErrAnalysisFailed marks an event whose analyzer result reported failure.
	ErrAnalysisFailed = errors.New("processor: analysis reported failure")
)

// Analyzer produces insights for one event. *intelligence.Generator satisfies it.
type Analyzer interface {
	Generate(ctx context.Context, event *models.ProcessingEvent, userContext *models.CachedContext) (*models.ProcessingResult, error)
}

// Deliverer persists and publishes insights. *delivery.Service satisfies it.
type Deliverer interface {
	Deliver(ctx context.Context, insights []*models.Insight) error
}

// activityRecorder is implemented by stores that track user activity for the scheduler.
type activityRecorder interface {
	MarkUserActive(ctx context.Context, userID string, at time.Time) error
}

// Config controls the worker pool.
type Config struct {
	Workers        int
	PopTimeout     time.Duration
	StopTimeout    time.Duration
	HandlerTimeout time.Duration
	MaxRetries     int
	// ProactiveThreshold triggers a follow-up analysis when a result creates
	// more than this many entities.
	ProactiveThreshold int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Workers:            3,
		PopTimeout:         time.Second,
		StopTimeout:        5 * time.Second,
		HandlerTimeout:     30 * time.Second,
		MaxRetries:         0,
		ProactiveThreshold: 2,
	}
}

// Pool is a fixed-size set of workers draining a PriorityQueue.
type Pool struct {
	cfg       Config
	queue     *queue.PriorityQueue
	contexts  *cache.ContextCache
	analyzer  Analyzer
	store     intelligence.EntityStore
	deliverer Deliverer

	running  atomic.Bool
	active   atomic.Int32
	started  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
	cancel   context.CancelFunc
	gate     <-chan struct{}

	stats statsRecorder
	now   func() time.Time
}

// New creates a worker pool. It does not start any goroutines.
func New(cfg Config, q *queue.PriorityQueue, contexts *cache.ContextCache, analyzer Analyzer,
	store intelligence.EntityStore, deliverer Deliverer) *Pool {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.PopTimeout <= 0 {
		cfg.PopTimeout = def.PopTimeout
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = def.StopTimeout
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = def.HandlerTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.ProactiveThreshold <= 0 {
		cfg.ProactiveThreshold = def.ProactiveThreshold
	}

	return &Pool{
		cfg:       cfg,
		queue:     q,
		contexts:  contexts,
		analyzer:  analyzer,
		store:     store,
		deliverer: deliverer,
		done:      make(chan struct{}),
		now:       time.Now,
	}
}

// Start launches the workers. Handlers run on a context detached from ctx's
// cancellation so in-flight events finish during shutdown.
func (p *Pool) Start(ctx context.Context) error {
	if p.queue.Closed() {
		return ErrStopped
	}
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	p.running.Store(true)

	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < p.cfg.Workers; i++ {
		name := fmt.Sprintf("worker-%d", i)
		g.Go(func() error {
			p.work(gctx, name)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(p.done)
	}()

	logging.Info().Int("workers", p.cfg.Workers).Msg("Processing pool started")
	return nil
}

// Stop stops accepting work, closes the queue and waits for the workers.
// It is idempotent. Workers still running after StopTimeout have their
// context cancelled and ErrStopTimeout is returned.
func (p *Pool) Stop() error {
	var err error
	p.stopOnce.Do(func() {
		p.running.Store(false)
		p.queue.Close()

		if !p.started.Load() {
			return
		}

		select {
		case <-p.done:
			logging.Info().Msg("Processing pool stopped")
		case <-time.After(p.cfg.StopTimeout):
			err = ErrStopTimeout
			logging.Warn().Dur("timeout", p.cfg.StopTimeout).Msg("Processing pool stop timed out")
		}
		p.cancel()
	})
	return err
}

// WaitFor delays Serve until gate is closed. Wire it to the delivery bridge's
// Ready channel so workers never publish to a topic with no subscriber.
// It must be called before the pool is served.
func (p *Pool) WaitFor(gate <-chan struct{}) {
	p.gate = gate
}

// Serve runs the pool until ctx is cancelled. It implements suture.Service.
func (p *Pool) Serve(ctx context.Context) error {
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := p.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	if err := p.Stop(); err != nil {
		logging.Warn().Err(err).Msg("Processing pool did not stop cleanly")
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture logging.
func (p *Pool) String() string {
	return "processing-pool"
}

// Running reports whether the pool accepts work.
func (p *Pool) Running() bool {
	return p.running.Load()
}

func (p *Pool) work(ctx context.Context, name string) {
	p.active.Add(1)
	metrics.WorkersActive.Inc()
	defer func() {
		p.active.Add(-1)
		metrics.WorkersActive.Dec()
	}()

	logger := logging.WithComponent(logging.ComponentPool).With().Str("worker", name).Logger()
	logger.Debug().Msg("Worker started")

	for p.running.Load() {
		event, err := p.queue.Pop(ctx, p.cfg.PopTimeout)
		switch {
		case err == nil:
			p.handle(ctx, name, event)
		case errors.Is(err, queue.ErrEmpty):
			continue
		case errors.Is(err, queue.ErrClosed), ctx.Err() != nil:
			logger.Debug().Msg("Worker exiting")
			return
		default:
			logger.Error().Err(err).Msg("Queue pop failed")
		}
	}
}

// handle processes one event, isolating panics and errors from the worker loop.
func (p *Pool) handle(parent context.Context, worker string, event *models.ProcessingEvent) {
	ctx, cancel := context.WithTimeout(parent, p.cfg.HandlerTimeout)
	defer cancel()
	if event.CorrelationID != "" {
		ctx = logging.ContextWithCorrelationID(ctx, event.CorrelationID)
	}
	ctx = logging.ContextWithUserID(ctx, event.UserID)

	start := p.now()
	err := p.safeDispatch(ctx, event)
	elapsed := p.now().Sub(start)
	metrics.RecordEventProcessed(string(event.EventType), elapsed, err)

	logger := logging.Ctx(ctx)
	if err != nil {
		p.stats.recordFailure()
		logger.Error().
			Err(err).
			Str("worker", worker).
			Str("event_type", string(event.EventType)).
			Int("retry_count", event.RetryCount).
			Msg("Event processing failed")
		p.retry(event)
		return
	}

	p.stats.recordSuccess(elapsed, p.now())
	logger.Info().
		Str("worker", worker).
		Str("event_type", string(event.EventType)).
		Dur("duration", elapsed).
		Msg("Event processed")

	// Scheduled and proactive runs are system generated. Counting them as
	// activity would keep every user inside the scheduler's active window.
	if event.EventType == models.EventTypeScheduledAnalysis {
		return
	}
	if rec, ok := p.store.(activityRecorder); ok {
		if err := rec.MarkUserActive(ctx, event.UserID, p.now()); err != nil {
			logger.Warn().Err(err).Msg("Failed to record user activity")
		}
	}
}

func (p *Pool) safeDispatch(ctx context.Context, event *models.ProcessingEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return p.dispatch(ctx, event)
}

func (p *Pool) retry(event *models.ProcessingEvent) {
	if event.RetryCount >= p.cfg.MaxRetries || !p.running.Load() {
		return
	}
	next := event.WithRetry()
	if err := p.queue.Push(next); err != nil {
		logging.Warn().Err(err).Str("event_type", string(event.EventType)).Msg("Failed to re-enqueue event")
		return
	}
	p.stats.recordRetry()
	metrics.RecordEventRetried(string(event.EventType))
}

// Stats returns a snapshot of pool activity.
func (p *Pool) Stats() Stats {
	out := Stats{
		QueueSize:     p.queue.Len(),
		WorkersActive: int(p.active.Load()),
		IsRunning:     p.running.Load(),
	}
	p.stats.fill(&out)
	return out
}

// QueueStatus returns queue depth and worker liveness.
func (p *Pool) QueueStatus() QueueStatus {
	s := p.Stats()
	return QueueStatus{
		QueueSize:       s.QueueSize,
		IsRunning:       s.IsRunning,
		WorkerCount:     p.cfg.Workers,
		ActiveWorkers:   s.WorkersActive,
		EventsProcessed: s.EventsProcessed,
		EventsFailed:    s.EventsFailed,
		LastProcessed:   s.LastProcessed,
	}
}

// ClearQueue drops all pending events and returns how many were dropped.
func (p *Pool) ClearQueue() int {
	n := p.queue.Clear()
	logging.Warn().Int("dropped", n).Msg("Processing queue cleared")
	return n
}
