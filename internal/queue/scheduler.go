package queue

import (
	"context"
	"sync"
	"time"

	"staffdesk/pkg/logger"

	"go.uber.org/zap"
)

// Executor performs the external effect for one action. Implementations must
// return a classified error; the scheduler converts any error into MarkFailed
// and never lets one escape the loop.
type Executor interface {
	Execute(ctx context.Context, action *Action) error
}

// Scheduler drives the queue: a processing tick hands at most one action at a
// time to the executor, and a cleanup tick evicts expired entries and trims
// the histories. Execution is deliberately single-flight; callers rely on
// actions completing in dequeue order.
type Scheduler struct {
	queue    *FIFOQueue
	executor Executor

	stopOnce sync.Once
	stop     chan struct{}
}

func NewScheduler(q *FIFOQueue, executor Executor) *Scheduler {
	return &Scheduler{
		queue:    q,
		executor: executor,
		stop:     make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled or Stop is called. Both tickers live in
// one goroutine, so cleanup never interleaves with an executing action.
func (s *Scheduler) Run(ctx context.Context) {
	cfg := s.queue.Config()
	processTicker := time.NewTicker(cfg.ProcessingInterval)
	defer processTicker.Stop()
	cleanupTicker := time.NewTicker(cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	logger.Info("queue scheduler started",
		zap.Duration("processing_interval", cfg.ProcessingInterval),
		zap.Duration("cleanup_interval", cfg.CleanupInterval))

	for {
		select {
		case <-ctx.Done():
			logger.Info("queue scheduler stopped")
			return
		case <-s.stop:
			logger.Info("queue scheduler stopped")
			return
		case <-processTicker.C:
			s.processNext(ctx)
		case <-cleanupTicker.C:
			s.queue.EvictExpired()
			s.queue.TrimHistory()
		}
	}
}

// Stop cancels both tickers. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Scheduler) processNext(ctx context.Context) {
	action := s.queue.DequeueNext()
	if action == nil {
		return
	}

	logger.Debug("processing action",
		zap.String("action_id", action.ID),
		zap.String("kind", string(action.Kind)),
		zap.Int64("user_id", action.UserID))

	if err := s.executor.Execute(ctx, action); err != nil {
		s.queue.MarkFailed(action.ID, err.Error())
		return
	}
	s.queue.MarkCompleted(action.ID)
}
