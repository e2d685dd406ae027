package service

import (
	"context"
	"time"

	"staffdesk/internal/metrics"
	"staffdesk/internal/queue"
)

// SubmitOptions carries per-submission overrides. Zero values mean the
// queue-wide defaults apply.
type SubmitOptions struct {
	TTL        time.Duration
	MaxRetries int
}

// QueueService is the single entry point to the action queue. The process
// must construct exactly one instance (done in cmd/server); the queue holds
// no durable state, so a restart starts empty by design.
type QueueService struct {
	queue     *queue.FIFOQueue
	scheduler *queue.Scheduler
}

func NewQueueService(cfg queue.Config, executor queue.Executor, obs metrics.QueueObserver) *QueueService {
	q := queue.NewFIFOQueue(cfg, obs)
	return &QueueService{
		queue:     q,
		scheduler: queue.NewScheduler(q, executor),
	}
}

// Run drives the scheduler until ctx is cancelled or Stop is called.
func (s *QueueService) Run(ctx context.Context) {
	s.scheduler.Run(ctx)
}

func (s *QueueService) Stop() {
	s.scheduler.Stop()
}

// Submit enqueues an action on behalf of userID. The only synchronous
// failure is queue.ErrQueueFull.
func (s *QueueService) Submit(userID int64, payload queue.Payload, opts SubmitOptions) (string, error) {
	var enqueueOpts []queue.EnqueueOption
	if opts.TTL > 0 {
		enqueueOpts = append(enqueueOpts, queue.WithTTL(opts.TTL))
	}
	if opts.MaxRetries > 0 {
		enqueueOpts = append(enqueueOpts, queue.WithMaxRetries(opts.MaxRetries))
	}
	return s.queue.Enqueue(userID, payload, enqueueOpts...)
}

func (s *QueueService) Stats() queue.Stats {
	return s.queue.Stats()
}

// Actions lists action snapshots, optionally filtered by status and by the
// requesting user.
func (s *QueueService) Actions(status queue.Status, userID *int64) []queue.Action {
	actions := s.queue.Actions(status)
	if userID == nil {
		return actions
	}
	filtered := make([]queue.Action, 0, len(actions))
	for _, a := range actions {
		if a.UserID == *userID {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

func (s *QueueService) Get(actionID string) *queue.Action {
	return s.queue.Get(actionID)
}

func (s *QueueService) Size() int {
	return s.queue.Size()
}

func (s *QueueService) IsEmpty() bool {
	return s.queue.IsEmpty()
}
