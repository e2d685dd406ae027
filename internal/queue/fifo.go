package queue

import (
	"container/heap"
	"sort"
	"sync"
	"time"

	"staffdesk/internal/metrics"
	"staffdesk/pkg/logger"

	"go.uber.org/zap"
)

// historyLimit bounds the completed and failed histories independently.
const historyLimit = 100

// backoffUnit is multiplied by the retry count to get the delay before a
// failed action re-enters the pending list.
const backoffUnit = time.Second

// Config is copied at queue construction and never mutated afterwards.
type Config struct {
	MaxQueueSize       int
	DefaultTTL         time.Duration
	MaxRetries         int
	ProcessingInterval time.Duration
	CleanupInterval    time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 1000
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 30 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.ProcessingInterval <= 0 {
		c.ProcessingInterval = time.Second
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	return c
}

// Stats is a projection of the queue at the moment of the call.
// TotalActions covers the four membership sets; actions waiting out a retry
// backoff are reported separately in RetryingActions.
type Stats struct {
	TotalActions      int `json:"total_actions"`
	PendingActions    int `json:"pending_actions"`
	ProcessingActions int `json:"processing_actions"`
	CompletedActions  int `json:"completed_actions"`
	FailedActions     int `json:"failed_actions"`
	RetryingActions   int `json:"retrying_actions"`
}

// retryEntry holds an action waiting for its backoff delay to elapse.
type retryEntry struct {
	at     time.Time
	action *Action
}

type retryHeap []retryEntry

func (h retryHeap) Len() int            { return len(h) }
func (h retryHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h retryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *retryHeap) Push(x any)         { *h = append(*h, x.(retryEntry)) }
func (h *retryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// FIFOQueue owns the four action collections and every status transition.
// A single coarse lock covers all state so an action is never visible in two
// collections at once. Retries wait in a min-heap keyed by their eligible-at
// time and are readmitted to the front of the pending list once due; the
// clock is a field so tests can drive time deterministically.
type FIFOQueue struct {
	mu        sync.Mutex
	cfg       Config
	pending   []*Action
	inflight  map[string]*Action
	completed []*Action
	failed    []*Action
	retries   retryHeap
	obs       metrics.QueueObserver
	now       func() time.Time
}

func NewFIFOQueue(cfg Config, obs metrics.QueueObserver) *FIFOQueue {
	return &FIFOQueue{
		cfg:      cfg.withDefaults(),
		inflight: make(map[string]*Action),
		obs:      obs,
		now:      time.Now,
	}
}

func (q *FIFOQueue) Config() Config {
	return q.cfg
}

// EnqueueOption overrides per-submission defaults.
type EnqueueOption func(*Action)

func WithTTL(ttl time.Duration) EnqueueOption {
	return func(a *Action) { a.TTL = ttl }
}

func WithMaxRetries(n int) EnqueueOption {
	return func(a *Action) { a.MaxRetries = n }
}

// Enqueue appends a new pending action to the tail of the queue. It returns
// ErrQueueFull without mutating anything when the pending list is at
// capacity.
func (q *FIFOQueue) Enqueue(userID int64, payload Payload, opts ...EnqueueOption) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) >= q.cfg.MaxQueueSize {
		return "", ErrQueueFull
	}

	action := newAction(userID, payload, q.now(), q.cfg.MaxRetries, q.cfg.DefaultTTL)
	for _, opt := range opts {
		opt(action)
	}

	q.pending = append(q.pending, action)
	q.obs.IncEnqueued()
	q.updateDepths()

	logger.Debug("action enqueued",
		zap.String("action_id", action.ID),
		zap.String("kind", string(action.Kind)),
		zap.Int64("user_id", userID))
	return action.ID, nil
}

// admitDueRetries moves retry-heap entries whose backoff has elapsed to the
// front of the pending list, earliest eligible first. Callers hold the lock.
func (q *FIFOQueue) admitDueRetries(now time.Time) {
	if q.retries.Len() == 0 {
		return
	}
	var due []*Action
	for q.retries.Len() > 0 && !q.retries[0].at.After(now) {
		e := heap.Pop(&q.retries).(retryEntry)
		e.action.Status = StatusPending
		due = append(due, e.action)
	}
	if len(due) > 0 {
		q.pending = append(due, q.pending...)
	}
}

// DequeueNext removes the head of the pending list and marks it in-flight.
// Returns nil when nothing is ready.
func (q *FIFOQueue) DequeueNext() *Action {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	q.admitDueRetries(now)

	if len(q.pending) == 0 {
		return nil
	}

	action := q.pending[0]
	q.pending = q.pending[1:]
	action.Status = StatusProcessing
	t := now
	action.ProcessedAt = &t
	q.inflight[action.ID] = action
	q.updateDepths()
	return action
}

// MarkCompleted moves an in-flight action into the completed history.
// An unknown id is a caller bug; it is logged and ignored so the scheduler
// loop survives.
func (q *FIFOQueue) MarkCompleted(actionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	action, ok := q.inflight[actionID]
	if !ok {
		logger.Warn("mark completed for action not in flight", zap.String("action_id", actionID))
		return
	}

	action.Status = StatusCompleted
	t := q.now()
	action.CompletedAt = &t
	delete(q.inflight, actionID)
	q.completed = append(q.completed, action)
	q.obs.IncCompleted()
	q.updateDepths()

	logger.Info("action completed",
		zap.String("action_id", actionID),
		zap.String("kind", string(action.Kind)))
}

// MarkFailed records the error on an in-flight action. Below the retry limit
// the action waits out a backoff of retryCount seconds and then re-enters the
// pending list at the front; at the limit it moves to the failed history for
// good.
func (q *FIFOQueue) MarkFailed(actionID string, errMsg string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	action, ok := q.inflight[actionID]
	if !ok {
		logger.Warn("mark failed for action not in flight", zap.String("action_id", actionID))
		return
	}

	action.LastError = errMsg
	action.RetryCount++
	delete(q.inflight, actionID)

	if action.RetryCount < action.MaxRetries {
		action.Status = StatusRetrying
		eligibleAt := q.now().Add(time.Duration(action.RetryCount) * backoffUnit)
		heap.Push(&q.retries, retryEntry{at: eligibleAt, action: action})
		q.obs.IncRetried()
		logger.Warn("action failed, retry scheduled",
			zap.String("action_id", actionID),
			zap.Int("retry", action.RetryCount),
			zap.Int("max_retries", action.MaxRetries),
			zap.String("error", errMsg))
	} else {
		action.Status = StatusFailed
		t := q.now()
		action.CompletedAt = &t
		q.failed = append(q.failed, action)
		q.obs.IncFailed()
		logger.Error("action failed permanently",
			zap.String("action_id", actionID),
			zap.String("kind", string(action.Kind)),
			zap.String("error", errMsg))
	}
	q.updateDepths()
}

// Stats recomputes the snapshot on every call; nothing is cached.
func (q *FIFOQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{
		PendingActions:    len(q.pending),
		ProcessingActions: len(q.inflight),
		CompletedActions:  len(q.completed),
		FailedActions:     len(q.failed),
		RetryingActions:   q.retries.Len(),
	}
	s.TotalActions = s.PendingActions + s.ProcessingActions + s.CompletedActions + s.FailedActions
	return s
}

// Actions returns value snapshots of every known action sorted by creation
// time, optionally filtered by status. Actions in the retry backoff window
// are included with status RETRYING.
func (q *FIFOQueue) Actions(filter Status) []Action {
	q.mu.Lock()
	defer q.mu.Unlock()

	all := make([]Action, 0, len(q.pending)+len(q.inflight)+q.retries.Len()+len(q.completed)+len(q.failed))
	for _, a := range q.pending {
		all = append(all, *a)
	}
	for _, a := range q.inflight {
		all = append(all, *a)
	}
	for _, e := range q.retries {
		all = append(all, *e.action)
	}
	for _, a := range q.completed {
		all = append(all, *a)
	}
	for _, a := range q.failed {
		all = append(all, *a)
	}

	if filter != "" {
		filtered := all[:0]
		for _, a := range all {
			if a.Status == filter {
				filtered = append(filtered, a)
			}
		}
		all = filtered
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return all
}

// Get returns a snapshot of one action, or nil if the id is unknown.
func (q *FIFOQueue) Get(actionID string) *Action {
	for _, a := range q.Actions("") {
		if a.ID == actionID {
			snapshot := a
			return &snapshot
		}
	}
	return nil
}

// EvictExpired drops pending actions older than their TTL. Expired work is
// logged and lost, never moved to the failed history; in-flight actions run
// to completion regardless of age.
func (q *FIFOQueue) EvictExpired() {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	kept := q.pending[:0]
	for _, a := range q.pending {
		if now.Sub(a.CreatedAt) > a.TTL {
			q.obs.IncExpired()
			logger.Warn("action expired and removed from queue",
				zap.String("action_id", a.ID),
				zap.String("kind", string(a.Kind)),
				zap.Duration("ttl", a.TTL))
			continue
		}
		kept = append(kept, a)
	}
	q.pending = kept
	q.updateDepths()
}

// TrimHistory bounds the completed and failed histories to the most recent
// entries, oldest dropped first.
func (q *FIFOQueue) TrimHistory() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.completed) > historyLimit {
		q.completed = append([]*Action(nil), q.completed[len(q.completed)-historyLimit:]...)
	}
	if len(q.failed) > historyLimit {
		q.failed = append([]*Action(nil), q.failed[len(q.failed)-historyLimit:]...)
	}
}

// Size reports the number of currently-pending actions.
func (q *FIFOQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *FIFOQueue) IsEmpty() bool {
	return q.Size() == 0
}

// Clear drops every collection. Meant for tests and operator intervention.
func (q *FIFOQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.inflight = make(map[string]*Action)
	q.completed = nil
	q.failed = nil
	q.retries = nil
	q.updateDepths()
}

func (q *FIFOQueue) updateDepths() {
	q.obs.SetPendingDepth(len(q.pending))
	q.obs.SetProcessingDepth(len(q.inflight))
}
