package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type stubExecutor struct {
	executed  atomic.Int32
	inflight  atomic.Int32
	maxSeen   atomic.Int32
	delay     time.Duration
	returnErr error
}

func (e *stubExecutor) Execute(ctx context.Context, action *Action) error {
	cur := e.inflight.Add(1)
	defer e.inflight.Add(-1)
	for {
		max := e.maxSeen.Load()
		if cur <= max || e.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	e.executed.Add(1)
	return e.returnErr
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func schedulerConfig() Config {
	return Config{
		ProcessingInterval: 5 * time.Millisecond,
		CleanupInterval:    10 * time.Millisecond,
		MaxRetries:         1,
	}
}

func TestScheduler_ProcessesEnqueuedActions(t *testing.T) {
	q, _, _ := newTestQueue(schedulerConfig())
	q.now = time.Now
	exec := &stubExecutor{}
	s := NewScheduler(q, exec)
	defer s.Stop()

	go s.Run(context.Background())

	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(1, DeleteAvatarPayload{UserID: int64(i)}); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, func() bool { return q.Stats().CompletedActions == 3 })
	if got := exec.executed.Load(); got != 3 {
		t.Fatalf("executor ran %d times, want 3", got)
	}
}

func TestScheduler_SingleFlight(t *testing.T) {
	q, _, _ := newTestQueue(schedulerConfig())
	q.now = time.Now
	exec := &stubExecutor{delay: 20 * time.Millisecond}
	s := NewScheduler(q, exec)
	defer s.Stop()

	go s.Run(context.Background())

	for i := 0; i < 5; i++ {
		q.Enqueue(1, DeleteAvatarPayload{UserID: int64(i)})
	}

	waitFor(t, func() bool { return q.Stats().CompletedActions == 5 })
	if max := exec.maxSeen.Load(); max != 1 {
		t.Fatalf("expected single-flight execution, saw %d concurrent", max)
	}
}

func TestScheduler_FailureMovesToFailedHistory(t *testing.T) {
	q, _, _ := newTestQueue(schedulerConfig())
	q.now = time.Now
	exec := &stubExecutor{returnErr: errors.New("handler blew up")}
	s := NewScheduler(q, exec)
	defer s.Stop()

	go s.Run(context.Background())

	id, _ := q.Enqueue(1, DeleteAvatarPayload{UserID: 1})

	waitFor(t, func() bool { return q.Stats().FailedActions == 1 })
	failed := q.Actions(StatusFailed)
	if failed[0].ID != id || failed[0].LastError != "handler blew up" {
		t.Fatalf("unexpected failed action %+v", failed[0])
	}
}

func TestScheduler_StopHaltsProcessing(t *testing.T) {
	q, _, _ := newTestQueue(schedulerConfig())
	q.now = time.Now
	exec := &stubExecutor{}
	s := NewScheduler(q, exec)

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	s.Stop()
	s.Stop() // idempotent

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}

	q.Enqueue(1, DeleteAvatarPayload{UserID: 1})
	time.Sleep(30 * time.Millisecond)
	if q.Stats().CompletedActions != 0 {
		t.Fatal("stopped scheduler must not process actions")
	}
}

func TestScheduler_ContextCancelStops(t *testing.T) {
	q, _, _ := newTestQueue(schedulerConfig())
	q.now = time.Now
	s := NewScheduler(q, &stubExecutor{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}
}
