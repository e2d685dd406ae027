package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"staffdesk/pkg/logger"
)

func init() {
	logger.InitLogger("test")
}

type stubObserver struct {
	enqueued  int
	completed int
	failed    int
	retried   int
	expired   int
}

func (s *stubObserver) SetPendingDepth(n int)    {}
func (s *stubObserver) SetProcessingDepth(n int) {}
func (s *stubObserver) IncEnqueued()             { s.enqueued++ }
func (s *stubObserver) IncCompleted()            { s.completed++ }
func (s *stubObserver) IncFailed()               { s.failed++ }
func (s *stubObserver) IncRetried()              { s.retried++ }
func (s *stubObserver) IncExpired()              { s.expired++ }

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestQueue(cfg Config) (*FIFOQueue, *fakeClock, *stubObserver) {
	obs := &stubObserver{}
	q := NewFIFOQueue(cfg, obs)
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	q.now = clock.Now
	return q, clock, obs
}

func TestEnqueue_SizeTracksPending(t *testing.T) {
	q, clock, _ := newTestQueue(Config{})

	if !q.IsEmpty() {
		t.Fatal("new queue should be empty")
	}

	for i := 0; i < 5; i++ {
		clock.Advance(time.Millisecond)
		if _, err := q.Enqueue(1, DeleteAvatarPayload{UserID: int64(i)}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
		if q.Size() != i+1 {
			t.Fatalf("expected size %d, got %d", i+1, q.Size())
		}
	}

	q.DequeueNext()
	if q.Size() != 4 {
		t.Fatalf("expected size 4 after dequeue, got %d", q.Size())
	}
}

func TestEnqueue_CapacityExceeded(t *testing.T) {
	q, _, _ := newTestQueue(Config{MaxQueueSize: 1})

	if _, err := q.Enqueue(1, DeleteAvatarPayload{UserID: 1}); err != nil {
		t.Fatalf("first enqueue should succeed: %v", err)
	}
	_, err := q.Enqueue(1, DeleteAvatarPayload{UserID: 2})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Size() != 1 {
		t.Fatalf("rejected enqueue must not mutate pending list, size=%d", q.Size())
	}
}

func TestDequeue_FIFOOrder(t *testing.T) {
	q, clock, _ := newTestQueue(Config{})

	var ids []string
	for i := 0; i < 3; i++ {
		clock.Advance(time.Millisecond)
		id, err := q.Enqueue(1, DeleteAvatarPayload{UserID: int64(i)})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	for i := 0; i < 3; i++ {
		a := q.DequeueNext()
		if a == nil {
			t.Fatalf("dequeue %d returned nil", i)
		}
		if a.ID != ids[i] {
			t.Fatalf("dequeue %d: expected %s, got %s", i, ids[i], a.ID)
		}
		if a.Status != StatusProcessing {
			t.Fatalf("dequeued action should be processing, got %s", a.Status)
		}
		if a.ProcessedAt == nil {
			t.Fatal("dequeued action should have a processing timestamp")
		}
	}

	if q.DequeueNext() != nil {
		t.Fatal("empty queue should dequeue nil")
	}
}

func TestMarkFailed_RetriesThenFailsPermanently(t *testing.T) {
	q, clock, obs := newTestQueue(Config{MaxRetries: 3})

	id, err := q.Enqueue(1, DeleteAvatarPayload{UserID: 1})
	if err != nil {
		t.Fatal(err)
	}

	attempts := 0
	for {
		clock.Advance(10 * time.Second) // past any backoff
		a := q.DequeueNext()
		if a == nil {
			break
		}
		attempts++
		q.MarkFailed(a.ID, fmt.Sprintf("boom %d", attempts))
	}

	if attempts != 3 {
		t.Fatalf("expected 3 execution attempts, got %d", attempts)
	}

	failed := q.Actions(StatusFailed)
	if len(failed) != 1 || failed[0].ID != id {
		t.Fatalf("action should be in failed history, got %v", failed)
	}
	if failed[0].RetryCount != 3 {
		t.Fatalf("final retry count should equal max retries, got %d", failed[0].RetryCount)
	}
	if failed[0].LastError != "boom 3" {
		t.Fatalf("last error not preserved: %q", failed[0].LastError)
	}
	if failed[0].CompletedAt == nil {
		t.Fatal("terminal failure should record a completion timestamp")
	}
	if obs.retried != 2 || obs.failed != 1 {
		t.Fatalf("observer counts wrong: retried=%d failed=%d", obs.retried, obs.failed)
	}

	// Terminal actions never re-enter pending.
	clock.Advance(time.Hour)
	if q.DequeueNext() != nil {
		t.Fatal("failed action must not be retried again")
	}
}

func TestMarkFailed_BackoffDelaysReadmission(t *testing.T) {
	q, clock, _ := newTestQueue(Config{MaxRetries: 3})

	id, _ := q.Enqueue(1, DeleteAvatarPayload{UserID: 1})
	a := q.DequeueNext()
	q.MarkFailed(a.ID, "transient")

	// Backoff for the first retry is 1s; before it elapses nothing is due.
	clock.Advance(500 * time.Millisecond)
	if got := q.DequeueNext(); got != nil {
		t.Fatalf("action dequeued before backoff elapsed: %s", got.ID)
	}

	retrying := q.Actions(StatusRetrying)
	if len(retrying) != 1 || retrying[0].ID != id {
		t.Fatal("action should be observable as retrying during the backoff window")
	}

	clock.Advance(600 * time.Millisecond)
	got := q.DequeueNext()
	if got == nil || got.ID != id {
		t.Fatal("action should be readmitted after backoff")
	}
}

func TestRetry_ReentersAtFront(t *testing.T) {
	q, clock, _ := newTestQueue(Config{MaxRetries: 3})

	first, _ := q.Enqueue(1, DeleteAvatarPayload{UserID: 1})
	a := q.DequeueNext()
	q.MarkFailed(a.ID, "transient")

	clock.Advance(time.Millisecond)
	second, _ := q.Enqueue(1, DeleteAvatarPayload{UserID: 2})

	clock.Advance(2 * time.Second)
	got := q.DequeueNext()
	if got == nil || got.ID != first {
		t.Fatalf("retried action should be dequeued before later submissions, got %v", got)
	}
	next := q.DequeueNext()
	if next == nil || next.ID != second {
		t.Fatalf("expected second action next, got %v", next)
	}
}

func TestMarkCompleted(t *testing.T) {
	q, clock, obs := newTestQueue(Config{})

	id, _ := q.Enqueue(1, DeleteAvatarPayload{UserID: 1})
	a := q.DequeueNext()
	clock.Advance(time.Second)
	q.MarkCompleted(a.ID)

	completed := q.Actions(StatusCompleted)
	if len(completed) != 1 || completed[0].ID != id {
		t.Fatal("action should be in completed history")
	}
	if completed[0].CompletedAt == nil {
		t.Fatal("completed action should have a completion timestamp")
	}
	if obs.completed != 1 {
		t.Fatalf("observer completed count = %d", obs.completed)
	}
}

func TestMarkCompleted_UnknownIDIsIgnored(t *testing.T) {
	q, _, _ := newTestQueue(Config{})
	// Must not panic or mutate anything.
	q.MarkCompleted("no-such-action")
	q.MarkFailed("no-such-action", "nope")
	if s := q.Stats(); s.TotalActions != 0 {
		t.Fatalf("stats should be untouched, got %+v", s)
	}
}

func TestEvictExpired(t *testing.T) {
	q, clock, obs := newTestQueue(Config{DefaultTTL: time.Minute})

	expired, _ := q.Enqueue(1, DeleteAvatarPayload{UserID: 1}, WithTTL(0))
	clock.Advance(time.Millisecond)
	fresh, _ := q.Enqueue(1, DeleteAvatarPayload{UserID: 2})

	clock.Advance(time.Second)
	q.EvictExpired()

	if q.Size() != 1 {
		t.Fatalf("expected one survivor, size=%d", q.Size())
	}
	for _, a := range q.Actions("") {
		if a.ID == expired {
			t.Fatal("expired action should never appear in listings")
		}
	}
	if len(q.Actions(StatusFailed)) != 0 {
		t.Fatal("TTL eviction must not move actions to failed history")
	}
	if got := q.DequeueNext(); got == nil || got.ID != fresh {
		t.Fatal("fresh action should survive eviction")
	}
	if obs.expired != 1 {
		t.Fatalf("observer expired count = %d", obs.expired)
	}
}

func TestEvictExpired_SkipsInFlight(t *testing.T) {
	q, clock, _ := newTestQueue(Config{DefaultTTL: time.Millisecond})

	id, _ := q.Enqueue(1, DeleteAvatarPayload{UserID: 1})
	a := q.DequeueNext()

	clock.Advance(time.Hour)
	q.EvictExpired()

	// In-flight actions run to completion regardless of age.
	q.MarkCompleted(a.ID)
	if len(q.Actions(StatusCompleted)) != 1 {
		t.Fatalf("in-flight action %s should have survived eviction", id)
	}
}

func TestTrimHistory(t *testing.T) {
	q, clock, _ := newTestQueue(Config{MaxQueueSize: 200, MaxRetries: 1})

	for i := 0; i < 105; i++ {
		clock.Advance(time.Millisecond)
		q.Enqueue(1, DeleteAvatarPayload{UserID: int64(i)})
	}
	for i := 0; i < 105; i++ {
		a := q.DequeueNext()
		if i%2 == 0 {
			q.MarkCompleted(a.ID)
		} else {
			q.MarkFailed(a.ID, "boom") // MaxRetries 1 fails immediately
		}
	}

	q.TrimHistory()
	s := q.Stats()
	if s.CompletedActions > 100 || s.FailedActions > 100 {
		t.Fatalf("histories should be bounded to 100, got %+v", s)
	}
}

func TestStats_TotalMatchesCollections(t *testing.T) {
	q, clock, _ := newTestQueue(Config{MaxRetries: 1})

	for i := 0; i < 4; i++ {
		clock.Advance(time.Millisecond)
		q.Enqueue(1, DeleteAvatarPayload{UserID: int64(i)})
	}
	a := q.DequeueNext()
	q.MarkCompleted(a.ID)
	b := q.DequeueNext()
	q.MarkFailed(b.ID, "boom")
	q.DequeueNext() // leave one in flight

	s := q.Stats()
	if s.PendingActions != 1 || s.ProcessingActions != 1 || s.CompletedActions != 1 || s.FailedActions != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if s.TotalActions != s.PendingActions+s.ProcessingActions+s.CompletedActions+s.FailedActions {
		t.Fatalf("total must equal the sum of the four sets, got %+v", s)
	}
}

func TestActions_FilterAndOrder(t *testing.T) {
	q, clock, _ := newTestQueue(Config{})

	var order []string
	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		id, _ := q.Enqueue(int64(i), DeleteAvatarPayload{UserID: int64(i)})
		order = append(order, id)
	}
	a := q.DequeueNext()
	q.MarkCompleted(a.ID)

	all := q.Actions("")
	if len(all) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(all))
	}
	for i, id := range order {
		if all[i].ID != id {
			t.Fatalf("actions not sorted by creation time at %d", i)
		}
	}

	pending := q.Actions(StatusPending)
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending actions, got %d", len(pending))
	}
	if got := q.Actions(StatusCompleted); len(got) != 1 || got[0].ID != order[0] {
		t.Fatal("completed filter wrong")
	}
}

func TestGet(t *testing.T) {
	q, _, _ := newTestQueue(Config{})
	id, _ := q.Enqueue(7, DeleteAvatarPayload{UserID: 7})

	a := q.Get(id)
	if a == nil || a.UserID != 7 || a.Kind != KindDeleteAvatar {
		t.Fatalf("get returned wrong action: %+v", a)
	}
	if q.Get("missing") != nil {
		t.Fatal("unknown id should return nil")
	}
}

func TestEnqueue_Options(t *testing.T) {
	q, _, _ := newTestQueue(Config{DefaultTTL: time.Minute, MaxRetries: 3})

	id, _ := q.Enqueue(1, DeleteAvatarPayload{UserID: 1}, WithTTL(time.Hour), WithMaxRetries(5))
	a := q.Get(id)
	if a.TTL != time.Hour {
		t.Fatalf("ttl override not applied: %v", a.TTL)
	}
	if a.MaxRetries != 5 {
		t.Fatalf("max retries override not applied: %d", a.MaxRetries)
	}

	id2, _ := q.Enqueue(1, DeleteAvatarPayload{UserID: 2})
	b := q.Get(id2)
	if b.TTL != time.Minute || b.MaxRetries != 3 {
		t.Fatalf("defaults not applied: %+v", b)
	}
}
