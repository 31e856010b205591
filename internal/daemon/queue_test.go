package daemon

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestEnqueueReplacesSameKey(t *testing.T) {
	q := NewQueue(2, func(context.Context, *Job) error { return nil })

	q.Enqueue(&Job{ID: "a", Board: "raspberrypi", Type: JobTypeNightly, Branch: "master"})
	q.Enqueue(&Job{ID: "b", Board: "raspberrypi", Type: JobTypeNightly, Branch: "master"})

	if got := q.Pending(); got != 1 {
		t.Fatalf("expected same-key job to be replaced, got %d pending", got)
	}
	if q.pending[0].ID != "b" {
		t.Errorf("expected newest job to survive, got %q", q.pending[0].ID)
	}

	// Different board, same trigger: both stay.
	q.Enqueue(&Job{ID: "c", Board: "raspberrypi2", Type: JobTypeNightly, Branch: "master"})
	if got := q.Pending(); got != 2 {
		t.Fatalf("expected 2 pending jobs, got %d", got)
	}
}

func TestDispatchSerializesPerBoard(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var started []string

	q := NewQueue(4, func(_ context.Context, job *Job) error {
		mu.Lock()
		started = append(started, job.ID)
		mu.Unlock()
		<-release
		return nil
	})

	q.Enqueue(&Job{ID: "first", Board: "raspberrypi", Type: JobTypeNightly, Branch: "master"})
	q.Enqueue(&Job{ID: "second", Board: "raspberrypi", Type: JobTypeTag, Tag: "v1"})
	q.Enqueue(&Job{ID: "other", Board: "raspberrypi2", Type: JobTypeNightly, Branch: "master"})

	ctx := context.Background()
	q.dispatch(ctx) // starts "first"
	q.dispatch(ctx) // must skip "second" (board busy), starts "other"
	q.dispatch(ctx) // nothing startable

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(started) == 2
	})

	mu.Lock()
	if started[0] != "first" || started[1] != "other" {
		t.Errorf("unexpected start order: %v", started)
	}
	mu.Unlock()

	if got := q.Pending(); got != 1 {
		t.Fatalf("expected the same-board job to stay queued, got %d pending", got)
	}

	close(release)
	waitFor(t, func() bool { return len(q.ActiveBoards()) == 0 })

	// Board is idle again, the held-back job may start now.
	q.dispatch(ctx)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(started) == 3
	})
}

func TestDispatchHonorsMaxParallel(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue(1, func(context.Context, *Job) error {
		<-release
		return nil
	})

	q.Enqueue(&Job{ID: "a", Board: "raspberrypi", Type: JobTypeNightly, Branch: "master"})
	q.Enqueue(&Job{ID: "b", Board: "raspberrypi2", Type: JobTypeNightly, Branch: "master"})

	ctx := context.Background()
	q.dispatch(ctx)
	q.dispatch(ctx)

	waitFor(t, func() bool { return len(q.ActiveBoards()) == 1 })
	if got := q.Pending(); got != 1 {
		t.Fatalf("expected second job to wait for a slot, got %d pending", got)
	}

	close(release)
	waitFor(t, func() bool { return len(q.ActiveBoards()) == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
