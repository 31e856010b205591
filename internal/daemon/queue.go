package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/boardci/boardci/internal/logfields"
)

// RunFunc executes one dequeued job to completion.
type RunFunc func(ctx context.Context, job *Job) error

// Queue serializes builds per board: a board never has more than one
// in-flight run, and global parallelism is bounded. Two concurrent runs
// for the same board would corrupt its caches, so a job whose board is
// busy stays queued.
type Queue struct {
	mu          sync.Mutex
	pending     []*Job
	active      map[string]*Job // keyed by board
	maxParallel int
	run         RunFunc
	wg          sync.WaitGroup
}

// NewQueue creates a queue bounded to maxParallel concurrent builds.
func NewQueue(maxParallel int, run RunFunc) *Queue {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	return &Queue{
		active:      make(map[string]*Job),
		maxParallel: maxParallel,
		run:         run,
	}
}

// Enqueue adds a job, replacing any pending job with the same key.
func (q *Queue) Enqueue(job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, pending := range q.pending {
		if pending.Key() == job.Key() {
			slog.Debug("Replacing pending job", logfields.BuildID(pending.ID))
			q.pending[i] = job
			return
		}
	}
	q.pending = append(q.pending, job)
	slog.Debug("Enqueued job", logfields.BuildID(job.ID), logfields.Board(job.Board),
		slog.Int("queued", len(q.pending)))
}

// Start begins the dispatch loop. It stops when ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				q.dispatch(ctx)
			}
		}
	}()
}

// Wait blocks until the dispatch loop and all in-flight jobs finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Pending returns the number of queued jobs.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// ActiveBoards returns the boards with an in-flight build.
func (q *Queue) ActiveBoards() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	boards := make([]string, 0, len(q.active))
	for board := range q.active {
		boards = append(boards, board)
	}
	return boards
}

// dispatch starts the first pending job whose board is idle, as long as
// a parallelism slot is free.
func (q *Queue) dispatch(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.active) >= q.maxParallel {
		return
	}

	for i, job := range q.pending {
		if _, busy := q.active[job.Board]; busy {
			continue
		}

		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		q.active[job.Board] = job

		slog.Info("Starting build", logfields.BuildID(job.ID), logfields.Board(job.Board),
			logfields.BuildType(string(job.Type)))

		q.wg.Add(1)
		go func(job *Job) {
			defer q.wg.Done()
			defer func() {
				q.mu.Lock()
				delete(q.active, job.Board)
				q.mu.Unlock()
			}()

			if err := q.run(ctx, job); err != nil {
				slog.Error("Build failed", logfields.BuildID(job.ID), logfields.Board(job.Board), logfields.Error(err))
			}
		}(job)
		return
	}
}
