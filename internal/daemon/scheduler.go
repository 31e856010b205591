package daemon

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/boardci/boardci/internal/logfields"
)

// Scheduler wraps gocron for the nightly build schedule.
type Scheduler struct {
	scheduler gocron.Scheduler
	enqueue   func(*Job)
	boards    func() []string
}

// NewScheduler creates a scheduler feeding jobs into the queue. The
// boards callback is consulted at fire time so config reloads take
// effect without rescheduling.
func NewScheduler(boards func() []string, enqueue func(*Job)) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, enqueue: enqueue, boards: boards}, nil
}

// ScheduleNightly registers the nightly cron job for the given branch.
func (s *Scheduler) ScheduleNightly(cronExpr, branch, versionFormat string) error {
	_, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(s.fireNightly, branch, versionFormat),
		gocron.WithName("nightly-build"),
	)
	if err != nil {
		return fmt.Errorf("failed to create nightly build job: %w", err)
	}
	return nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// fireNightly is called by gocron; it enqueues one nightly job per
// configured board.
func (s *Scheduler) fireNightly(branch, versionFormat string) {
	version := nightlyVersion(versionFormat, branch, time.Now())
	for _, board := range s.boards() {
		job := &Job{
			ID:        uuid.NewString(),
			Board:     board,
			Type:      JobTypeNightly,
			Branch:    branch,
			Version:   version,
			CreatedAt: time.Now(),
		}
		slog.Info("Scheduling nightly build", logfields.BuildID(job.ID), logfields.Board(board),
			logfields.Ref(branch), logfields.Version(version))
		s.enqueue(job)
	}
}
