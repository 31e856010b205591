// Package daemon runs continuous builds: a per-board job queue fed by
// the nightly scheduler and by trigger events, with build history in
// SQLite and results published over NATS.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/boardci/boardci/internal/cierrors"
	"github.com/boardci/boardci/internal/config"
	"github.com/boardci/boardci/internal/logfields"
	"github.com/boardci/boardci/internal/loopdev"
	"github.com/boardci/boardci/internal/metrics"
	"github.com/boardci/boardci/internal/pipeline"
	"github.com/boardci/boardci/internal/store"
)

// Daemon wires the queue, scheduler, messenger, config watcher and
// build history together.
type Daemon struct {
	mu         sync.RWMutex
	cfg        *config.DaemonConfig
	configPath string

	queue     *Queue
	scheduler *Scheduler
	messenger *Messenger
	watcher   *ConfigWatcher
	store     *store.Store
	loops     *loopdev.Pool
}

// New creates a daemon from a loaded configuration. configPath is
// watched for changes when non-empty.
func New(cfg *config.DaemonConfig, configPath string) (*Daemon, error) {
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open build history: %w", err)
	}

	d := &Daemon{
		cfg:        cfg,
		configPath: configPath,
		store:      st,
	}
	if cfg.LoopDevs.Last > 0 {
		d.loops = loopdev.NewPool(cfg.LoopDevs.First, cfg.LoopDevs.Last)
	}
	d.queue = NewQueue(cfg.MaxParallel, d.runJob)
	return d, nil
}

// Start brings up all daemon components. Optional surfaces (nightly
// schedule, NATS, config watching) are only started when configured.
func (d *Daemon) Start(ctx context.Context) error {
	cfg := d.config()

	d.logLastBuilds(ctx, cfg.Boards)
	d.queue.Start(ctx)

	if cfg.Nightly.Schedule != "" {
		sched, err := NewScheduler(d.boards, d.queue.Enqueue)
		if err != nil {
			return err
		}
		if err := sched.ScheduleNightly(cfg.Nightly.Schedule, cfg.Nightly.Branch, cfg.Nightly.VersionFormat); err != nil {
			return err
		}
		sched.Start()
		d.scheduler = sched
	}

	if cfg.NATS.URL != "" {
		msgr, err := ConnectMessenger(cfg.NATS, d.boards, d.queue.Enqueue)
		if err != nil {
			return err
		}
		if err := msgr.Start(); err != nil {
			msgr.Close()
			return err
		}
		d.messenger = msgr
	}

	if d.configPath != "" {
		watcher, err := NewConfigWatcher(d.configPath, d.applyConfig)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			watcher.Stop()
			return err
		}
		d.watcher = watcher
	}

	slog.Info("Daemon started", slog.Int("boards", len(cfg.Boards)),
		slog.Int("max_parallel", cfg.MaxParallel))
	return nil
}

// Stop shuts the daemon down, waiting for in-flight builds.
func (d *Daemon) Stop() {
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			slog.Warn("Failed to stop config watcher", logfields.Error(err))
		}
	}
	if d.scheduler != nil {
		if err := d.scheduler.Stop(); err != nil {
			slog.Warn("Failed to stop scheduler", logfields.Error(err))
		}
	}
	if d.messenger != nil {
		d.messenger.Close()
	}

	if active := d.queue.ActiveBoards(); len(active) > 0 {
		slog.Info("Waiting for in-flight builds", slog.Any("boards", active))
	}
	d.queue.Wait()

	if err := d.store.Close(); err != nil {
		slog.Warn("Failed to close build history", logfields.Error(err))
	}
	slog.Info("Daemon stopped")
}

func (d *Daemon) config() *config.DaemonConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

func (d *Daemon) boards() []string {
	return d.config().Boards
}

func (d *Daemon) applyConfig(cfg *config.DaemonConfig) {
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
}

// logLastBuilds reports where each board left off in a previous daemon
// lifetime.
func (d *Daemon) logLastBuilds(ctx context.Context, boards []string) {
	for _, board := range boards {
		records, err := d.store.RecentByBoard(ctx, board, 1)
		if err != nil {
			slog.Warn("Failed to read build history", logfields.Board(board), logfields.Error(err))
			continue
		}
		if len(records) == 0 {
			slog.Info("No previous builds", logfields.Board(board))
			continue
		}
		last := records[0]
		slog.Info("Last build", logfields.Board(board), logfields.BuildID(last.ID),
			logfields.BuildType(last.Type), logfields.Version(last.Version),
			slog.String("status", last.Status))
	}
}

// runJob executes one queued job end to end: record start, run the
// pipeline with a loop device from the pool, record the outcome and
// publish it.
func (d *Daemon) runJob(ctx context.Context, job *Job) error {
	cfg := d.config()
	if job.Type == JobTypeNightly && job.Version == "" {
		job.Version = nightlyVersion(cfg.Nightly.VersionFormat, job.Branch, time.Now())
	}
	req := requestForJob(cfg, job)

	if d.loops != nil {
		if dev, err := d.loops.Acquire(); err == nil {
			req.LoopDevice = dev
			defer func() {
				if err := d.loops.Release(dev); err != nil {
					slog.Warn("Failed to release loop device", logfields.Error(err))
				}
			}()
		} else {
			slog.Warn("No loop device available, building without one", logfields.BuildID(job.ID))
		}
	}

	rec := store.BuildRecord{
		ID:        job.ID,
		Board:     job.Board,
		Type:      string(job.Type),
		Ref:       jobRef(job),
		Version:   job.Version,
		StartedAt: time.Now(),
	}
	if err := d.store.RecordStart(ctx, rec); err != nil {
		slog.Warn("Failed to record build start", logfields.BuildID(job.ID), logfields.Error(err))
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var prom *metrics.PrometheusRecorder
	if cfg.PushGatewayURL != "" {
		prom = metrics.NewPrometheusRecorder(nil)
		recorder = prom
	}

	result, runErr := pipeline.New(req, pipeline.WithRecorder(recorder)).Run(ctx)

	if prom != nil {
		if err := prom.Push(cfg.PushGatewayURL, job.Board); err != nil {
			slog.Warn("Failed to push metrics", logfields.Error(err))
		}
	}

	status := "success"
	exitCode := 0
	version := result.Version
	if runErr != nil {
		status = "failed"
		exitCode = exitCodeFor(runErr)
		if version == "" {
			version = job.Version
		}
	}
	if err := d.store.RecordFinish(ctx, job.ID, status, version, exitCode); err != nil {
		slog.Warn("Failed to record build finish", logfields.BuildID(job.ID), logfields.Error(err))
	}

	if d.messenger != nil {
		d.messenger.PublishResult(BuildResult{
			ID:       job.ID,
			Board:    job.Board,
			Type:     string(job.Type),
			Ref:      jobRef(job),
			Version:  version,
			Status:   status,
			ExitCode: exitCode,
			Finished: time.Now(),
		})
	}
	return runErr
}

// requestForJob translates a queued job into a pipeline request using
// the daemon's repository settings.
func requestForJob(cfg *config.DaemonConfig, job *Job) *config.Request {
	req := &config.Request{
		RepoURL:      cfg.Repository,
		Credentials:  cfg.Credentials,
		Board:        job.Board,
		Driver:       cfg.Driver,
		DownloadRoot: cfg.DownloadRoot,
		CCacheRoot:   cfg.CCacheRoot,
		OutputRoot:   cfg.OutputRoot,
	}
	switch job.Type {
	case JobTypeNightly:
		req.Branch = job.Branch
		req.VersionOverride = job.Version
	case JobTypeTag:
		req.Tag = job.Tag
	}
	req.ApplyDefaults()
	return req
}

func jobRef(job *Job) string {
	if job.Type == JobTypeTag {
		return job.Tag
	}
	return job.Branch
}

func exitCodeFor(err error) int {
	var ce *cierrors.Error
	if errors.As(err, &ce) && ce.Status > 0 {
		return ce.Status
	}
	return 1
}
