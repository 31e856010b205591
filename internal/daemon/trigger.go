package daemon

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/boardci/boardci/internal/config"
	"github.com/boardci/boardci/internal/logfields"
)

// TriggerEvent is the payload accepted on the trigger subject:
// {"type":"nightly","branch":"master"} or {"type":"tag","tag":"v1.2"}.
type TriggerEvent struct {
	Type   string `json:"type"`
	Branch string `json:"branch,omitempty"`
	Tag    string `json:"tag,omitempty"`
}

// BuildResult is published on the result subject after every build.
type BuildResult struct {
	ID       string    `json:"id"`
	Board    string    `json:"board"`
	Type     string    `json:"type"`
	Ref      string    `json:"ref,omitempty"`
	Version  string    `json:"version,omitempty"`
	Status   string    `json:"status"`
	ExitCode int       `json:"exit_code"`
	Finished time.Time `json:"finished"`
}

// Messenger consumes trigger events and publishes build results over
// NATS.
type Messenger struct {
	conn    *nats.Conn
	cfg     config.NATSConfig
	boards  func() []string
	enqueue func(*Job)
	sub     *nats.Subscription
}

// ConnectMessenger connects to NATS and prepares the trigger consumer.
func ConnectMessenger(cfg config.NATSConfig, boards func() []string, enqueue func(*Job)) (*Messenger, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("boardci"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("Connected to NATS", logfields.URL(cfg.URL), logfields.Subject(cfg.TriggerSubject))
	return &Messenger{conn: conn, cfg: cfg, boards: boards, enqueue: enqueue}, nil
}

// Start subscribes to the trigger subject.
func (m *Messenger) Start() error {
	sub, err := m.conn.Subscribe(m.cfg.TriggerSubject, func(msg *nats.Msg) {
		m.handleTrigger(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", m.cfg.TriggerSubject, err)
	}
	m.sub = sub
	return nil
}

func (m *Messenger) handleTrigger(data []byte) {
	event, err := parseTrigger(data)
	if err != nil {
		slog.Warn("Ignoring malformed trigger event", logfields.Error(err))
		return
	}

	jobs := jobsForTrigger(event, m.boards())
	for _, job := range jobs {
		slog.Info("Trigger received", logfields.BuildID(job.ID), logfields.Board(job.Board),
			logfields.BuildType(string(job.Type)))
		m.enqueue(job)
	}
}

// PublishResult publishes a build result; failures are logged, not
// fatal, since the build itself already finished.
func (m *Messenger) PublishResult(result BuildResult) {
	data, err := json.Marshal(result)
	if err != nil {
		slog.Error("Failed to marshal build result", logfields.Error(err))
		return
	}
	if err := m.conn.Publish(m.cfg.ResultSubject, data); err != nil {
		slog.Error("Failed to publish build result", logfields.Subject(m.cfg.ResultSubject), logfields.Error(err))
	}
}

// Close drains the subscription and closes the connection.
func (m *Messenger) Close() {
	if m.sub != nil {
		_ = m.sub.Unsubscribe()
	}
	if m.conn != nil {
		m.conn.Close()
	}
}

// parseTrigger validates a trigger payload.
func parseTrigger(data []byte) (TriggerEvent, error) {
	var event TriggerEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return TriggerEvent{}, fmt.Errorf("invalid trigger payload: %w", err)
	}
	switch event.Type {
	case "nightly":
		if event.Branch == "" {
			return TriggerEvent{}, fmt.Errorf("nightly trigger requires a branch")
		}
	case "tag":
		if event.Tag == "" {
			return TriggerEvent{}, fmt.Errorf("tag trigger requires a tag")
		}
	default:
		return TriggerEvent{}, fmt.Errorf("unknown trigger type %q", event.Type)
	}
	return event, nil
}

// jobsForTrigger expands a trigger event into one job per board.
func jobsForTrigger(event TriggerEvent, boards []string) []*Job {
	now := time.Now()
	jobs := make([]*Job, 0, len(boards))
	for _, board := range boards {
		job := &Job{ID: uuid.NewString(), Board: board, CreatedAt: now}
		switch event.Type {
		case "nightly":
			job.Type = JobTypeNightly
			job.Branch = event.Branch
		case "tag":
			job.Type = JobTypeTag
			job.Tag = event.Tag
			job.Version = event.Tag
		}
		jobs = append(jobs, job)
	}
	return jobs
}
