package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/wishory-lab/aiworkground/internal/store"
)

const (
	SubjectUrgent = "tasks.urgent"
	SubjectHigh   = "tasks.high"
	SubjectNormal = "tasks.normal"
	SubjectLow    = "tasks.low"
	SubjectDLQ    = "tasks.dlq"
)

// SubjectForPriority maps a task priority onto its stream subject.
// Priority selects the subject only; nothing reorders execution by it.
func SubjectForPriority(p store.TaskPriority) string {
	switch p {
	case store.PriorityUrgent:
		return SubjectUrgent
	case store.PriorityHigh:
		return SubjectHigh
	case store.PriorityLow:
		return SubjectLow
	default:
		return SubjectNormal
	}
}

type Config struct {
	NATSURL      string
	StreamName   string
	ConsumerName string
	AckWait      time.Duration
}

type Queue struct {
	nc  *nats.Conn
	js  nats.JetStreamContext
	cfg Config
}

// TaskMessage is the dispatch payload: just the task id plus advisory
// priority. The worker reads everything else from the store.
type TaskMessage struct {
	TaskID   string `json:"task_id"`
	Priority string `json:"priority"`
}

// DLQMessage records a task that reached the failed terminal state, for
// operational visibility. Failed tasks are never re-driven from here.
type DLQMessage struct {
	TaskID   string    `json:"task_id"`
	TaskType string    `json:"task_type"`
	Category string    `json:"category"`
	Attempt  int       `json:"attempt"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

func New(ctx context.Context, cfg Config) (*Queue, error) {
	if cfg.AckWait == 0 {
		cfg.AckWait = 30 * time.Second
	}

	nc, err := nats.Connect(cfg.NATSURL,
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	q := &Queue{nc: nc, js: js, cfg: cfg}
	if err := q.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return q, nil
}

func (q *Queue) Close() {
	if q.nc != nil {
		q.nc.Close()
	}
}

func (q *Queue) JetStream() nats.JetStreamContext {
	return q.js
}

func (q *Queue) ensureStream(ctx context.Context) error {
	desired := []string{SubjectUrgent, SubjectHigh, SubjectNormal, SubjectLow, SubjectDLQ}

	// If the stream exists: merge subjects and update only when needed.
	if info, err := q.js.StreamInfo(q.cfg.StreamName); err == nil && info != nil {
		merged, changed := mergeSubjects(info.Config.Subjects, desired)
		if !changed {
			return nil
		}

		sc := info.Config
		sc.Subjects = merged
		sc.Name = q.cfg.StreamName

		if _, err := q.js.UpdateStream(&sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		return nil
	}

	sc := &nats.StreamConfig{
		Name:      q.cfg.StreamName,
		Subjects:  desired,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	}
	if _, err := q.js.AddStream(sc); err != nil {
		return fmt.Errorf("add stream: %w", err)
	}
	return nil
}

func mergeSubjects(existing, desired []string) ([]string, bool) {
	set := make(map[string]struct{}, len(existing)+len(desired))
	out := make([]string, 0, len(existing)+len(desired))

	for _, s := range existing {
		if _, ok := set[s]; ok {
			continue
		}
		set[s] = struct{}{}
		out = append(out, s)
	}

	changed := false
	for _, s := range desired {
		if _, ok := set[s]; ok {
			continue
		}
		set[s] = struct{}{}
		out = append(out, s)
		changed = true
	}

	return out, changed
}

// PublishTask enqueues a task id for asynchronous execution. Callers
// treat this as fire-and-forget; the task row is already durable.
func (q *Queue) PublishTask(ctx context.Context, subject string, msg TaskMessage, hdr nats.Header) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = q.js.PublishMsg(&nats.Msg{Subject: subject, Data: b, Header: hdr})
	return err
}

func (q *Queue) PublishDLQ(ctx context.Context, msg DLQMessage, hdr nats.Header) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = q.js.PublishMsg(&nats.Msg{Subject: SubjectDLQ, Data: b, Header: hdr})
	return err
}
