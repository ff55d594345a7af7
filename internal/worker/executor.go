package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/wishory-lab/aiworkground/internal/observability"
	"github.com/wishory-lab/aiworkground/internal/provider"
	"github.com/wishory-lab/aiworkground/internal/queue"
	"github.com/wishory-lab/aiworkground/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// TaskStore is the slice of the persistent store the executor writes
// through. The executor is the only writer of task state, progress, and
// timestamps.
type TaskStore interface {
	GetTask(ctx context.Context, id uuid.UUID) (*store.Task, error)
	ClaimTask(ctx context.Context, id uuid.UUID) (*store.Task, error)
	CompleteTask(ctx context.Context, id uuid.UUID) (*store.Task, error)
	FailTask(ctx context.Context, id uuid.UUID) (*store.Task, error)
	CreateExecution(ctx context.Context, taskID uuid.UUID, attempt int) (*store.TaskExecution, error)
	FinishExecution(ctx context.Context, execID uuid.UUID, status store.ExecutionStatus, errMsg *string) (*store.TaskExecution, error)
}

type ResultStore interface {
	CreateResult(ctx context.Context, p store.CreateResultParams) (*store.Result, error)
}

type UserStore interface {
	IncrementTasksCompleted(ctx context.Context, userID uuid.UUID) error
}

// DeadLetter receives a record of every task that reaches the failed
// terminal state. May be nil.
type DeadLetter interface {
	PublishDLQ(ctx context.Context, msg queue.DLQMessage, hdr nats.Header) error
}

type ExecutorConfig struct {
	// ProviderTimeout bounds the routed provider call. A hung remote
	// call expires the deadline and the attempt fails.
	ProviderTimeout time.Duration
}

// Executor owns the task lifecycle state machine:
//
//	pending -> processing -> completed | failed
//
// Both terminal states are final; re-execution means a new task.
type Executor struct {
	tasks   TaskStore
	results ResultStore
	users   UserStore
	router  *Router
	dlq     DeadLetter
	logger  *zap.Logger
	cfg     ExecutorConfig
}

func NewExecutor(tasks TaskStore, results ResultStore, users UserStore, router *Router, dlq DeadLetter, logger *zap.Logger, cfg ExecutorConfig) *Executor {
	return &Executor{
		tasks:   tasks,
		results: results,
		users:   users,
		router:  router,
		dlq:     dlq,
		logger:  logger,
		cfg:     cfg,
	}
}

// Execute drives one task to a terminal state. A non-nil error means
// the task could not be examined at all (store unavailable) and the
// delivery should be redelivered later. Once the task is claimed, every
// failure is absorbed into the failed terminal state and nil is
// returned; nothing propagates back to the dispatch path.
func (e *Executor) Execute(ctx context.Context, taskID uuid.UUID, attempt int) error {
	tr := otel.Tracer("aiworkground/worker")
	ctx, span := tr.Start(ctx, "aiworkground.execute_task")
	defer span.End()
	span.SetAttributes(
		attribute.String("task.id", taskID.String()),
		attribute.Int("task.attempt", attempt),
	)

	task, err := e.tasks.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("task not found, dropping delivery", zap.String("task_id", taskID.String()))
			return nil
		}
		return err
	}

	span.SetAttributes(
		attribute.String("task.type", string(task.Type)),
		attribute.String("task.category", task.Category),
	)

	// Duplicate delivery of an in-flight or finished task.
	if task.Status == store.StatusProcessing || store.IsTerminal(task.Status) {
		return nil
	}

	// Claim first. The conditional pending->processing update is what
	// keeps at most one execution in flight per task id.
	task, err = e.tasks.ClaimTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) || errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	exec, err := e.tasks.CreateExecution(ctx, taskID, attempt)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			e.logger.Info("execution attempt already recorded, dropping delivery",
				zap.String("task_id", taskID.String()),
				zap.Int("attempt", attempt),
			)
			return nil
		}
		e.fail(ctx, task, nil, attempt, err)
		return nil
	}

	observability.TasksStartedTotal.WithLabelValues(string(task.Type), string(task.Priority)).Inc()
	start := time.Now()

	handler, err := e.router.Route(task.Type)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown_task_type")
		e.fail(ctx, task, exec, attempt, err)
		return nil
	}

	pctx := ctx
	if e.cfg.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, e.cfg.ProviderTimeout)
		defer cancel()
	}

	gen, err := handler(pctx, task)
	observability.TaskDuration.WithLabelValues(string(task.Type)).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.fail(ctx, task, exec, attempt, err)
		return nil
	}

	// The result row lands before the completed transition, so a reader
	// never observes a completed task without its result.
	if err := e.persistResult(ctx, task, gen); err != nil {
		span.RecordError(err)
		e.fail(ctx, task, exec, attempt, err)
		return nil
	}

	if _, err := e.tasks.FinishExecution(ctx, exec.ID, store.ExecSucceeded, nil); err != nil {
		e.logger.Warn("finish execution record failed",
			zap.String("task_id", taskID.String()), zap.Error(err))
	}

	if _, err := e.tasks.CompleteTask(ctx, taskID); err != nil {
		e.logger.Error("completed transition failed",
			zap.String("task_id", taskID.String()), zap.Error(err))
		return nil
	}

	observability.TasksCompletedTotal.WithLabelValues(string(task.Type)).Inc()

	// Best-effort: the task stays completed even when this fails; the
	// counter is reconciled out-of-band.
	if err := e.users.IncrementTasksCompleted(ctx, task.UserID); err != nil {
		e.logger.Warn("user stats update failed",
			zap.String("task_id", taskID.String()),
			zap.String("user_id", task.UserID.String()),
			zap.Error(err),
		)
	}

	e.logger.Info("task completed",
		zap.String("task_id", taskID.String()),
		zap.String("type", string(task.Type)),
		zap.String("category", task.Category),
		zap.Int("attempt", attempt),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (e *Executor) persistResult(ctx context.Context, task *store.Task, gen *provider.Generation) error {
	var content, fileURL *string
	if gen.Content != "" {
		c := gen.Content
		content = &c
	}
	if gen.FileURL != "" {
		u := gen.FileURL
		fileURL = &u
	}

	var meta []byte
	if len(gen.Metadata) > 0 {
		b, err := json.Marshal(gen.Metadata)
		if err != nil {
			return err
		}
		meta = b
	}

	score := gen.QualityScore
	if score <= 0 {
		score = provider.DefaultQualityScore
	}

	_, err := e.results.CreateResult(ctx, store.CreateResultParams{
		TaskID:       task.ID,
		ResultType:   store.ResultType(gen.Kind),
		Content:      content,
		FileURL:      fileURL,
		Metadata:     meta,
		QualityScore: score,
	})
	return err
}

// fail moves a claimed task to the failed terminal state. No result row
// is written; the only observable signal is the state itself plus the
// dead-letter record.
func (e *Executor) fail(ctx context.Context, task *store.Task, exec *store.TaskExecution, attempt int, cause error) {
	if exec != nil {
		msg := cause.Error()
		if _, err := e.tasks.FinishExecution(ctx, exec.ID, store.ExecFailed, &msg); err != nil {
			e.logger.Warn("finish execution record failed",
				zap.String("task_id", task.ID.String()), zap.Error(err))
		}
	}

	if _, err := e.tasks.FailTask(ctx, task.ID); err != nil {
		e.logger.Error("failed transition failed",
			zap.String("task_id", task.ID.String()), zap.Error(err))
	}

	reason := "provider_error"
	if errors.Is(cause, ErrUnknownTaskType) {
		reason = "unknown_type"
	}
	observability.TasksFailedTotal.WithLabelValues(string(task.Type), reason).Inc()

	e.publishDLQ(ctx, task, attempt, cause)

	e.logger.Error("task failed",
		zap.String("task_id", task.ID.String()),
		zap.String("type", string(task.Type)),
		zap.String("category", task.Category),
		zap.Int("attempt", attempt),
		zap.String("error", cause.Error()),
	)
}

func (e *Executor) publishDLQ(ctx context.Context, task *store.Task, attempt int, cause error) {
	if e.dlq == nil {
		return
	}

	hdr := nats.Header{}
	otel.GetTextMapPropagator().Inject(ctx, observability.NATSHeaderCarrier{H: hdr})
	hdr.Set("task_id", task.ID.String())

	msg := queue.DLQMessage{
		TaskID:   task.ID.String(),
		TaskType: string(task.Type),
		Category: task.Category,
		Attempt:  attempt,
		Error:    cause.Error(),
		FailedAt: time.Now(),
	}

	if err := e.dlq.PublishDLQ(ctx, msg, hdr); err != nil {
		e.logger.Error("failed to publish DLQ message",
			zap.String("task_id", task.ID.String()), zap.Error(err))
	}
}
