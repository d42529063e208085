package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Vitorhlem/TruCar/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeNotify delivers an in-app notification to a user.
	TaskTypeNotify = "notify:user"
	// TaskTypeIdempotencyCleanup prunes expired idempotency keys.
	TaskTypeIdempotencyCleanup = "housekeeping:idempotency_cleanup"
)

// NotifyPayload describes one in-app notification.
type NotifyPayload struct {
	UserID    int64  `json:"user_id"`
	Message   string `json:"message"`
	RequestID int64  `json:"request_id,omitempty"`
	// Dedupe makes the task unique so retries do not double-write.
	Dedupe string `json:"dedupe"`
}

// NewNotifyTask constructs an Asynq task.
func NewNotifyTask(payload NotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeNotify, data), nil
}

// NotifyJob persists notifications delivered via the queue.
type NotifyJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
}

// NewNotifyJob initialises the notification handler.
func NewNotifyJob(pool *pgxpool.Pool, logger *slog.Logger) *NotifyJob {
	return &NotifyJob{Pool: pool, Logger: logger}
}

// Handle processes TaskTypeNotify tasks.
func (j *NotifyJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload NotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.UserID == 0 || payload.Message == "" {
		return asynq.SkipRetry
	}
	_, err := j.Pool.Exec(ctx, `INSERT INTO notifications (user_id, message, request_id, dedupe_key)
VALUES ($1, $2, $3, $4)
ON CONFLICT (dedupe_key) DO NOTHING`,
		payload.UserID, payload.Message, nullRequestID(payload.RequestID), payload.Dedupe)
	if err != nil {
		j.Logger.Error("write notification", slog.Any("error", err), slog.Int64("user_id", payload.UserID))
		return err
	}
	return nil
}

func nullRequestID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// IdempotencyCleanupJob prunes idempotency keys past their retention.
type IdempotencyCleanupJob struct {
	Store  *shared.IdempotencyStore
	Logger *slog.Logger
	// Retention defaults to 24h.
	Retention time.Duration
}

// NewIdempotencyCleanupJob initialises the cleanup handler.
func NewIdempotencyCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Store: store, Logger: logger, Retention: 24 * time.Hour}
}

// Handle processes TaskTypeIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	retention := j.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if err := j.Store.Cleanup(ctx, retention); err != nil {
		j.Logger.Error("idempotency cleanup", slog.Any("error", err))
		return err
	}
	return nil
}
