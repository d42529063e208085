package jobs

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Vitorhlem/TruCar/internal/platform/httpx"
	"github.com/Vitorhlem/TruCar/internal/shared"
)

// Handler exposes queue observability and the notification inbox.
type Handler struct {
	inspector *asynq.Inspector
	pool      *pgxpool.Pool
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for job endpoints.
func NewHandler(inspector *asynq.Inspector, pool *pgxpool.Pool, logger *slog.Logger) *Handler {
	return &Handler{inspector: inspector, pool: pool, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/jobs/health", h.health)
	r.Get("/notifications", h.handleListNotifications)
	r.Post("/notifications/{id}/read", h.handleMarkRead)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	pending := 0
	queueName := QueueDefault
	if h.inspector != nil {
		info, err := h.inspector.GetQueueInfo(QueueDefault)
		if err != nil {
			h.logger.Warn("jobs health", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		if info != nil {
			pending = info.Pending
			queueName = info.Queue
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"queue": queueName, "pending": pending})
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	rows, err := h.pool.Query(r.Context(), `SELECT id, message, request_id, is_read, created_at
FROM notifications
WHERE user_id=$1
ORDER BY created_at DESC
LIMIT 100`, actor.UserID)
	if err != nil {
		h.logger.Error("list notifications", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	defer rows.Close()

	type notificationResponse struct {
		ID        int64  `json:"id"`
		Message   string `json:"message"`
		RequestID int64  `json:"request_id,omitempty"`
		IsRead    bool   `json:"is_read"`
		CreatedAt string `json:"created_at"`
	}
	list := []notificationResponse{}
	for rows.Next() {
		var (
			n         notificationResponse
			requestID *int64
			createdAt time.Time
		)
		if err := rows.Scan(&n.ID, &n.Message, &requestID, &n.IsRead, &createdAt); err != nil {
			httpx.RespondError(w, err)
			return
		}
		if requestID != nil {
			n.RequestID = *requestID
		}
		n.CreatedAt = createdAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"notifications": list})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	notificationID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid notification id: %w", shared.ErrValidation))
		return
	}
	tag, err := h.pool.Exec(r.Context(), `UPDATE notifications SET is_read=TRUE WHERE id=$1 AND user_id=$2`, notificationID, actor.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if tag.RowsAffected() == 0 {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
