package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Vitorhlem/TruCar/internal/platform/db"
	"github.com/Vitorhlem/TruCar/internal/platform/httpx"
	"github.com/Vitorhlem/TruCar/internal/shared"
)

// Handler wires HTTP endpoints for the serialized item registry.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	pool        *pgxpool.Pool
	runner      db.TxRunner
	idempotency *shared.IdempotencyStore
	validate    *validator.Validate
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service, pool *pgxpool.Pool, runner db.TxRunner, idem *shared.IdempotencyStore) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		pool:        pool,
		runner:      runner,
		idempotency: idem,
		validate:    validator.New(),
	}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/parts/{partID}/items", h.handleCreateItems)
	r.Get("/inventory/items", h.handleListItems)
	r.Get("/inventory/items/{id}", h.handleItemDetail)
}

type createItemsPayload struct {
	Quantity int    `json:"quantity" validate:"required,gt=0,lte=500"`
	Note     string `json:"note" validate:"max=500"`
}

type itemResponse struct {
	ID          int64  `json:"id"`
	PartID      int64  `json:"part_id"`
	PartName    string `json:"part_name,omitempty"`
	Identifier  int64  `json:"item_identifier"`
	Status      string `json:"status"`
	VehicleID   int64  `json:"installed_on_vehicle_id,omitempty"`
	InstalledAt string `json:"installed_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func toItemResponse(item Item) itemResponse {
	resp := itemResponse{
		ID:         item.ID,
		PartID:     item.PartID,
		PartName:   item.PartName,
		Identifier: item.Identifier,
		Status:     string(item.Status),
		VehicleID:  item.VehicleID,
		CreatedAt:  item.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if item.InstalledAt != nil {
		resp.InstalledAt = item.InstalledAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

func (h *Handler) handleCreateItems(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	partID, err := strconv.ParseInt(chi.URLParam(r, "partID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid part id: %w", shared.ErrValidation))
		return
	}
	var payload createItemsPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode payload: %w", shared.ErrValidation))
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}

	if key := r.Header.Get("Idempotency-Key"); key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, "inventory"); err != nil {
			httpx.RespondError(w, err)
			return
		}
		defer func() {
			if err != nil {
				_ = h.idempotency.Delete(r.Context(), key)
			}
		}()
	}

	var items []Item
	err = h.runner.WithTx(r.Context(), func(ctx context.Context, q db.Executor) error {
		var txErr error
		items, txErr = h.service.CreateItems(ctx, q, BatchInput{
			PartID:         partID,
			OrganizationID: actor.OrganizationID,
			Quantity:       payload.Quantity,
			ActorID:        actor.UserID,
			Note:           payload.Note,
		})
		return txErr
	})
	if err != nil {
		h.logger.Warn("create items", slog.Any("error", err), slog.Int64("part_id", partID))
		httpx.RespondError(w, err)
		return
	}

	resp := make([]itemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toItemResponse(item))
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"items": resp})
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	q := r.URL.Query()
	filter := ItemFilter{
		OrganizationID: actor.OrganizationID,
		Search:         q.Get("search"),
	}
	if v := q.Get("status"); v != "" {
		status := ItemStatus(v)
		if !status.Valid() {
			httpx.RespondError(w, fmt.Errorf("unknown status %q: %w", v, shared.ErrValidation))
			return
		}
		filter.Status = status
	}
	filter.PartID, _ = strconv.ParseInt(q.Get("part_id"), 10, 64)
	filter.VehicleID, _ = strconv.ParseInt(q.Get("vehicle_id"), 10, 64)

	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}
	if page <= 0 {
		page = 1
	}
	filter.Offset = (page - 1) * perPage
	filter.Limit = perPage

	items, total, err := h.service.ListItems(r.Context(), h.pool, filter)
	if err != nil {
		h.logger.Error("list items", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	resp := make([]itemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toItemResponse(item))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      resp,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) handleItemDetail(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid item id: %w", shared.ErrValidation))
		return
	}

	item, err := h.service.GetItem(r.Context(), h.pool, itemID, actor.OrganizationID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	history, err := h.service.History(r.Context(), h.pool, itemID, actor.OrganizationID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	type transactionResponse struct {
		ID        int64  `json:"id"`
		Kind      string `json:"kind"`
		ActorID   int64  `json:"user_id,omitempty"`
		Note      string `json:"notes,omitempty"`
		VehicleID int64  `json:"related_vehicle_id,omitempty"`
		CreatedAt string `json:"created_at"`
	}
	entries := make([]transactionResponse, 0, len(history))
	for _, entry := range history {
		entries = append(entries, transactionResponse{
			ID:        entry.ID,
			Kind:      string(entry.Kind),
			ActorID:   entry.ActorID,
			Note:      entry.Note,
			VehicleID: entry.VehicleID,
			CreatedAt: entry.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"item":         toItemResponse(item),
		"transactions": entries,
	})
}
