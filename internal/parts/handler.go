package parts

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Vitorhlem/TruCar/internal/platform/db"
	"github.com/Vitorhlem/TruCar/internal/platform/httpx"
	"github.com/Vitorhlem/TruCar/internal/shared"
)

// Handler wires HTTP endpoints for the part catalog.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	pool     *pgxpool.Pool
	runner   db.TxRunner
	validate *validator.Validate
}

// NewHandler constructs the parts handler.
func NewHandler(logger *slog.Logger, service *Service, pool *pgxpool.Pool, runner db.TxRunner) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		pool:     pool,
		runner:   runner,
		validate: validator.New(),
	}
}

// MountRoutes registers part catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/parts", h.handleCreate)
	r.Get("/parts", h.handleList)
	r.Get("/parts/low-stock", h.handleLowStock)
	r.Get("/parts/{id}", h.handleGet)
	r.Patch("/parts/{id}", h.handleUpdate)
	r.Get("/parts/{id}/stock", h.handleStock)
}

type partPayload struct {
	Name            string `json:"name" validate:"required,max=200"`
	PartNumber      string `json:"part_number" validate:"max=100"`
	Brand           string `json:"brand" validate:"max=100"`
	Category        string `json:"category" validate:"max=100"`
	Value           string `json:"value" validate:"required"`
	MinStock        int    `json:"min_stock" validate:"gte=0"`
	Location        string `json:"location" validate:"max=200"`
	Notes           string `json:"notes" validate:"max=1000"`
	PhotoURL        string `json:"photo_url" validate:"omitempty,url"`
	InitialQuantity int    `json:"initial_quantity" validate:"gte=0,lte=500"`
}

type partResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	PartNumber string `json:"part_number,omitempty"`
	Brand      string `json:"brand,omitempty"`
	Category   string `json:"category,omitempty"`
	Value      string `json:"value"`
	MinStock   int    `json:"min_stock"`
	Location   string `json:"location,omitempty"`
	Notes      string `json:"notes,omitempty"`
	PhotoURL   string `json:"photo_url,omitempty"`
	Stock      int    `json:"stock"`
	CreatedAt  string `json:"created_at"`
}

func toPartResponse(part Part) partResponse {
	return partResponse{
		ID:         part.ID,
		Name:       part.Name,
		PartNumber: part.PartNumber,
		Brand:      part.Brand,
		Category:   part.Category,
		Value:      part.Value.StringFixed(2),
		MinStock:   part.MinStock,
		Location:   part.Location,
		Notes:      part.Notes,
		PhotoURL:   part.PhotoURL,
		Stock:      part.Stock,
		CreatedAt:  part.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	var payload partPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode payload: %w", shared.ErrValidation))
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}
	value, err := decimal.NewFromString(payload.Value)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid value: %w", shared.ErrValidation))
		return
	}

	var part Part
	err = h.runner.WithTx(r.Context(), func(ctx context.Context, q db.Executor) error {
		var txErr error
		part, txErr = h.service.Create(ctx, q, CreateInput{
			OrganizationID:  actor.OrganizationID,
			Name:            payload.Name,
			PartNumber:      payload.PartNumber,
			Brand:           payload.Brand,
			Category:        payload.Category,
			Value:           value,
			MinStock:        payload.MinStock,
			Location:        payload.Location,
			Notes:           payload.Notes,
			PhotoURL:        payload.PhotoURL,
			InitialQuantity: payload.InitialQuantity,
			ActorID:         actor.UserID,
		})
		return txErr
	})
	if err != nil {
		h.logger.Warn("create part", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPartResponse(part))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	partID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid part id: %w", shared.ErrValidation))
		return
	}
	var payload partPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode payload: %w", shared.ErrValidation))
		return
	}
	value, err := decimal.NewFromString(payload.Value)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid value: %w", shared.ErrValidation))
		return
	}

	var part Part
	err = h.runner.WithTx(r.Context(), func(ctx context.Context, q db.Executor) error {
		var txErr error
		part, txErr = h.service.Update(ctx, q, partID, actor.OrganizationID, UpdateInput{
			Name:       payload.Name,
			PartNumber: payload.PartNumber,
			Brand:      payload.Brand,
			Category:   payload.Category,
			Value:      value,
			MinStock:   payload.MinStock,
			Location:   payload.Location,
			Notes:      payload.Notes,
			PhotoURL:   payload.PhotoURL,
		})
		return txErr
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPartResponse(part))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	partID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid part id: %w", shared.ErrValidation))
		return
	}
	part, err := h.service.Get(r.Context(), h.pool, partID, actor.OrganizationID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPartResponse(part))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}
	if page <= 0 {
		page = 1
	}
	filter := Filter{
		OrganizationID: actor.OrganizationID,
		Search:         q.Get("search"),
		Offset:         (page - 1) * perPage,
		Limit:          perPage,
	}

	items, total, err := h.service.List(r.Context(), h.pool, filter)
	if err != nil {
		h.logger.Error("list parts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := make([]partResponse, 0, len(items))
	for _, part := range items {
		resp = append(resp, toPartResponse(part))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"parts":      resp,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	partID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid part id: %w", shared.ErrValidation))
		return
	}
	count, err := h.service.AvailableStock(r.Context(), h.pool, partID, actor.OrganizationID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"part_id": partID, "stock": count})
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	items, err := h.service.LowStock(r.Context(), h.pool, actor.OrganizationID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp := make([]partResponse, 0, len(items))
	for _, part := range items {
		resp = append(resp, toPartResponse(part))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"parts": resp})
}
