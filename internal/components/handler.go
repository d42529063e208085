package components

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Vitorhlem/TruCar/internal/inventory"
	"github.com/Vitorhlem/TruCar/internal/platform/db"
	"github.com/Vitorhlem/TruCar/internal/platform/httpx"
	"github.com/Vitorhlem/TruCar/internal/shared"
)

// Handler wires HTTP endpoints for installation records and the item
// status-change operation.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	pool     *pgxpool.Pool
	runner   db.TxRunner
	validate *validator.Validate
}

// NewHandler constructs the components handler.
func NewHandler(logger *slog.Logger, service *Service, pool *pgxpool.Pool, runner db.TxRunner) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		pool:     pool,
		runner:   runner,
		validate: validator.New(),
	}
}

// MountRoutes registers component routes. The item status-change endpoint
// lives here because transitions carry installation and cost side effects.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/inventory/items/{id}/status", h.handleChangeStatus)
	r.Get("/vehicles/{vehicleID}/components", h.handleListByVehicle)
	r.Post("/vehicles/{vehicleID}/components", h.handleInstall)
	r.Post("/components/{id}/discard", h.handleDiscard)
}

type changeStatusPayload struct {
	Status    string `json:"status" validate:"required,oneof=AVAILABLE IN_USE END_OF_LIFE"`
	VehicleID int64  `json:"vehicle_id" validate:"gte=0"`
	Note      string `json:"notes" validate:"max=500"`
}

type componentResponse struct {
	ID             int64  `json:"id"`
	VehicleID      int64  `json:"vehicle_id"`
	PartID         int64  `json:"part_id"`
	PartName       string `json:"part_name,omitempty"`
	ItemID         int64  `json:"item_id"`
	ItemIdentifier int64  `json:"item_identifier,omitempty"`
	IsActive       bool   `json:"is_active"`
	InstalledAt    string `json:"installed_at"`
	UninstalledAt  string `json:"uninstalled_at,omitempty"`
}

func toComponentResponse(c Component) componentResponse {
	resp := componentResponse{
		ID:             c.ID,
		VehicleID:      c.VehicleID,
		PartID:         c.PartID,
		PartName:       c.PartName,
		ItemID:         c.ItemID,
		ItemIdentifier: c.ItemIdentifier,
		IsActive:       c.IsActive,
		InstalledAt:    c.InstalledAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if c.UninstalledAt != nil {
		resp.UninstalledAt = c.UninstalledAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

func (h *Handler) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
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
	var payload changeStatusPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode payload: %w", shared.ErrValidation))
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}

	var result ChangeResult
	err = h.runner.WithTx(r.Context(), func(ctx context.Context, q db.Executor) error {
		var txErr error
		result, txErr = h.service.ChangeItemStatus(ctx, q, ChangeInput{
			ItemID:         itemID,
			OrganizationID: actor.OrganizationID,
			Target:         inventory.ItemStatus(payload.Status),
			VehicleID:      payload.VehicleID,
			ActorID:        actor.UserID,
			Note:           payload.Note,
		})
		return txErr
	})
	if err != nil {
		h.logger.Warn("change item status",
			slog.Any("error", err),
			slog.Int64("item_id", itemID),
			slog.String("target", payload.Status))
		httpx.RespondError(w, err)
		return
	}

	resp := map[string]any{
		"item": map[string]any{
			"id":         result.Item.ID,
			"status":     string(result.Item.Status),
			"vehicle_id": result.Item.VehicleID,
		},
		"changed": result.Changed,
	}
	if result.Component.ID != 0 {
		resp["component"] = toComponentResponse(result.Component)
		resp["reinstalled"] = result.Reinstalled
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListByVehicle(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	vehicleID, err := strconv.ParseInt(chi.URLParam(r, "vehicleID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid vehicle id: %w", shared.ErrValidation))
		return
	}
	items, err := h.service.ActiveByVehicle(r.Context(), h.pool, vehicleID, actor.OrganizationID)
	if err != nil {
		h.logger.Error("list components", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := make([]componentResponse, 0, len(items))
	for _, c := range items {
		resp = append(resp, toComponentResponse(c))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"components": resp})
}

type installPayload struct {
	ItemID int64  `json:"item_id" validate:"required,gt=0"`
	Note   string `json:"notes" validate:"max=500"`
}

func (h *Handler) handleInstall(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	vehicleID, err := strconv.ParseInt(chi.URLParam(r, "vehicleID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid vehicle id: %w", shared.ErrValidation))
		return
	}
	var payload installPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode payload: %w", shared.ErrValidation))
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}

	var result ChangeResult
	err = h.runner.WithTx(r.Context(), func(ctx context.Context, q db.Executor) error {
		var txErr error
		result, txErr = h.service.ChangeItemStatus(ctx, q, ChangeInput{
			ItemID:         payload.ItemID,
			OrganizationID: actor.OrganizationID,
			Target:         inventory.StatusInUse,
			VehicleID:      vehicleID,
			ActorID:        actor.UserID,
			Note:           payload.Note,
		})
		return txErr
	})
	if err != nil {
		h.logger.Warn("install component",
			slog.Any("error", err),
			slog.Int64("item_id", payload.ItemID),
			slog.Int64("vehicle_id", vehicleID))
		httpx.RespondError(w, err)
		return
	}
	if !result.Changed || result.Component.ID == 0 {
		httpx.RespondError(w, fmt.Errorf("item %d is already installed: %w", payload.ItemID, shared.ErrInvalidState))
		return
	}

	resp := toComponentResponse(result.Component)
	httpx.JSON(w, http.StatusCreated, resp)
}

type discardPayload struct {
	FinalStatus string `json:"final_status" validate:"required,oneof=AVAILABLE END_OF_LIFE"`
	Note        string `json:"notes" validate:"max=500"`
}

func (h *Handler) handleDiscard(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	componentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid component id: %w", shared.ErrValidation))
		return
	}
	var payload discardPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode payload: %w", shared.ErrValidation))
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}

	var component Component
	err = h.runner.WithTx(r.Context(), func(ctx context.Context, q db.Executor) error {
		var txErr error
		component, txErr = h.service.Discard(ctx, q, DiscardInput{
			ComponentID:    componentID,
			OrganizationID: actor.OrganizationID,
			FinalStatus:    inventory.ItemStatus(payload.FinalStatus),
			ActorID:        actor.UserID,
			Note:           payload.Note,
		})
		return txErr
	})
	if err != nil {
		h.logger.Warn("discard component", slog.Any("error", err), slog.Int64("component_id", componentID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toComponentResponse(component))
}
