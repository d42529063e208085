package costs

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Vitorhlem/TruCar/internal/platform/httpx"
	"github.com/Vitorhlem/TruCar/internal/shared"
)

// Handler exposes vehicle cost listings.
type Handler struct {
	logger *slog.Logger
	store  Store
	pool   *pgxpool.Pool
}

// NewHandler constructs the costs handler.
func NewHandler(logger *slog.Logger, store Store, pool *pgxpool.Pool) *Handler {
	return &Handler{logger: logger, store: store, pool: pool}
}

// MountRoutes registers cost routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/vehicles/{vehicleID}/costs", h.handleListCosts)
}

func (h *Handler) handleListCosts(w http.ResponseWriter, r *http.Request) {
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

	list, err := h.store.ListByVehicle(r.Context(), h.pool, vehicleID, actor.OrganizationID)
	if err != nil {
		h.logger.Error("list vehicle costs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	total, err := h.store.TotalByVehicle(r.Context(), h.pool, vehicleID, actor.OrganizationID)
	if err != nil {
		h.logger.Error("total vehicle costs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	type costResponse struct {
		ID          int64  `json:"id"`
		Description string `json:"description"`
		Amount      string `json:"amount"`
		Type        string `json:"cost_type"`
		IncurredOn  string `json:"date"`
	}
	resp := make([]costResponse, 0, len(list))
	for _, cost := range list {
		resp = append(resp, costResponse{
			ID:          cost.ID,
			Description: cost.Description,
			Amount:      cost.Amount.StringFixed(2),
			Type:        string(cost.Type),
			IncurredOn:  cost.IncurredOn.Format("2006-01-02"),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"costs":           resp,
		"total":           total.StringFixed(2),
		"total_formatted": shared.FormatBRL(total),
	})
}
