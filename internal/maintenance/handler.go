package maintenance

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Vitorhlem/TruCar/internal/inventory"
	"github.com/Vitorhlem/TruCar/internal/platform/httpx"
	"github.com/Vitorhlem/TruCar/internal/shared"
)

// Handler wires HTTP endpoints for maintenance tickets and the
// substitution/reversal workflows.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	pool     *pgxpool.Pool
	validate *validator.Validate
}

// NewHandler constructs the maintenance handler.
func NewHandler(logger *slog.Logger, service *Service, pool *pgxpool.Pool) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		pool:     pool,
		validate: validator.New(),
	}
}

// MountRoutes registers maintenance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/maintenance/requests", h.handleCreateRequest)
	r.Get("/maintenance/requests", h.handleListRequests)
	r.Get("/maintenance/requests/{id}", h.handleGetRequest)
	r.Put("/maintenance/requests/{id}/status", h.handleUpdateStatus)
	r.Delete("/maintenance/requests/{id}", h.handleDeleteRequest)
	r.Post("/maintenance/requests/{id}/comments", h.handleCreateComment)
	r.Post("/maintenance/requests/{id}/replace-component", h.handleReplaceComponent)
	r.Post("/maintenance/part-changes/{id}/revert", h.handleRevert)
}

type createRequestPayload struct {
	VehicleID          int64  `json:"vehicle_id" validate:"required,gt=0"`
	ProblemDescription string `json:"problem_description" validate:"required,max=2000"`
	Category           string `json:"category" validate:"omitempty,oneof=CORRETIVA PREVENTIVA"`
}

type requestResponse struct {
	ID                 int64  `json:"id"`
	VehicleID          int64  `json:"vehicle_id"`
	ReportedByID       int64  `json:"reported_by_id"`
	ApproverID         int64  `json:"approver_id,omitempty"`
	ProblemDescription string `json:"problem_description"`
	Category           string `json:"category"`
	Status             string `json:"status"`
	ManagerNotes       string `json:"manager_notes,omitempty"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

func toRequestResponse(r Request) requestResponse {
	return requestResponse{
		ID:                 r.ID,
		VehicleID:          r.VehicleID,
		ReportedByID:       r.ReportedByID,
		ApproverID:         r.ApproverID,
		ProblemDescription: r.ProblemDescription,
		Category:           string(r.Category),
		Status:             string(r.Status),
		ManagerNotes:       r.ManagerNotes,
		CreatedAt:          r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:          r.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

type commentResponse struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	AuthorName string `json:"author_name,omitempty"`
	Text       string `json:"comment_text"`
	FileURL    string `json:"file_url,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func toCommentResponse(c Comment) commentResponse {
	return commentResponse{
		ID:         c.ID,
		UserID:     c.UserID,
		AuthorName: c.AuthorName,
		Text:       c.Text,
		FileURL:    c.FileURL,
		CreatedAt:  c.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

type partChangeResponse struct {
	ID                   int64  `json:"id"`
	RequestID            int64  `json:"request_id"`
	UserID               int64  `json:"user_id"`
	Notes                string `json:"notes,omitempty"`
	ComponentRemovedID   int64  `json:"component_removed_id,omitempty"`
	ComponentInstalledID int64  `json:"component_installed_id"`
	IsReverted           bool   `json:"is_reverted"`
	CreatedAt            string `json:"created_at"`
}

func toPartChangeResponse(pc PartChange) partChangeResponse {
	return partChangeResponse{
		ID:                   pc.ID,
		RequestID:            pc.RequestID,
		UserID:               pc.UserID,
		Notes:                pc.Notes,
		ComponentRemovedID:   pc.ComponentRemovedID,
		ComponentInstalledID: pc.ComponentInstalledID,
		IsReverted:           pc.IsReverted,
		CreatedAt:            pc.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	var payload createRequestPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode payload: %w", shared.ErrValidation))
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}

	request, err := h.service.CreateRequest(r.Context(), CreateRequestInput{
		OrganizationID:     actor.OrganizationID,
		VehicleID:          payload.VehicleID,
		ReportedByID:       actor.UserID,
		ProblemDescription: payload.ProblemDescription,
		Category:           Category(payload.Category),
	})
	if err != nil {
		h.logger.Warn("create maintenance request", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRequestResponse(request))
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
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

	requests, total, err := h.service.ListRequests(r.Context(), h.pool, RequestFilter{
		OrganizationID: actor.OrganizationID,
		Search:         q.Get("search"),
		Offset:         (page - 1) * perPage,
		Limit:          perPage,
	})
	if err != nil {
		h.logger.Error("list maintenance requests", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := make([]requestResponse, 0, len(requests))
	for _, request := range requests {
		resp = append(resp, toRequestResponse(request))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"requests":   resp,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	requestID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid request id: %w", shared.ErrValidation))
		return
	}

	request, err := h.service.GetRequest(r.Context(), h.pool, requestID, actor.OrganizationID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	comments, err := h.service.Comments(r.Context(), h.pool, requestID, actor.OrganizationID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	changes, err := h.service.PartChanges(r.Context(), h.pool, requestID, actor.OrganizationID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	commentList := make([]commentResponse, 0, len(comments))
	for _, c := range comments {
		commentList = append(commentList, toCommentResponse(c))
	}
	changeList := make([]partChangeResponse, 0, len(changes))
	for _, pc := range changes {
		changeList = append(changeList, toPartChangeResponse(pc))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"request":      toRequestResponse(request),
		"comments":     commentList,
		"part_changes": changeList,
	})
}

type updateStatusPayload struct {
	Status       string `json:"status" validate:"required,oneof=PENDENTE APROVADA RECUSADA EM_ANDAMENTO CONCLUIDA"`
	ManagerNotes string `json:"manager_notes" validate:"max=2000"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	requestID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid request id: %w", shared.ErrValidation))
		return
	}
	var payload updateStatusPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode payload: %w", shared.ErrValidation))
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}

	request, err := h.service.UpdateStatus(r.Context(), requestID, actor.OrganizationID, Status(payload.Status), payload.ManagerNotes, actor.UserID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(request))
}

func (h *Handler) handleDeleteRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	requestID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid request id: %w", shared.ErrValidation))
		return
	}
	if err := h.service.DeleteRequest(r.Context(), requestID, actor.OrganizationID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createCommentPayload struct {
	Text    string `json:"comment_text" validate:"required,max=2000"`
	FileURL string `json:"file_url" validate:"omitempty,url"`
}

func (h *Handler) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	requestID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid request id: %w", shared.ErrValidation))
		return
	}
	var payload createCommentPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode payload: %w", shared.ErrValidation))
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}

	comment, err := h.service.CreateComment(r.Context(), requestID, actor.OrganizationID, actor.UserID, payload.Text, payload.FileURL)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toCommentResponse(comment))
}

type replacePayload struct {
	ComponentToRemoveID int64  `json:"component_to_remove_id" validate:"required,gt=0"`
	NewItemID           int64  `json:"new_item_id" validate:"required,gt=0"`
	OldItemStatus       string `json:"old_item_status" validate:"omitempty,oneof=AVAILABLE END_OF_LIFE"`
	Notes               string `json:"notes" validate:"max=500"`
}

func (h *Handler) handleReplaceComponent(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	requestID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid request id: %w", shared.ErrValidation))
		return
	}
	var payload replacePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode payload: %w", shared.ErrValidation))
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}

	change, comment, err := h.service.ReplaceComponent(r.Context(), ReplaceInput{
		RequestID:           requestID,
		OrganizationID:      actor.OrganizationID,
		ComponentToRemoveID: payload.ComponentToRemoveID,
		NewItemID:           payload.NewItemID,
		OldItemStatus:       inventory.ItemStatus(payload.OldItemStatus),
		Notes:               payload.Notes,
		ActorID:             actor.UserID,
		ActorName:           actor.FullName,
	})
	if err != nil {
		h.logger.Warn("replace component",
			slog.Any("error", err),
			slog.Int64("request_id", requestID),
			slog.Int64("component_id", payload.ComponentToRemoveID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"message":         "Componente substituído com sucesso.",
		"part_change_log": toPartChangeResponse(change),
		"new_comment":     toCommentResponse(comment),
	})
}

func (h *Handler) handleRevert(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	changeID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("invalid change id: %w", shared.ErrValidation))
		return
	}

	change, comment, err := h.service.RevertPartChange(r.Context(), RevertInput{
		ChangeID:       changeID,
		OrganizationID: actor.OrganizationID,
		ActorID:        actor.UserID,
		ActorName:      actor.FullName,
	})
	if err != nil {
		h.logger.Warn("revert part change", slog.Any("error", err), slog.Int64("change_id", changeID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"message":         "Troca revertida com sucesso.",
		"part_change_log": toPartChangeResponse(change),
		"new_comment":     toCommentResponse(comment),
	})
}
