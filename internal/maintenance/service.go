package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Vitorhlem/TruCar/internal/components"
	"github.com/Vitorhlem/TruCar/internal/inventory"
	"github.com/Vitorhlem/TruCar/internal/platform/db"
	"github.com/Vitorhlem/TruCar/internal/shared"
)

// Store exposes maintenance persistence.
type Store interface {
	InsertRequest(ctx context.Context, q db.Executor, r Request) (Request, error)
	GetRequest(ctx context.Context, q db.Executor, requestID, orgID int64) (Request, error)
	ListRequests(ctx context.Context, q db.Executor, filter RequestFilter) ([]Request, int, error)
	UpdateRequestStatus(ctx context.Context, q db.Executor, requestID, orgID int64, status Status, managerNotes string, approverID int64) (Request, error)
	DeleteRequest(ctx context.Context, q db.Executor, requestID, orgID int64) error
	VehicleExists(ctx context.Context, q db.Executor, vehicleID, orgID int64) (bool, error)
	InsertComment(ctx context.Context, q db.Executor, c Comment) (Comment, error)
	ListComments(ctx context.Context, q db.Executor, requestID, orgID int64) ([]Comment, error)
	InsertPartChange(ctx context.Context, q db.Executor, pc PartChange) (PartChange, error)
	// GetPartChangeForUpdate locks the change row for the reversal check.
	GetPartChangeForUpdate(ctx context.Context, q db.Executor, changeID int64) (PartChange, error)
	ListPartChanges(ctx context.Context, q db.Executor, requestID int64) ([]PartChange, error)
	// MarkReverted flips is_reverted exactly once and reports
	// shared.ErrAlreadyReverted when the flag was already set.
	MarkReverted(ctx context.Context, q db.Executor, changeID int64) error
	ListManagerIDs(ctx context.Context, q db.Executor, orgID int64) ([]int64, error)
}

// Installer is the slice of the components package the workflows drive.
type Installer interface {
	ChangeItemStatus(ctx context.Context, q db.Executor, in components.ChangeInput) (components.ChangeResult, error)
	Discard(ctx context.Context, q db.Executor, in components.DiscardInput) (components.Component, error)
	Get(ctx context.Context, q db.Executor, componentID, orgID int64) (components.Component, error)
	Item(ctx context.Context, q db.Executor, itemID, orgID int64) (inventory.Item, error)
}

// Notification is delivered to a user after a workflow commits.
type Notification struct {
	UserID    int64
	Message   string
	RequestID int64
}

// Notifier delivers notifications. Delivery is best effort and never blocks
// a committed workflow.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Service runs the maintenance workflows. Substitution and reversal execute
// inside a single transaction; notifications and audit records are written
// after commit.
type Service struct {
	logger    *slog.Logger
	store     Store
	installer Installer
	runner    db.TxRunner
	notifier  Notifier
	audit     *shared.AuditLogger
}

// NewService builds Service. notifier and audit may be nil.
func NewService(logger *slog.Logger, store Store, installer Installer, runner db.TxRunner, notifier Notifier, audit *shared.AuditLogger) *Service {
	return &Service{
		logger:    logger,
		store:     store,
		installer: installer,
		runner:    runner,
		notifier:  notifier,
		audit:     audit,
	}
}

// CreateRequest opens a ticket and notifies the organization's managers.
func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput) (Request, error) {
	if in.ProblemDescription == "" {
		return Request{}, fmt.Errorf("maintenance: problem description required: %w", shared.ErrValidation)
	}
	var (
		request  Request
		managers []int64
	)
	err := s.runner.WithTx(ctx, func(ctx context.Context, q db.Executor) error {
		ok, err := s.store.VehicleExists(ctx, q, in.VehicleID, in.OrganizationID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("maintenance: vehicle %d: %w", in.VehicleID, shared.ErrNotFound)
		}
		category := in.Category
		if category == "" {
			category = CategoryCorrective
		}
		request, err = s.store.InsertRequest(ctx, q, Request{
			OrganizationID:     in.OrganizationID,
			VehicleID:          in.VehicleID,
			ReportedByID:       in.ReportedByID,
			ProblemDescription: in.ProblemDescription,
			Category:           category,
			Status:             StatusPending,
		})
		if err != nil {
			return err
		}
		managers, err = s.store.ListManagerIDs(ctx, q, in.OrganizationID)
		return err
	})
	if err != nil {
		return Request{}, err
	}

	message := fmt.Sprintf("Nova solicitação de manutenção (#%d) criada para análise.", request.ID)
	for _, managerID := range managers {
		if managerID == in.ReportedByID {
			continue
		}
		s.notify(ctx, Notification{UserID: managerID, Message: message, RequestID: request.ID})
	}
	return request, nil
}

// GetRequest fetches one ticket.
func (s *Service) GetRequest(ctx context.Context, q db.Executor, requestID, orgID int64) (Request, error) {
	return s.store.GetRequest(ctx, q, requestID, orgID)
}

// ListRequests lists tickets with the unpaged total.
func (s *Service) ListRequests(ctx context.Context, q db.Executor, filter RequestFilter) ([]Request, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.store.ListRequests(ctx, q, filter)
}

// Comments lists the log lines of a ticket.
func (s *Service) Comments(ctx context.Context, q db.Executor, requestID, orgID int64) ([]Comment, error) {
	return s.store.ListComments(ctx, q, requestID, orgID)
}

// PartChanges lists the structured substitution records of a ticket.
func (s *Service) PartChanges(ctx context.Context, q db.Executor, requestID, orgID int64) ([]PartChange, error) {
	if _, err := s.store.GetRequest(ctx, q, requestID, orgID); err != nil {
		return nil, err
	}
	return s.store.ListPartChanges(ctx, q, requestID)
}

// UpdateStatus moves a ticket through the workshop workflow and notifies
// the reporter.
func (s *Service) UpdateStatus(ctx context.Context, requestID, orgID int64, status Status, managerNotes string, approverID int64) (Request, error) {
	if !status.Valid() {
		return Request{}, fmt.Errorf("maintenance: unknown status %q: %w", status, shared.ErrValidation)
	}
	var request Request
	err := s.runner.WithTx(ctx, func(ctx context.Context, q db.Executor) error {
		var err error
		request, err = s.store.UpdateRequestStatus(ctx, q, requestID, orgID, status, managerNotes, approverID)
		return err
	})
	if err != nil {
		return Request{}, err
	}
	if request.ReportedByID != 0 && request.ReportedByID != approverID {
		s.notify(ctx, Notification{
			UserID:    request.ReportedByID,
			Message:   fmt.Sprintf("O status da sua solicitação de manutenção (#%d) foi atualizado para: %s.", request.ID, request.Status),
			RequestID: request.ID,
		})
	}
	return request, nil
}

// DeleteRequest removes a ticket.
func (s *Service) DeleteRequest(ctx context.Context, requestID, orgID int64) error {
	return s.runner.WithTx(ctx, func(ctx context.Context, q db.Executor) error {
		return s.store.DeleteRequest(ctx, q, requestID, orgID)
	})
}

// CreateComment appends a log line to a ticket and notifies the reporter.
func (s *Service) CreateComment(ctx context.Context, requestID, orgID, userID int64, text, fileURL string) (Comment, error) {
	if text == "" {
		return Comment{}, fmt.Errorf("maintenance: comment text required: %w", shared.ErrValidation)
	}
	var (
		comment Comment
		request Request
	)
	err := s.runner.WithTx(ctx, func(ctx context.Context, q db.Executor) error {
		var err error
		request, err = s.store.GetRequest(ctx, q, requestID, orgID)
		if err != nil {
			return err
		}
		comment, err = s.store.InsertComment(ctx, q, Comment{
			RequestID:      requestID,
			UserID:         userID,
			OrganizationID: orgID,
			Text:           text,
			FileURL:        fileURL,
		})
		return err
	})
	if err != nil {
		return Comment{}, err
	}
	if request.ReportedByID != 0 && request.ReportedByID != userID {
		s.notify(ctx, Notification{UserID: request.ReportedByID, Message: text, RequestID: requestID})
	}
	return comment, nil
}

// ReplaceComponent atomically swaps a vehicle component under a ticket: the
// old component is uninstalled with its item sent to the chosen final
// status, the new item is installed, and a structured change record plus a
// human-readable comment are written. Everything succeeds or nothing does.
func (s *Service) ReplaceComponent(ctx context.Context, in ReplaceInput) (PartChange, Comment, error) {
	finalStatus := in.OldItemStatus
	if finalStatus == "" {
		finalStatus = inventory.StatusEndOfLife
	}

	var (
		change  PartChange
		comment Comment
		request Request
	)
	err := s.runner.WithTx(ctx, func(ctx context.Context, q db.Executor) error {
		var err error
		request, err = s.store.GetRequest(ctx, q, in.RequestID, in.OrganizationID)
		if err != nil {
			return err
		}
		if request.VehicleID == 0 {
			return fmt.Errorf("maintenance: request %d has no vehicle: %w", request.ID, shared.ErrMissingVehicle)
		}

		removed, err := s.installer.Discard(ctx, q, components.DiscardInput{
			ComponentID:    in.ComponentToRemoveID,
			OrganizationID: in.OrganizationID,
			VehicleID:      request.VehicleID,
			FinalStatus:    finalStatus,
			ActorID:        in.ActorID,
			Note:           in.Notes,
		})
		if err != nil {
			return err
		}

		installNote := fmt.Sprintf("Instalado via Chamado #%d", in.RequestID)
		if in.Notes != "" {
			installNote = fmt.Sprintf("%s (%s)", in.Notes, installNote)
		}
		result, err := s.installer.ChangeItemStatus(ctx, q, components.ChangeInput{
			ItemID:         in.NewItemID,
			OrganizationID: in.OrganizationID,
			Target:         inventory.StatusInUse,
			VehicleID:      request.VehicleID,
			ActorID:        in.ActorID,
			Note:           installNote,
		})
		if err != nil {
			return err
		}
		if !result.Changed || result.Component.ID == 0 {
			return fmt.Errorf("maintenance: item %d is already installed: %w", in.NewItemID, shared.ErrInvalidState)
		}
		installed, err := s.installer.Get(ctx, q, result.Component.ID, in.OrganizationID)
		if err != nil {
			return err
		}

		change, err = s.store.InsertPartChange(ctx, q, PartChange{
			RequestID:            in.RequestID,
			UserID:               in.ActorID,
			Notes:                in.Notes,
			ComponentRemovedID:   removed.ID,
			ComponentInstalledID: installed.ID,
		})
		if err != nil {
			return err
		}

		notes := in.Notes
		if notes == "" {
			notes = "N/A"
		}
		text := fmt.Sprintf(
			"Substituição de componente realizada por %s:\n- [SAIU] %s (Cód. Item: %d)\n- [ENTROU] %s (Cód. Item: %d)\nNota: %s",
			in.ActorName,
			removed.PartName, removed.ItemIdentifier,
			installed.PartName, installed.ItemIdentifier,
			notes,
		)
		comment, err = s.store.InsertComment(ctx, q, Comment{
			RequestID:      in.RequestID,
			UserID:         in.ActorID,
			OrganizationID: in.OrganizationID,
			Text:           text,
		})
		return err
	})
	if err != nil {
		return PartChange{}, Comment{}, err
	}

	if request.ReportedByID != 0 && request.ReportedByID != in.ActorID {
		s.notify(ctx, Notification{UserID: request.ReportedByID, Message: comment.Text, RequestID: in.RequestID})
	}
	s.auditRecord(ctx, in.ActorID, "maintenance.replace_component", "part_change", change.ID, map[string]any{
		"request_id":          in.RequestID,
		"component_removed":   change.ComponentRemovedID,
		"component_installed": change.ComponentInstalledID,
	})
	return change, comment, nil
}

// RevertPartChange undoes a substitution exactly once: the wrongly
// installed unit goes back to stock with its cost credited, and the
// previously removed unit is normalized and reinstalled without a new
// charge. The change row's reversal flag guards against double reverts.
func (s *Service) RevertPartChange(ctx context.Context, in RevertInput) (PartChange, Comment, error) {
	var (
		change  PartChange
		comment Comment
		request Request
	)
	err := s.runner.WithTx(ctx, func(ctx context.Context, q db.Executor) error {
		var err error
		change, err = s.store.GetPartChangeForUpdate(ctx, q, in.ChangeID)
		if err != nil {
			return err
		}
		request, err = s.store.GetRequest(ctx, q, change.RequestID, in.OrganizationID)
		if err != nil {
			return err
		}
		if change.IsReverted {
			return fmt.Errorf("maintenance: change %d: %w", change.ID, shared.ErrAlreadyReverted)
		}

		installed, err := s.installer.Get(ctx, q, change.ComponentInstalledID, in.OrganizationID)
		if err != nil {
			return err
		}
		if !installed.IsActive {
			return fmt.Errorf("maintenance: change %d: installed component is no longer active: %w", change.ID, shared.ErrAlreadySuperseded)
		}

		revertNote := fmt.Sprintf("Reversão da troca #%d (Chamado #%d)", change.ID, change.RequestID)

		// Send the wrongly installed unit back to stock. This credits its
		// installation cost.
		if _, err := s.installer.Discard(ctx, q, components.DiscardInput{
			ComponentID:    installed.ID,
			OrganizationID: in.OrganizationID,
			VehicleID:      request.VehicleID,
			FinalStatus:    inventory.StatusAvailable,
			ActorID:        in.ActorID,
			Note:           revertNote,
		}); err != nil {
			return err
		}

		var reinstalledName string
		var reinstalledIdentifier int64
		if change.ComponentRemovedID != 0 {
			removed, err := s.installer.Get(ctx, q, change.ComponentRemovedID, in.OrganizationID)
			if err != nil {
				return err
			}
			item, err := s.installer.Item(ctx, q, removed.ItemID, in.OrganizationID)
			if err != nil {
				return err
			}
			if item.Status == inventory.StatusInUse {
				return fmt.Errorf("maintenance: removed item %d is installed elsewhere: %w", item.ID, shared.ErrInvalidState)
			}
			// A discarded unit is first normalized back to stock, then
			// reinstalled. Reinstallation reactivates its original
			// component row and charges nothing.
			if item.Status == inventory.StatusEndOfLife {
				if _, err := s.installer.ChangeItemStatus(ctx, q, components.ChangeInput{
					ItemID:         item.ID,
					OrganizationID: in.OrganizationID,
					Target:         inventory.StatusAvailable,
					ActorID:        in.ActorID,
					Note:           revertNote,
				}); err != nil {
					return err
				}
			}
			result, err := s.installer.ChangeItemStatus(ctx, q, components.ChangeInput{
				ItemID:         item.ID,
				OrganizationID: in.OrganizationID,
				Target:         inventory.StatusInUse,
				VehicleID:      request.VehicleID,
				ActorID:        in.ActorID,
				Note:           revertNote,
			})
			if err != nil {
				return err
			}
			reinstalledName = removed.PartName
			reinstalledIdentifier = removed.ItemIdentifier
			if !result.Reinstalled {
				s.logger.Warn("reversal installed removed unit as a fresh component",
					slog.Int64("change_id", change.ID),
					slog.Int64("item_id", item.ID))
			}
		}

		if err := s.store.MarkReverted(ctx, q, change.ID); err != nil {
			return err
		}
		change.IsReverted = true

		text := fmt.Sprintf(
			"Troca revertida por %s:\nO item '%s' (Cód. Item: %d) foi desinstalado e retornado ao estoque como 'Disponível'.",
			in.ActorName, installed.PartName, installed.ItemIdentifier,
		)
		if reinstalledName != "" {
			text += fmt.Sprintf("\nO item '%s' (Cód. Item: %d) foi reinstalado no veículo.", reinstalledName, reinstalledIdentifier)
		}
		comment, err = s.store.InsertComment(ctx, q, Comment{
			RequestID:      change.RequestID,
			UserID:         in.ActorID,
			OrganizationID: in.OrganizationID,
			Text:           text,
		})
		return err
	})
	if err != nil {
		return PartChange{}, Comment{}, err
	}

	if request.ReportedByID != 0 && request.ReportedByID != in.ActorID {
		s.notify(ctx, Notification{UserID: request.ReportedByID, Message: comment.Text, RequestID: change.RequestID})
	}
	s.auditRecord(ctx, in.ActorID, "maintenance.revert_part_change", "part_change", change.ID, map[string]any{
		"request_id": change.RequestID,
	})
	return change, comment, nil
}

func (s *Service) notify(ctx context.Context, n Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("notify", slog.Any("error", err), slog.Int64("user_id", n.UserID))
	}
}

func (s *Service) auditRecord(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit", slog.Any("error", err), slog.String("action", action))
	}
}
