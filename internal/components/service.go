package components

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Vitorhlem/TruCar/internal/costs"
	"github.com/Vitorhlem/TruCar/internal/inventory"
	"github.com/Vitorhlem/TruCar/internal/platform/db"
	"github.com/Vitorhlem/TruCar/internal/shared"
)

// Registry is the slice of the item registry the installer drives.
type Registry interface {
	ChangeStatus(ctx context.Context, q db.Executor, in inventory.StatusChange) (inventory.Item, inventory.Transaction, bool, error)
	GetItem(ctx context.Context, q db.Executor, itemID, orgID int64) (inventory.Item, error)
}

// Store exposes installation record persistence.
type Store interface {
	Insert(ctx context.Context, q db.Executor, c Component) (Component, error)
	Get(ctx context.Context, q db.Executor, componentID, orgID int64) (Component, error)
	// FindInactiveByItem returns the most recently uninstalled component for
	// the item/vehicle pair, or shared.ErrNotFound.
	FindInactiveByItem(ctx context.Context, q db.Executor, itemID, vehicleID int64) (Component, error)
	// FindActiveByItem returns the single active component for the item, or
	// shared.ErrNotFound.
	FindActiveByItem(ctx context.Context, q db.Executor, itemID int64) (Component, error)
	Reactivate(ctx context.Context, q db.Executor, componentID, transactionID int64) error
	Deactivate(ctx context.Context, q db.Executor, componentID int64, at time.Time) error
	ListActiveByVehicle(ctx context.Context, q db.Executor, vehicleID, orgID int64) ([]Component, error)
	PartRef(ctx context.Context, q db.Executor, partID, orgID int64) (PartRef, error)
}

// CostRecorder bridges installations into the vehicle cost ledger.
type CostRecorder interface {
	Insert(ctx context.Context, q db.Executor, c costs.Cost) (costs.Cost, error)
}

// Service keeps installation records and vehicle costs in step with the
// item state machine. All public methods expect to run inside the caller's
// transaction.
type Service struct {
	store    Store
	registry Registry
	costs    CostRecorder
}

// NewService builds Service.
func NewService(store Store, registry Registry, costs CostRecorder) *Service {
	return &Service{store: store, registry: registry, costs: costs}
}

// ChangeItemStatus walks an item through the state machine and applies the
// installation and cost side effects of the transition. A no-op change
// (current == target) has no side effects at all.
func (s *Service) ChangeItemStatus(ctx context.Context, q db.Executor, in ChangeInput) (ChangeResult, error) {
	item, txn, changed, err := s.registry.ChangeStatus(ctx, q, inventory.StatusChange{
		ItemID:         in.ItemID,
		OrganizationID: in.OrganizationID,
		Target:         in.Target,
		VehicleID:      in.VehicleID,
		ActorID:        in.ActorID,
		Note:           in.Note,
	})
	if err != nil {
		return ChangeResult{}, err
	}
	result := ChangeResult{Item: item, Transaction: txn, Changed: changed}
	if !changed {
		return result, nil
	}

	switch {
	case in.Target == inventory.StatusInUse:
		component, reinstalled, err := s.install(ctx, q, item, txn)
		if err != nil {
			return ChangeResult{}, err
		}
		result.Component = component
		result.Reinstalled = reinstalled

	case in.Target == inventory.StatusAvailable || in.Target == inventory.StatusEndOfLife:
		// Only a transition out of IN_USE has an installation to close.
		// txn.VehicleID carries the vehicle the item was installed on.
		if txn.Kind == inventory.KindReturn && txn.VehicleID != 0 {
			if err := s.uninstall(ctx, q, item, txn, true); err != nil {
				return ChangeResult{}, err
			}
		} else if txn.Kind == inventory.KindEndOfLife && txn.VehicleID != 0 {
			if err := s.uninstall(ctx, q, item, txn, false); err != nil {
				return ChangeResult{}, err
			}
		}
	}
	return result, nil
}

// install creates or reactivates the installation record for a freshly
// installed item and, for first installs only, debits the part value to the
// vehicle.
func (s *Service) install(ctx context.Context, q db.Executor, item inventory.Item, txn inventory.Transaction) (Component, bool, error) {
	existing, err := s.store.FindInactiveByItem(ctx, q, item.ID, item.VehicleID)
	if err == nil {
		// The item is coming back to the vehicle it was pulled from. The
		// original install was already paid for, so no new cost.
		if err := s.store.Reactivate(ctx, q, existing.ID, txn.ID); err != nil {
			return Component{}, false, err
		}
		existing.IsActive = true
		existing.UninstalledAt = nil
		existing.InventoryTransactionID = txn.ID
		return existing, true, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Component{}, false, err
	}

	component, err := s.store.Insert(ctx, q, Component{
		OrganizationID:         item.OrganizationID,
		VehicleID:              item.VehicleID,
		PartID:                 item.PartID,
		ItemID:                 item.ID,
		InventoryTransactionID: txn.ID,
		IsActive:               true,
	})
	if err != nil {
		return Component{}, false, err
	}

	ref, err := s.store.PartRef(ctx, q, item.PartID, item.OrganizationID)
	if err != nil {
		return Component{}, false, err
	}
	if ref.Value.IsPositive() {
		_, err = s.costs.Insert(ctx, q, costs.Cost{
			VehicleID:      item.VehicleID,
			OrganizationID: item.OrganizationID,
			Description:    fmt.Sprintf("Instalação: %s (Cód. Item: %d)", ref.Name, item.Identifier),
			Amount:         ref.Value,
			Type:           costs.TypeParts,
			IncurredOn:     time.Now().UTC(),
		})
		if err != nil {
			return Component{}, false, err
		}
	}
	return component, false, nil
}

// uninstall closes the active installation record for an item that just
// left IN_USE. Returning to stock credits the part value back to the
// vehicle; a discard leaves the original cost in place.
func (s *Service) uninstall(ctx context.Context, q db.Executor, item inventory.Item, txn inventory.Transaction, credit bool) error {
	component, err := s.store.FindActiveByItem(ctx, q, item.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Item was IN_USE without an installation record, nothing to
			// close.
			return nil
		}
		return err
	}
	if err := s.store.Deactivate(ctx, q, component.ID, time.Now().UTC()); err != nil {
		return err
	}
	if !credit {
		return nil
	}

	ref, err := s.store.PartRef(ctx, q, item.PartID, item.OrganizationID)
	if err != nil {
		return err
	}
	if !ref.Value.IsPositive() {
		return nil
	}
	_, err = s.costs.Insert(ctx, q, costs.Cost{
		VehicleID:      txn.VehicleID,
		OrganizationID: item.OrganizationID,
		Description:    fmt.Sprintf("Retorno Estoque (Estorno): %s (Cód. Item: %d)", ref.Name, item.Identifier),
		Amount:         ref.Value.Neg(),
		Type:           costs.TypeParts,
		IncurredOn:     time.Now().UTC(),
	})
	return err
}

// Discard uninstalls an active component, sending its item to the given
// final status.
func (s *Service) Discard(ctx context.Context, q db.Executor, in DiscardInput) (Component, error) {
	component, err := s.store.Get(ctx, q, in.ComponentID, in.OrganizationID)
	if err != nil {
		return Component{}, err
	}
	if !component.IsActive {
		return Component{}, fmt.Errorf("components: component %d is already inactive: %w", component.ID, shared.ErrInvalidState)
	}
	if in.VehicleID != 0 && component.VehicleID != in.VehicleID {
		return Component{}, fmt.Errorf("components: component %d belongs to another vehicle: %w", component.ID, shared.ErrInvalidState)
	}
	if in.FinalStatus != inventory.StatusAvailable && in.FinalStatus != inventory.StatusEndOfLife {
		return Component{}, fmt.Errorf("components: invalid final status %q: %w", in.FinalStatus, shared.ErrValidation)
	}

	result, err := s.ChangeItemStatus(ctx, q, ChangeInput{
		ItemID:         component.ItemID,
		OrganizationID: in.OrganizationID,
		Target:         in.FinalStatus,
		ActorID:        in.ActorID,
		Note:           in.Note,
	})
	if err != nil {
		return Component{}, err
	}
	if !result.Changed {
		return Component{}, fmt.Errorf("components: item %d already %s: %w", component.ItemID, in.FinalStatus, shared.ErrInvalidState)
	}

	component.IsActive = false
	now := time.Now().UTC()
	component.UninstalledAt = &now
	return component, nil
}

// Get fetches one installation record.
func (s *Service) Get(ctx context.Context, q db.Executor, componentID, orgID int64) (Component, error) {
	return s.store.Get(ctx, q, componentID, orgID)
}

// Item fetches the underlying registry item.
func (s *Service) Item(ctx context.Context, q db.Executor, itemID, orgID int64) (inventory.Item, error) {
	return s.registry.GetItem(ctx, q, itemID, orgID)
}

// ActiveByVehicle lists the components currently installed on a vehicle.
func (s *Service) ActiveByVehicle(ctx context.Context, q db.Executor, vehicleID, orgID int64) ([]Component, error) {
	return s.store.ListActiveByVehicle(ctx, q, vehicleID, orgID)
}
