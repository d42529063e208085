package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/Vitorhlem/TruCar/internal/platform/db"
	"github.com/Vitorhlem/TruCar/internal/shared"
)

// Store exposes the persistence operations used by the registry. Every
// method takes an explicit db.Executor so callers control the transaction
// boundary.
type Store interface {
	GetItem(ctx context.Context, q db.Executor, itemID, orgID int64) (Item, error)
	GetItemForUpdate(ctx context.Context, q db.Executor, itemID, orgID int64) (Item, error)
	// UpdateItem persists status/vehicle/installed-at conditionally on the
	// expected current status and reports shared.ErrInvalidState when a
	// concurrent transition won the row.
	UpdateItem(ctx context.Context, q db.Executor, item Item, expected ItemStatus) error
	// LockPart locks the part row for the whole batch so concurrent
	// identifier allocations on the same template serialize.
	LockPart(ctx context.Context, q db.Executor, partID, orgID int64) error
	MaxIdentifier(ctx context.Context, q db.Executor, partID int64) (int64, error)
	InsertItem(ctx context.Context, q db.Executor, item Item) (Item, error)
	InsertTransaction(ctx context.Context, q db.Executor, entry Transaction) (Transaction, error)
	ListItems(ctx context.Context, q db.Executor, filter ItemFilter) ([]Item, int, error)
	ListTransactions(ctx context.Context, q db.Executor, itemID, orgID int64) ([]Transaction, error)
}

// Service owns the per-item status state machine and identifier allocation.
// It mutates items and appends ledger rows only; installation records and
// cost records are driven by the components package on top of it.
type Service struct {
	store Store
}

// NewService builds Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateItems creates a batch of serialized items for a part template,
// assigning consecutive identifiers and one ENTRY ledger row per item.
func (s *Service) CreateItems(ctx context.Context, q db.Executor, in BatchInput) ([]Item, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("inventory: quantity must be positive: %w", shared.ErrValidation)
	}
	if err := s.store.LockPart(ctx, q, in.PartID, in.OrganizationID); err != nil {
		return nil, err
	}
	last, err := s.store.MaxIdentifier(ctx, q, in.PartID)
	if err != nil {
		return nil, err
	}

	note := in.Note
	if note == "" {
		note = "Entrada de novo item"
	}

	items := make([]Item, 0, in.Quantity)
	for i := 0; i < in.Quantity; i++ {
		item := Item{
			PartID:         in.PartID,
			OrganizationID: in.OrganizationID,
			Identifier:     last + 1 + int64(i),
			Status:         StatusAvailable,
		}
		item, err = s.store.InsertItem(ctx, q, item)
		if err != nil {
			return nil, err
		}
		if _, err := s.store.InsertTransaction(ctx, q, Transaction{
			ItemID:  item.ID,
			PartID:  item.PartID,
			ActorID: in.ActorID,
			Kind:    KindEntry,
			Note:    note,
		}); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// ChangeStatus walks an item through the state machine. A call with
// current == target is a no-op: the item is returned unchanged and no ledger
// row is written (changed == false). Every real transition locks the item
// row, updates it conditionally on the observed status and appends exactly
// one ledger entry, which is returned alongside the updated item.
func (s *Service) ChangeStatus(ctx context.Context, q db.Executor, in StatusChange) (Item, Transaction, bool, error) {
	item, err := s.store.GetItemForUpdate(ctx, q, in.ItemID, in.OrganizationID)
	if err != nil {
		return Item{}, Transaction{}, false, err
	}

	if item.Status == in.Target {
		return item, Transaction{}, false, nil
	}

	kind, err := kindForTransition(item.Status, in.Target, in.VehicleID)
	if err != nil {
		return Item{}, Transaction{}, false, err
	}

	previous := item.Status
	priorVehicle := item.VehicleID

	if in.Target == StatusInUse {
		now := time.Now().UTC()
		item.VehicleID = in.VehicleID
		item.InstalledAt = &now
	} else {
		item.VehicleID = 0
		item.InstalledAt = nil
	}
	item.Status = in.Target

	if err := s.store.UpdateItem(ctx, q, item, previous); err != nil {
		return Item{}, Transaction{}, false, err
	}

	// The ledger keeps the vehicle the movement relates to: the install
	// target on the way in, the vehicle the item came off on the way out.
	relatedVehicle := in.VehicleID
	if relatedVehicle == 0 {
		relatedVehicle = priorVehicle
	}
	entry, err := s.store.InsertTransaction(ctx, q, Transaction{
		ItemID:    item.ID,
		PartID:    item.PartID,
		ActorID:   in.ActorID,
		Kind:      kind,
		Note:      in.Note,
		VehicleID: relatedVehicle,
	})
	if err != nil {
		return Item{}, Transaction{}, false, err
	}
	return item, entry, true, nil
}

// GetItem fetches one item in organization scope.
func (s *Service) GetItem(ctx context.Context, q db.Executor, itemID, orgID int64) (Item, error) {
	return s.store.GetItem(ctx, q, itemID, orgID)
}

// ListItems lists items with filters and returns the unpaged total.
func (s *Service) ListItems(ctx context.Context, q db.Executor, filter ItemFilter) ([]Item, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	return s.store.ListItems(ctx, q, filter)
}

// History returns the full ledger of an item, oldest first.
func (s *Service) History(ctx context.Context, q db.Executor, itemID, orgID int64) ([]Transaction, error) {
	if _, err := s.store.GetItem(ctx, q, itemID, orgID); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, q, itemID, orgID)
}
