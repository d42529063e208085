package inventory

import (
	"fmt"
	"time"

	"github.com/Vitorhlem/TruCar/internal/shared"
)

// ItemStatus enumerates the lifecycle states of a serialized item.
type ItemStatus string

const (
	// StatusAvailable marks an item sitting in stock.
	StatusAvailable ItemStatus = "AVAILABLE"
	// StatusInUse marks an item installed on a vehicle.
	StatusInUse ItemStatus = "IN_USE"
	// StatusEndOfLife marks a discarded item.
	StatusEndOfLife ItemStatus = "END_OF_LIFE"
)

// Valid reports whether the status is one of the known states.
func (s ItemStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusInUse, StatusEndOfLife:
		return true
	}
	return false
}

// TransactionKind enumerates ledger entry kinds.
type TransactionKind string

const (
	// KindEntry records an item entering stock at batch creation.
	KindEntry TransactionKind = "ENTRY"
	// KindInstall records an installation on a vehicle.
	KindInstall TransactionKind = "INSTALL"
	// KindEndOfLife records a discard.
	KindEndOfLife TransactionKind = "END_OF_LIFE"
	// KindReturn records a return to stock.
	KindReturn TransactionKind = "RETURN"
)

// Item is one serialized physical instance of a part template. Items are
// never hard-deleted; their lifecycle is purely a status walk.
type Item struct {
	ID             int64
	PartID         int64
	OrganizationID int64
	Identifier     int64
	Status         ItemStatus
	VehicleID      int64
	InstalledAt    *time.Time
	CreatedAt      time.Time

	// PartName is populated on listing/detail reads.
	PartName string
}

// Transaction is an immutable ledger entry recording one item state change.
// Rows are only ever appended; item status stays the authoritative state.
type Transaction struct {
	ID        int64
	ItemID    int64
	PartID    int64
	ActorID   int64
	Kind      TransactionKind
	Note      string
	VehicleID int64
	CreatedAt time.Time
}

// BatchInput describes a batch of new items for one part template.
type BatchInput struct {
	PartID         int64
	OrganizationID int64
	Quantity       int
	ActorID        int64
	Note           string
}

// StatusChange describes a requested item transition.
type StatusChange struct {
	ItemID         int64
	OrganizationID int64
	Target         ItemStatus
	VehicleID      int64
	ActorID        int64
	Note           string
}

// ItemFilter filters item listings.
type ItemFilter struct {
	OrganizationID int64
	Status         ItemStatus
	PartID         int64
	VehicleID      int64
	Search         string
	Offset         int
	Limit          int
}

// kindForTransition validates a status pair and returns the ledger kind a
// real transition must record. Callers handle the current==target no-op
// before calling.
func kindForTransition(current, target ItemStatus, vehicleID int64) (TransactionKind, error) {
	switch target {
	case StatusInUse:
		if current != StatusAvailable {
			return "", fmt.Errorf("inventory: item is %s, not %s: %w", current, StatusAvailable, shared.ErrInvalidState)
		}
		if vehicleID == 0 {
			return "", fmt.Errorf("inventory: install without target vehicle: %w", shared.ErrMissingVehicle)
		}
		return KindInstall, nil
	case StatusEndOfLife:
		// Discarding straight from stock is allowed for items that were
		// never installed.
		if current != StatusAvailable && current != StatusInUse {
			return "", fmt.Errorf("inventory: item is %s and cannot be discarded: %w", current, shared.ErrInvalidState)
		}
		return KindEndOfLife, nil
	case StatusAvailable:
		if current != StatusInUse && current != StatusEndOfLife {
			return "", fmt.Errorf("inventory: item is %s and cannot return to stock: %w", current, shared.ErrInvalidState)
		}
		return KindReturn, nil
	}
	return "", fmt.Errorf("inventory: unknown target status %q: %w", target, shared.ErrInvalidState)
}
