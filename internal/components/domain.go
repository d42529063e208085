package components

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Vitorhlem/TruCar/internal/inventory"
)

// Component records one installation of a serialized item on a vehicle.
// A row is created on first install and flipped inactive on uninstall; a
// later reinstall of the same item on the same vehicle reactivates the
// existing row instead of creating a new one.
type Component struct {
	ID                     int64
	OrganizationID         int64
	VehicleID              int64
	PartID                 int64
	ItemID                 int64
	InventoryTransactionID int64
	IsActive               bool
	InstalledAt            time.Time
	UninstalledAt          *time.Time

	// Populated on reads.
	PartName       string
	ItemIdentifier int64
}

// PartRef is the slice of the part template the installer needs for cost
// descriptions and amounts.
type PartRef struct {
	Name  string
	Value decimal.Decimal
}

// ChangeInput describes a requested item transition, including the vehicle
// for installs.
type ChangeInput struct {
	ItemID         int64
	OrganizationID int64
	Target         inventory.ItemStatus
	VehicleID      int64
	ActorID        int64
	Note           string
}

// ChangeResult reports what a status change did. Component is zero-valued
// when the transition touched no installation record.
type ChangeResult struct {
	Item        inventory.Item
	Transaction inventory.Transaction
	Component   Component
	Changed     bool
	Reinstalled bool
}

// DiscardInput uninstalls an active component, sending its item to the
// given final status.
type DiscardInput struct {
	ComponentID    int64
	OrganizationID int64
	// VehicleID, when set, asserts the component belongs to this vehicle.
	VehicleID   int64
	FinalStatus inventory.ItemStatus
	ActorID     int64
	Note        string
}
