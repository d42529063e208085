package parts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Part is the non-serialized catalog definition of a part or material.
// Descriptive fields are mutable; a part is never deleted while serialized
// items still reference it. Live stock is always computed from the child
// items, never stored.
type Part struct {
	ID             int64
	OrganizationID int64
	Name           string
	PartNumber     string
	Brand          string
	Category       string
	Value          decimal.Decimal
	MinStock       int
	Location       string
	Notes          string
	PhotoURL       string
	CreatedAt      time.Time

	// Stock is the count of AVAILABLE items, populated on reads.
	Stock int
}

// CreateInput describes a new part template.
type CreateInput struct {
	OrganizationID  int64
	Name            string
	PartNumber      string
	Brand           string
	Category        string
	Value           decimal.Decimal
	MinStock        int
	Location        string
	Notes           string
	PhotoURL        string
	InitialQuantity int
	ActorID         int64
}

// UpdateInput carries mutable descriptive fields.
type UpdateInput struct {
	Name       string
	PartNumber string
	Brand      string
	Category   string
	Value      decimal.Decimal
	MinStock   int
	Location   string
	Notes      string
	PhotoURL   string
}

// Filter filters part listings.
type Filter struct {
	OrganizationID int64
	Search         string
	Offset         int
	Limit          int
}
