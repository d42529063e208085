package costs

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostType categorizes a vehicle cost record.
type CostType string

const (
	// TypeParts covers part and component installations.
	TypeParts CostType = "PECAS_COMPONENTES"
	// TypeMaintenance covers workshop labour.
	TypeMaintenance CostType = "MANUTENCAO"
	// TypeFuel covers refuelling.
	TypeFuel CostType = "COMBUSTIVEL"
	// TypeOther is the catch-all bucket.
	TypeOther CostType = "OUTROS"
)

// Cost is a vehicle-scoped financial record. Positive amounts are debits,
// negative amounts are credits. Rows written by the cost bridge are never
// updated afterwards.
type Cost struct {
	ID             int64
	VehicleID      int64
	OrganizationID int64
	Description    string
	Amount         decimal.Decimal
	Type           CostType
	IncurredOn     time.Time
	CreatedAt      time.Time
}
