package costs

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Vitorhlem/TruCar/internal/platform/db"
)

// Store persists vehicle cost records.
type Store interface {
	Insert(ctx context.Context, q db.Executor, cost Cost) (Cost, error)
	ListByVehicle(ctx context.Context, q db.Executor, vehicleID, orgID int64) ([]Cost, error)
	TotalByVehicle(ctx context.Context, q db.Executor, vehicleID, orgID int64) (decimal.Decimal, error)
}

// PGStore is the PostgreSQL Store implementation.
type PGStore struct{}

// NewPGStore constructs PGStore.
func NewPGStore() *PGStore {
	return &PGStore{}
}

func (s *PGStore) Insert(ctx context.Context, q db.Executor, cost Cost) (Cost, error) {
	err := q.QueryRow(ctx, `INSERT INTO vehicle_costs (vehicle_id, organization_id, description, amount, cost_type, incurred_on)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at`,
		cost.VehicleID,
		cost.OrganizationID,
		cost.Description,
		cost.Amount.String(),
		string(cost.Type),
		cost.IncurredOn,
	).Scan(&cost.ID, &cost.CreatedAt)
	if err != nil {
		return Cost{}, err
	}
	return cost, nil
}

func (s *PGStore) ListByVehicle(ctx context.Context, q db.Executor, vehicleID, orgID int64) ([]Cost, error) {
	rows, err := q.Query(ctx, `SELECT id, vehicle_id, organization_id, description, amount::text, cost_type, incurred_on, created_at
FROM vehicle_costs
WHERE vehicle_id=$1 AND organization_id=$2
ORDER BY incurred_on DESC, id DESC`, vehicleID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Cost{}
	for rows.Next() {
		var (
			cost   Cost
			amount string
		)
		if err := rows.Scan(&cost.ID, &cost.VehicleID, &cost.OrganizationID, &cost.Description, &amount, &cost.Type, &cost.IncurredOn, &cost.CreatedAt); err != nil {
			return nil, err
		}
		cost.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, err
		}
		result = append(result, cost)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PGStore) TotalByVehicle(ctx context.Context, q db.Executor, vehicleID, orgID int64) (decimal.Decimal, error) {
	var total string
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::text
FROM vehicle_costs
WHERE vehicle_id=$1 AND organization_id=$2`, vehicleID, orgID).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(total)
}
