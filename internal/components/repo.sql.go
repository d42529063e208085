package components

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/Vitorhlem/TruCar/internal/platform/db"
	"github.com/Vitorhlem/TruCar/internal/shared"
)

// PGStore persists installation records in PostgreSQL.
type PGStore struct{}

// NewPGStore constructs PGStore.
func NewPGStore() *PGStore {
	return &PGStore{}
}

const componentColumns = `c.id, c.organization_id, c.vehicle_id, c.part_id, c.item_id, c.inventory_transaction_id, c.is_active, c.installed_at, c.uninstalled_at`

func scanComponent(scan func(dest ...any) error) (Component, error) {
	var (
		c           Component
		uninstalled pgtype.Timestamptz
	)
	if err := scan(&c.ID, &c.OrganizationID, &c.VehicleID, &c.PartID, &c.ItemID, &c.InventoryTransactionID, &c.IsActive, &c.InstalledAt, &uninstalled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Component{}, fmt.Errorf("components: %w", shared.ErrNotFound)
		}
		return Component{}, err
	}
	if uninstalled.Valid {
		t := uninstalled.Time
		c.UninstalledAt = &t
	}
	return c, nil
}

func (s *PGStore) Insert(ctx context.Context, q db.Executor, c Component) (Component, error) {
	err := q.QueryRow(ctx, `INSERT INTO vehicle_components (organization_id, vehicle_id, part_id, item_id, inventory_transaction_id, is_active, installed_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
RETURNING id, installed_at`,
		c.OrganizationID, c.VehicleID, c.PartID, c.ItemID, c.InventoryTransactionID, c.IsActive,
	).Scan(&c.ID, &c.InstalledAt)
	if err != nil {
		return Component{}, err
	}
	return c, nil
}

func (s *PGStore) Get(ctx context.Context, q db.Executor, componentID, orgID int64) (Component, error) {
	var (
		c           Component
		uninstalled pgtype.Timestamptz
	)
	err := q.QueryRow(ctx, `SELECT `+componentColumns+`, p.name, i.item_identifier
FROM vehicle_components c
JOIN parts p ON p.id = c.part_id
JOIN inventory_items i ON i.id = c.item_id
WHERE c.id=$1 AND c.organization_id=$2`, componentID, orgID).
		Scan(&c.ID, &c.OrganizationID, &c.VehicleID, &c.PartID, &c.ItemID, &c.InventoryTransactionID, &c.IsActive, &c.InstalledAt, &uninstalled, &c.PartName, &c.ItemIdentifier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Component{}, fmt.Errorf("components: component %d: %w", componentID, shared.ErrNotFound)
		}
		return Component{}, err
	}
	if uninstalled.Valid {
		t := uninstalled.Time
		c.UninstalledAt = &t
	}
	return c, nil
}

func (s *PGStore) FindInactiveByItem(ctx context.Context, q db.Executor, itemID, vehicleID int64) (Component, error) {
	row := q.QueryRow(ctx, `SELECT `+componentColumns+`
FROM vehicle_components c
WHERE c.item_id=$1 AND c.vehicle_id=$2 AND NOT c.is_active
ORDER BY c.uninstalled_at DESC
LIMIT 1`, itemID, vehicleID)
	return scanComponent(row.Scan)
}

func (s *PGStore) FindActiveByItem(ctx context.Context, q db.Executor, itemID int64) (Component, error) {
	row := q.QueryRow(ctx, `SELECT `+componentColumns+`
FROM vehicle_components c
WHERE c.item_id=$1 AND c.is_active`, itemID)
	return scanComponent(row.Scan)
}

func (s *PGStore) Reactivate(ctx context.Context, q db.Executor, componentID, transactionID int64) error {
	tag, err := q.Exec(ctx, `UPDATE vehicle_components
SET is_active=TRUE, uninstalled_at=NULL, inventory_transaction_id=$1
WHERE id=$2 AND NOT is_active`, transactionID, componentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("components: component %d: %w", componentID, shared.ErrInvalidState)
	}
	return nil
}

func (s *PGStore) Deactivate(ctx context.Context, q db.Executor, componentID int64, at time.Time) error {
	tag, err := q.Exec(ctx, `UPDATE vehicle_components
SET is_active=FALSE, uninstalled_at=$1
WHERE id=$2 AND is_active`, at, componentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("components: component %d: %w", componentID, shared.ErrInvalidState)
	}
	return nil
}

func (s *PGStore) ListActiveByVehicle(ctx context.Context, q db.Executor, vehicleID, orgID int64) ([]Component, error) {
	rows, err := q.Query(ctx, `SELECT `+componentColumns+`, p.name, i.item_identifier
FROM vehicle_components c
JOIN parts p ON p.id = c.part_id
JOIN inventory_items i ON i.id = c.item_id
WHERE c.vehicle_id=$1 AND c.organization_id=$2 AND c.is_active
ORDER BY c.installed_at DESC`, vehicleID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Component{}
	for rows.Next() {
		var (
			c           Component
			uninstalled pgtype.Timestamptz
		)
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.VehicleID, &c.PartID, &c.ItemID, &c.InventoryTransactionID, &c.IsActive, &c.InstalledAt, &uninstalled, &c.PartName, &c.ItemIdentifier); err != nil {
			return nil, err
		}
		if uninstalled.Valid {
			t := uninstalled.Time
			c.UninstalledAt = &t
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PGStore) PartRef(ctx context.Context, q db.Executor, partID, orgID int64) (PartRef, error) {
	var (
		ref   PartRef
		value string
	)
	err := q.QueryRow(ctx, `SELECT name, value::text FROM parts WHERE id=$1 AND organization_id=$2`, partID, orgID).Scan(&ref.Name, &value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PartRef{}, fmt.Errorf("components: part %d: %w", partID, shared.ErrNotFound)
		}
		return PartRef{}, err
	}
	ref.Value, err = decimal.NewFromString(value)
	if err != nil {
		return PartRef{}, err
	}
	return ref, nil
}
