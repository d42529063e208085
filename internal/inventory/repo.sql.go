package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Vitorhlem/TruCar/internal/platform/db"
	"github.com/Vitorhlem/TruCar/internal/shared"
)

// PGStore persists items and ledger rows in PostgreSQL.
type PGStore struct{}

// NewPGStore constructs PGStore.
func NewPGStore() *PGStore {
	return &PGStore{}
}

const itemColumns = `i.id, i.part_id, i.organization_id, i.item_identifier, i.status, i.installed_on_vehicle_id, i.installed_at, i.created_at`

func scanItem(row pgx.Row) (Item, error) {
	var (
		item        Item
		vehicleID   pgtype.Int8
		installedAt pgtype.Timestamptz
	)
	if err := row.Scan(&item.ID, &item.PartID, &item.OrganizationID, &item.Identifier, &item.Status, &vehicleID, &installedAt, &item.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, fmt.Errorf("inventory: item: %w", shared.ErrNotFound)
		}
		return Item{}, err
	}
	item.VehicleID = vehicleID.Int64
	if installedAt.Valid {
		t := installedAt.Time
		item.InstalledAt = &t
	}
	return item, nil
}

func (s *PGStore) GetItem(ctx context.Context, q db.Executor, itemID, orgID int64) (Item, error) {
	row := q.QueryRow(ctx, `SELECT `+itemColumns+`, p.name
FROM inventory_items i
JOIN parts p ON p.id = i.part_id
WHERE i.id=$1 AND i.organization_id=$2`, itemID, orgID)
	var (
		item        Item
		vehicleID   pgtype.Int8
		installedAt pgtype.Timestamptz
	)
	err := row.Scan(&item.ID, &item.PartID, &item.OrganizationID, &item.Identifier, &item.Status, &vehicleID, &installedAt, &item.CreatedAt, &item.PartName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, fmt.Errorf("inventory: item %d: %w", itemID, shared.ErrNotFound)
		}
		return Item{}, err
	}
	item.VehicleID = vehicleID.Int64
	if installedAt.Valid {
		t := installedAt.Time
		item.InstalledAt = &t
	}
	return item, nil
}

func (s *PGStore) GetItemForUpdate(ctx context.Context, q db.Executor, itemID, orgID int64) (Item, error) {
	return scanItem(q.QueryRow(ctx, `SELECT `+itemColumns+`
FROM inventory_items i
WHERE i.id=$1 AND i.organization_id=$2
FOR UPDATE`, itemID, orgID))
}

func (s *PGStore) UpdateItem(ctx context.Context, q db.Executor, item Item, expected ItemStatus) error {
	tag, err := q.Exec(ctx, `UPDATE inventory_items
SET status=$1, installed_on_vehicle_id=$2, installed_at=$3
WHERE id=$4 AND status=$5`,
		string(item.Status),
		pgtype.Int8{Int64: item.VehicleID, Valid: item.VehicleID != 0},
		nullTime(item.InstalledAt),
		item.ID,
		string(expected),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inventory: item %d changed concurrently: %w", item.ID, shared.ErrInvalidState)
	}
	return nil
}

func (s *PGStore) LockPart(ctx context.Context, q db.Executor, partID, orgID int64) error {
	var id int64
	err := q.QueryRow(ctx, `SELECT id FROM parts WHERE id=$1 AND organization_id=$2 FOR UPDATE`, partID, orgID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("inventory: part %d: %w", partID, shared.ErrNotFound)
		}
		return err
	}
	return nil
}

func (s *PGStore) MaxIdentifier(ctx context.Context, q db.Executor, partID int64) (int64, error) {
	var max int64
	err := q.QueryRow(ctx, `SELECT COALESCE(MAX(item_identifier), 0) FROM inventory_items WHERE part_id=$1`, partID).Scan(&max)
	if err != nil {
		return 0, err
	}
	return max, nil
}

func (s *PGStore) InsertItem(ctx context.Context, q db.Executor, item Item) (Item, error) {
	err := q.QueryRow(ctx, `INSERT INTO inventory_items (part_id, organization_id, item_identifier, status)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`,
		item.PartID, item.OrganizationID, item.Identifier, string(item.Status),
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

func (s *PGStore) InsertTransaction(ctx context.Context, q db.Executor, entry Transaction) (Transaction, error) {
	err := q.QueryRow(ctx, `INSERT INTO inventory_transactions (item_id, part_id, user_id, kind, notes, related_vehicle_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at`,
		entry.ItemID,
		entry.PartID,
		pgtype.Int8{Int64: entry.ActorID, Valid: entry.ActorID != 0},
		string(entry.Kind),
		entry.Note,
		pgtype.Int8{Int64: entry.VehicleID, Valid: entry.VehicleID != 0},
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return Transaction{}, err
	}
	return entry, nil
}

func (s *PGStore) ListItems(ctx context.Context, q db.Executor, filter ItemFilter) ([]Item, int, error) {
	where := []string{"i.organization_id=$1"}
	args := []any{filter.OrganizationID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("i.status=$%d", len(args)))
	}
	if filter.PartID != 0 {
		args = append(args, filter.PartID)
		where = append(where, fmt.Sprintf("i.part_id=$%d", len(args)))
	}
	if filter.VehicleID != 0 {
		args = append(args, filter.VehicleID)
		where = append(where, fmt.Sprintf("i.installed_on_vehicle_id=$%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		where = append(where, fmt.Sprintf("LOWER(p.name) LIKE $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items i JOIN parts p ON p.id=i.part_id WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := q.Query(ctx, `SELECT `+itemColumns+`, p.name
FROM inventory_items i
JOIN parts p ON p.id = i.part_id
WHERE `+cond+`
ORDER BY i.part_id, i.item_identifier
LIMIT $`+fmt.Sprint(len(args)-1)+` OFFSET $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var (
			item        Item
			vehicleID   pgtype.Int8
			installedAt pgtype.Timestamptz
		)
		if err := rows.Scan(&item.ID, &item.PartID, &item.OrganizationID, &item.Identifier, &item.Status, &vehicleID, &installedAt, &item.CreatedAt, &item.PartName); err != nil {
			return nil, 0, err
		}
		item.VehicleID = vehicleID.Int64
		if installedAt.Valid {
			t := installedAt.Time
			item.InstalledAt = &t
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *PGStore) ListTransactions(ctx context.Context, q db.Executor, itemID, orgID int64) ([]Transaction, error) {
	rows, err := q.Query(ctx, `SELECT t.id, t.item_id, t.part_id, COALESCE(t.user_id, 0), t.kind, t.notes, COALESCE(t.related_vehicle_id, 0), t.created_at
FROM inventory_transactions t
JOIN inventory_items i ON i.id = t.item_id
WHERE t.item_id=$1 AND i.organization_id=$2
ORDER BY t.created_at ASC, t.id ASC`, itemID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Transaction{}
	for rows.Next() {
		var entry Transaction
		if err := rows.Scan(&entry.ID, &entry.ItemID, &entry.PartID, &entry.ActorID, &entry.Kind, &entry.Note, &entry.VehicleID, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func nullTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}
