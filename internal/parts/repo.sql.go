package parts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Vitorhlem/TruCar/internal/platform/db"
	"github.com/Vitorhlem/TruCar/internal/shared"
)

// PGStore persists part templates in PostgreSQL.
type PGStore struct{}

// NewPGStore constructs PGStore.
func NewPGStore() *PGStore {
	return &PGStore{}
}

const partColumns = `p.id, p.organization_id, p.name, p.part_number, p.brand, p.category, p.value::text, p.min_stock, p.location, p.notes, p.photo_url, p.created_at`

func scanPart(scan func(dest ...any) error) (Part, error) {
	var (
		part  Part
		value string
	)
	if err := scan(&part.ID, &part.OrganizationID, &part.Name, &part.PartNumber, &part.Brand, &part.Category, &value, &part.MinStock, &part.Location, &part.Notes, &part.PhotoURL, &part.CreatedAt); err != nil {
		return Part{}, err
	}
	var err error
	part.Value, err = decimal.NewFromString(value)
	if err != nil {
		return Part{}, err
	}
	return part, nil
}

func (s *PGStore) Insert(ctx context.Context, q db.Executor, part Part) (Part, error) {
	err := q.QueryRow(ctx, `INSERT INTO parts (organization_id, name, part_number, brand, category, value, min_stock, location, notes, photo_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, created_at`,
		part.OrganizationID, part.Name, part.PartNumber, part.Brand, part.Category,
		part.Value.String(), part.MinStock, part.Location, part.Notes, part.PhotoURL,
	).Scan(&part.ID, &part.CreatedAt)
	if err != nil {
		return Part{}, err
	}
	return part, nil
}

func (s *PGStore) Update(ctx context.Context, q db.Executor, part Part) error {
	tag, err := q.Exec(ctx, `UPDATE parts
SET name=$1, part_number=$2, brand=$3, category=$4, value=$5, min_stock=$6, location=$7, notes=$8, photo_url=$9
WHERE id=$10 AND organization_id=$11`,
		part.Name, part.PartNumber, part.Brand, part.Category, part.Value.String(),
		part.MinStock, part.Location, part.Notes, part.PhotoURL,
		part.ID, part.OrganizationID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("parts: part %d: %w", part.ID, shared.ErrNotFound)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, q db.Executor, partID, orgID int64) (Part, error) {
	row := q.QueryRow(ctx, `SELECT `+partColumns+` FROM parts p WHERE p.id=$1 AND p.organization_id=$2`, partID, orgID)
	part, err := scanPart(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Part{}, fmt.Errorf("parts: part %d: %w", partID, shared.ErrNotFound)
		}
		return Part{}, err
	}
	return part, nil
}

func (s *PGStore) List(ctx context.Context, q db.Executor, filter Filter) ([]Part, int, error) {
	where := []string{"p.organization_id=$1"}
	args := []any{filter.OrganizationID}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(LOWER(p.name) LIKE $%d OR LOWER(p.brand) LIKE $%d OR LOWER(p.part_number) LIKE $%d)", n, n, n))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM parts p WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := q.Query(ctx, `SELECT `+partColumns+`, COALESCE(s.stock_count, 0)
FROM parts p
LEFT JOIN (
    SELECT part_id, COUNT(*) AS stock_count
    FROM inventory_items
    WHERE status='AVAILABLE'
    GROUP BY part_id
) s ON s.part_id = p.id
WHERE `+cond+`
ORDER BY p.name
LIMIT $`+fmt.Sprint(len(args)-1)+` OFFSET $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []Part{}
	for rows.Next() {
		var (
			part  Part
			value string
		)
		if err := rows.Scan(&part.ID, &part.OrganizationID, &part.Name, &part.PartNumber, &part.Brand, &part.Category, &value, &part.MinStock, &part.Location, &part.Notes, &part.PhotoURL, &part.CreatedAt, &part.Stock); err != nil {
			return nil, 0, err
		}
		part.Value, err = decimal.NewFromString(value)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, part)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (s *PGStore) CountAvailable(ctx context.Context, q db.Executor, partID, orgID int64) (int, error) {
	var count int
	err := q.QueryRow(ctx, `SELECT COUNT(*)
FROM inventory_items
WHERE part_id=$1 AND organization_id=$2 AND status='AVAILABLE'`, partID, orgID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PGStore) ListLowStock(ctx context.Context, q db.Executor, orgID int64) ([]Part, error) {
	rows, err := q.Query(ctx, `SELECT `+partColumns+`, COALESCE(s.stock_count, 0)
FROM parts p
LEFT JOIN (
    SELECT part_id, COUNT(*) AS stock_count
    FROM inventory_items
    WHERE status='AVAILABLE'
    GROUP BY part_id
) s ON s.part_id = p.id
WHERE p.organization_id=$1 AND COALESCE(s.stock_count, 0) <= p.min_stock
ORDER BY p.name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Part{}
	for rows.Next() {
		var (
			part  Part
			value string
		)
		if err := rows.Scan(&part.ID, &part.OrganizationID, &part.Name, &part.PartNumber, &part.Brand, &part.Category, &value, &part.MinStock, &part.Location, &part.Notes, &part.PhotoURL, &part.CreatedAt, &part.Stock); err != nil {
			return nil, err
		}
		part.Value, err = decimal.NewFromString(value)
		if err != nil {
			return nil, err
		}
		result = append(result, part)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
