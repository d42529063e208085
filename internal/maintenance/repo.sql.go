package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Vitorhlem/TruCar/internal/platform/db"
	"github.com/Vitorhlem/TruCar/internal/shared"
)

// PGStore persists maintenance tickets in PostgreSQL.
type PGStore struct{}

// NewPGStore constructs PGStore.
func NewPGStore() *PGStore {
	return &PGStore{}
}

const requestColumns = `id, organization_id, vehicle_id, reported_by_id, approver_id, problem_description, category, status, manager_notes, created_at, updated_at`

func scanRequest(scan func(dest ...any) error) (Request, error) {
	var (
		r        Request
		approver pgtype.Int8
	)
	if err := scan(&r.ID, &r.OrganizationID, &r.VehicleID, &r.ReportedByID, &approver, &r.ProblemDescription, &r.Category, &r.Status, &r.ManagerNotes, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, fmt.Errorf("maintenance: %w", shared.ErrNotFound)
		}
		return Request{}, err
	}
	if approver.Valid {
		r.ApproverID = approver.Int64
	}
	return r, nil
}

func nullID(id int64) pgtype.Int8 {
	return pgtype.Int8{Int64: id, Valid: id != 0}
}

func (s *PGStore) InsertRequest(ctx context.Context, q db.Executor, r Request) (Request, error) {
	err := q.QueryRow(ctx, `INSERT INTO maintenance_requests (organization_id, vehicle_id, reported_by_id, problem_description, category, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at, updated_at`,
		r.OrganizationID, r.VehicleID, r.ReportedByID, r.ProblemDescription, string(r.Category), string(r.Status),
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Request{}, err
	}
	return r, nil
}

func (s *PGStore) GetRequest(ctx context.Context, q db.Executor, requestID, orgID int64) (Request, error) {
	row := q.QueryRow(ctx, `SELECT `+requestColumns+`
FROM maintenance_requests
WHERE id=$1 AND organization_id=$2`, requestID, orgID)
	return scanRequest(row.Scan)
}

func (s *PGStore) ListRequests(ctx context.Context, q db.Executor, filter RequestFilter) ([]Request, int, error) {
	where := []string{"organization_id=$1"}
	args := []any{filter.OrganizationID}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		where = append(where, fmt.Sprintf("LOWER(problem_description) LIKE $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM maintenance_requests WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	rows, err := q.Query(ctx, `SELECT `+requestColumns+`
FROM maintenance_requests
WHERE `+cond+`
ORDER BY created_at DESC
LIMIT $`+fmt.Sprint(len(args)-1)+` OFFSET $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []Request{}
	for rows.Next() {
		r, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (s *PGStore) UpdateRequestStatus(ctx context.Context, q db.Executor, requestID, orgID int64, status Status, managerNotes string, approverID int64) (Request, error) {
	row := q.QueryRow(ctx, `UPDATE maintenance_requests
SET status=$1, manager_notes=$2, approver_id=$3, updated_at=NOW()
WHERE id=$4 AND organization_id=$5
RETURNING `+requestColumns, string(status), managerNotes, nullID(approverID), requestID, orgID)
	return scanRequest(row.Scan)
}

func (s *PGStore) DeleteRequest(ctx context.Context, q db.Executor, requestID, orgID int64) error {
	tag, err := q.Exec(ctx, `DELETE FROM maintenance_requests WHERE id=$1 AND organization_id=$2`, requestID, orgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("maintenance: request %d: %w", requestID, shared.ErrNotFound)
	}
	return nil
}

func (s *PGStore) VehicleExists(ctx context.Context, q db.Executor, vehicleID, orgID int64) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vehicles WHERE id=$1 AND organization_id=$2)`, vehicleID, orgID).Scan(&exists)
	return exists, err
}

func (s *PGStore) InsertComment(ctx context.Context, q db.Executor, c Comment) (Comment, error) {
	err := q.QueryRow(ctx, `INSERT INTO maintenance_comments (request_id, user_id, organization_id, comment_text, file_url)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at`,
		c.RequestID, c.UserID, c.OrganizationID, c.Text, c.FileURL,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return Comment{}, err
	}
	return c, nil
}

func (s *PGStore) ListComments(ctx context.Context, q db.Executor, requestID, orgID int64) ([]Comment, error) {
	rows, err := q.Query(ctx, `SELECT c.id, c.request_id, c.user_id, c.organization_id, c.comment_text, c.file_url, c.created_at, COALESCE(u.full_name, '')
FROM maintenance_comments c
LEFT JOIN users u ON u.id = c.user_id
WHERE c.request_id=$1 AND c.organization_id=$2
ORDER BY c.created_at ASC, c.id ASC`, requestID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.RequestID, &c.UserID, &c.OrganizationID, &c.Text, &c.FileURL, &c.CreatedAt, &c.AuthorName); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PGStore) InsertPartChange(ctx context.Context, q db.Executor, pc PartChange) (PartChange, error) {
	err := q.QueryRow(ctx, `INSERT INTO maintenance_part_changes (request_id, user_id, notes, component_removed_id, component_installed_id, is_reverted)
VALUES ($1, $2, $3, $4, $5, FALSE)
RETURNING id, created_at`,
		pc.RequestID, pc.UserID, pc.Notes, nullID(pc.ComponentRemovedID), pc.ComponentInstalledID,
	).Scan(&pc.ID, &pc.CreatedAt)
	if err != nil {
		return PartChange{}, err
	}
	return pc, nil
}

const partChangeColumns = `id, request_id, user_id, notes, component_removed_id, component_installed_id, is_reverted, created_at`

func scanPartChange(scan func(dest ...any) error) (PartChange, error) {
	var (
		pc      PartChange
		removed pgtype.Int8
	)
	if err := scan(&pc.ID, &pc.RequestID, &pc.UserID, &pc.Notes, &removed, &pc.ComponentInstalledID, &pc.IsReverted, &pc.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PartChange{}, fmt.Errorf("maintenance: part change: %w", shared.ErrNotFound)
		}
		return PartChange{}, err
	}
	if removed.Valid {
		pc.ComponentRemovedID = removed.Int64
	}
	return pc, nil
}

func (s *PGStore) GetPartChangeForUpdate(ctx context.Context, q db.Executor, changeID int64) (PartChange, error) {
	row := q.QueryRow(ctx, `SELECT `+partChangeColumns+`
FROM maintenance_part_changes
WHERE id=$1
FOR UPDATE`, changeID)
	return scanPartChange(row.Scan)
}

func (s *PGStore) ListPartChanges(ctx context.Context, q db.Executor, requestID int64) ([]PartChange, error) {
	rows, err := q.Query(ctx, `SELECT `+partChangeColumns+`
FROM maintenance_part_changes
WHERE request_id=$1
ORDER BY created_at ASC, id ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []PartChange{}
	for rows.Next() {
		pc, err := scanPartChange(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PGStore) MarkReverted(ctx context.Context, q db.Executor, changeID int64) error {
	tag, err := q.Exec(ctx, `UPDATE maintenance_part_changes
SET is_reverted=TRUE
WHERE id=$1 AND NOT is_reverted`, changeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("maintenance: change %d: %w", changeID, shared.ErrAlreadyReverted)
	}
	return nil
}

func (s *PGStore) ListManagerIDs(ctx context.Context, q db.Executor, orgID int64) ([]int64, error) {
	rows, err := q.Query(ctx, `SELECT id FROM users WHERE organization_id=$1 AND role='manager'`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
