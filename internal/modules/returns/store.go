// README: Return request store backed by PostgreSQL.
package returns

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sokoni/internal/types"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

// CreateIfNoneActive inserts the request only when the order has no
// pending or approved return. The guard and the insert run as one
// statement so two racing filings cannot both slip through.
func (s *PgStore) CreateIfNoneActive(ctx context.Context, r *ReturnRequest) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        INSERT INTO return_requests (
            id, order_id, reason, resolution, message, status, admin_notes, created_at
        )
        SELECT $1, $2, $3, $4, $5, $6, '', $7
        WHERE NOT EXISTS (
            SELECT 1 FROM return_requests
            WHERE order_id = $2 AND status IN ('pending','approved')
        )`,
		string(r.ID), string(r.OrderID), r.Reason, string(r.Resolution),
		r.Message, string(r.Status), r.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("create return request: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (*ReturnRequest, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, order_id, reason, resolution, message, status, admin_notes,
               created_at, resolved_at, completed_at
        FROM return_requests
        WHERE id = $1`, string(id),
	)
	var r ReturnRequest
	err := row.Scan(&r.ID, &r.OrderID, &r.Reason, &r.Resolution, &r.Message, &r.Status,
		&r.AdminNotes, &r.CreatedAt, &r.ResolvedAt, &r.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get return request: %w", err)
	}
	return &r, nil
}

// UpdateStatus is the usual conditional write; the WHERE on the current
// status serializes concurrent admin actions.
func (s *PgStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, adminNotes string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE return_requests
        SET status = $1,
            admin_notes = CASE WHEN $2 <> '' THEN $2 ELSE admin_notes END,
            resolved_at = CASE WHEN $1 IN ('approved','rejected') THEN NOW() ELSE resolved_at END,
            completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END
        WHERE id = $3 AND status = $4`,
		string(to), adminNotes, string(id), string(from),
	)
	if err != nil {
		return false, fmt.Errorf("update return status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) ListByOrder(ctx context.Context, orderID types.ID) ([]*ReturnRequest, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, order_id, reason, resolution, message, status, admin_notes,
               created_at, resolved_at, completed_at
        FROM return_requests
        WHERE order_id = $1
        ORDER BY created_at DESC`, string(orderID),
	)
	if err != nil {
		return nil, fmt.Errorf("list return requests: %w", err)
	}
	defer rows.Close()

	var out []*ReturnRequest
	for rows.Next() {
		var r ReturnRequest
		if err := rows.Scan(&r.ID, &r.OrderID, &r.Reason, &r.Resolution, &r.Message, &r.Status,
			&r.AdminNotes, &r.CreatedAt, &r.ResolvedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan return request: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
