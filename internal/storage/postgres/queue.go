package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-pos/internal/domain/sale"
)

const (
	enqueueSQL = `INSERT INTO pending_requests
	(id, method, path, body, sale_id, priority, retries, last_error, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING`

	pendingSQL = `SELECT id, method, path, body, sale_id, priority, retries, last_error, created_at
	FROM pending_requests ORDER BY priority DESC, created_at, id`

	removeRequestSQL = `DELETE FROM pending_requests WHERE id = $1`

	recordFailureSQL = `UPDATE pending_requests SET retries = retries + 1, last_error = $2 WHERE id = $1`

	queueStatsSQL = `SELECT count(*), count(*) FILTER (WHERE retries > 0) FROM pending_requests`
)

var _ sale.RequestQueue = (*PendingRequestQueue)(nil)

// PendingRequestQueue stores outbound requests awaiting replay.
type PendingRequestQueue struct {
	pool *pgxpool.Pool
}

// NewPendingRequestQueue returns a PendingRequestQueue that uses the given pool.
func NewPendingRequestQueue(pool *pgxpool.Pool) *PendingRequestQueue {
	return &PendingRequestQueue{pool: pool}
}

// Enqueue stores req. Enqueuing an existing id is a no-op.
func (q *PendingRequestQueue) Enqueue(ctx context.Context, req sale.PendingRequest) error {
	_, err := q.pool.Exec(ctx, enqueueSQL,
		req.ID, req.Method, req.Path, req.Body, req.SaleID,
		req.Priority, req.Retries, req.LastError, req.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "enqueue request %q", req.ID)
	}
	return nil
}

// Pending returns queued requests by priority, highest first, then oldest
// first.
func (q *PendingRequestQueue) Pending(ctx context.Context) ([]sale.PendingRequest, error) {
	rows, err := q.pool.Query(ctx, pendingSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list pending requests")
	}
	reqs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (sale.PendingRequest, error) {
		var r sale.PendingRequest
		err := row.Scan(&r.ID, &r.Method, &r.Path, &r.Body, &r.SaleID,
			&r.Priority, &r.Retries, &r.LastError, &r.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan pending requests")
	}
	return reqs, nil
}

// Remove deletes a request.
func (q *PendingRequestQueue) Remove(ctx context.Context, id string) error {
	if _, err := q.pool.Exec(ctx, removeRequestSQL, id); err != nil {
		return errors.Wrapf(err, "remove request %q", id)
	}
	return nil
}

// RecordFailure increments the retry count of a request and keeps reason.
func (q *PendingRequestQueue) RecordFailure(ctx context.Context, id, reason string) error {
	if _, err := q.pool.Exec(ctx, recordFailureSQL, id, reason); err != nil {
		return errors.Wrapf(err, "record failure of request %q", id)
	}
	return nil
}

// Stats counts queued and failed requests.
func (q *PendingRequestQueue) Stats(ctx context.Context) (sale.QueueStats, error) {
	var s sale.QueueStats
	if err := q.pool.QueryRow(ctx, queueStatsSQL).Scan(&s.Pending, &s.Failed); err != nil {
		return sale.QueueStats{}, errors.Wrap(err, "queue stats")
	}
	return s, nil
}
