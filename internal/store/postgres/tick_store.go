package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/basketbot/internal/domain"
)

// TickStore implements domain.TickJournal using PostgreSQL. Orders and basket
// decisions are stored as JSONB.
type TickStore struct {
	pool *pgxpool.Pool
}

// NewTickStore creates a new TickStore backed by the given connection pool.
func NewTickStore(pool *pgxpool.Pool) *TickStore {
	return &TickStore{pool: pool}
}

const tickSelectCols = `id, session, timestamp, orders, conversions, baskets, state_size, recorded_at`

// Append inserts one tick record.
func (s *TickStore) Append(ctx context.Context, rec domain.TickRecord) error {
	orders, err := json.Marshal(rec.Orders)
	if err != nil {
		return fmt.Errorf("postgres: encode orders: %w", err)
	}
	baskets, err := json.Marshal(rec.Baskets)
	if err != nil {
		return fmt.Errorf("postgres: encode baskets: %w", err)
	}

	const query = `
		INSERT INTO tick_journal (session, timestamp, orders, conversions, baskets, state_size, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := s.pool.Exec(ctx, query,
		rec.Session, rec.Timestamp, orders, rec.Conversions, baskets, rec.StateSize, rec.RecordedAt,
	); err != nil {
		return fmt.Errorf("postgres: append tick %s/%d: %w", rec.Session, rec.Timestamp, err)
	}
	return nil
}

// ListBySession returns a session's ticks in processing order. Since and
// Until filter on recorded_at.
func (s *TickStore) ListBySession(ctx context.Context, session string, opts domain.ListOpts) ([]domain.TickRecord, error) {
	query := `SELECT ` + tickSelectCols + ` FROM tick_journal WHERE session = $1`
	args := []any{session}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND recorded_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND recorded_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY timestamp ASC, id ASC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ticks %s: %w", session, err)
	}
	defer rows.Close()

	recs, err := scanTickRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan ticks %s: %w", session, err)
	}
	return recs, nil
}

func scanTickRows(rows pgx.Rows) ([]domain.TickRecord, error) {
	var recs []domain.TickRecord
	for rows.Next() {
		var (
			r       domain.TickRecord
			orders  []byte
			baskets []byte
		)
		if err := rows.Scan(
			&r.ID, &r.Session, &r.Timestamp, &orders,
			&r.Conversions, &baskets, &r.StateSize, &r.RecordedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(orders, &r.Orders); err != nil {
			return nil, fmt.Errorf("decode orders of tick %d: %w", r.ID, err)
		}
		if err := json.Unmarshal(baskets, &r.Baskets); err != nil {
			return nil, fmt.Errorf("decode baskets of tick %d: %w", r.ID, err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Compile-time interface check.
var _ domain.TickJournal = (*TickStore)(nil)
