// Package sqlite implements the tick journal on a local SQLite file via gorm.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/alanyoungcy/basketbot/internal/domain"
)

// TickRow is the gorm model for one journaled tick. Orders and basket
// decisions are kept as JSON text.
type TickRow struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Session     string `gorm:"index:idx_tick_session_ts,priority:1;not null"`
	Timestamp   int64  `gorm:"index:idx_tick_session_ts,priority:2;not null"`
	Orders      string `gorm:"type:text;not null"`
	Conversions int
	Baskets     string `gorm:"type:text;not null"`
	StateSize   int
	RecordedAt  time.Time `gorm:"index"`
}

// TableName pins the table name so it matches the postgres journal.
func (TickRow) TableName() string { return "tick_journal" }

// TickStore implements domain.TickJournal on SQLite.
type TickStore struct {
	db *gorm.DB
}

// New opens (or creates) the database at path and migrates the schema.
func New(path string) (*TickStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create db directory: %w", err)
		}
	}

	// Pure Go driver, no cgo.
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&TickRow{}); err != nil {
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &TickStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *TickStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Append inserts one tick record.
func (s *TickStore) Append(ctx context.Context, rec domain.TickRecord) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("sqlite: append tick %s/%d: %w", rec.Session, rec.Timestamp, err)
	}
	return nil
}

// ListBySession returns a session's ticks in processing order. Since and
// Until filter on the recording time.
func (s *TickStore) ListBySession(ctx context.Context, session string, opts domain.ListOpts) ([]domain.TickRecord, error) {
	q := s.db.WithContext(ctx).Where("session = ?", session)
	if opts.Since != nil {
		q = q.Where("recorded_at >= ?", *opts.Since)
	}
	if opts.Until != nil {
		q = q.Where("recorded_at <= ?", *opts.Until)
	}
	q = q.Order("timestamp ASC").Order("id ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var rows []TickRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sqlite: list ticks %s: %w", session, err)
	}

	out := make([]domain.TickRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func toRow(rec domain.TickRecord) (TickRow, error) {
	orders, err := json.Marshal(rec.Orders)
	if err != nil {
		return TickRow{}, fmt.Errorf("sqlite: encode orders: %w", err)
	}
	baskets, err := json.Marshal(rec.Baskets)
	if err != nil {
		return TickRow{}, fmt.Errorf("sqlite: encode baskets: %w", err)
	}
	return TickRow{
		Session:     rec.Session,
		Timestamp:   rec.Timestamp,
		Orders:      string(orders),
		Conversions: rec.Conversions,
		Baskets:     string(baskets),
		StateSize:   rec.StateSize,
		RecordedAt:  rec.RecordedAt,
	}, nil
}

func fromRow(row TickRow) (domain.TickRecord, error) {
	rec := domain.TickRecord{
		ID:          row.ID,
		Session:     row.Session,
		Timestamp:   row.Timestamp,
		Conversions: row.Conversions,
		StateSize:   row.StateSize,
		RecordedAt:  row.RecordedAt,
	}
	if err := json.Unmarshal([]byte(row.Orders), &rec.Orders); err != nil {
		return rec, fmt.Errorf("sqlite: decode orders of tick %d: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Baskets), &rec.Baskets); err != nil {
		return rec, fmt.Errorf("sqlite: decode baskets of tick %d: %w", row.ID, err)
	}
	return rec, nil
}

// Compile-time interface check.
var _ domain.TickJournal = (*TickStore)(nil)
