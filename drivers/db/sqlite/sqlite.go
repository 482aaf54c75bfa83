// Package sqlite implements formstore.RowStore on SQLite via sqlx.
package sqlite

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
	"github.com/rs/zerolog"

	"formstore"
	"formstore/internal/sqlbuilder"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
)

// Options tune the connection pool and logging. The zero value gives sane
// defaults and a disabled logger.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Logger          zerolog.Logger
}

// Store is a RowStore over one SQLite database.
type Store struct {
	db  *sqlx.DB
	log zerolog.Logger

	closeMx sync.Mutex
	closed  bool
}

var _ formstore.RowStore = (*Store)(nil)

// Open connects to the database at dsn and verifies the connection.
func Open(dsn string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = &Options{}
	}
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: connecting to %q: %w", dsn, err)
	}
	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	maxIdle := opts.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = defaultMaxIdleConns
	}
	lifetime := opts.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = defaultConnMaxLifetime
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)
	return &Store{db: db, log: opts.Logger}, nil
}

// DB exposes the underlying sqlx handle for DDL and host-level queries.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close closes the pool. Safe to call more than once.
func (s *Store) Close() error {
	s.closeMx.Lock()
	defer s.closeMx.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) Insert(ctx context.Context, table string, fields []formstore.Field) (int64, error) {
	query, args := sqlbuilder.BuildInsert(table, fields)
	start := time.Now()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.log.Error().Err(err).Str("query", query).Msg("insert failed")
		return 0, fmt.Errorf("sqlite: insert into %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert id for %s: %w", table, err)
	}
	s.log.Debug().Str("table", table).Int64("id", id).Dur("took", time.Since(start)).Msg("insert")
	return id, nil
}

func (s *Store) Update(ctx context.Context, table, pkColumn string, id int64, fields []formstore.Field) error {
	query, args := sqlbuilder.BuildUpdate(table, pkColumn, id, fields)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.log.Error().Err(err).Str("query", query).Msg("update failed")
		return fmt.Errorf("sqlite: update %s %d: %w", table, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: update %s %d: %w", table, id, err)
	}
	if affected == 0 {
		return formstore.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, table, pkColumn string, id int64) error {
	query, args := sqlbuilder.BuildDelete(table, pkColumn, id)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.log.Error().Err(err).Str("query", query).Msg("delete failed")
		return fmt.Errorf("sqlite: delete %s %d: %w", table, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete %s %d: %w", table, id, err)
	}
	if affected == 0 {
		return formstore.ErrNotFound
	}
	return nil
}

func (s *Store) Select(ctx context.Context, table string, c formstore.Criteria) ([]formstore.Row, int64, error) {
	query, args := sqlbuilder.BuildSelect(table, c)
	start := time.Now()
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		s.log.Error().Err(err).Str("query", query).Msg("select failed")
		return nil, 0, fmt.Errorf("sqlite: select from %s: %w", table, err)
	}
	defer rows.Close()

	var out []formstore.Row
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning row from %s: %w", table, err)
		}
		out = append(out, normalizeRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating rows from %s: %w", table, err)
	}

	total := int64(len(out))
	if c.Limit > 0 || c.Offset > 0 {
		countQuery, countArgs := sqlbuilder.BuildCount(table, c)
		if err := s.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
			return nil, 0, fmt.Errorf("sqlite: counting %s: %w", table, err)
		}
	}
	s.log.Debug().Str("table", table).Int("rows", len(out)).Int64("total", total).
		Dur("took", time.Since(start)).Msg("select")
	return out, total, nil
}

// normalizeRow turns driver byte slices into strings so rows serialize and
// compare predictably upstream.
func normalizeRow(row map[string]any) formstore.Row {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return formstore.Row(row)
}
