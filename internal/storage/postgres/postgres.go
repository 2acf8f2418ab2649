// Package postgres is the PostgreSQL storage backend.
package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/db"
	"github.com/xenking/storefront/internal/domain/receipt"
	"github.com/xenking/storefront/internal/storage"
)

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, db.PostgresSchema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

var (
	_ storage.KV         = (*Store)(nil)
	_ receipt.Repository = (*Store)(nil)
)

// Store implements storage.KV and receipt.Repository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store that uses the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get implements storage.KV.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting %q: %w", key, err)
	}
	return v, nil
}

// Set implements storage.KV.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("setting %q: %w", key, err)
	}
	return nil
}

// Delete implements storage.KV.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv WHERE key = $1`, key); err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}

// Create persists a receipt. The lines are serialized to JSON for storage in
// the JSONB column.
func (s *Store) Create(ctx context.Context, r *receipt.Receipt) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO receipts (id, username, gateway, amount, minor_amount, currency, lines, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.Username, r.Gateway, r.Amount, r.MinorAmount, r.Currency,
		string(receipt.EncodeLines(r.Lines)), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating receipt %q: %w", r.ID, err)
	}
	return nil
}

// ListByUser implements receipt.Repository.
func (s *Store) ListByUser(ctx context.Context, username string) ([]receipt.Receipt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, gateway, amount, minor_amount, currency, lines::text, created_at
		FROM receipts WHERE username = $1
		ORDER BY created_at DESC, id DESC`, username)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	defer rows.Close()

	var out []receipt.Receipt
	for rows.Next() {
		var (
			r     receipt.Receipt
			lines string
		)
		if err := rows.Scan(&r.ID, &r.Username, &r.Gateway, &r.Amount, &r.MinorAmount, &r.Currency, &lines, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning receipt: %w", err)
		}
		if r.Lines, err = receipt.DecodeLines([]byte(lines)); err != nil {
			return nil, fmt.Errorf("receipt %q lines: %w", r.ID, err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return out, nil
}
