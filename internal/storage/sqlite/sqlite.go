// Package sqlite is a single-file storage backend built on the pure-Go
// SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/xenking/storefront/db"
	"github.com/xenking/storefront/internal/domain/receipt"
	"github.com/xenking/storefront/internal/storage"
)

var (
	_ storage.KV         = (*Store)(nil)
	_ receipt.Repository = (*Store)(nil)
)

// Store implements storage.KV and receipt.Repository on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens the database at dsn and applies the schema. The pool is limited
// to one connection, which also keeps ":memory:" databases shared.
func Open(ctx context.Context, dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.ExecContext(ctx, db.SQLiteSchema); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	return &Store{db: conn}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get implements storage.KV.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %q", key)
	}
	return v, nil
}

// Set implements storage.KV.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMicro(),
	)
	if err != nil {
		return errors.Wrapf(err, "set %q", key)
	}
	return nil
}

// Delete implements storage.KV.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return errors.Wrapf(err, "delete %q", key)
	}
	return nil
}

// Create implements receipt.Repository.
func (s *Store) Create(ctx context.Context, r *receipt.Receipt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO receipts (id, username, gateway, amount, minor_amount, currency, lines, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Username, r.Gateway, r.Amount.String(), r.MinorAmount, r.Currency,
		string(receipt.EncodeLines(r.Lines)), r.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return errors.Wrapf(err, "create receipt %q", r.ID)
	}
	return nil
}

// ListByUser implements receipt.Repository.
func (s *Store) ListByUser(ctx context.Context, username string) ([]receipt.Receipt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, gateway, amount, minor_amount, currency, lines, created_at
		FROM receipts WHERE username = ?
		ORDER BY created_at DESC, rowid DESC`, username)
	if err != nil {
		return nil, errors.Wrap(err, "list receipts")
	}
	defer func() { _ = rows.Close() }()

	var out []receipt.Receipt
	for rows.Next() {
		var (
			r       receipt.Receipt
			amount  string
			lines   string
			created int64
		)
		if err := rows.Scan(&r.ID, &r.Username, &r.Gateway, &amount, &r.MinorAmount, &r.Currency, &lines, &created); err != nil {
			return nil, errors.Wrap(err, "scan receipt")
		}
		if r.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, errors.Wrapf(err, "receipt %q amount", r.ID)
		}
		if r.Lines, err = receipt.DecodeLines([]byte(lines)); err != nil {
			return nil, errors.Wrapf(err, "receipt %q lines", r.ID)
		}
		r.CreatedAt = time.UnixMicro(created).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list receipts")
	}
	return out, nil
}
