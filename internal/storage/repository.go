// Package storage implements the SQLite-backed transaction store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"zelar/internal/core"
	"zelar/internal/ledger"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const insertQuery = `
INSERT INTO transactions (id, username, category, amount, origin, ts, description, attachment_ref, session_tag)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING seq`

func (r *SQLiteRepository) Insert(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, insertQuery,
		t.ID, t.User, string(t.Category), t.Amount, string(t.Origin),
		t.Timestamp.Format(core.TimeLayout), t.Description, t.AttachmentRef,
		encodeTag(t.SessionTag))
	if err := row.Scan(&t.Seq); err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"user", t.User,
		"category", t.Category,
		"amount", t.Amount,
		"origin", t.Origin)

	return t, nil
}

const getQuery = `
SELECT seq, id, username, category, amount, origin, ts, description, attachment_ref, session_tag
FROM transactions WHERE id = ?`

func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, getQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return t, nil
}

const updateQuery = `
UPDATE transactions
SET category = ?, amount = ?, ts = ?, description = ?, attachment_ref = ?, session_tag = ?
WHERE id = ?`

func (r *SQLiteRepository) Update(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx, updateQuery,
		string(t.Category), t.Amount, t.Timestamp.Format(core.TimeLayout),
		t.Description, t.AttachmentRef, encodeTag(t.SessionTag), t.ID)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", t.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

const listByUserQuery = `
SELECT seq, id, username, category, amount, origin, ts, description, attachment_ref, session_tag
FROM transactions WHERE username = ? ORDER BY ts ASC, seq ASC`

func (r *SQLiteRepository) ListByUser(ctx context.Context, user string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, listByUserQuery, user)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", user, err)
	}
	defer rows.Close()
	return collect(rows)
}

const listAllQuery = `
SELECT seq, id, username, category, amount, origin, ts, description, attachment_ref, session_tag
FROM transactions ORDER BY ts ASC, seq ASC`

func (r *SQLiteRepository) ListAll(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, listAllQuery)
	if err != nil {
		return nil, fmt.Errorf("list all transactions: %w", err)
	}
	defer rows.Close()
	return collect(rows)
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT username FROM transactions ORDER BY username ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ApplySessionTags rewrites one user's session tags in a single SQL
// transaction so readers never see a half-applied retag.
func (r *SQLiteRepository) ApplySessionTags(ctx context.Context, user string, tags map[string]*time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin retag: %w", err)
	}
	defer tx.Rollback()

	for id, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET session_tag = ? WHERE id = ? AND username = ?`,
			encodeTag(tag), id, user); err != nil {
			return fmt.Errorf("apply session tag for %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit retag: %w", err)
	}

	slog.InfoContext(ctx, "Session tags applied", "user", user, "rows", len(tags))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t   core.Transaction
		ts  string
		tag sql.NullString
	)
	if err := row.Scan(&t.Seq, &t.ID, &t.User, &t.Category, &t.Amount,
		&t.Origin, &ts, &t.Description, &t.AttachmentRef, &tag); err != nil {
		return core.Transaction{}, err
	}

	parsed, err := time.ParseInLocation(core.TimeLayout, ts, time.UTC)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}
	t.Timestamp = parsed

	if tag.Valid && tag.String != "" {
		d, err := time.ParseInLocation(core.DateLayout, tag.String, time.UTC)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("parse session tag %q: %w", tag.String, err)
		}
		t.SessionTag = &d
	}
	return t, nil
}

func collect(rows *sql.Rows) ([]core.Transaction, error) {
	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func encodeTag(tag *time.Time) any {
	if tag == nil {
		return nil
	}
	return tag.Format(core.DateLayout)
}
