// Package store provides the SQLite-backed usage ledger. The ledger records
// token accounting per gateway call, never message content.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/TTTPOB/chatgpt-tg-bot/internal/domain"
)

// Store is the usage ledger contract.
type Store interface {
	RecordUsage(ctx context.Context, rec *domain.UsageRecord) error
	ListUsage(ctx context.Context, userID int64, limit int) ([]domain.UsageRecord, error)
	UsageTotals(ctx context.Context, userID int64) (*domain.UsageTotals, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the ledger database.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS usage_records (
			record_id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			request_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			model TEXT,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			error_kind TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_user ON usage_records(user_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// RecordUsage inserts one ledger row.
func (s *SQLiteStore) RecordUsage(ctx context.Context, rec *domain.UsageRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_records
			(record_id, user_id, request_id, kind, model, prompt_tokens, completion_tokens, total_tokens, latency_ms, error_kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RecordID, rec.UserID, rec.RequestID, rec.Kind, rec.Model,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens,
		rec.LatencyMs, rec.ErrorKind, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// ListUsage returns the most recent ledger rows for one user, newest first.
func (s *SQLiteStore) ListUsage(ctx context.Context, userID int64, limit int) ([]domain.UsageRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, user_id, request_id, kind, model, prompt_tokens, completion_tokens, total_tokens, latency_ms, error_kind, created_at
		FROM usage_records
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []domain.UsageRecord
	for rows.Next() {
		var rec domain.UsageRecord
		var model, errorKind sql.NullString
		if err := rows.Scan(
			&rec.RecordID, &rec.UserID, &rec.RequestID, &rec.Kind, &model,
			&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens,
			&rec.LatencyMs, &errorKind, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		rec.Model = model.String
		rec.ErrorKind = errorKind.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UsageTotals aggregates the ledger for one user.
func (s *SQLiteStore) UsageTotals(ctx context.Context, userID int64) (*domain.UsageTotals, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN error_kind != '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(prompt_tokens), 0),
			COALESCE(SUM(completion_tokens), 0),
			COALESCE(SUM(total_tokens), 0)
		FROM usage_records
		WHERE user_id = ?`,
		userID,
	)

	var totals domain.UsageTotals
	if err := row.Scan(&totals.Calls, &totals.Failures, &totals.PromptTokens, &totals.CompletionTokens, &totals.TotalTokens); err != nil {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}
	return &totals, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
