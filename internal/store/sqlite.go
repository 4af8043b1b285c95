package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	apperrors "riskdash/internal/errors"
	"riskdash/internal/pages"
)

const schemaDDL = `CREATE TABLE IF NOT EXISTS input_status (
	page_key   TEXT NOT NULL,
	slot_key   TEXT NOT NULL,
	status     TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (page_key, slot_key)
)`

// SQLiteStore persists statuses as JSON documents in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at dsn and migrates it.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.NewStorageError("open status database", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("open status database", err)
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("create input_status table", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, pageKey, slotKey string) (*pages.InputStatus, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM input_status WHERE page_key = ? AND slot_key = ?`, pageKey, slotKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewStorageError("read status", err)
	}
	return decode(raw)
}

func (s *SQLiteStore) List(ctx context.Context, pageKey string) (map[string]*pages.InputStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slot_key, status FROM input_status WHERE page_key = ? ORDER BY slot_key`, pageKey)
	if err != nil {
		return nil, apperrors.NewStorageError("list statuses", err)
	}
	defer rows.Close()

	out := make(map[string]*pages.InputStatus)
	for rows.Next() {
		var slot, raw string
		if err := rows.Scan(&slot, &raw); err != nil {
			return nil, apperrors.NewStorageError("list statuses", err)
		}
		st, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out[slot] = st
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("list statuses", err)
	}
	return out, nil
}

func (s *SQLiteStore) Put(ctx context.Context, status *pages.InputStatus) error {
	raw, err := json.Marshal(status)
	if err != nil {
		return apperrors.NewStorageError("encode status", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO input_status (page_key, slot_key, status, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (page_key, slot_key) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		status.PageKey, status.SlotKey, string(raw), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return apperrors.NewStorageError("write status", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, pageKey, slotKey string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM input_status WHERE page_key = ? AND slot_key = ?`, pageKey, slotKey); err != nil {
		return apperrors.NewStorageError("delete status", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func decode(raw string) (*pages.InputStatus, error) {
	var st pages.InputStatus
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("decode status %.40q", raw), err)
	}
	if st.SelectedColumns == nil {
		st.SelectedColumns = map[string]string{}
	}
	return &st, nil
}
