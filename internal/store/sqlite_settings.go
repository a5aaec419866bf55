package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/soundreach/fanscout/internal/settings"
)

// GetSettings returns the global discovery settings document, creating it
// with defaults on first read.
func (s *SQLiteStore) GetSettings(ctx context.Context) (*settings.Settings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	doc, err := getSettingsTx(ctx, tx)
	if err == nil {
		return doc, tx.Commit()
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	defaults := settings.Default(s.now().UTC())
	if err := writeSettingsTx(ctx, tx, defaults, true); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &defaults, nil
}

// SaveSettings persists an operator-edited settings document. The caller is
// responsible for validation; key, createdAt, and run history are preserved
// from the stored document.
func (s *SQLiteStore) SaveSettings(ctx context.Context, doc settings.Settings) (*settings.Settings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stored, err := getSettingsTx(ctx, tx)
	if err == sql.ErrNoRows {
		defaults := settings.Default(s.now().UTC())
		stored = &defaults
		if err := writeSettingsTx(ctx, tx, defaults, true); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	doc.Key = settings.GlobalKey
	doc.CreatedAt = stored.CreatedAt
	doc.RunHistory = stored.RunHistory
	doc.LastRunAt = stored.LastRunAt
	doc.LastRunSummary = stored.LastRunSummary
	doc.UpdatedAt = s.now().UTC()

	if err := writeSettingsTx(ctx, tx, doc, false); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// RecordRun appends a run entry to the settings document's history in one
// transaction, capping it at the history limit, and returns the updated
// document.
func (s *SQLiteStore) RecordRun(ctx context.Context, entry settings.RunEntry) (*settings.Settings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	doc, err := getSettingsTx(ctx, tx)
	if err == sql.ErrNoRows {
		defaults := settings.Default(s.now().UTC())
		doc = &defaults
		if err := writeSettingsTx(ctx, tx, defaults, true); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	doc.AppendRun(entry)
	doc.UpdatedAt = s.now().UTC()

	if err := writeSettingsTx(ctx, tx, *doc, false); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return doc, nil
}

func getSettingsTx(ctx context.Context, tx *sql.Tx) (*settings.Settings, error) {
	var raw string
	err := tx.QueryRowContext(ctx,
		"SELECT doc FROM discovery_settings WHERE key = ?", settings.GlobalKey,
	).Scan(&raw)
	if err != nil {
		return nil, err
	}

	var doc settings.Settings
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode settings document: %w", err)
	}
	return &doc, nil
}

func writeSettingsTx(ctx context.Context, tx *sql.Tx, doc settings.Settings, insert bool) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode settings document: %w", err)
	}

	if insert {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO discovery_settings (key, doc, created_at, updated_at)
			VALUES (?, ?, ?, ?)
		`, settings.GlobalKey, string(raw),
			doc.CreatedAt.Format(time.RFC3339), doc.UpdatedAt.Format(time.RFC3339))
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE discovery_settings SET doc = ?, updated_at = ? WHERE key = ?
	`, string(raw), doc.UpdatedAt.Format(time.RFC3339), settings.GlobalKey)
	return err
}
