package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/mediabot/internal/media"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the media collection and the configuration table in one
// database file. The collection is rewritten whole inside a transaction.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps writers from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS media (
			position INTEGER PRIMARY KEY,
			file_id TEXT NOT NULL,
			caption TEXT NOT NULL DEFAULT '',
			media_type TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]'
		);`,
		`CREATE TABLE IF NOT EXISTS configuration (
			key TEXT PRIMARY KEY,
			value TEXT
		);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Media collection

func (s *SQLiteStore) Load(ctx context.Context) ([]media.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file_id, caption, media_type, tags FROM media ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query media: %w", err)
	}
	defer rows.Close()

	records := []media.Record{}
	for rows.Next() {
		var r media.Record
		var mediaType, tagsJSON string
		if err := rows.Scan(&r.FileID, &r.Caption, &mediaType, &tagsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan media row: %w", err)
		}
		r.Type = media.MediaType(mediaType)
		if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return normalize(records)
}

func (s *SQLiteStore) Save(ctx context.Context, records []media.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM media`); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear media: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO media (position, file_id, caption, media_type, tags) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		tags := r.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to marshal tags: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, i+1, r.FileID, r.Caption, string(r.Type), string(tagsJSON)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert media %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit media: %w", err)
	}
	return nil
}

// Configuration

func (s *SQLiteStore) SetConfig(key, value string) error {
	query := `INSERT INTO configuration (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	_, err := s.db.Exec(query, key, value)
	return err
}

// GetConfig returns "" for keys that were never set.
func (s *SQLiteStore) GetConfig(key string) (string, error) {
	row := s.db.QueryRow(`SELECT value FROM configuration WHERE key = ?`, key)
	var value sql.NullString
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return value.String, nil
}
