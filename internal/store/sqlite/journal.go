// Package sqlite is the default journal backend: a single-file database,
// no external service required.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/replygate/replygate/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS dispatches (
	id            TEXT PRIMARY KEY,
	channel       TEXT NOT NULL,
	partner_id    TEXT NOT NULL,
	session_key   TEXT NOT NULL,
	batch_size    INTEGER NOT NULL,
	status        TEXT NOT NULL,
	reply_preview TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	latency_ms    INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dispatches_partner ON dispatches(partner_id, created_at);
CREATE INDEX IF NOT EXISTS idx_dispatches_created ON dispatches(created_at);
`

// Journal implements store.Journal backed by a sqlite file.
type Journal struct {
	db *sql.DB
}

// Open creates (or opens) the journal database at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	// One writer: sqlite locks the whole file, and the journal is low-volume.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Record(ctx context.Context, rec store.DispatchRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.Must(uuid.NewV7())
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO dispatches
		 (id, channel, partner_id, session_key, batch_size, status, reply_preview, error, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.Channel, rec.PartnerID, rec.SessionKey, rec.BatchSize,
		rec.Status, rec.ReplyPreview, rec.Error, rec.LatencyMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record dispatch: %w", err)
	}
	return nil
}

func (j *Journal) Recent(ctx context.Context, limit int) ([]store.DispatchRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, channel, partner_id, session_key, batch_size, status, reply_preview, error, latency_ms, created_at
		 FROM dispatches ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	var out []store.DispatchRecord
	for rows.Next() {
		var rec store.DispatchRecord
		var id string
		if err := rows.Scan(&id, &rec.Channel, &rec.PartnerID, &rec.SessionKey, &rec.BatchSize,
			&rec.Status, &rec.ReplyPreview, &rec.Error, &rec.LatencyMs, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dispatch row: %w", err)
		}
		rec.ID, _ = uuid.Parse(id)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
