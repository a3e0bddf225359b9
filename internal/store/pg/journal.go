// Package pg is the Postgres journal backend. Schema is managed with
// `replygate migrate` (golang-migrate, migrations/ directory).
package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/replygate/replygate/internal/store"
)

// Journal implements store.Journal backed by Postgres.
type Journal struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*Journal, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.Channel, rec.PartnerID, rec.SessionKey, rec.BatchSize,
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
		 FROM dispatches ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query dispatches: %w", err)
	}
	defer rows.Close()

	var out []store.DispatchRecord
	for rows.Next() {
		var rec store.DispatchRecord
		if err := rows.Scan(&rec.ID, &rec.Channel, &rec.PartnerID, &rec.SessionKey, &rec.BatchSize,
			&rec.Status, &rec.ReplyPreview, &rec.Error, &rec.LatencyMs, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dispatch row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
