package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/soyeahso/leechcore/internal/entity"
	"github.com/soyeahso/leechcore/internal/errs"
	"github.com/soyeahso/leechcore/internal/routing"
)

// Journal is the SQLite-backed entity history. It owns the database and
// closes it on Close.
type Journal struct {
	db    *DB
	limit int
}

// NewJournal creates a journal keeping at most limit records; 0 keeps all.
func NewJournal(db *DB, limit int) *Journal {
	return &Journal{db: db, limit: limit}
}

// Append records a dispatched entity and prunes the oldest records past the
// limit.
func (j *Journal) Append(ctx context.Context, rec routing.Record) error {
	data, err := json.Marshal(rec.Entity)
	if err != nil {
		return errs.Wrap(err, errs.CodeStoreFailure, "encoding entity", errs.Field("entity", rec.EntityID))
	}
	handlers, err := json.Marshal(rec.Handlers)
	if err != nil {
		return errs.Wrap(err, errs.CodeStoreFailure, "encoding handlers", errs.Field("entity", rec.EntityID))
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}

	_, err = j.db.sql.ExecContext(ctx,
		`INSERT INTO entity_history (entity_id, mime, location, summary, entity, accepted, cancelled, handlers, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.EntityID, rec.Entity.Mime, rec.Entity.Location, Summarize(rec.Entity), string(data),
		rec.Accepted, rec.Cancelled, string(handlers), rec.Time.Format(time.RFC3339Nano),
	)
	if err != nil {
		return errs.Wrap(err, errs.CodeStoreFailure, "inserting history record", errs.Field("entity", rec.EntityID))
	}

	if j.limit > 0 {
		_, err = j.db.sql.ExecContext(ctx,
			`DELETE FROM entity_history WHERE seq <= (
				SELECT seq FROM entity_history ORDER BY seq DESC LIMIT 1 OFFSET ?
			)`, j.limit)
		if err != nil {
			return errs.Wrap(err, errs.CodeStoreFailure, "pruning history")
		}
	}
	return nil
}

// Recent returns up to limit records, newest first. Limit of 0 defaults to 50.
func (j *Journal) Recent(ctx context.Context, limit int) ([]routing.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.sql.QueryContext(ctx,
		`SELECT entity_id, entity, accepted, cancelled, handlers, created_at
		 FROM entity_history ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeStoreFailure, "querying history")
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Search finds records whose payload, MIME type or location match an FTS5
// query, best match first.
func (j *Journal) Search(ctx context.Context, query string, limit int) ([]routing.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.sql.QueryContext(ctx,
		`SELECT h.entity_id, h.entity, h.accepted, h.cancelled, h.handlers, h.created_at
		 FROM history_fts
		 JOIN entity_history h ON h.seq = history_fts.rowid
		 WHERE history_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`, query, limit)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeStoreFailure, "searching history", errs.Field("query", query))
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Count returns the number of stored records.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM entity_history`).Scan(&n); err != nil {
		return 0, errs.Wrap(err, errs.CodeStoreFailure, "counting history")
	}
	return n, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func scanRecords(rows *sql.Rows) ([]routing.Record, error) {
	var out []routing.Record
	for rows.Next() {
		var rec routing.Record
		var data, handlers, createdAt string
		if err := rows.Scan(&rec.EntityID, &data, &rec.Accepted, &rec.Cancelled, &handlers, &createdAt); err != nil {
			return nil, errs.Wrap(err, errs.CodeStoreFailure, "scanning history record")
		}
		if err := json.Unmarshal([]byte(data), &rec.Entity); err != nil {
			return nil, errs.Wrap(err, errs.CodeStoreFailure, "decoding entity", errs.Field("entity", rec.EntityID))
		}
		if err := json.Unmarshal([]byte(handlers), &rec.Handlers); err != nil {
			return nil, errs.Wrap(err, errs.CodeStoreFailure, "decoding handlers", errs.Field("entity", rec.EntityID))
		}
		rec.Time, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, errs.CodeStoreFailure, "iterating history")
	}
	return out, nil
}

// Summarize renders the searchable text of an entity: its string payload,
// or header and text for notifications.
func Summarize(e entity.Entity) string {
	if e.IsNotification() {
		return strings.TrimSpace(e.StringValue(entity.KeyHeader) + " " + e.StringValue(entity.KeyText))
	}
	if s, ok := e.PayloadString(); ok {
		return s
	}
	return ""
}
