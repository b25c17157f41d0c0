package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/leechcore/internal/routing"
)

// MemoryJournal keeps entity history in process memory.
type MemoryJournal struct {
	mu    sync.Mutex
	recs  []routing.Record
	limit int
}

// NewMemoryJournal creates a journal keeping at most limit records; 0 keeps
// all.
func NewMemoryJournal(limit int) *MemoryJournal {
	return &MemoryJournal{limit: limit}
}

func (j *MemoryJournal) Append(_ context.Context, rec routing.Record) error {
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	rec.Entity = rec.Entity.Clone()
	rec.Handlers = slices.Clone(rec.Handlers)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.recs = append(j.recs, rec)
	if j.limit > 0 && len(j.recs) > j.limit {
		j.recs = slices.Clone(j.recs[len(j.recs)-j.limit:])
	}
	return nil
}

// Recent returns up to limit records, newest first. Limit of 0 defaults to 50.
func (j *MemoryJournal) Recent(_ context.Context, limit int) ([]routing.Record, error) {
	return j.collect(limit, 50, func(routing.Record) bool { return true }), nil
}

// Search matches query case-insensitively against payload, MIME type and
// location.
func (j *MemoryJournal) Search(_ context.Context, query string, limit int) ([]routing.Record, error) {
	q := strings.ToLower(query)
	return j.collect(limit, 20, func(r routing.Record) bool {
		for _, field := range []string{Summarize(r.Entity), r.Entity.Mime, r.Entity.Location} {
			if strings.Contains(strings.ToLower(field), q) {
				return true
			}
		}
		return false
	}), nil
}

// Count returns the number of stored records.
func (j *MemoryJournal) Count(_ context.Context) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.recs), nil
}

func (j *MemoryJournal) Close() error { return nil }

func (j *MemoryJournal) collect(limit, def int, match func(routing.Record) bool) []routing.Record {
	if limit <= 0 {
		limit = def
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []routing.Record
	for i := len(j.recs) - 1; i >= 0 && len(out) < limit; i-- {
		if match(j.recs[i]) {
			out = append(out, j.recs[i])
		}
	}
	return out
}
