package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/soyeahso/leechcore/internal/entity"
	"github.com/soyeahso/leechcore/internal/logging"
	"github.com/soyeahso/leechcore/internal/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func record(id, payload string, handlers ...string) routing.Record {
	return routing.Record{
		EntityID: id,
		Entity:   entity.MakeEntity(payload, "/tmp/downloads", entity.FromUserInitiated, "text/uri"),
		Accepted: len(handlers) > 0,
		Handlers: handlers,
	}
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db)
	assert.NotNil(t, db.SQL())
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	db, err := Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.FileExists(t, path)
}

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)

	require.NoError(t, db.migrate())

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)

	for _, table := range []string{"entity_history", "history_fts", "plugin_settings"} {
		var name string
		err := db.sql.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

// --- Journal tests ---

func TestJournal_AppendAndRecent(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(testDB(t), 0)

	require.NoError(t, j.Append(ctx, record("e1", "https://example.org/a.iso", "org.leechcore.fetch")))
	require.NoError(t, j.Append(ctx, record("e2", "https://example.org/b.iso")))

	recs, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "e2", recs[0].EntityID)
	assert.False(t, recs[0].Accepted)
	assert.Equal(t, "e1", recs[1].EntityID)
	assert.True(t, recs[1].Accepted)
	assert.Equal(t, []string{"org.leechcore.fetch"}, recs[1].Handlers)
	assert.Equal(t, "https://example.org/a.iso", recs[1].Entity.Payload)
	assert.Equal(t, entity.FromUserInitiated, recs[1].Entity.Flags)
	assert.False(t, recs[1].Time.IsZero())
}

func TestJournal_Limit(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(testDB(t), 3)

	for i := 0; i < 5; i++ {
		require.NoError(t, j.Append(ctx, record(fmt.Sprintf("e%d", i), "x")))
	}

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	recs, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "e4", recs[0].EntityID)
	assert.Equal(t, "e2", recs[2].EntityID)
}

func TestJournal_Search(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(testDB(t), 0)

	require.NoError(t, j.Append(ctx, record("e1", "debian netinst image")))
	require.NoError(t, j.Append(ctx, routing.Record{
		EntityID: "e2",
		Entity:   entity.MakeNotification("Mail", "3 unread messages", entity.PInfo),
	}))

	recs, err := j.Search(ctx, "debian", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "e1", recs[0].EntityID)

	recs, err = j.Search(ctx, "unread", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "e2", recs[0].EntityID)
	assert.Equal(t, entity.PInfo, recs[0].Entity.NotificationPriority())
}

func TestJournal_Close(t *testing.T) {
	db, err := Open(":memory:", logging.New(nil, "silent"))
	require.NoError(t, err)
	j := NewJournal(db, 0)
	require.NoError(t, j.Close())

	assert.Error(t, j.Append(context.Background(), record("e1", "x")))
}

func TestMemoryJournal(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal(2)

	require.NoError(t, j.Append(ctx, record("e1", "alpha")))
	require.NoError(t, j.Append(ctx, record("e2", "beta")))
	require.NoError(t, j.Append(ctx, record("e3", "gamma", "p1")))

	n, _ := j.Count(ctx)
	assert.Equal(t, 2, n)

	recs, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "e3", recs[0].EntityID)

	recs, err = j.Search(ctx, "BETA", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "e2", recs[0].EntityID)

	assert.NoError(t, j.Close())
}

func TestMemoryJournal_StoresCopies(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal(0)

	rec := record("e1", "alpha")
	require.NoError(t, j.Append(ctx, rec))
	rec.Entity.Additional["late"] = true

	recs, _ := j.Recent(ctx, 1)
	_, ok := recs[0].Entity.Get("late")
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "Fetch done", Summarize(entity.MakeNotification("Fetch", "done", entity.PInfo)))
	assert.Equal(t, "payload", Summarize(entity.MakeEntity("payload", "", 0, "text/plain")))
	assert.Equal(t, "", Summarize(entity.MakeEntity(42, "", 0, "x/int")))
}

// --- Settings tests ---

func TestSettings(t *testing.T) {
	backends := map[string]func(t *testing.T) *Settings{
		"sqlite": func(t *testing.T) *Settings { return NewSettings(testDB(t)) },
		"memory": func(*testing.T) *Settings { return NewSettings(nil) },
	}

	for name, mk := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk(t)
			fetch := s.For("org.leechcore.fetch")

			var dir string
			ok, err := fetch.Get(ctx, "dir", &dir)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, fetch.Set(ctx, "dir", "/tmp/a"))
			require.NoError(t, fetch.Set(ctx, "dir", "/tmp/b"))
			require.NoError(t, fetch.Set(ctx, "parallel", 4))

			ok, err = fetch.Get(ctx, "dir", &dir)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "/tmp/b", dir)

			var parallel int
			_, err = s.Get(ctx, "org.leechcore.fetch", "parallel", &parallel)
			require.NoError(t, err)
			assert.Equal(t, 4, parallel)

			ok, _ = s.Get(ctx, "org.leechcore.other", "dir", &dir)
			assert.False(t, ok)

			keys, err := s.Keys(ctx, "org.leechcore.fetch")
			require.NoError(t, err)
			assert.Equal(t, []string{"dir", "parallel"}, keys)

			require.NoError(t, fetch.Delete(ctx, "dir"))
			ok, _ = fetch.Get(ctx, "dir", &dir)
			assert.False(t, ok)
		})
	}
}

func TestSettings_DecodeError(t *testing.T) {
	ctx := context.Background()
	s := NewSettings(nil)
	require.NoError(t, s.Set(ctx, "p", "k", "text"))

	var n int
	_, err := s.Get(ctx, "p", "k", &n)
	assert.Error(t, err)
}
