package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/soyeahso/leechcore/internal/errs"
)

// Settings is a per-plugin key/value store. Values are JSON-encoded. With a
// nil database it keeps values in memory.
type Settings struct {
	db *DB

	mu  sync.Mutex
	mem map[string]map[string][]byte
}

// NewSettings creates a settings store on db, or an in-memory one if db is nil.
func NewSettings(db *DB) *Settings {
	return &Settings{db: db, mem: make(map[string]map[string][]byte)}
}

// For returns the settings of one plugin.
func (s *Settings) For(plugin string) *PluginSettings {
	return &PluginSettings{s: s, plugin: plugin}
}

// Get decodes the value of key into v. It reports false if the key is unset.
func (s *Settings) Get(ctx context.Context, plugin, key string, v any) (bool, error) {
	raw, ok, err := s.load(ctx, plugin, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, errs.Wrap(err, errs.CodeStoreFailure, "decoding setting",
			errs.FieldPlugin(plugin), errs.Field("key", key))
	}
	return true, nil
}

// Set stores v under key.
func (s *Settings) Set(ctx context.Context, plugin, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errs.Wrap(err, errs.CodeStoreFailure, "encoding setting",
			errs.FieldPlugin(plugin), errs.Field("key", key))
	}

	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.mem[plugin] == nil {
			s.mem[plugin] = make(map[string][]byte)
		}
		s.mem[plugin][key] = raw
		return nil
	}

	_, err = s.db.sql.ExecContext(ctx,
		`INSERT INTO plugin_settings (plugin, key, value, updated_at)
		 VALUES (?, ?, ?, datetime('now'))
		 ON CONFLICT(plugin, key) DO UPDATE SET
		   value = excluded.value,
		   updated_at = excluded.updated_at`,
		plugin, key, string(raw))
	if err != nil {
		return errs.Wrap(err, errs.CodeStoreFailure, "writing setting",
			errs.FieldPlugin(plugin), errs.Field("key", key))
	}
	return nil
}

// Delete removes key.
func (s *Settings) Delete(ctx context.Context, plugin, key string) error {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.mem[plugin], key)
		return nil
	}

	if _, err := s.db.sql.ExecContext(ctx,
		`DELETE FROM plugin_settings WHERE plugin = ? AND key = ?`, plugin, key); err != nil {
		return errs.Wrap(err, errs.CodeStoreFailure, "deleting setting",
			errs.FieldPlugin(plugin), errs.Field("key", key))
	}
	return nil
}

// Keys lists the keys set for a plugin, sorted.
func (s *Settings) Keys(ctx context.Context, plugin string) ([]string, error) {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		keys := make([]string, 0, len(s.mem[plugin]))
		for k := range s.mem[plugin] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys, nil
	}

	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT key FROM plugin_settings WHERE plugin = ? ORDER BY key`, plugin)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeStoreFailure, "listing settings", errs.FieldPlugin(plugin))
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errs.Wrap(err, errs.CodeStoreFailure, "scanning setting key")
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *Settings) load(ctx context.Context, plugin, key string) ([]byte, bool, error) {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		raw, ok := s.mem[plugin][key]
		return raw, ok, nil
	}

	var value string
	err := s.db.sql.QueryRowContext(ctx,
		`SELECT value FROM plugin_settings WHERE plugin = ? AND key = ?`, plugin, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrap(err, errs.CodeStoreFailure, "reading setting",
			errs.FieldPlugin(plugin), errs.Field("key", key))
	}
	return []byte(value), true, nil
}

// PluginSettings is the settings view of a single plugin.
type PluginSettings struct {
	s      *Settings
	plugin string
}

func (p *PluginSettings) Get(ctx context.Context, key string, v any) (bool, error) {
	return p.s.Get(ctx, p.plugin, key, v)
}

func (p *PluginSettings) Set(ctx context.Context, key string, v any) error {
	return p.s.Set(ctx, p.plugin, key, v)
}

func (p *PluginSettings) Delete(ctx context.Context, key string) error {
	return p.s.Delete(ctx, p.plugin, key)
}
