package config

import (
	"bytes"
	"slices"
	"strings"

	"github.com/soyeahso/leechcore/internal/errs"
	"gopkg.in/yaml.v3"
)

// Sections are the top-level config keys.
var Sections = []string{"core", "logging", "gateway", "history", "network", "plugins"}

// KeyPath addresses a value in the raw YAML config, e.g. plugins.fetch.dir.
type KeyPath []string

// ParseKeyPath splits a dotted key. The first segment must name a section.
func ParseKeyPath(raw string) (KeyPath, error) {
	if raw == "" {
		return nil, errs.New(errs.CodeConfigInvalid, "empty config key")
	}
	parts := strings.Split(raw, ".")
	if slices.Contains(parts, "") {
		return nil, errs.New(errs.CodeConfigInvalid, "config key has an empty segment", errs.Field("key", raw))
	}
	if !slices.Contains(Sections, parts[0]) {
		return nil, errs.New(errs.CodeConfigInvalid, "unknown config section",
			errs.Field("key", raw), errs.Field("sections", Sections))
	}
	return KeyPath(parts), nil
}

func (p KeyPath) String() string { return strings.Join(p, ".") }

// Get returns the value at p.
func (p KeyPath) Get(root map[string]any) (any, bool) {
	parent, ok := p.parent(root, false)
	if !ok {
		return nil, false
	}
	v, ok := parent[p[len(p)-1]]
	return v, ok
}

// Set stores v at p, creating or replacing intermediate maps.
func (p KeyPath) Set(root map[string]any, v any) {
	parent, _ := p.parent(root, true)
	parent[p[len(p)-1]] = v
}

// Unset removes the value at p and reports whether it was there.
func (p KeyPath) Unset(root map[string]any) bool {
	parent, ok := p.parent(root, false)
	if !ok {
		return false
	}
	last := p[len(p)-1]
	if _, ok := parent[last]; !ok {
		return false
	}
	delete(parent, last)
	return true
}

// parent walks to the map holding the last segment. With create set, missing
// or non-map intermediates are replaced by empty maps.
func (p KeyPath) parent(root map[string]any, create bool) (map[string]any, bool) {
	cur := root
	for _, key := range p[:len(p)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			if !create {
				return nil, false
			}
			next = map[string]any{}
			cur[key] = next
		}
		cur = next
	}
	return cur, true
}

// CheckRaw decodes a raw config map strictly, so misspelled keys are
// reported, and validates the result.
func CheckRaw(raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return errs.Wrap(err, errs.CodeConfigInvalid, "encoding config")
	}
	cfg := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return errs.Wrap(err, errs.CodeConfigInvalid, "decoding config")
	}
	applyDefaults(&cfg)
	return IssuesError(Validate(&cfg))
}
