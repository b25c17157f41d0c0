// Package entity defines the generic envelope plugins use to ask the rest of
// the system for an action (download this, notify the user, open that URL)
// and the two-phase protocol handlers implement to bid for it.
package entity

import (
	"maps"
	"strings"
)

// TaskParameters is a bitset of orthogonal traits qualifying how an entity
// should be processed.
type TaskParameters uint32

const (
	NoParameters      TaskParameters = 0
	FromUserInitiated TaskParameters = 1 << iota
	Internal
	OnlyHandle
	OnlyDownload
	AutoAccept
	IsDownloaded
	DoNotSaveInHistory
	DoNotNotifyUser
	// Broadcast asks for delivery to every handler tied at the best grade.
	Broadcast
)

var flagNames = []struct {
	flag TaskParameters
	name string
}{
	{FromUserInitiated, "FromUserInitiated"},
	{Internal, "Internal"},
	{OnlyHandle, "OnlyHandle"},
	{OnlyDownload, "OnlyDownload"},
	{AutoAccept, "AutoAccept"},
	{IsDownloaded, "IsDownloaded"},
	{DoNotSaveInHistory, "DoNotSaveInHistory"},
	{DoNotNotifyUser, "DoNotNotifyUser"},
	{Broadcast, "Broadcast"},
}

// Has reports whether all bits of f are set.
func (p TaskParameters) Has(f TaskParameters) bool {
	return p&f == f
}

// Names returns the names of the set flags in declaration order.
func (p TaskParameters) Names() []string {
	var out []string
	for _, fn := range flagNames {
		if p.Has(fn.flag) {
			out = append(out, fn.name)
		}
	}
	return out
}

func (p TaskParameters) String() string {
	names := p.Names()
	if len(names) == 0 {
		return "NoParameters"
	}
	return strings.Join(names, "|")
}

// ParseFlags parses flag names (as produced by Names) into a bitset.
// Unknown names are returned separately so callers can reject them.
func ParseFlags(names []string) (TaskParameters, []string) {
	var p TaskParameters
	var unknown []string
outer:
	for _, n := range names {
		for _, fn := range flagNames {
			if strings.EqualFold(fn.name, n) {
				p |= fn.flag
				continue outer
			}
		}
		unknown = append(unknown, n)
	}
	return p, unknown
}

// Entity is a weakly-typed message describing data that needs some action.
// Once dispatched it must not be mutated; handlers get their own Clone.
type Entity struct {
	ID         string         `json:"id,omitempty"`
	Payload    any            `json:"payload,omitempty"`
	Mime       string         `json:"mime,omitempty"`
	Location   string         `json:"location,omitempty"`
	Flags      TaskParameters `json:"flags"`
	Additional map[string]any `json:"additional,omitempty"`
}

// MakeEntity builds an entity with an empty additional map.
func MakeEntity(payload any, location string, flags TaskParameters, mime string) Entity {
	return Entity{
		Payload:    payload,
		Mime:       mime,
		Location:   location,
		Flags:      flags,
		Additional: make(map[string]any),
	}
}

// Clone returns a copy whose Additional map can be mutated without affecting e.
// Values stored in the map are copied shallowly.
func (e Entity) Clone() Entity {
	c := e
	if e.Additional != nil {
		c.Additional = maps.Clone(e.Additional)
	}
	return c
}

// With returns a clone of e with an additional key set.
func (e Entity) With(key string, value any) Entity {
	c := e.Clone()
	if c.Additional == nil {
		c.Additional = make(map[string]any)
	}
	c.Additional[key] = value
	return c
}

// Get returns an additional value.
func (e Entity) Get(key string) (any, bool) {
	v, ok := e.Additional[key]
	return v, ok
}

// StringValue returns an additional value as a string, or "" if absent or of
// another type.
func (e Entity) StringValue(key string) string {
	s, _ := e.Additional[key].(string)
	return s
}

// PayloadString returns the payload when it is a string.
func (e Entity) PayloadString() (string, bool) {
	s, ok := e.Payload.(string)
	return s, ok
}
