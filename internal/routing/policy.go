package routing

import (
	"context"
	"time"

	"github.com/soyeahso/leechcore/internal/entity"
	"github.com/soyeahso/leechcore/internal/errs"
)

// TiePolicy decides what happens when several handlers share the best grade.
type TiePolicy string

const (
	// TieFirst always picks the first-registered handler.
	TieFirst TiePolicy = "first"
	// TieAsk consults the Chooser for user-initiated entities, first otherwise.
	TieAsk TiePolicy = "ask"
	// TieBroadcast delivers every entity to the whole tied group.
	TieBroadcast TiePolicy = "broadcast"
)

// ParseTiePolicy validates a policy name. The empty string means TieAsk.
func ParseTiePolicy(s string) (TiePolicy, error) {
	switch TiePolicy(s) {
	case "":
		return TieAsk, nil
	case TieFirst, TieAsk, TieBroadcast:
		return TiePolicy(s), nil
	default:
		return "", errs.New(errs.CodeConfigInvalid, "unknown tie policy",
			errs.Field("policy", s))
	}
}

// Chooser resolves a tie among equally graded handlers for a user-initiated
// entity. It returns the index of the chosen candidate; a negative index
// declines, in which case the first-registered candidate is used.
type Chooser interface {
	Choose(ctx context.Context, e entity.Entity, tied []Candidate) (int, error)
}

// ChooserFunc adapts a function to Chooser.
type ChooserFunc func(ctx context.Context, e entity.Entity, tied []Candidate) (int, error)

func (f ChooserFunc) Choose(ctx context.Context, e entity.Entity, tied []Candidate) (int, error) {
	return f(ctx, e, tied)
}

// Record is one dispatched entity as kept by a Journal.
type Record struct {
	EntityID  string        `json:"entityId"`
	Time      time.Time     `json:"time"`
	Entity    entity.Entity `json:"entity"`
	Accepted  bool          `json:"accepted"`
	Handlers  []string      `json:"handlers,omitempty"`
	Cancelled bool          `json:"cancelled,omitempty"`
}

// Journal persists dispatched entities.
type Journal interface {
	Append(ctx context.Context, rec Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}
