package entity

import (
	"context"
	"fmt"
)

// Grade is a handler's confidence that it can process an entity. Grades are
// totally ordered by their integer value; PNone means "unable".
type Grade int

const (
	PNone   Grade = 0
	PLow    Grade = 200
	PNormal Grade = 500
	PHigh   Grade = 800
	PIdeal  Grade = 1000
)

func (g Grade) String() string {
	switch g {
	case PNone:
		return "none"
	case PLow:
		return "low"
	case PNormal:
		return "normal"
	case PHigh:
		return "high"
	case PIdeal:
		return "ideal"
	default:
		return fmt.Sprintf("grade(%d)", int(g))
	}
}

// TestResult is the answer to a CouldHandle query.
type TestResult struct {
	Grade Grade `json:"grade"`
	// CancelOthers asks that no other handler receive the entity even when
	// broadcast delivery was requested.
	CancelOthers bool `json:"cancelOthers,omitempty"`
}

// Unable is the zero result.
func Unable() TestResult { return TestResult{} }

// Can returns a result with the given grade.
func Can(g Grade) TestResult { return TestResult{Grade: g} }

// CanHandle reports whether the result grade is above PNone.
func (r TestResult) CanHandle() bool { return r.Grade > PNone }

// Handler is implemented by every plugin that consumes entities.
//
// CouldHandle must be fast and free of side effects; it is called against
// every registered handler on every dispatch. Handle performs the action and
// should return promptly, moving long work to its own goroutines. Errors
// returned from Handle are logged by the caller and never propagated further.
type Handler interface {
	CouldHandle(e Entity) TestResult
	Handle(ctx context.Context, e Entity) error
}

// HandlerFuncs adapts a pair of functions to Handler.
type HandlerFuncs struct {
	Could func(e Entity) TestResult
	Do    func(ctx context.Context, e Entity) error
}

func (h HandlerFuncs) CouldHandle(e Entity) TestResult {
	if h.Could == nil {
		return Unable()
	}
	return h.Could(e)
}

func (h HandlerFuncs) Handle(ctx context.Context, e Entity) error {
	if h.Do == nil {
		return nil
	}
	return h.Do(ctx, e)
}

// ByMime returns a CouldHandle function answering g for one MIME type.
func ByMime(mime string, g Grade) func(Entity) TestResult {
	return func(e Entity) TestResult {
		if e.Mime == mime {
			return Can(g)
		}
		return Unable()
	}
}
