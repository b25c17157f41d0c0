package core

import (
	"sync"

	"github.com/felixgeelhaar/statekit"
	"github.com/soyeahso/leechcore/internal/errs"
	"github.com/soyeahso/leechcore/internal/logging"
)

// Phase is the core's position in its lifecycle.
type Phase string

const (
	PhaseUninitialized    Phase = "uninitialized"
	PhaseInitializing     Phase = "initializing"
	PhaseRunning          Phase = "running"
	PhaseReleaseRequested Phase = "releaseRequested"
	PhaseReleased         Phase = "released"
)

// Lifecycle events.
const (
	eventInit     = "INIT"
	eventReady    = "READY"
	eventRelease  = "RELEASE"
	eventReleased = "RELEASED"
)

type lifeContext struct {
	Transitions int
}

// lifecycle guards core transitions with a statekit machine. Events that
// the current state does not accept are reported as LifecycleInvalid.
type lifecycle struct {
	mu     sync.Mutex
	interp *statekit.Interpreter[lifeContext]
}

func newLifecycle(log *logging.Logger) (*lifecycle, error) {
	machine, err := statekit.NewMachine[lifeContext]("leechcore-core").
		WithInitial("uninitialized").
		WithContext(lifeContext{}).
		WithAction("logEntry", func(c *lifeContext, ev statekit.Event) {
			c.Transitions++
			log.Debug().Str("event", string(ev.Type)).Int("transitions", c.Transitions).Msg("core lifecycle transition")
		}).
		State("uninitialized").
		On(eventInit).Target("initializing").Done().
		State("initializing").
		OnEntry("logEntry").
		On(eventReady).Target("running").Done().
		State("running").
		OnEntry("logEntry").
		On(eventRelease).Target("releaseRequested").Done().
		State("releaseRequested").
		OnEntry("logEntry").
		On(eventReleased).Target("released").Done().
		State("released").
		OnEntry("logEntry").Done().
		Build()
	if err != nil {
		return nil, err
	}

	interp := statekit.NewInterpreter(machine)
	interp.Start()
	return &lifecycle{interp: interp}, nil
}

func (l *lifecycle) phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Phase(l.interp.State().Value)
}

// send delivers ev when the machine is in from and checks it arrived in to.
func (l *lifecycle) send(ev statekit.Event, from, to Phase) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := Phase(l.interp.State().Value)
	if cur != from {
		return errs.New(errs.CodeLifecycleInvalid, "invalid core lifecycle transition",
			errs.Field("event", string(ev.Type)), errs.Field("phase", string(cur)), errs.Field("want", string(from)))
	}
	l.interp.Send(ev)
	if got := Phase(l.interp.State().Value); got != to {
		return errs.New(errs.CodeLifecycleInvalid, "core lifecycle transition did not complete",
			errs.Field("event", string(ev.Type)), errs.Field("phase", string(got)))
	}
	return nil
}

func (l *lifecycle) init() error {
	return l.send(statekit.Event{Type: eventInit}, PhaseUninitialized, PhaseInitializing)
}

func (l *lifecycle) ready() error {
	return l.send(statekit.Event{Type: eventReady}, PhaseInitializing, PhaseRunning)
}

func (l *lifecycle) release() error {
	return l.send(statekit.Event{Type: eventRelease}, PhaseRunning, PhaseReleaseRequested)
}

func (l *lifecycle) released() error {
	err := l.send(statekit.Event{Type: eventReleased}, PhaseReleaseRequested, PhaseReleased)
	l.mu.Lock()
	l.interp.Stop()
	l.mu.Unlock()
	return err
}
