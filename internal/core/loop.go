package core

import (
	"context"
	"sync"

	"github.com/soyeahso/leechcore/internal/errs"
	"github.com/soyeahso/leechcore/internal/logging"
)

type loopKey struct{}

// loop is the core main loop. Hook firing and entity dispatch run on its
// goroutine; other goroutines hand work to it through post.
type loop struct {
	queue    chan func(context.Context)
	stop     chan struct{}
	stopOnce sync.Once
	log      *logging.Logger
}

func newLoop(size int, log *logging.Logger) *loop {
	if size <= 0 {
		size = 256
	}
	return &loop{
		queue: make(chan func(context.Context), size),
		stop:  make(chan struct{}),
		log:   log.Sub("loop"),
	}
}

// post queues fn. It blocks while the queue is full.
func (l *loop) post(fn func(context.Context)) error {
	select {
	case <-l.stop:
		return errs.New(errs.CodeLoopStopped, "main loop stopped")
	default:
	}
	select {
	case l.queue <- fn:
		return nil
	case <-l.stop:
		return errs.New(errs.CodeLoopStopped, "main loop stopped")
	}
}

// run executes queued work until ctx is done or the loop is stopped.
func (l *loop) run(ctx context.Context) {
	ctx = context.WithValue(ctx, loopKey{}, l)
	l.log.Debug().Msg("main loop started")
	defer l.log.Debug().Msg("main loop exited")

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case fn := <-l.queue:
			l.exec(ctx, fn)
		}
	}
}

func (l *loop) exec(ctx context.Context, fn func(context.Context)) {
	defer func() {
		if rec := recover(); rec != nil {
			err := errs.Recovered(errs.CodeHandlerPanic, rec)
			l.log.Error().Err(err).Msg("main loop task panicked")
		}
	}()
	fn(ctx)
}

func (l *loop) close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *loop) stopped() <-chan struct{} { return l.stop }

// on reports whether ctx belongs to work running on this loop.
func (l *loop) on(ctx context.Context) bool {
	v, _ := ctx.Value(loopKey{}).(*loop)
	return v == l
}
