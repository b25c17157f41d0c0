package routing

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/soyeahso/leechcore/internal/entity"
	"github.com/soyeahso/leechcore/internal/errs"
	"github.com/soyeahso/leechcore/internal/hooks"
	"github.com/soyeahso/leechcore/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logging.Logger {
	return logging.New(nil, "silent")
}

// stubHandler answers a fixed grade for one MIME type and counts calls.
type stubHandler struct {
	mime         string
	grade        entity.Grade
	cancelOthers bool
	handleErr    error
	panicOnPoll  bool
	panicOnCall  bool

	mu      sync.Mutex
	handled []entity.Entity
}

func (s *stubHandler) CouldHandle(e entity.Entity) entity.TestResult {
	if s.panicOnPoll {
		panic("poll exploded")
	}
	if e.Mime != s.mime {
		return entity.Unable()
	}
	return entity.TestResult{Grade: s.grade, CancelOthers: s.cancelOthers}
}

func (s *stubHandler) Handle(_ context.Context, e entity.Entity) error {
	if s.panicOnCall {
		panic("handle exploded")
	}
	s.mu.Lock()
	s.handled = append(s.handled, e)
	s.mu.Unlock()
	return s.handleErr
}

func (s *stubHandler) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handled)
}

// memJournal is an in-test Journal.
type memJournal struct {
	recs   []Record
	closed bool
}

func (j *memJournal) Append(_ context.Context, rec Record) error {
	j.recs = append(j.recs, rec)
	return nil
}

func (j *memJournal) Recent(_ context.Context, limit int) ([]Record, error) {
	out := make([]Record, 0, len(j.recs))
	for i := len(j.recs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, j.recs[i])
	}
	return out, nil
}

func (j *memJournal) Close() error {
	j.closed = true
	return nil
}

const uriMime = "text/uri"

func uriEntity(flags entity.TaskParameters) entity.Entity {
	return entity.MakeEntity("https://example.org/file.iso", "", flags, uriMime)
}

func newTestManager(opts Options) *Manager {
	if opts.Log == nil {
		opts.Log = testLogger()
	}
	return NewManager(opts)
}

func TestHandleEntity_BestGradeWins(t *testing.T) {
	m := newTestManager(Options{})
	ideal := &stubHandler{mime: uriMime, grade: entity.PIdeal}
	poor := &stubHandler{mime: uriMime, grade: entity.PLow}
	require.NoError(t, m.Register("p1", ideal))
	require.NoError(t, m.Register("p2", poor))

	res := m.HandleEntity(context.Background(), uriEntity(0))
	assert.True(t, res.Accepted)
	assert.Equal(t, []string{"p1"}, res.Handlers)
	assert.Equal(t, 1, ideal.calls())
	assert.Equal(t, 0, poor.calls())
}

func TestHandleEntity_GradeBeatsRegistrationOrder(t *testing.T) {
	m := newTestManager(Options{})
	low := &stubHandler{mime: uriMime, grade: entity.PNormal}
	high := &stubHandler{mime: uriMime, grade: entity.PHigh}
	require.NoError(t, m.Register("first", low))
	require.NoError(t, m.Register("second", high))

	res := m.HandleEntity(context.Background(), uriEntity(0))
	assert.Equal(t, []string{"second"}, res.Handlers)
	assert.Equal(t, 0, low.calls())
}

func TestHandleEntity_TieGoesToFirstRegistered(t *testing.T) {
	m := newTestManager(Options{})
	a := &stubHandler{mime: uriMime, grade: entity.PIdeal}
	b := &stubHandler{mime: uriMime, grade: entity.PIdeal}
	require.NoError(t, m.Register("p1", a))
	require.NoError(t, m.Register("p2", b))

	for i := 0; i < 5; i++ {
		res := m.HandleEntity(context.Background(), uriEntity(0))
		assert.Equal(t, []string{"p1"}, res.Handlers)
	}
	assert.Equal(t, 5, a.calls())
	assert.Equal(t, 0, b.calls())
}

func TestHandleEntity_NoHandler(t *testing.T) {
	var buf bytes.Buffer
	var notified []entity.Entity
	m := NewManager(Options{
		Log: logging.New(&buf, "warn"),
		NoHandler: func(_ context.Context, e entity.Entity) {
			notified = append(notified, e)
		},
	})
	require.NoError(t, m.Register("p1", &stubHandler{mime: uriMime, grade: entity.PIdeal}))

	var res Result
	assert.NotPanics(t, func() {
		res = m.HandleEntity(context.Background(), entity.MakeEntity("x", "", 0, "application/x-unknown"))
	})
	assert.False(t, res.Accepted)
	assert.Empty(t, res.Handlers)
	require.Len(t, notified, 1)
	assert.Equal(t, "application/x-unknown", notified[0].Mime)
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
	assert.Contains(t, buf.String(), string(errs.CodeNoHandler))
}

func TestHandleEntity_NoHandlersAtAll(t *testing.T) {
	m := newTestManager(Options{})
	res := m.HandleEntity(context.Background(), uriEntity(0))
	assert.False(t, res.Accepted)
	assert.NotEmpty(t, res.EntityID)
}

func TestCandidates_PanicIsolated(t *testing.T) {
	m := newTestManager(Options{})
	require.NoError(t, m.Register("bad", &stubHandler{mime: uriMime, grade: entity.PIdeal, panicOnPoll: true}))
	good := &stubHandler{mime: uriMime, grade: entity.PLow}
	require.NoError(t, m.Register("good", good))

	cands := m.Candidates(context.Background(), uriEntity(0))
	require.Len(t, cands, 1)
	assert.Equal(t, "good", cands[0].Owner)

	res := m.HandleEntity(context.Background(), uriEntity(0))
	assert.True(t, res.Accepted)
	assert.Equal(t, 1, good.calls())
}

func TestHandleEntity_FallbackOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		first *stubHandler
	}{
		{"error", &stubHandler{mime: uriMime, grade: entity.PIdeal, handleErr: errors.New("disk full")}},
		{"panic", &stubHandler{mime: uriMime, grade: entity.PIdeal, panicOnCall: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(Options{})
			next := &stubHandler{mime: uriMime, grade: entity.PLow}
			require.NoError(t, m.Register("first", tt.first))
			require.NoError(t, m.Register("next", next))

			res := m.HandleEntity(context.Background(), uriEntity(0))
			assert.True(t, res.Accepted)
			assert.Equal(t, []string{"next"}, res.Handlers)
			assert.Equal(t, 1, next.calls())
		})
	}
}

func TestHandleEntity_AllFail(t *testing.T) {
	m := newTestManager(Options{})
	require.NoError(t, m.Register("p1", &stubHandler{mime: uriMime, grade: entity.PIdeal, handleErr: errors.New("nope")}))

	res := m.HandleEntity(context.Background(), uriEntity(0))
	assert.False(t, res.Accepted)
}

func TestHandleEntity_Broadcast(t *testing.T) {
	m := newTestManager(Options{})
	a := &stubHandler{mime: uriMime, grade: entity.PHigh}
	b := &stubHandler{mime: uriMime, grade: entity.PHigh}
	c := &stubHandler{mime: uriMime, grade: entity.PLow}
	require.NoError(t, m.Register("a", a))
	require.NoError(t, m.Register("b", b))
	require.NoError(t, m.Register("c", c))

	res := m.HandleEntity(context.Background(), uriEntity(entity.Broadcast))
	assert.True(t, res.Accepted)
	assert.Equal(t, []string{"a", "b"}, res.Handlers)
	assert.Equal(t, 0, c.calls())
}

func TestHandleEntity_BroadcastPolicy(t *testing.T) {
	m := newTestManager(Options{TiePolicy: TieBroadcast})
	a := &stubHandler{mime: uriMime, grade: entity.PHigh}
	b := &stubHandler{mime: uriMime, grade: entity.PHigh}
	require.NoError(t, m.Register("a", a))
	require.NoError(t, m.Register("b", b))

	res := m.HandleEntity(context.Background(), uriEntity(0))
	assert.Equal(t, []string{"a", "b"}, res.Handlers)
}

func TestHandleEntity_CancelOthersSuppressesBroadcast(t *testing.T) {
	m := newTestManager(Options{})
	a := &stubHandler{mime: uriMime, grade: entity.PHigh}
	b := &stubHandler{mime: uriMime, grade: entity.PHigh, cancelOthers: true}
	require.NoError(t, m.Register("a", a))
	require.NoError(t, m.Register("b", b))

	res := m.HandleEntity(context.Background(), uriEntity(entity.Broadcast))
	assert.Equal(t, []string{"b"}, res.Handlers)
	assert.Equal(t, 0, a.calls())
}

func TestHandleEntity_ChooserForUserInitiatedTie(t *testing.T) {
	var offered []Candidate
	chooser := ChooserFunc(func(_ context.Context, _ entity.Entity, tied []Candidate) (int, error) {
		offered = tied
		return 1, nil
	})
	m := newTestManager(Options{Chooser: chooser})
	a := &stubHandler{mime: uriMime, grade: entity.PIdeal}
	b := &stubHandler{mime: uriMime, grade: entity.PIdeal}
	require.NoError(t, m.Register("a", a))
	require.NoError(t, m.Register("b", b))

	res := m.HandleEntity(context.Background(), uriEntity(entity.FromUserInitiated))
	assert.Equal(t, []string{"b"}, res.Handlers)
	require.Len(t, offered, 2)
	assert.Equal(t, "a", offered[0].Owner)

	offered = nil
	res = m.HandleEntity(context.Background(), uriEntity(0))
	assert.Equal(t, []string{"a"}, res.Handlers)
	assert.Nil(t, offered, "chooser is only asked for user-initiated entities")
}

func TestHandleEntity_ChooserDeclineOrFail(t *testing.T) {
	tests := []struct {
		name string
		idx  int
		err  error
	}{
		{"declined", -1, nil},
		{"out of range", 7, nil},
		{"error", 1, errors.New("no terminal")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chooser := ChooserFunc(func(context.Context, entity.Entity, []Candidate) (int, error) {
				return tt.idx, tt.err
			})
			m := newTestManager(Options{Chooser: chooser})
			require.NoError(t, m.Register("a", &stubHandler{mime: uriMime, grade: entity.PIdeal}))
			require.NoError(t, m.Register("b", &stubHandler{mime: uriMime, grade: entity.PIdeal}))

			res := m.HandleEntity(context.Background(), uriEntity(entity.FromUserInitiated))
			assert.Equal(t, []string{"a"}, res.Handlers)
		})
	}
}

func TestHandleEntity_FirstPolicyNeverAsks(t *testing.T) {
	asked := false
	chooser := ChooserFunc(func(context.Context, entity.Entity, []Candidate) (int, error) {
		asked = true
		return 1, nil
	})
	m := newTestManager(Options{Chooser: chooser, TiePolicy: TieFirst})
	require.NoError(t, m.Register("a", &stubHandler{mime: uriMime, grade: entity.PIdeal}))
	require.NoError(t, m.Register("b", &stubHandler{mime: uriMime, grade: entity.PIdeal}))

	res := m.HandleEntity(context.Background(), uriEntity(entity.FromUserInitiated))
	assert.Equal(t, []string{"a"}, res.Handlers)
	assert.False(t, asked)
}

func TestHandleEntity_VetoHook(t *testing.T) {
	reg := hooks.NewRegistry(testLogger())
	m := newTestManager(Options{Hooks: reg})
	h := &stubHandler{mime: uriMime, grade: entity.PIdeal}
	require.NoError(t, m.Register("p1", h))

	_, err := hooks.Register(reg.Scope("filter"), EntityDispatching, "block-iso", func(p *hooks.Proxy, e entity.Entity) {
		if s, _ := e.PayloadString(); s == "https://example.org/file.iso" {
			p.CancelDefault()
		}
	})
	require.NoError(t, err)

	res := m.HandleEntity(context.Background(), uriEntity(0))
	assert.False(t, res.Accepted)
	assert.True(t, res.Cancelled)
	assert.Equal(t, 0, h.calls())
}

func TestHandleEntity_HandlersGetClones(t *testing.T) {
	m := newTestManager(Options{})
	mutator := entity.HandlerFuncs{
		Could: entity.ByMime(uriMime, entity.PIdeal),
		Do: func(_ context.Context, e entity.Entity) error {
			e.Additional["mutated"] = true
			return nil
		},
	}
	require.NoError(t, m.Register("mut", mutator))

	e := uriEntity(0)
	m.HandleEntity(context.Background(), e)
	_, ok := e.Get("mutated")
	assert.False(t, ok)
}

func TestHandleEntity_StaleOwner(t *testing.T) {
	live := map[string]bool{"p1": true, "p2": true}
	m := newTestManager(Options{Live: func(owner string) bool { return live[owner] }})
	p1 := &stubHandler{mime: uriMime, grade: entity.PIdeal}
	p2 := &stubHandler{mime: uriMime, grade: entity.PLow}
	require.NoError(t, m.Register("p1", p1))
	require.NoError(t, m.Register("p2", p2))

	live["p1"] = false
	res := m.HandleEntity(context.Background(), uriEntity(0))
	assert.Equal(t, []string{"p2"}, res.Handlers)
	assert.Equal(t, 0, p1.calls())
}

func TestHandleEntity_StaleOwnerStrict(t *testing.T) {
	m := newTestManager(Options{
		Live:        func(string) bool { return false },
		StrictStale: true,
	})
	require.NoError(t, m.Register("p1", &stubHandler{mime: uriMime, grade: entity.PIdeal}))

	assert.Panics(t, func() {
		m.HandleEntity(context.Background(), uriEntity(0))
	})
}

func TestRegister_Duplicate(t *testing.T) {
	m := newTestManager(Options{})
	require.NoError(t, m.Register("p1", &stubHandler{}))

	err := m.Register("p1", &stubHandler{})
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeDuplicateRegistration))
	assert.Equal(t, []string{"p1"}, m.Owners())

	assert.Error(t, m.Register("p2", nil))
}

func TestRemove(t *testing.T) {
	m := newTestManager(Options{})
	h := &stubHandler{mime: uriMime, grade: entity.PIdeal}
	require.NoError(t, m.Register("p1", h))
	require.NoError(t, m.Register("p2", &stubHandler{}))

	assert.True(t, m.Remove("p1"))
	assert.False(t, m.Remove("p1"))
	assert.Equal(t, []string{"p2"}, m.Owners())

	assert.False(t, m.CouldHandle(context.Background(), uriEntity(0)))
	m.HandleEntity(context.Background(), uriEntity(0))
	assert.Equal(t, 0, h.calls())
}

func TestCandidates_Ordering(t *testing.T) {
	m := newTestManager(Options{})
	require.NoError(t, m.Register("low", &stubHandler{mime: uriMime, grade: entity.PLow}))
	require.NoError(t, m.Register("ideal-1", &stubHandler{mime: uriMime, grade: entity.PIdeal}))
	require.NoError(t, m.Register("none", &stubHandler{mime: "other", grade: entity.PIdeal}))
	require.NoError(t, m.Register("ideal-2", &stubHandler{mime: uriMime, grade: entity.PIdeal}))
	require.NoError(t, m.Register("custom", &stubHandler{mime: uriMime, grade: 650}))

	cands := m.Candidates(context.Background(), uriEntity(0))
	owners := make([]string, len(cands))
	for i, c := range cands {
		owners[i] = c.Owner
	}
	assert.Equal(t, []string{"ideal-1", "ideal-2", "custom", "low"}, owners)
	assert.True(t, m.CouldHandle(context.Background(), uriEntity(0)))
}

func TestJournal(t *testing.T) {
	j := &memJournal{}
	m := newTestManager(Options{Journal: j})
	require.NoError(t, m.Register("p1", &stubHandler{mime: uriMime, grade: entity.PIdeal}))

	res := m.HandleEntity(context.Background(), uriEntity(0))
	m.HandleEntity(context.Background(), uriEntity(entity.DoNotSaveInHistory))

	require.Len(t, j.recs, 1)
	assert.Equal(t, res.EntityID, j.recs[0].EntityID)
	assert.Equal(t, []string{"p1"}, j.recs[0].Handlers)
	assert.True(t, j.recs[0].Accepted)

	recs, err := m.History(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	require.NoError(t, m.Close())
	assert.True(t, j.closed)
}

func TestHistory_NoJournal(t *testing.T) {
	m := newTestManager(Options{})
	recs, err := m.History(context.Background(), 10)
	assert.NoError(t, err)
	assert.Nil(t, recs)
	assert.NoError(t, m.Close())
}

func TestSubscribe(t *testing.T) {
	m := newTestManager(Options{})
	require.NoError(t, m.Register("p1", &stubHandler{mime: uriMime, grade: entity.PIdeal}))

	var got []Result
	m.Subscribe(func(_ entity.Entity, res Result) {
		got = append(got, res)
	})

	m.HandleEntity(context.Background(), uriEntity(0))
	m.HandleEntity(context.Background(), entity.MakeEntity(nil, "", 0, "none"))
	require.Len(t, got, 2)
	assert.True(t, got[0].Accepted)
	assert.False(t, got[1].Accepted)
}

func TestParseTiePolicy(t *testing.T) {
	p, err := ParseTiePolicy("")
	require.NoError(t, err)
	assert.Equal(t, TieAsk, p)

	p, err = ParseTiePolicy("broadcast")
	require.NoError(t, err)
	assert.Equal(t, TieBroadcast, p)

	_, err = ParseTiePolicy("random")
	assert.True(t, errs.HasCode(err, errs.CodeConfigInvalid))
}
