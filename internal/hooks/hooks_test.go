package hooks

import (
	"bytes"
	"sync"
	"testing"

	"github.com/soyeahso/leechcore/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dockArgs struct {
	Area    string
	Actions int
}

var testHook = Define[dockArgs](IDDockBarWillBeShown)

func testRegistry() *Registry {
	return NewRegistry(logging.New(nil, "silent"))
}

func TestRegister_And_Fire(t *testing.T) {
	r := testRegistry()

	var got dockArgs
	_, err := Register(r.Scope("org.example.a"), testHook, "watch", func(_ *Proxy, a dockArgs) {
		got = a
	})
	require.NoError(t, err)

	p := Fire(r, testHook, nil, dockArgs{Area: "left", Actions: 2})
	require.NotNil(t, p)
	assert.False(t, p.IsCancelled())
	assert.Equal(t, dockArgs{Area: "left", Actions: 2}, got)
}

func TestFire_RegistrationOrder(t *testing.T) {
	r := testRegistry()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		_, err := Register(r.Scope("org.example."+name), testHook, name, func(_ *Proxy, _ dockArgs) {
			order = append(order, name)
		})
		require.NoError(t, err)
	}

	Fire(r, testHook, nil, dockArgs{})
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestFire_CancelDoesNotStopChain(t *testing.T) {
	r := testRegistry()

	var secondRan bool
	_, _ = Register(r.Scope("org.example.sidebar"), testHook, "cancel", func(p *Proxy, _ dockArgs) {
		p.CancelDefault()
	})
	_, _ = Register(r.Scope("org.example.other"), testHook, "observe", func(p *Proxy, _ dockArgs) {
		secondRan = true
		assert.True(t, p.IsCancelled())
	})

	p := Fire(r, testHook, nil, dockArgs{Area: "right"})
	assert.True(t, p.IsCancelled())
	assert.True(t, secondRan)
}

func TestFire_PanicIsolated(t *testing.T) {
	var buf bytes.Buffer
	r := NewRegistry(logging.New(&buf, "debug"))

	var afterRan bool
	_, _ = Register(r.Scope("org.example.bad"), testHook, "boom", func(_ *Proxy, _ dockArgs) {
		panic("boom")
	})
	_, _ = Register(r.Scope("org.example.good"), testHook, "after", func(_ *Proxy, _ dockArgs) {
		afterRan = true
	})

	assert.NotPanics(t, func() {
		Fire(r, testHook, nil, dockArgs{})
	})
	assert.True(t, afterRan)
	assert.Contains(t, buf.String(), "hook callback panicked")
	assert.Contains(t, buf.String(), "org.example.bad")
}

func TestRegister_DuplicateIsNoop(t *testing.T) {
	var buf bytes.Buffer
	r := NewRegistry(logging.New(&buf, "warn"))
	s := r.Scope("org.example.a")

	calls := 0
	h1, err := Register(s, testHook, "same", func(_ *Proxy, _ dockArgs) { calls++ })
	require.NoError(t, err)
	h2, err := Register(s, testHook, "same", func(_ *Proxy, _ dockArgs) { calls += 100 })
	require.NoError(t, err)

	assert.Same(t, h1.e, h2.e)
	assert.Equal(t, 1, r.Count(IDDockBarWillBeShown))
	assert.Contains(t, buf.String(), "registered twice")

	Fire(r, testHook, nil, dockArgs{})
	assert.Equal(t, 1, calls)
}

func TestRegister_SameNameDifferentOwner(t *testing.T) {
	r := testRegistry()

	_, err := Register(r.Scope("org.example.a"), testHook, "watch", func(_ *Proxy, _ dockArgs) {})
	require.NoError(t, err)
	_, err = Register(r.Scope("org.example.b"), testHook, "watch", func(_ *Proxy, _ dockArgs) {})
	require.NoError(t, err)

	assert.Equal(t, 2, r.Count(IDDockBarWillBeShown))
}

func TestRegister_EmptyNameNeverCollides(t *testing.T) {
	r := testRegistry()
	s := r.Scope("org.example.a")

	h1, err := Register(s, testHook, "", func(_ *Proxy, _ dockArgs) {})
	require.NoError(t, err)
	h2, err := Register(s, testHook, "", func(_ *Proxy, _ dockArgs) {})
	require.NoError(t, err)

	assert.NotEqual(t, h1.Name(), h2.Name())
	assert.Equal(t, 2, r.Count(IDDockBarWillBeShown))
}

func TestRegister_NilCallback(t *testing.T) {
	r := testRegistry()
	_, err := Register[dockArgs](r.Scope("org.example.a"), testHook, "nil", nil)
	assert.Error(t, err)
}

func TestRegistration_Unregister(t *testing.T) {
	r := testRegistry()

	called := false
	h, err := Register(r.Scope("org.example.a"), testHook, "x", func(_ *Proxy, _ dockArgs) { called = true })
	require.NoError(t, err)

	assert.True(t, h.Unregister())
	assert.False(t, h.Unregister())

	Fire(r, testHook, nil, dockArgs{})
	assert.False(t, called)
}

func TestUnregisterOwner(t *testing.T) {
	r := testRegistry()
	other := Define[string](IDPluginUnloading)

	_, _ = Register(r.Scope("org.example.a"), testHook, "one", func(_ *Proxy, _ dockArgs) {})
	_, _ = Register(r.Scope("org.example.a"), other, "two", func(_ *Proxy, _ string) {})
	_, _ = Register(r.Scope("org.example.b"), testHook, "three", func(_ *Proxy, _ dockArgs) {})

	assert.Equal(t, 2, r.UnregisterOwner("org.example.a"))
	assert.Equal(t, 0, r.UnregisterOwner("org.example.a"))
	assert.Equal(t, 1, r.Count(IDDockBarWillBeShown))
	assert.Equal(t, 0, r.Count(IDPluginUnloading))
}

func TestFire_CallbackMayUnregister(t *testing.T) {
	r := testRegistry()

	var h *Registration
	runs := 0
	h, _ = Register(r.Scope("org.example.once"), testHook, "once", func(_ *Proxy, _ dockArgs) {
		runs++
		h.Unregister()
	})

	Fire(r, testHook, nil, dockArgs{})
	Fire(r, testHook, nil, dockArgs{})
	assert.Equal(t, 1, runs)
}

func TestFire_NoCallbacks(t *testing.T) {
	r := testRegistry()
	p := NewProxy()
	assert.Same(t, p, Fire(r, testHook, p, dockArgs{}))
	assert.False(t, p.IsCancelled())
}

func TestFire_ReturnValueAndValues(t *testing.T) {
	r := testRegistry()
	h := Define[string](IDNetworkAccessManagerCreateRequest)

	_, _ = Register(r.Scope("org.example.a"), h, "rewrite", func(p *Proxy, url string) {
		p.SetValue("url", url+"?via=proxy")
		p.SetReturnValue("replaced")
	})

	p := Fire(r, h, nil, "https://example.org")
	v, ok := p.Value("url")
	require.True(t, ok)
	assert.Equal(t, "https://example.org?via=proxy", v)
	ret, ok := p.ReturnValue()
	require.True(t, ok)
	assert.Equal(t, "replaced", ret)

	_, ok = NewProxy().ReturnValue()
	assert.False(t, ok)
}

func TestRegistry_Concurrent(t *testing.T) {
	r := testRegistry()

	var mu sync.Mutex
	calls := 0
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = Register(r.Scope("org.example.c"), testHook, "", func(_ *Proxy, _ dockArgs) {
				mu.Lock()
				calls++
				mu.Unlock()
			})
		}()
		go func() {
			defer wg.Done()
			Fire(r, testHook, nil, dockArgs{})
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, r.Count(IDDockBarWillBeShown))

	mu.Lock()
	before := calls
	mu.Unlock()
	Fire(r, testHook, nil, dockArgs{})
	assert.Equal(t, before+10, calls)
}

func TestIDNames(t *testing.T) {
	assert.Equal(t, "dockBarWillBeShown", IDDockBarWillBeShown.String())
	assert.Equal(t, "hook(99)", ID(99).String())

	id, ok := ParseID("entityDispatching")
	require.True(t, ok)
	assert.Equal(t, IDEntityDispatching, id)

	_, ok = ParseID("nope")
	assert.False(t, ok)

	ids := AllIDs()
	assert.Len(t, ids, 8)
	assert.Equal(t, IDEntityDispatching, ids[0])
}

func TestList(t *testing.T) {
	r := testRegistry()
	_, _ = Register(r.Scope("org.example.b"), Define[string](IDPluginUnloading), "late", func(_ *Proxy, _ string) {})
	_, _ = Register(r.Scope("org.example.a"), testHook, "dock", func(_ *Proxy, _ dockArgs) {})

	assert.Equal(t, []ID{IDDockBarWillBeShown, IDPluginUnloading}, r.Hooks())

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, Info{Hook: "dockBarWillBeShown", Owner: "org.example.a", Name: "dock"}, list[0])
	assert.Equal(t, "pluginUnloading", list[1].Hook)
}
