package hooks

// Proxy is the mutable context shared by all callbacks of one firing. It is
// created right before a hook fires and dropped right after; it is not safe
// for concurrent use.
type Proxy struct {
	cancelled bool
	ret       any
	hasRet    bool
	values    map[string]any
}

// NewProxy returns an empty, uncancelled proxy.
func NewProxy() *Proxy {
	return &Proxy{}
}

// CancelDefault asks the firing site to skip its default follow-up action.
// Remaining callbacks still run.
func (p *Proxy) CancelDefault() { p.cancelled = true }

// IsCancelled reports whether any callback called CancelDefault.
func (p *Proxy) IsCancelled() bool { return p.cancelled }

// SetReturnValue lets a callback override what the firing site produces.
func (p *Proxy) SetReturnValue(v any) {
	p.ret = v
	p.hasRet = true
}

// ReturnValue returns the value set by SetReturnValue, if any.
func (p *Proxy) ReturnValue() (any, bool) { return p.ret, p.hasRet }

// SetValue replaces a named in/out parameter of the hook.
func (p *Proxy) SetValue(name string, v any) {
	if p.values == nil {
		p.values = make(map[string]any)
	}
	p.values[name] = v
}

// Value returns a named parameter previously set on the proxy.
func (p *Proxy) Value(name string) (any, bool) {
	v, ok := p.values[name]
	return v, ok
}
