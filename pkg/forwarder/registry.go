package forwarder

import "sync"

// Token is the cancellation signal of one in-flight request. Once
// signalled it stays signalled.
type Token struct {
	id   string
	once sync.Once
	done chan struct{}
}

func newToken(id string) *Token {
	return &Token{id: id, done: make(chan struct{})}
}

// ID returns the request ID the token is registered under.
func (t *Token) ID() string {
	return t.id
}

// Done returns a channel closed when the token is signalled.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// IsSet reports whether the token has been signalled.
func (t *Token) IsSet() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Token) signal() {
	t.once.Do(func() { close(t.done) })
}

// Registry maps request IDs to the tokens of in-flight requests. It is safe
// for concurrent use.
type Registry struct {
	mu       sync.Mutex
	tokens   map[string]*Token
	onChange func(n int)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]*Token)}
}

// OnChange installs a hook called with the registry size after every
// change. The hook runs under the registry lock and must not call back
// into the registry.
func (r *Registry) OnChange(fn func(n int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Register creates a token for id. It fails with ErrDuplicateRequestID
// while another token for id is live.
func (r *Registry) Register(id string) (*Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[id]; ok {
		return nil, ErrDuplicateRequestID
	}
	t := newToken(id)
	r.tokens[id] = t
	r.changed()
	return t, nil
}

// Signal sets the token registered under id. It reports whether a live
// token was found.
func (r *Registry) Signal(id string) bool {
	r.mu.Lock()
	t, ok := r.tokens[id]
	r.mu.Unlock()

	if ok {
		t.signal()
	}
	return ok
}

// Release removes the token registered under id, if any.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[id]; ok {
		delete(r.tokens, id)
		r.changed()
	}
}

// release removes t only if it is still the token registered under its ID.
func (r *Registry) release(t *Token) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.tokens[t.id]; ok && cur == t {
		delete(r.tokens, t.id)
		r.changed()
	}
}

// Lookup returns the live token for id.
func (r *Registry) Lookup(id string) (*Token, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	return t, ok
}

// Len returns the number of live tokens.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

func (r *Registry) changed() {
	if r.onChange != nil {
		r.onChange(len(r.tokens))
	}
}
