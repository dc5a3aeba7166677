// Package redirect provides stacked, optionally goroutine-scoped overrides
// for named output streams. A goroutine-scoped redirection is visible only
// to the goroutine that entered it; a global one is visible to everyone.
// Redirections nest: the most recently entered applicable one wins.
package redirect

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// Names of the streams registered by default.
const (
	Stdout = "stdout"
	Stderr = "stderr"
)

// Scope selects who observes a redirection.
type Scope int

const (
	// ScopeGlobal makes the redirection visible to every goroutine.
	ScopeGlobal Scope = iota
	// ScopeGoroutine confines the redirection to the entering goroutine.
	ScopeGoroutine
)

// entry is one active redirection. Entries are matched by pointer identity
// on release: two redirections to targets that compare equal must remain
// individually addressable.
type entry struct {
	target io.Writer
	gid    uint64 // 0 means global
}

// virtualStream routes writes to the topmost applicable redirection, falling
// back to the default destination when none applies to the calling
// goroutine. The read path is lock-free: the stack is replaced wholesale
// under the stream lock and read through an atomic snapshot.
type virtualStream struct {
	fallback io.Writer
	stack    atomic.Pointer[[]*entry]
}

func (v *virtualStream) current() io.Writer {
	stackPtr := v.stack.Load()
	if stackPtr == nil {
		return v.fallback
	}

	stack := *stackPtr
	id := goroutineID()

	// Most recent first: the first entry that is global, or owned by the
	// calling goroutine, wins.
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].gid == 0 || stack[i].gid == id {
			return stack[i].target
		}
	}

	return v.fallback
}

func (v *virtualStream) Write(p []byte) (int, error) {
	return v.current().Write(p)
}

// push and remove are called with the owning stream's lock held. The slice
// is copied on every mutation so concurrent readers always see a consistent
// snapshot.
func (v *virtualStream) push(e *entry) {
	var stack []*entry
	if old := v.stack.Load(); old != nil {
		stack = append(stack, *old...)
	}

	stack = append(stack, e)
	v.stack.Store(&stack)
}

func (v *virtualStream) remove(e *entry) int {
	old := v.stack.Load()
	if old == nil {
		return 0
	}

	stack := make([]*entry, 0, len(*old))
	for _, existing := range *old {
		if existing != e {
			stack = append(stack, existing)
		}
	}

	v.stack.Store(&stack)

	return len(stack)
}

// stream is one named stream: a stable writer whose destination is either
// the default or the active virtual stream.
type stream struct {
	mu      sync.Mutex
	def     io.Writer
	virtual atomic.Pointer[virtualStream]
}

// Write routes through the active redirection stack, or to the default
// destination while no redirection is active.
func (s *stream) Write(p []byte) (int, error) {
	if v := s.virtual.Load(); v != nil {
		return v.Write(p)
	}

	return s.def.Write(p)
}

// Registry owns the redirection state for a set of named streams. It is
// created on first use by its holder and carries no cross-run state.
type Registry struct {
	mu      sync.Mutex
	streams map[string]*stream
}

// NewRegistry creates a registry with stdout and stderr preregistered.
func NewRegistry() *Registry {
	r := &Registry{streams: make(map[string]*stream)}
	r.Register(Stdout, os.Stdout)
	r.Register(Stderr, os.Stderr)

	return r
}

// Register adds a named stream with its default destination. Registering an
// existing name replaces its default only while no redirection is active.
func (r *Registry) Register(name string, def io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.streams[name]; ok {
		existing.mu.Lock()
		if existing.virtual.Load() == nil {
			existing.def = def
		}
		existing.mu.Unlock()

		return
	}

	r.streams[name] = &stream{def: def}
}

// Writer returns the stable writer for name. Code under test writes through
// this writer; where its bytes land depends on the redirections active at
// write time.
func (r *Registry) Writer(name string) (io.Writer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.streams[name]
	if !ok {
		return nil, fmt.Errorf("unknown stream %q", name)
	}

	return s, nil
}

// Handle releases one redirection. Release is safe to call exactly once per
// handle on any exit path; pairing it with defer covers panics.
type Handle struct {
	s    *stream
	e    *entry
	once sync.Once
}

// Release removes the redirection this handle was returned for, restoring
// whatever was underneath it. When the last redirection for a stream is
// released, the virtual stream is torn down and the default restored.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.s.mu.Lock()
		defer h.s.mu.Unlock()

		v := h.s.virtual.Load()
		if v == nil {
			return
		}

		if v.remove(h.e) == 0 {
			h.s.virtual.Store(nil)
		}
	})
}

// Redirect routes writes to the named stream into target until the returned
// handle is released. With ScopeGoroutine only the calling goroutine
// observes the redirection; other goroutines keep whatever applied before.
func (r *Registry) Redirect(name string, target io.Writer, scope Scope) (*Handle, error) {
	r.mu.Lock()
	s, ok := r.streams[name]
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("unknown stream %q", name)
	}

	e := &entry{target: target}
	if scope == ScopeGoroutine {
		e.gid = goroutineID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.virtual.Load()
	if v == nil {
		v = &virtualStream{fallback: s.def}
	}

	v.push(e)
	s.virtual.Store(v)

	return &Handle{s: s, e: e}, nil
}
