package transport

import (
	"sort"
	"sync"
	"sync/atomic"

	"go-pulse/debug"
)

// StepHandler receives one step event. Returned errors are counted but
// never stop dispatch; panics are recovered the same way.
type StepHandler func(stepIndex int, timestampMicros int64) error

type registration struct {
	id       string
	priority int
	seq      uint64 // registration order, tie-break for equal priority
	handler  StepHandler
}

// Registry is the fault-isolated fan-out for step events. Handlers run
// in descending priority order, stable for equal priorities. A separate
// single-slot callback reports pattern completion.
type Registry struct {
	mu      sync.RWMutex
	entries []registration
	seq     uint64

	patternDone func(timestampMicros int64)

	errors atomic.Uint64
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds or replaces the handler with the given id
func (r *Registry) Register(id string, priority int, h StepHandler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		if r.entries[i].id == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	r.seq++
	r.entries = append(r.entries, registration{id: id, priority: priority, seq: r.seq, handler: h})
	sort.SliceStable(r.entries, func(a, b int) bool {
		if r.entries[a].priority != r.entries[b].priority {
			return r.entries[a].priority > r.entries[b].priority
		}
		return r.entries[a].seq < r.entries[b].seq
	})
}

// Unregister removes the handler with the given id (no-op if absent)
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].id == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// SetPatternComplete installs the pattern-complete callback (nil clears)
func (r *Registry) SetPatternComplete(h func(timestampMicros int64)) {
	r.mu.Lock()
	r.patternDone = h
	r.mu.Unlock()
}

// Dispatch delivers one step event to every registered handler. A
// failing handler never prevents the remaining handlers from running.
func (r *Registry) Dispatch(stepIndex int, timestampMicros int64) {
	r.mu.RLock()
	snapshot := make([]registration, len(r.entries))
	copy(snapshot, r.entries)
	r.mu.RUnlock()

	for _, reg := range snapshot {
		r.call(reg, stepIndex, timestampMicros)
	}
}

func (r *Registry) call(reg registration, stepIndex int, timestampMicros int64) {
	defer func() {
		if rec := recover(); rec != nil {
			r.errors.Add(1)
			debug.Log("registry", "handler %q panicked on step %d: %v", reg.id, stepIndex, rec)
		}
	}()
	if err := reg.handler(stepIndex, timestampMicros); err != nil {
		r.errors.Add(1)
		debug.Log("registry", "handler %q failed on step %d: %v", reg.id, stepIndex, err)
	}
}

// DispatchPatternComplete fires the single completion slot, if set
func (r *Registry) DispatchPatternComplete(timestampMicros int64) {
	r.mu.RLock()
	h := r.patternDone
	r.mu.RUnlock()
	if h == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.errors.Add(1)
			debug.Log("registry", "pattern-complete handler panicked: %v", rec)
		}
	}()
	h(timestampMicros)
}

// ErrorCount returns the cumulative handler error/panic count
func (r *Registry) ErrorCount() uint64 {
	return r.errors.Load()
}
