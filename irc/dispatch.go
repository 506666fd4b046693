package irc

import (
	"fmt"
	"sync"
)

// A HandlerFunc reacts to one event. Handlers run on the goroutine of
// the session that produced the event; state referenced by the event is
// already updated when they run.
type HandlerFunc func(ev *Event)

// A HandlerError reports a handler that panicked during dispatch. The
// failure is isolated: remaining handlers still run and state is
// unaffected, since mutation completed before dispatch began.
type HandlerError struct {
	Event string
	Err   any
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for %q failed: %v", e.Event, e.Err)
}

type handlerEntry struct {
	name string
	dir  Direction
	fn   HandlerFunc
}

// A Registry holds handlers keyed by event name (or a wildcard) and a
// direction filter, in registration order. A Registry shared across
// sessions as the global scope may be registered into concurrently
// with active dispatch: the lock guards only the entry list, never
// handler execution.
type Registry struct {
	mu      sync.Mutex
	entries []handlerEntry
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a handler for an event name, EventAny for every event
// or EventRaw for wire lines. dir filters by event direction; Both
// matches everything.
func (r *Registry) Register(name string, dir Direction, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, handlerEntry{name: name, dir: dir, fn: fn})
}

// snapshot copies the entry list so dispatch iterates without the
// lock.
func (r *Registry) snapshot() []handlerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]handlerEntry, len(r.entries))
	copy(entries, r.entries)
	return entries
}

func (r *Registry) dispatch(ev *Event, warn func(error)) {
	for _, entry := range r.snapshot() {
		if entry.name != EventAny && entry.name != ev.Name {
			continue
		}
		if !entry.dir.Matches(ev.Direction) {
			continue
		}
		invoke(entry.fn, ev, warn)
	}
}

func invoke(fn HandlerFunc, ev *Event, warn func(error)) {
	defer func() {
		if err := recover(); err != nil {
			warn(&HandlerError{Event: ev.Name, Err: err})
		}
	}()
	fn(ev)
}
