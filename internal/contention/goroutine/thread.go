package goroutine

import (
	"runtime"
	"strconv"
	"sync"
)

// Thread is the tracing identity of one goroutine.
//
// Thread Safety: all methods are safe for concurrent use.
type Thread struct {
	// ID is the runtime goroutine ID.
	ID int64

	mu   sync.Mutex
	name string

	// held lists the monitors owned by this goroutine in acquisition order.
	// Elements are opaque to this package.
	held []any
}

// Name returns the thread name.
func (t *Thread) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name
}

// SetName renames the thread.
func (t *Thread) SetName(name string) {
	t.mu.Lock()
	t.name = name
	t.mu.Unlock()
}

// AddHeld appends m to the held-monitor list.
func (t *Thread) AddHeld(m any) {
	t.mu.Lock()
	t.held = append(t.held, m)
	t.mu.Unlock()
}

// RemoveHeld removes m from the held-monitor list, keeping the order of the
// remaining entries. It reports whether m was present.
func (t *Thread) RemoveHeld(m any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, h := range t.held {
		if h == m {
			t.held = append(t.held[:i], t.held[i+1:]...)
			return true
		}
	}
	return false
}

// HeldMonitors returns a copy of the held-monitor list.
func (t *Thread) HeldMonitors() []any {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.held) == 0 {
		return nil
	}
	out := make([]any, len(t.held))
	copy(out, t.held)
	return out
}

// String returns "name(id)".
func (t *Thread) String() string {
	return t.Name() + "(" + strconv.FormatInt(t.ID, 10) + ")"
}

// threads maps goroutine ID to *Thread.
var threads sync.Map

// Current returns the Thread of the calling goroutine, registering it on
// first use.
func Current() *Thread {
	id := ID()
	if v, ok := threads.Load(id); ok {
		return v.(*Thread)
	}

	t := &Thread{ID: id, name: "goroutine-" + strconv.FormatInt(id, 10)}
	v, _ := threads.LoadOrStore(id, t)
	return v.(*Thread)
}

// Lookup returns the registered Thread for a goroutine ID.
func Lookup(id int64) (*Thread, bool) {
	v, ok := threads.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Thread), true
}

// SetName names the calling goroutine.
func SetName(name string) {
	Current().SetName(name)
}

// Release forgets the calling goroutine and reports whether it did. A later
// Current() registers a fresh Thread with the default name.
//
// A goroutine that still holds monitors keeps its Thread: the monitors are
// owned by that Thread, and a fresh one could never exit them.
func Release() bool {
	id := ID()
	v, ok := threads.Load(id)
	if !ok {
		return true
	}
	if len(v.(*Thread).HeldMonitors()) > 0 {
		return false
	}
	threads.Delete(id)
	return true
}

// Count returns the number of registered threads.
func Count() int {
	n := 0
	threads.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Prune drops registered threads whose goroutine has exited and that hold no
// monitor. It returns the number of entries removed.
//
// Performance: O(goroutines); takes a full goroutine dump.
func Prune() int {
	live := make(map[int64]struct{})
	for _, id := range parseAllIDs(AllStacks()) {
		live[id] = struct{}{}
	}

	removed := 0
	threads.Range(func(k, v any) bool {
		id := k.(int64)
		if _, ok := live[id]; ok {
			return true
		}
		if len(v.(*Thread).HeldMonitors()) == 0 {
			threads.Delete(id)
			removed++
		}
		return true
	})
	return removed
}

// Reset drops every registered thread (for testing).
//
// Thread Safety: NOT safe for concurrent calls.
func Reset() {
	threads = sync.Map{}
}

// AllStacks returns a full goroutine dump (runtime.Stack with all=true),
// growing the buffer until it fits or reaches 64MB.
func AllStacks() []byte {
	buf := make([]byte, 64<<10)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return buf[:n]
		}
		if len(buf) >= 64<<20 {
			return buf[:n]
		}
		buf = make([]byte, len(buf)*2)
	}
}
