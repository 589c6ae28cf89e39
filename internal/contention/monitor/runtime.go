// Package monitor provides Go-native monitors and the runtime that answers
// contention-tracer queries about them.
//
// A Monitor is a reentrant lock with a wait set (Java object-monitor
// semantics) that guards a value. Goroutines act as threads; their identity
// comes from package goroutine. The Runtime creates monitors, assigns each an
// identity hash, raises contention events to its Listener and implements
// introspect.Introspector over its monitors and goroutines.
//
// Usage:
//
//	rt := monitor.NewRuntime(monitor.WithListener(h))
//	m := rt.NewMonitor(&account)
//	m.Synchronized(func() { account.balance += 10 })
package monitor

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/kolkov/monitortrace/internal/contention/goroutine"
	"github.com/kolkov/monitortrace/internal/contention/introspect"
)

// DefaultSignatureCacheSize bounds the class-signature cache.
const DefaultSignatureCacheSize = 256

// Listener receives contention events on the contending goroutine.
//
// MonitorContendedEnter is called before the goroutine blocks,
// MonitorContendedEntered after it owns the monitor. The monitor's internal
// lock is not held during either call, so listeners may query the Runtime.
type Listener interface {
	MonitorContendedEnter(thread introspect.Thread, object introspect.Object)
	MonitorContendedEntered(thread introspect.Thread, object introspect.Object)
}

type listenerBox struct {
	l Listener
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithListener sets the initial Listener.
func WithListener(l Listener) Option {
	return func(r *Runtime) {
		r.SetListener(l)
	}
}

// WithHashSeed seeds the identity-hash generator.
func WithHashSeed(seed uint32) Option {
	return func(r *Runtime) {
		r.hashes.seed(seed)
	}
}

// WithSignatureCacheSize bounds the class-signature cache. Non-positive sizes
// select DefaultSignatureCacheSize.
func WithSignatureCacheSize(n int) Option {
	return func(r *Runtime) {
		r.sigSize = n
	}
}

// Runtime owns a set of monitors.
//
// Thread Safety: all methods are safe for concurrent use.
type Runtime struct {
	listener atomic.Pointer[listenerBox]

	// monitors maps identity hash to *Monitor.
	monitors sync.Map

	hashes  hashGen
	sigSize int
	sigs    *lru.Cache
}

// NewRuntime creates a Runtime.
func NewRuntime(opts ...Option) *Runtime {
	r := &Runtime{sigSize: DefaultSignatureCacheSize}
	r.hashes.seed(uint32(time.Now().UnixNano()))
	for _, opt := range opts {
		opt(r)
	}
	if r.sigSize <= 0 {
		r.sigSize = DefaultSignatureCacheSize
	}

	// lru.New only fails for non-positive sizes.
	sigs, err := lru.New(r.sigSize)
	if err != nil {
		panic(fmt.Sprintf("monitor: signature cache: %v", err))
	}
	r.sigs = sigs
	return r
}

// SetListener replaces the Listener. nil disables events.
func (r *Runtime) SetListener(l Listener) {
	if l == nil {
		r.listener.Store(nil)
		return
	}
	r.listener.Store(&listenerBox{l: l})
}

// NewMonitor creates and registers a monitor guarding value.
func (r *Runtime) NewMonitor(value any) *Monitor {
	for {
		m := newMonitor(r, r.hashes.next(), value)
		if _, loaded := r.monitors.LoadOrStore(m.hash, m); !loaded {
			return m
		}
	}
}

// Lookup returns the registered monitor with the given identity hash.
func (r *Runtime) Lookup(hash int32) (*Monitor, bool) {
	v, ok := r.monitors.Load(hash)
	if !ok {
		return nil, false
	}
	return v.(*Monitor), true
}

// Forget unregisters m. Its hash may be reused by a later monitor.
func (r *Runtime) Forget(m *Monitor) {
	r.monitors.CompareAndDelete(m.hash, m)
}

// Count returns the number of registered monitors.
func (r *Runtime) Count() int {
	n := 0
	r.monitors.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (r *Runtime) contendedEnter(t *goroutine.Thread, m *Monitor) {
	if b := r.listener.Load(); b != nil {
		b.l.MonitorContendedEnter(t, m)
	}
}

func (r *Runtime) contendedEntered(t *goroutine.Thread, m *Monitor) {
	if b := r.listener.Load(); b != nil {
		b.l.MonitorContendedEntered(t, m)
	}
}

// HashOf returns the identity hash of a *Monitor.
func (r *Runtime) HashOf(obj introspect.Object) (int32, error) {
	m, err := asMonitor(obj)
	if err != nil {
		return 0, err
	}
	return m.hash, nil
}

// ClassSignatureOf returns the descriptor of the guarded value's type.
func (r *Runtime) ClassSignatureOf(obj introspect.Object) (string, error) {
	m, err := asMonitor(obj)
	if err != nil {
		return "", err
	}

	t := reflect.TypeOf(m.value)
	if t == nil {
		t = monitorType
	}
	if v, ok := r.sigs.Get(t); ok {
		return v.(string), nil
	}
	sig := Descriptor(t)
	r.sigs.Add(t, sig)
	return sig, nil
}

// ThreadInfo returns the name of a *goroutine.Thread.
func (r *Runtime) ThreadInfo(t introspect.Thread) (introspect.ThreadInfo, error) {
	th, err := asThread(t)
	if err != nil {
		return introspect.ThreadInfo{}, err
	}
	return introspect.ThreadInfo{Name: th.Name()}, nil
}

// OwnedMonitors returns the monitors t holds, in acquisition order.
func (r *Runtime) OwnedMonitors(t introspect.Thread) ([]introspect.Object, error) {
	th, err := asThread(t)
	if err != nil {
		return nil, err
	}

	held := th.HeldMonitors()
	out := make([]introspect.Object, len(held))
	for i, h := range held {
		out[i] = h
	}
	return out, nil
}

// MonitorUsage reports the owner and waiter counts of a *Monitor. Owner is
// a nil interface when the monitor is free.
func (r *Runtime) MonitorUsage(obj introspect.Object) (introspect.MonitorUsage, error) {
	m, err := asMonitor(obj)
	if err != nil {
		return introspect.MonitorUsage{}, err
	}

	owner, count, entry, notify := m.usage()
	u := introspect.MonitorUsage{
		EntryCount:        count,
		WaiterCount:       entry,
		NotifyWaiterCount: notify,
	}
	if owner != nil {
		u.Owner = owner
	}
	return u, nil
}

func asMonitor(obj introspect.Object) (*Monitor, error) {
	m, ok := obj.(*Monitor)
	if !ok || m == nil {
		return nil, fmt.Errorf("%w: %T", introspect.ErrNotObject, obj)
	}
	return m, nil
}

func asThread(t introspect.Thread) (*goroutine.Thread, error) {
	th, ok := t.(*goroutine.Thread)
	if !ok || th == nil {
		return nil, fmt.Errorf("%w: %T", introspect.ErrNotThread, t)
	}
	return th, nil
}

// hashGen generates identity hashes with Marsaglia's xor-shift, the JVM's
// default hashCode scheme, truncated to 31 bits and never zero.
type hashGen struct {
	mu         sync.Mutex
	x, y, z, w uint32
}

func (g *hashGen) seed(s uint32) {
	g.mu.Lock()
	g.x, g.y, g.z, g.w = s, 842502087, 0x8767, 273326509
	g.mu.Unlock()
}

func (g *hashGen) next() int32 {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		t := g.x ^ (g.x << 11)
		g.x, g.y, g.z = g.y, g.z, g.w
		g.w = (g.w ^ (g.w >> 19)) ^ (t ^ (t >> 8))
		if v := int32(g.w & 0x7fffffff); v != 0 {
			return v
		}
	}
}
