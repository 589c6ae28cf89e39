package monitor

import (
	"errors"
	"sync"
	"time"

	"github.com/kolkov/monitortrace/internal/contention/goroutine"
)

// ErrNotOwner is returned by Exit, Wait and Notify when the calling goroutine
// does not own the monitor.
var ErrNotOwner = errors.New("monitor: calling goroutine does not own the monitor")

// Monitor is a reentrant lock with a wait set, guarding an arbitrary value.
//
// A goroutine that calls Enter while another goroutine owns the monitor is
// contending: the Runtime's Listener sees MonitorContendedEnter before it
// blocks and MonitorContendedEntered once it owns the monitor.
//
// Thread Safety: all methods are safe for concurrent use.
type Monitor struct {
	rt    *Runtime
	hash  int32
	value any

	mu    sync.Mutex
	freed *sync.Cond // broadcast when owner becomes nil

	owner        *goroutine.Thread
	count        int
	entryWaiters int
	waitSet      []*waiter
}

type waiter struct {
	wake chan struct{}
}

func newMonitor(rt *Runtime, hash int32, value any) *Monitor {
	m := &Monitor{rt: rt, hash: hash, value: value}
	m.freed = sync.NewCond(&m.mu)
	return m
}

// Hash returns the identity hash.
func (m *Monitor) Hash() int32 {
	return m.hash
}

// Value returns the guarded value.
func (m *Monitor) Value() any {
	return m.value
}

// Enter acquires the monitor, blocking while another goroutine owns it.
// Reentrant: an owner entering again only increments the entry count.
func (m *Monitor) Enter() {
	t := goroutine.Current()

	m.mu.Lock()
	if m.owner == t {
		m.count++
		m.mu.Unlock()
		return
	}
	if m.owner == nil {
		m.acquire(t, 1)
		m.mu.Unlock()
		return
	}

	m.contend(t)
	m.acquire(t, 1)
	m.mu.Unlock()

	m.rt.contendedEntered(t, m)
}

// TryEnter acquires the monitor only if that does not block.
func (m *Monitor) TryEnter() bool {
	t := goroutine.Current()

	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.owner {
	case t:
		m.count++
	case nil:
		m.acquire(t, 1)
	default:
		return false
	}
	return true
}

// Exit releases one entry. The monitor becomes free when the entry count
// drops to zero.
func (m *Monitor) Exit() error {
	t := goroutine.Current()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.owner != t {
		return ErrNotOwner
	}
	m.count--
	if m.count == 0 {
		m.release()
	}
	return nil
}

// Synchronized runs fn while owning the monitor. The monitor is released even
// if fn panics.
func (m *Monitor) Synchronized(fn func()) {
	m.Enter()
	defer func() { _ = m.Exit() }()
	fn()
}

// Wait releases the monitor, blocks until notified, then reacquires it with
// the previous entry count.
func (m *Monitor) Wait() error {
	return m.WaitTimeout(0)
}

// WaitTimeout is Wait with a deadline. A non-positive d waits forever.
// Reacquiring the monitor after the wait may itself be contended and is
// reported to the Listener like a contended Enter.
func (m *Monitor) WaitTimeout(d time.Duration) error {
	t := goroutine.Current()

	m.mu.Lock()
	if m.owner != t {
		m.mu.Unlock()
		return ErrNotOwner
	}

	w := &waiter{wake: make(chan struct{})}
	m.waitSet = append(m.waitSet, w)
	saved := m.count
	m.release()
	m.mu.Unlock()

	var timeout <-chan time.Time
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-w.wake:
	case <-timeout:
	}

	m.mu.Lock()
	m.removeWaiter(w)
	contended := m.owner != nil
	if contended {
		m.contend(t)
	}
	m.acquire(t, saved)
	m.mu.Unlock()

	if contended {
		m.rt.contendedEntered(t, m)
	}
	return nil
}

// Notify wakes the longest-waiting goroutine in the wait set, if any.
func (m *Monitor) Notify() error {
	return m.notify(false)
}

// NotifyAll wakes every goroutine in the wait set.
func (m *Monitor) NotifyAll() error {
	return m.notify(true)
}

func (m *Monitor) notify(all bool) error {
	t := goroutine.Current()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.owner != t {
		return ErrNotOwner
	}

	n := 1
	if all {
		n = len(m.waitSet)
	}
	for i := 0; i < n && len(m.waitSet) > 0; i++ {
		w := m.waitSet[0]
		m.waitSet = m.waitSet[1:]
		close(w.wake)
	}
	return nil
}

// usage snapshots ownership state.
func (m *Monitor) usage() (owner *goroutine.Thread, count, entryWaiters, notifyWaiters int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner, m.count, m.entryWaiters, len(m.waitSet)
}

// contend blocks until the monitor is free, raising MonitorContendedEnter
// first. Called and returns with m.mu held; the lock is dropped while the
// listener runs.
func (m *Monitor) contend(t *goroutine.Thread) {
	m.entryWaiters++
	m.mu.Unlock()

	m.rt.contendedEnter(t, m)

	m.mu.Lock()
	for m.owner != nil {
		m.freed.Wait()
	}
	m.entryWaiters--
}

// acquire and release require m.mu. Lock order is monitor then thread.

func (m *Monitor) acquire(t *goroutine.Thread, count int) {
	m.owner = t
	m.count = count
	t.AddHeld(m)
}

func (m *Monitor) release() {
	m.owner.RemoveHeld(m)
	m.owner = nil
	m.count = 0
	m.freed.Broadcast()
}

func (m *Monitor) removeWaiter(w *waiter) {
	for i, x := range m.waitSet {
		if x == w {
			m.waitSet = append(m.waitSet[:i], m.waitSet[i+1:]...)
			return
		}
	}
}
