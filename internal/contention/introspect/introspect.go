// Package introspect defines the contracts between the contention tracer and
// the runtime it observes.
//
// The tracer never inspects threads, objects or call stacks itself. It asks an
// Introspector, a StackCapturer and a Clock, and hands finished record lines
// to a Sink. Any of these calls may fail; callers are expected to degrade the
// affected field instead of aborting the record.
//
// Thread and Object are opaque handles. Their concrete types belong to the
// runtime implementation (for the Go-native runtime they are
// *goroutine.Thread and *monitor.Monitor).
package introspect

import (
	"errors"
	"time"
)

// Thread is an opaque handle to a runtime thread.
type Thread interface{}

// Object is an opaque handle to a runtime object that may act as a monitor.
type Object interface{}

// Sentinel errors returned by introspection implementations.
var (
	// ErrNotThread is returned when a handle does not denote a live thread.
	ErrNotThread = errors.New("introspect: handle is not a thread")

	// ErrNotObject is returned when a handle does not denote a known object.
	ErrNotObject = errors.New("introspect: handle is not a monitor object")

	// ErrNoOwner is returned when a monitor has no owning thread.
	ErrNoOwner = errors.New("introspect: monitor has no owner")
)

// ThreadInfo describes a thread.
type ThreadInfo struct {
	Name string
}

// MonitorUsage describes the current holder of a monitor and the pressure on it.
type MonitorUsage struct {
	// Owner is the thread holding the monitor, nil when the monitor is free.
	Owner Thread

	// EntryCount is the number of times Owner has entered the monitor.
	EntryCount int

	// WaiterCount is the number of threads waiting to own the monitor.
	WaiterCount int

	// NotifyWaiterCount is the number of threads waiting to be notified.
	NotifyWaiterCount int
}

// Introspector answers queries over live thread, object and monitor state.
//
// Implementations must be safe for concurrent use: handlers call them from
// whichever thread raised the event.
type Introspector interface {
	HashOf(obj Object) (int32, error)
	ClassSignatureOf(obj Object) (string, error)
	ThreadInfo(t Thread) (ThreadInfo, error)

	// OwnedMonitors returns the monitors held by t, in the runtime's order.
	OwnedMonitors(t Thread) ([]Object, error)

	MonitorUsage(obj Object) (MonitorUsage, error)
}

// StackCapturer renders bounded-depth call stacks.
type StackCapturer interface {
	// CaptureStack renders at most maxDepth frames of t's current stack.
	CaptureStack(t Thread, maxDepth int) (string, error)

	// ConfiguredStackDepth reports the configured maximum stack depth.
	// The tracer calls it once per process.
	ConfiguredStackDepth() int
}

// Clock supplies wall-clock timestamps.
type Clock interface {
	NowMillis() int64
}

// Sink accepts finished record lines.
//
// Add must not block the caller for longer than a cheap enqueue. A non-nil
// error means the line was dropped.
type Sink interface {
	Add(line string) error
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// NowMillis returns milliseconds since the Unix epoch.
func (SystemClock) NowMillis() int64 {
	return time.Now().UnixMilli()
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() int64

// NowMillis calls f.
func (f ClockFunc) NowMillis() int64 {
	return f()
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(line string) error

// Add calls f.
func (f SinkFunc) Add(line string) error {
	return f(line)
}
