// Package goroutine gives goroutines a thread identity for contention tracing.
//
// Each goroutine that touches a traced monitor gets a Thread from Current():
//   - ID: the runtime goroutine ID, parsed from the runtime.Stack header
//   - Name: "goroutine-<id>" unless set with SetName
//   - Held monitors: the ordered list of monitors the goroutine owns
//
// Threads live in a process-wide registry keyed by goroutine ID. A goroutine
// that will not touch traced monitors again should call Release so its entry
// can be dropped; Prune removes entries of goroutines that no longer exist.
//
// Performance:
//   - Current(): ~1µs (runtime.Stack header parse + sync.Map lookup)
//
// Only contended paths and monitor bookkeeping call Current, never a hot
// uncontended loop in user code.
package goroutine
