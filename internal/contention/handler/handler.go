// Package handler implements the monitor-contention event handlers.
//
// The runtime calls MonitorContendedEnter on a thread that is about to block
// on a monitor held by another thread, and MonitorContendedEntered on the
// same thread once it finally owns the monitor. Both calls happen
// synchronously on the contending thread, possibly from many threads at once.
//
// Each handler queries the runtime through the introspect contracts, builds a
// record (package record) and hands the line to the Sink. Failed queries
// degrade single fields; a record is always produced. Panics raised by
// collaborators are recovered so tracing can never break the monitor
// acquisition it observes.
package handler

import (
	"sync/atomic"

	"github.com/kolkov/monitortrace/internal/contention/introspect"
	"github.com/kolkov/monitortrace/internal/contention/record"
	"github.com/kolkov/monitortrace/internal/contention/stackdepth"
	"github.com/kolkov/monitortrace/internal/logging"
)

// Handler turns contention events into records.
//
// Thread Safety: all methods are safe for concurrent use. The only shared
// mutable state is the stack-depth cache and the counters.
type Handler struct {
	rt     introspect.Introspector
	stacks introspect.StackCapturer
	clock  introspect.Clock
	sink   introspect.Sink
	depth  *stackdepth.Cache
	log    logging.Logger

	emitted   atomic.Uint64
	dropped   atomic.Uint64
	recovered atomic.Uint64
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock overrides the wall clock (default introspect.SystemClock).
func WithClock(c introspect.Clock) Option {
	return func(h *Handler) {
		h.clock = c
	}
}

// WithDepthCache overrides the stack-depth cache (default stackdepth.Shared()).
func WithDepthCache(c *stackdepth.Cache) Option {
	return func(h *Handler) {
		h.depth = c
	}
}

// WithLogger sets the logger (default logging.NoOp).
func WithLogger(l logging.Logger) Option {
	return func(h *Handler) {
		h.log = l
	}
}

// New creates a Handler over the given runtime, stack capturer and sink.
func New(rt introspect.Introspector, stacks introspect.StackCapturer, sink introspect.Sink, opts ...Option) *Handler {
	h := &Handler{
		rt:     rt,
		stacks: stacks,
		sink:   sink,
		clock:  introspect.SystemClock{},
		depth:  stackdepth.Shared(),
		log:    logging.NoOp{},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With("component", "handler")
	return h
}

// MonitorContendedEnter records that thread is about to block on object.
func (h *Handler) MonitorContendedEnter(thread introspect.Thread, object introspect.Object) {
	defer h.recoverEvent(record.Tag)

	base := h.enterBase(thread, object)
	owned := h.ownedMonitors(thread)
	usage, owner := h.monitorUsage(object)

	depth := h.stackDepth()

	rec := record.Enter{
		Base:           base,
		Owned:          owned,
		Usage:          usage,
		ContenderStack: h.captureStack(thread, depth),
		OwnerStack:     h.captureStack(owner, depth),
	}

	h.log.Debug("monitor contended enter",
		"thread", base.ThreadName, "lock", base.LockHash.String(), "owner", usage.OwnerName)

	h.emit(rec.Line())
}

// MonitorContendedEntered records that thread acquired object after waiting.
// It performs no stack capture and no owned-monitor enumeration.
func (h *Handler) MonitorContendedEntered(thread introspect.Thread, object introspect.Object) {
	defer h.recoverEvent(record.Tag + record.EnteredSuffix)

	rec := record.Entered{Base: h.enteredBase(thread, object)}

	h.log.Debug("monitor contended entered",
		"thread", rec.Base.ThreadName, "lock", rec.Base.LockHash.String())

	h.emit(rec.Line())
}

// Stats reports handler counters.
type Stats struct {
	// Emitted is the number of records accepted by the sink.
	Emitted uint64

	// Dropped is the number of records the sink refused.
	Dropped uint64

	// Recovered is the number of collaborator panics stopped, whether they
	// degraded a single field or aborted a whole event.
	Recovered uint64
}

// Stats returns a snapshot of the handler counters.
func (h *Handler) Stats() Stats {
	return Stats{
		Emitted:   h.emitted.Load(),
		Dropped:   h.dropped.Load(),
		Recovered: h.recovered.Load(),
	}
}

// emit hands a line to the sink. A refused line is dropped, never retried.
func (h *Handler) emit(line string) {
	if err := h.sink.Add(line); err != nil {
		h.dropped.Add(1)
		h.log.Debug("record dropped", "error", err)
		return
	}
	h.emitted.Add(1)
}

// recoverEvent stops a panic that escaped the query helpers, such as one from
// the clock or the sink. The event is lost.
func (h *Handler) recoverEvent(tag string) {
	if r := recover(); r != nil {
		h.recovered.Add(1)
		h.log.Error("contention event aborted", "event", tag, "panic", r)
	}
}
