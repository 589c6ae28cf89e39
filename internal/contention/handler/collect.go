package handler

import (
	"github.com/kolkov/monitortrace/internal/contention/introspect"
	"github.com/kolkov/monitortrace/internal/contention/record"
)

// Query helpers. Each one asks the runtime for a single piece of data and
// substitutes the degraded value on failure: "" for text, 0 for counts and
// record.NoHash() for hashes. A panicking query degrades the same way; the
// named results are still zero when the deferred recoverQuery runs.

func (h *Handler) enterBase(thread introspect.Thread, object introspect.Object) record.EnterBase {
	return record.EnterBase{
		TimestampMs:    h.clock.NowMillis(),
		ThreadName:     h.threadName(thread),
		LockHash:       h.hashOf(object),
		ClassSignature: h.classSignature(object),
	}
}

func (h *Handler) enteredBase(thread introspect.Thread, object introspect.Object) record.EnteredBase {
	return record.EnteredBase{
		TimestampMs: h.clock.NowMillis(),
		ThreadName:  h.threadName(thread),
		LockHash:    h.hashOf(object),
	}
}

func (h *Handler) threadName(t introspect.Thread) (name string) {
	if t == nil {
		return ""
	}
	defer h.recoverQuery("thread info")

	info, err := h.rt.ThreadInfo(t)
	if err != nil {
		h.log.Debug("thread info unavailable", "error", err)
		return ""
	}
	return info.Name
}

func (h *Handler) hashOf(obj introspect.Object) (hash record.Hash) {
	defer h.recoverQuery("object hash")

	v, err := h.rt.HashOf(obj)
	if err != nil {
		h.log.Debug("object hash unavailable", "error", err)
		return record.NoHash()
	}
	return record.NewHash(v)
}

func (h *Handler) classSignature(obj introspect.Object) (sig string) {
	defer h.recoverQuery("class signature")

	sig, err := h.rt.ClassSignatureOf(obj)
	if err != nil {
		h.log.Debug("class signature unavailable", "error", err)
		return ""
	}
	return sig
}

// ownedMonitors returns the hashes of the monitors thread holds, in the order
// the runtime reported them. A failed enumeration yields an empty list.
func (h *Handler) ownedMonitors(thread introspect.Thread) (hashes []record.Hash) {
	defer h.recoverQuery("owned monitors")

	monitors, err := h.rt.OwnedMonitors(thread)
	if err != nil {
		h.log.Debug("owned monitors unavailable", "error", err)
		return nil
	}
	if len(monitors) == 0 {
		return nil
	}

	hashes = make([]record.Hash, 0, len(monitors))
	for _, m := range monitors {
		hashes = append(hashes, h.hashOf(m))
	}
	return hashes
}

// monitorUsage returns the usage segment and the owning thread (nil when the
// monitor has no owner or the query failed).
func (h *Handler) monitorUsage(object introspect.Object) (usage record.Usage, owner introspect.Thread) {
	defer h.recoverQuery("monitor usage")

	u, err := h.rt.MonitorUsage(object)
	if err != nil {
		h.log.Debug("monitor usage unavailable", "error", err)
		return record.Usage{}, nil
	}
	return record.Usage{
		OwnerName:         h.threadName(u.Owner),
		EntryCount:        max(0, u.EntryCount),
		WaiterCount:       max(0, u.WaiterCount),
		NotifyWaiterCount: max(0, u.NotifyWaiterCount),
	}, u.Owner
}

// captureStack renders t's stack bounded to depth frames, or "" when there
// is no thread, no positive depth, or the capture failed.
func (h *Handler) captureStack(t introspect.Thread, depth int) (s string) {
	if t == nil || depth <= 0 {
		return ""
	}
	defer h.recoverQuery("stack capture")

	s, err := h.stacks.CaptureStack(t, depth)
	if err != nil {
		h.log.Debug("stack capture failed", "error", err)
		return ""
	}
	return s
}

// stackDepth returns the cached stack depth, or 0 when resolving it panicked.
func (h *Handler) stackDepth() (depth int) {
	defer h.recoverQuery("stack depth")

	return h.depth.Get(h.stacks.ConfiguredStackDepth)
}

// recoverQuery stops a panic in a single query so that the record is still
// emitted with that field degraded.
func (h *Handler) recoverQuery(query string) {
	if r := recover(); r != nil {
		h.recovered.Add(1)
		h.log.Error("introspection query panicked", "query", query, "panic", r)
	}
}
