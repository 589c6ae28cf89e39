// Package agent traces monitor contention in Go programs.
//
// The agent records every contended monitor acquisition as a positional text
// record: who blocked, on which monitor, which monitors it already held, who
// owned the monitor and both call stacks. A second record marks the moment the
// contender finally owns the monitor.
//
// # Quick Start
//
//	a, err := agent.Start(agent.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer a.Close()
//
//	accounts := a.NewMonitor(&ledger)
//	accounts.Synchronized(func() {
//		ledger.Transfer(from, to, 100)
//	})
//
// Records go to the file named in [dump].path of the configuration, or to
// monitortrace-<session>.trace in the temporary directory.
//
// # Record Format
//
// Records are single lines. Segments are separated by '|', fields inside a
// segment by "^^^":
//
//	MCE|ts^^^thread^^^lockHash^^^classSig|own1^^^own2|owner^^^entries^^^waiters^^^notifyWaiters|contenderStack|ownerStack
//	MCED|ts^^^thread^^^lockHash
//
// Hashes are lower-case hexadecimal without a prefix. A field whose value
// could not be determined is left empty (text, hashes) or written as 0
// (counts).
//
// # Threads
//
// Goroutines act as threads. Their default name is "goroutine-<id>";
// [SetThreadName] gives the calling goroutine a readable name.
//
// # Monitors
//
// A [Monitor] is a reentrant lock with Java object-monitor semantics:
// Enter/Exit nest, Wait releases the monitor until Notify or NotifyAll, and
// Exit, Wait and Notify fail with [ErrNotOwner] when the caller does not own
// the monitor. Only monitors created through an Agent are traced.
//
// # Limitations
//
//   - Stack snapshots take a full goroutine dump and are costly; they are
//     only taken on contended acquisitions
//   - A goroutine that exits while owning a monitor leaves it locked
package agent
