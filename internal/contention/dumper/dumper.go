// Package dumper persists contention records asynchronously.
//
// A Dumper owns a bounded queue and a single writer goroutine. Add enqueues a
// finished line without blocking: when the queue is full the line is refused
// with ErrQueueFull and counted as dropped. The writer drains the queue in
// FIFO order through a buffered writer and flushes it periodically and on
// Close.
//
// Memory is an in-memory sink with the same Add contract, used by tests and
// dry runs.
package dumper

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kolkov/monitortrace/internal/logging"
)

// Defaults applied by New.
const (
	DefaultQueueSize     = 4096
	DefaultFlushInterval = time.Second
	defaultBufferSize    = 64 << 10
)

var (
	// ErrQueueFull is returned by Add when the queue is saturated.
	ErrQueueFull = errors.New("dumper: queue full")

	// ErrClosed is returned by Add after Close.
	ErrClosed = errors.New("dumper: closed")
)

// Config configures a Dumper.
type Config struct {
	// Output receives the records. If nil, Path is used.
	Output io.Writer

	// Path is the output file, created or truncated. An empty Path with a
	// nil Output writes to "monitortrace-<Session>.trace" in os.TempDir().
	Path string

	// Session names the default output file.
	Session string

	// QueueSize bounds the number of pending lines (default 4096).
	QueueSize int

	// FlushInterval is the maximum time a written line stays buffered
	// (default 1s).
	FlushInterval time.Duration

	Logger logging.Logger
}

// Stats reports dumper counters.
type Stats struct {
	Written uint64
	Dropped uint64
	Pending int
}

// Dumper is an asynchronous line sink.
//
// Thread Safety: Add, Stats and Close are safe for concurrent use.
type Dumper struct {
	queue  chan string
	w      *bufio.Writer
	closer io.Closer
	path   string
	log    logging.Logger

	// mu guards closed against concurrent Add/Close so Add never sends on
	// a closed channel.
	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
	closeErr  error

	done    chan struct{}
	err     error // first write/flush error, read after done
	written atomic.Uint64
	dropped atomic.Uint64
}

// New opens the output and starts the writer goroutine.
func New(cfg Config) (*Dumper, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NoOp{}
	}

	out, closer, path, err := openOutput(cfg)
	if err != nil {
		return nil, err
	}

	d := &Dumper{
		queue:  make(chan string, cfg.QueueSize),
		w:      bufio.NewWriterSize(out, defaultBufferSize),
		closer: closer,
		path:   path,
		log:    cfg.Logger.With("component", "dumper"),
		done:   make(chan struct{}),
	}
	go d.run(cfg.FlushInterval)

	d.log.Info("dumper started", "path", path, "queue", cfg.QueueSize)
	return d, nil
}

// openOutput resolves the writer from config.
func openOutput(cfg Config) (io.Writer, io.Closer, string, error) {
	if cfg.Output != nil {
		return cfg.Output, nil, "", nil
	}

	path := cfg.Path
	if path == "" {
		session := cfg.Session
		if session == "" {
			session = "default"
		}
		path = filepath.Join(os.TempDir(), "monitortrace-"+session+".trace")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, "", fmt.Errorf("failed to create dump directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to open dump output: %w", err)
	}
	return f, f, path, nil
}

// Path returns the output file path, or "" when writing to a caller-supplied
// writer.
func (d *Dumper) Path() string {
	return d.path
}

// Add enqueues line without blocking.
func (d *Dumper) Add(line string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		return ErrClosed
	}

	select {
	case d.queue <- line:
		return nil
	default:
		d.dropped.Add(1)
		return ErrQueueFull
	}
}

// Stats returns a snapshot of the counters.
func (d *Dumper) Stats() Stats {
	return Stats{
		Written: d.written.Load(),
		Dropped: d.dropped.Load(),
		Pending: len(d.queue),
	}
}

// Close stops accepting lines, drains the queue, flushes and closes the
// output if the dumper opened it. It returns the first write error seen.
// Later calls wait for the first one and return its result.
func (d *Dumper) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.shutdown()
	})
	return d.closeErr
}

func (d *Dumper) shutdown() error {
	d.mu.Lock()
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done

	err := d.err
	if d.closer != nil {
		if cerr := d.closer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close dump output: %w", cerr)
		}
	}

	st := d.Stats()
	d.log.Info("dumper closed", "written", st.Written, "dropped", st.Dropped)
	return err
}

// run is the writer goroutine.
func (d *Dumper) run(flushEvery time.Duration) {
	defer close(d.done)

	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	for {
		select {
		case line, ok := <-d.queue:
			if !ok {
				d.flush()
				return
			}
			d.write(line)
		case <-ticker.C:
			d.flush()
		}
	}
}

func (d *Dumper) write(line string) {
	if _, err := d.w.WriteString(line); err != nil {
		d.fail(err)
		d.dropped.Add(1)
		return
	}
	d.written.Add(1)
}

func (d *Dumper) flush() {
	if err := d.w.Flush(); err != nil {
		d.fail(err)
	}
}

// fail records the first I/O error. Only the writer goroutine calls it.
func (d *Dumper) fail(err error) {
	if d.err == nil {
		d.err = fmt.Errorf("dump write failed: %w", err)
		d.log.Error("dump write failed", "error", err)
	}
}

// Memory collects lines in memory.
type Memory struct {
	mu    sync.Mutex
	lines []string
	limit int
}

// NewMemory creates an in-memory sink holding at most limit lines
// (0 means unlimited).
func NewMemory(limit int) *Memory {
	return &Memory{limit: limit}
}

// Add appends line, or returns ErrQueueFull when the limit is reached.
func (m *Memory) Add(line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.limit > 0 && len(m.lines) >= m.limit {
		return ErrQueueFull
	}
	m.lines = append(m.lines, line)
	return nil
}

// Lines returns a copy of the collected lines in insertion order.
func (m *Memory) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}

// Len returns the number of collected lines.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lines)
}
