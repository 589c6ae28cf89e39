package agent

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/kolkov/monitortrace/internal/config"
	"github.com/kolkov/monitortrace/internal/contention/dumper"
	"github.com/kolkov/monitortrace/internal/contention/goroutine"
	"github.com/kolkov/monitortrace/internal/contention/handler"
	"github.com/kolkov/monitortrace/internal/contention/introspect"
	"github.com/kolkov/monitortrace/internal/contention/monitor"
	"github.com/kolkov/monitortrace/internal/contention/stackdepot"
	"github.com/kolkov/monitortrace/internal/contention/stackdepth"
	"github.com/kolkov/monitortrace/internal/logging"
)

// Monitor is a traced reentrant monitor. See package monitor for semantics.
type Monitor = monitor.Monitor

// Config is the agent configuration.
type Config = config.Config

// ErrNotOwner is returned by Monitor.Exit, Wait and Notify when the calling
// goroutine does not own the monitor.
var ErrNotOwner = monitor.ErrNotOwner

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads a TOML configuration file.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// SetThreadName names the calling goroutine in records.
func SetThreadName(name string) {
	goroutine.SetName(name)
}

// ReleaseThread forgets the calling goroutine's thread identity. Call it from
// goroutines that will not touch traced monitors again. It does nothing and
// returns false while the goroutine still holds a monitor.
func ReleaseThread() bool {
	return goroutine.Release()
}

// Option configures Start.
type Option func(*options)

type options struct {
	output  io.Writer
	logger  logging.Logger
	clock   introspect.Clock
	depth   *stackdepth.Cache
	session string
}

// WithOutput sends records to w instead of the configured file.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// WithLogger overrides the logger built from the [log] configuration.
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClock overrides the record timestamp source.
func WithClock(c introspect.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithSession sets the session ID instead of a random UUID.
func WithSession(id string) Option {
	return func(o *options) {
		o.session = id
	}
}

// withDepthCache replaces the process-wide stack-depth cache.
func withDepthCache(c *stackdepth.Cache) Option {
	return func(o *options) {
		o.depth = c
	}
}

// Stats combines handler and dumper counters.
type Stats struct {
	// Records is the number of records accepted by the dumper queue.
	Records uint64

	// Written is the number of records written to the output.
	Written uint64

	// Dropped is the number of records lost to a full or closed queue or to
	// a write error.
	Dropped uint64

	// Recovered is the number of tracer panics stopped by the handler.
	Recovered uint64

	// Monitors is the number of live traced monitors.
	Monitors int
}

// Agent traces contention on the monitors it creates.
//
// Thread Safety: all methods are safe for concurrent use.
type Agent struct {
	session string
	rt      *monitor.Runtime
	handler *handler.Handler
	dumper  *dumper.Dumper
	log     logging.Logger

	closeOnce sync.Once
	closeErr  error
}

// Start validates cfg, opens the record output and returns a running Agent.
func Start(cfg Config, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{depth: stackdepth.Shared()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.session == "" {
		o.session = uuid.NewString()
	}
	if o.logger == nil {
		o.logger = logging.New(cfg.Logging(os.Stderr))
	}
	log := o.logger.With("session", o.session)

	d, err := dumper.New(dumper.Config{
		Output:        o.output,
		Path:          cfg.Dump.Path,
		Session:       o.session,
		QueueSize:     cfg.Dump.QueueSize,
		FlushInterval: cfg.Dump.FlushInterval.Duration,
		Logger:        log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start dumper: %w", err)
	}

	hopts := []handler.Option{
		handler.WithLogger(log),
		handler.WithDepthCache(o.depth),
	}
	if o.clock != nil {
		hopts = append(hopts, handler.WithClock(o.clock))
	}

	rt := monitor.NewRuntime()
	h := handler.New(rt, stackdepot.New(cfg.Stack.Depth), d, hopts...)
	rt.SetListener(h)

	log.Info("agent started", "version", Version, "path", d.Path(), "stack_depth", cfg.Stack.Depth)

	return &Agent{
		session: o.session,
		rt:      rt,
		handler: h,
		dumper:  d,
		log:     log,
	}, nil
}

// NewMonitor creates a traced monitor guarding value. value only determines
// the class signature in records; it may be nil.
func (a *Agent) NewMonitor(value any) *Monitor {
	return a.rt.NewMonitor(value)
}

// Forget stops tracking m. m keeps working as a lock.
func (a *Agent) Forget(m *Monitor) {
	a.rt.Forget(m)
}

// Session returns the session ID.
func (a *Agent) Session() string {
	return a.session
}

// Path returns the record file path, or "" when writing to a caller-supplied
// writer.
func (a *Agent) Path() string {
	return a.dumper.Path()
}

// Stats returns current counters.
func (a *Agent) Stats() Stats {
	hs := a.handler.Stats()
	ds := a.dumper.Stats()
	return Stats{
		Records:   hs.Emitted,
		Written:   ds.Written,
		Dropped:   ds.Dropped,
		Recovered: hs.Recovered,
		Monitors:  a.rt.Count(),
	}
}

// Close detaches the tracer from all monitors, writes pending records and
// closes the output. Monitors keep working untraced. Subsequent calls return
// the first call's result.
func (a *Agent) Close() error {
	a.closeOnce.Do(func() {
		a.rt.SetListener(nil)
		a.closeErr = a.dumper.Close()

		st := a.Stats()
		a.log.Info("agent stopped",
			"records", st.Records, "written", st.Written, "dropped", st.Dropped, "recovered", st.Recovered)
	})
	return a.closeErr
}
