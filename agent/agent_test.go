package agent

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/kolkov/monitortrace/internal/config"
	"github.com/kolkov/monitortrace/internal/contention/introspect"
	"github.com/kolkov/monitortrace/internal/contention/record"
	"github.com/kolkov/monitortrace/internal/contention/stackdepth"
	"github.com/kolkov/monitortrace/internal/logging"
)

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.Log.Level = "error"
	cfg.Dump.FlushInterval = config.Duration{Duration: 10 * time.Millisecond}
	return cfg
}

func startBuffered(t *testing.T, cfg Config) (*Agent, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	a, err := Start(cfg,
		WithOutput(&buf),
		WithLogger(logging.NoOp{}),
		WithClock(introspect.ClockFunc(func() int64 { return 1569222849005 })),
		withDepthCache(&stackdepth.Cache{}),
	)
	require.NoError(t, err)
	return a, &buf
}

func TestStart_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stack.Depth = 0

	_, err := Start(cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestAgent_RecordsContention(t *testing.T) {
	a, buf := startBuffered(t, quietConfig())
	m := a.NewMonitor(new(int))

	held := make(chan struct{})
	release := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		SetThreadName("main")
		m.Enter()
		close(held)
		<-release
		return m.Exit()
	})
	<-held

	g.Go(func() error {
		SetThreadName("Binder:5199_4")
		defer ReleaseThread()
		m.Synchronized(func() {})
		return nil
	})

	require.Eventually(t, func() bool { return a.Stats().Records == 1 }, 2*time.Second, time.Millisecond)
	close(release)
	require.NoError(t, g.Wait())
	require.NoError(t, a.Close())

	lines := strings.SplitAfter(buf.String(), "\n")
	lines = lines[:len(lines)-1]
	require.Len(t, lines, 2)

	hash := record.NewHash(m.Hash()).String()
	assert.True(t, strings.HasPrefix(lines[0], "MCE|1569222849005^^^Binder:5199_4^^^"+hash+"^^^J||main^^^1^^^1^^^0|"),
		"enter record = %q", lines[0])
	assert.Equal(t, "MCED|1569222849005^^^Binder:5199_4^^^"+hash+"\n", lines[1])

	st := a.Stats()
	assert.Equal(t, uint64(2), st.Records)
	assert.Equal(t, uint64(2), st.Written)
	assert.Zero(t, st.Dropped)
	assert.Equal(t, 1, st.Monitors)
}

func TestAgent_CloseDetaches(t *testing.T) {
	a, buf := startBuffered(t, quietConfig())
	m := a.NewMonitor(nil)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close(), "Close must be idempotent")

	// Monitors keep working untraced after Close.
	held := make(chan struct{})
	release := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		m.Enter()
		close(held)
		<-release
		return m.Exit()
	})
	<-held
	g.Go(func() error {
		m.Synchronized(func() {})
		return nil
	})
	time.Sleep(10 * time.Millisecond)
	close(release)
	require.NoError(t, g.Wait())

	assert.Empty(t, buf.String())
	assert.Zero(t, a.Stats().Records)
}

func TestAgent_Forget(t *testing.T) {
	a, _ := startBuffered(t, quietConfig())
	defer a.Close()

	m := a.NewMonitor(nil)
	require.Equal(t, 1, a.Stats().Monitors)
	a.Forget(m)
	assert.Equal(t, 0, a.Stats().Monitors)
}

func TestStart_DefaultPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TMPDIR", dir)

	a, err := Start(quietConfig(), WithLogger(logging.NoOp{}), withDepthCache(&stackdepth.Cache{}))
	require.NoError(t, err)
	defer a.Close()

	_, err = uuid.Parse(a.Session())
	require.NoError(t, err, "session must be a UUID")
	assert.Equal(t, filepath.Join(dir, "monitortrace-"+a.Session()+".trace"), a.Path())
}

func TestStart_ConfiguredPath(t *testing.T) {
	cfg := quietConfig()
	cfg.Dump.Path = filepath.Join(t.TempDir(), "nested", "out.trace")

	a, err := Start(cfg, WithSession("fixed"), WithLogger(logging.NoOp{}), withDepthCache(&stackdepth.Cache{}))
	require.NoError(t, err)
	assert.Equal(t, "fixed", a.Session())
	assert.Equal(t, cfg.Dump.Path, a.Path())
	require.NoError(t, a.Close())

	_, err = os.Stat(cfg.Dump.Path)
	assert.NoError(t, err)
}

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, "v0", info.Major)
	assert.NotEmpty(t, info.Schema)

	assert.True(t, Compatible("v0.9.3"))
	assert.False(t, Compatible("v1.0.0"))
	assert.False(t, Compatible("0.1.0"), "versions need the leading v")
}
