package dumper

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// blockingWriter blocks every Write until release is closed.
type blockingWriter struct {
	release chan struct{}
	buf     bytes.Buffer
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	<-w.release
	return w.buf.Write(p)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestDumper_FIFO(t *testing.T) {
	var out bytes.Buffer
	d, err := New(Config{Output: &out, QueueSize: 2048})
	require.NoError(t, err)

	const n = 1000
	for i := 0; i < n; i++ {
		require.NoError(t, d.Add(fmt.Sprintf("MCED|%d^^^t^^^1\n", i)))
	}
	require.NoError(t, d.Close())

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, n)
	for i, line := range lines {
		assert.Equal(t, fmt.Sprintf("MCED|%d^^^t^^^1", i), line)
	}
	assert.Equal(t, Stats{Written: n}, d.Stats())
}

func TestDumper_QueueFullDoesNotBlock(t *testing.T) {
	w := &blockingWriter{release: make(chan struct{})}
	d, err := New(Config{Output: w, QueueSize: 1})
	require.NoError(t, err)

	// Larger than the bufio buffer so the writer goroutine reaches w.Write.
	big := strings.Repeat("x", defaultBufferSize*2) + "\n"
	require.NoError(t, d.Add(big))
	require.Eventually(t, func() bool { return d.Stats().Pending == 0 }, time.Second, time.Millisecond)

	require.NoError(t, d.Add("a\n"))

	done := make(chan error, 1)
	go func() { done <- d.Add("b\n") }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("Add blocked on a full queue")
	}

	close(w.release)
	require.NoError(t, d.Close())

	assert.Equal(t, big+"a\n", w.buf.String())
	assert.Equal(t, Stats{Written: 2, Dropped: 1}, d.Stats())
}

func TestDumper_AddAfterClose(t *testing.T) {
	d, err := New(Config{Output: &bytes.Buffer{}})
	require.NoError(t, err)
	require.NoError(t, d.Close())

	assert.ErrorIs(t, d.Add("x\n"), ErrClosed)
	assert.NoError(t, d.Close(), "second Close is a no-op")
	assert.Equal(t, uint64(1), d.Stats().Dropped)
}

func TestDumper_WriteErrorReportedOnClose(t *testing.T) {
	d, err := New(Config{Output: failingWriter{}})
	require.NoError(t, err)

	require.NoError(t, d.Add(strings.Repeat("y", defaultBufferSize*2)))
	err = d.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, err, d.Close(), "second Close returns the first result")
}

func TestDumper_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "contention.trace")
	d, err := New(Config{Path: path, FlushInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, path, d.Path())

	require.NoError(t, d.Add("MCED|1^^^main^^^a\n"))

	// The periodic flush makes the line visible before Close.
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && len(data) > 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, d.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "MCED|1^^^main^^^a\n", string(data))
}

func TestDumper_DefaultPathUsesSession(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	d, err := New(Config{Session: "abc123"})
	require.NoError(t, err)
	require.NoError(t, d.Close())

	assert.Equal(t, filepath.Join(os.TempDir(), "monitortrace-abc123.trace"), d.Path())
	_, err = os.Stat(d.Path())
	assert.NoError(t, err)
}

func TestDumper_ConcurrentAdd(t *testing.T) {
	var out bytes.Buffer
	d, err := New(Config{Output: &out, QueueSize: 10000})
	require.NoError(t, err)

	const writers, perWriter = 8, 200
	var g errgroup.Group
	for w := 0; w < writers; w++ {
		g.Go(func() error {
			for i := 0; i < perWriter; i++ {
				if err := d.Add(fmt.Sprintf("MCED|%d^^^w%d^^^0\n", i, w)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.NoError(t, d.Close())

	assert.Equal(t, writers*perWriter, strings.Count(out.String(), "\n"))

	// Per-writer order is preserved.
	next := make(map[string]int)
	for _, line := range strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n") {
		var i int
		var w string
		_, err := fmt.Sscanf(strings.ReplaceAll(strings.TrimPrefix(line, "MCED|"), "^^^", " "), "%d %s", &i, &w)
		require.NoError(t, err, line)
		assert.Equal(t, next[w], i, "writer %s out of order", w)
		next[w] = i + 1
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory(2)
	require.NoError(t, m.Add("a"))
	require.NoError(t, m.Add("b"))
	assert.ErrorIs(t, m.Add("c"), ErrQueueFull)
	assert.Equal(t, []string{"a", "b"}, m.Lines())
	assert.Equal(t, 2, m.Len())

	unlimited := NewMemory(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, unlimited.Add("x"))
	}
	assert.Equal(t, 100, unlimited.Len())
}
