package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRecords = "MCE|1569222849005^^^Binder:5199_4^^^75353688^^^Landroid/os/MessageQueue;||main^^^1^^^0^^^0|a(b.go:1)|c(d.go:2)\n" +
	"MCED|1569222849006^^^Binder:5199_4^^^75353688\n" +
	"MCE|1569222849007^^^worker-1^^^75353688^^^Landroid/os/MessageQueue;|1a^^^2b|main^^^2^^^1^^^0||\n" +
	"MCE|1569222849008^^^worker-2^^^ff^^^J||worker-1^^^1^^^0^^^0||\n" +
	"garbage\n" +
	"MCE|1^^^x^^^ff|too|few\n" +
	"\n"

func TestSummarize(t *testing.T) {
	s, err := summarize(strings.NewReader(sampleRecords))
	require.NoError(t, err)

	assert.Equal(t, 3, s.Enters)
	assert.Equal(t, 1, s.Entereds)
	assert.Equal(t, 2, s.Malformed)
	require.Len(t, s.Locks, 2)

	top := s.top(1)
	require.Len(t, top, 1)
	assert.Equal(t, "75353688", top[0].Hash)
	assert.Equal(t, 2, top[0].Enters)
	assert.Equal(t, 1, top[0].Entereds)
	assert.Equal(t, "Landroid/os/MessageQueue;", top[0].Signature)
	assert.Equal(t, "main", top[0].topOwner())

	assert.Len(t, s.top(0), 2)
}

func TestStatsCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.log")
	require.NoError(t, os.WriteFile(path, []byte(sampleRecords), 0o644))

	out, err := execute(t, "stats", "--top", "1", path)
	require.NoError(t, err)
	assert.Contains(t, out, "3 contended enters, 1 entered, 2 malformed")
	assert.Contains(t, out, "75353688")
	assert.NotContains(t, out, "owner=worker-1")

	_, err = execute(t, "stats", filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSummaryRender_Empty(t *testing.T) {
	s, err := summarize(strings.NewReader(""))
	require.NoError(t, err)

	var buf bytes.Buffer
	s.render(&buf, 5)
	assert.Equal(t, "records: 0 contended enters, 0 entered, 0 malformed\n", buf.String())
}
