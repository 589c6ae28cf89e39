// Package stackdepot captures bounded-depth call stacks of arbitrary
// goroutines for contention records.
//
// A contention record carries two stacks: the contending goroutine's and the
// owner's. The owner is another goroutine, so runtime.Callers cannot reach
// it; the Capturer takes a full goroutine dump and picks the target's section
// by ID instead.
//
// Design:
//   - Frames of the tracing machinery itself (this module's contention
//     packages) and of the Go runtime are dropped, so the snapshot starts at
//     the user code that entered the monitor
//   - At most maxDepth frames are kept
//   - Frames render as "function(file:line)" joined by "^^^", a single line
//     that fits in one record segment
//
// Performance:
//   - CaptureStack: O(goroutines) per call (stop-the-world dump + parse)
//
// This is acceptable because it only runs on contended-enter events, never on
// uncontended monitor operations.
//
// Usage:
//
//	c := stackdepot.New(10)
//	s, err := c.CaptureStack(goroutine.Current(), 8)
package stackdepot

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/kolkov/monitortrace/internal/contention/goroutine"
	"github.com/kolkov/monitortrace/internal/contention/introspect"
)

const (
	// DefaultDepth is the stack depth used when none is configured.
	DefaultDepth = 10

	// FrameSep separates frames in a rendered snapshot.
	FrameSep = "^^^"
)

// internalPrefixes lists function-name prefixes dropped from snapshots.
var internalPrefixes = []string{
	"runtime.",
	"github.com/kolkov/monitortrace/internal/contention/",
}

// ErrGoroutineNotFound is returned when the target goroutine is not in the dump,
// usually because it exited.
var ErrGoroutineNotFound = errors.New("stackdepot: goroutine not found")

// Frame is one parsed stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// String renders "function(file:line)".
func (f Frame) String() string {
	if f.File == "" {
		return f.Function + "()"
	}
	return fmt.Sprintf("%s(%s:%d)", f.Function, f.File, f.Line)
}

// Capturer implements introspect.StackCapturer for goroutines.
//
// Thread Safety: safe for concurrent use.
type Capturer struct {
	depth int

	// dump returns a full goroutine dump. Replaced in tests.
	dump func() []byte
}

// New creates a Capturer reporting depth as its configured stack depth.
// A non-positive depth selects DefaultDepth.
func New(depth int) *Capturer {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Capturer{depth: depth, dump: goroutine.AllStacks}
}

// ConfiguredStackDepth returns the configured depth.
func (c *Capturer) ConfiguredStackDepth() int {
	return c.depth
}

// CaptureStack renders at most maxDepth frames of t's stack.
//
// Parameters:
//   - t: a *goroutine.Thread
//   - maxDepth: maximum number of frames (non-positive yields "")
//
// Returns:
//   - string: frames joined by FrameSep, innermost first
//   - error: introspect.ErrNotThread or ErrGoroutineNotFound
func (c *Capturer) CaptureStack(t introspect.Thread, maxDepth int) (string, error) {
	th, ok := t.(*goroutine.Thread)
	if !ok || th == nil {
		return "", introspect.ErrNotThread
	}
	if maxDepth <= 0 {
		return "", nil
	}

	section, ok := goroutine.FindSection(c.dump(), th.ID)
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrGoroutineNotFound, th.ID)
	}

	return Format(ParseFrames(section.Body), maxDepth), nil
}

// Format renders up to maxDepth frames that are not internal.
func Format(frames []Frame, maxDepth int) string {
	var sb strings.Builder
	n := 0
	for _, f := range frames {
		if n >= maxDepth {
			break
		}
		if isInternal(f.Function) {
			continue
		}
		if n > 0 {
			sb.WriteString(FrameSep)
		}
		sb.WriteString(f.String())
		n++
	}
	return sb.String()
}

// ParseFrames parses the body of one goroutine section.
//
// Input format (pairs of lines):
//
//	main.worker(0xc000010000, 0x1)
//		/path/to/main.go:45 +0x3b
//
// Arguments and PC offsets are dropped. "created by" trailers are not frames
// and are skipped.
func ParseFrames(body []byte) []Frame {
	lines := bytes.Split(body, []byte("\n"))

	var frames []Frame
	for i := 0; i < len(lines); i++ {
		fn := string(bytes.TrimSpace(lines[i]))
		if fn == "" {
			continue
		}

		var loc string
		if i+1 < len(lines) && bytes.HasPrefix(lines[i+1], []byte("\t")) {
			loc = string(bytes.TrimSpace(lines[i+1]))
			i++
		}

		if strings.HasPrefix(fn, "created by ") || strings.HasPrefix(fn, "...") {
			continue
		}

		f := Frame{Function: trimArgs(fn)}
		f.File, f.Line = splitLocation(loc)
		frames = append(frames, f)
	}
	return frames
}

// trimArgs removes the trailing argument list: "pkg.(*T).M(0x1, 0x2)" → "pkg.(*T).M".
func trimArgs(fn string) string {
	if !strings.HasSuffix(fn, ")") {
		return fn
	}
	if i := strings.LastIndex(fn, "("); i > 0 {
		return fn[:i]
	}
	return fn
}

// splitLocation parses "/path/file.go:45 +0x3b" into file and line.
func splitLocation(loc string) (string, int) {
	if sp := strings.IndexByte(loc, ' '); sp >= 0 {
		loc = loc[:sp]
	}
	colon := strings.LastIndexByte(loc, ':')
	if colon < 0 {
		return loc, 0
	}

	line := 0
	for _, r := range loc[colon+1:] {
		if r < '0' || r > '9' {
			return loc, 0
		}
		line = line*10 + int(r-'0')
	}
	return loc[:colon], line
}

func isInternal(fn string) bool {
	for _, p := range internalPrefixes {
		if strings.HasPrefix(fn, p) {
			return !isTestFunc(fn[len(p):])
		}
	}
	return false
}

// isTestFunc reports whether "pkg.Name..." names a test function or a closure
// inside one. Tests of the contention packages stay visible in snapshots.
func isTestFunc(rest string) bool {
	_, name, ok := strings.Cut(rest, ".")
	return ok && strings.HasPrefix(name, "Test")
}
