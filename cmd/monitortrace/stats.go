package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kolkov/monitortrace/internal/contention/record"
)

// maxLineSize bounds a single record line (stack segments can be long).
const maxLineSize = 4 << 20

var headerColor = color.New(color.Bold)

// lockStats aggregates records of one monitor.
type lockStats struct {
	Hash      string
	Signature string
	Enters    int
	Entereds  int
	Owners    map[string]int
}

// summary aggregates a record file.
type summary struct {
	Enters    int
	Entereds  int
	Malformed int
	Locks     map[string]*lockStats
}

// summarize reads records from r. Lines that are not well-formed records are
// counted, not fatal.
func summarize(r io.Reader) (*summary, error) {
	s := &summary{Locks: make(map[string]*lockStats)}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), maxLineSize)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		tag, segments := record.Split(line)
		switch {
		case tag == record.Tag && len(segments) == record.EnterSegments:
			fields := strings.Split(segments[0], record.FieldSep)
			usage := strings.Split(segments[2], record.FieldSep)
			if len(fields) != 4 || len(usage) != 4 {
				s.Malformed++
				continue
			}
			l := s.lock(fields[2])
			l.Signature = fields[3]
			l.Enters++
			l.Owners[usage[0]]++
			s.Enters++
		case tag == record.Tag+record.EnteredSuffix && len(segments) == record.EnteredSegments:
			fields := strings.Split(segments[0], record.FieldSep)
			if len(fields) != 3 {
				s.Malformed++
				continue
			}
			s.lock(fields[2]).Entereds++
			s.Entereds++
		default:
			s.Malformed++
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return s, nil
}

func (s *summary) lock(hash string) *lockStats {
	l, ok := s.Locks[hash]
	if !ok {
		l = &lockStats{Hash: hash, Owners: make(map[string]int)}
		s.Locks[hash] = l
	}
	return l
}

// top returns the n most contended locks, most contended first.
func (s *summary) top(n int) []*lockStats {
	out := make([]*lockStats, 0, len(s.Locks))
	for _, l := range s.Locks {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Enters != out[j].Enters {
			return out[i].Enters > out[j].Enters
		}
		return out[i].Hash < out[j].Hash
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// topOwner returns the owner seen most often, ties broken by name.
func (l *lockStats) topOwner() string {
	best, count := "", -1
	for name, c := range l.Owners {
		if c > count || c == count && name < best {
			best, count = name, c
		}
	}
	return best
}

func (s *summary) render(out io.Writer, n int) {
	fmt.Fprintf(out, "%s %d contended enters, %d entered, %d malformed\n",
		headerColor.Sprint("records:"), s.Enters, s.Entereds, s.Malformed)

	locks := s.top(n)
	if len(locks) == 0 {
		return
	}
	fmt.Fprintln(out, headerColor.Sprint("most contended monitors:"))
	for _, l := range locks {
		owner := l.topOwner()
		if owner == "" {
			owner = "-"
		}
		fmt.Fprintf(out, "  %-10s %6d  %s owner=%s\n", l.Hash, l.Enters, l.Signature, owner)
	}
}

func newStatsCmd() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "stats FILE",
		Short: "Summarize a contention record file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			s, err := summarize(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			s.render(cmd.OutOrStdout(), top)
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 5, "number of monitors to list (0 = all)")
	return cmd
}
