package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kolkov/monitortrace/agent"
)

// runOptions holds the flags of the run command.
type runOptions struct {
	workers  int
	monitors int
	duration time.Duration
	hold     time.Duration
	out      string
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
)

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a contention workload under the tracing agent",
		Long: `run starts the agent and lets --workers goroutines fight over --monitors
monitors for --duration. Each worker nests two monitors in a fixed order, so
records also list owned monitors. A summary is printed when the run ends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			cfg, err := global.load()
			if err != nil {
				return err
			}
			if opts.out != "" {
				cfg.Dump.Path = opts.out
			}

			a, err := agent.Start(cfg, agent.WithLogger(global.logger(cmd, cfg)))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.duration)
			defer cancel()

			ops, werr := runWorkload(ctx, a, opts)
			cerr := a.Close()
			if err := errors.Join(werr, cerr); err != nil {
				return err
			}

			return printRunSummary(cmd.OutOrStdout(), a, ops)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.workers, "workers", 4, "number of contending goroutines")
	f.IntVar(&opts.monitors, "monitors", 2, "number of shared monitors")
	f.DurationVar(&opts.duration, "duration", time.Second, "workload duration")
	f.DurationVar(&opts.hold, "hold", time.Millisecond, "time a worker holds its monitors")
	f.StringVar(&opts.out, "out", "", "record file, overrides [dump].path")
	return cmd
}

func (o *runOptions) validate() error {
	switch {
	case o.workers < 1:
		return fmt.Errorf("--workers must be positive, got %d", o.workers)
	case o.monitors < 1:
		return fmt.Errorf("--monitors must be positive, got %d", o.monitors)
	case o.duration <= 0:
		return fmt.Errorf("--duration must be positive, got %s", o.duration)
	case o.hold < 0:
		return fmt.Errorf("--hold must not be negative, got %s", o.hold)
	}
	return nil
}

// account is the value guarded by each workload monitor.
type account struct {
	id      int
	balance int64
}

// runWorkload runs the workers until ctx is done and returns the number of
// completed critical sections.
func runWorkload(ctx context.Context, a *agent.Agent, opts *runOptions) (int64, error) {
	accounts := make([]*account, opts.monitors)
	monitors := make([]*agent.Monitor, opts.monitors)
	for i := range monitors {
		accounts[i] = &account{id: i}
		monitors[i] = a.NewMonitor(accounts[i])
	}

	counts := make([]int64, opts.workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.workers; w++ {
		g.Go(func() error {
			agent.SetThreadName(fmt.Sprintf("worker-%d", w))
			defer agent.ReleaseThread()

			// Lower index first: a fixed order cannot deadlock.
			first, second := w%opts.monitors, (w+1)%opts.monitors
			if first > second {
				first, second = second, first
			}

			for ctx.Err() == nil {
				outer, inner := monitors[first], monitors[second]
				outer.Enter()
				if second != first {
					inner.Enter()
				}
				accounts[first].balance--
				accounts[second].balance++
				if opts.hold > 0 {
					time.Sleep(opts.hold)
				}
				if second != first {
					if err := inner.Exit(); err != nil {
						return err
					}
				}
				if err := outer.Exit(); err != nil {
					return err
				}
				counts[w]++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	return total, nil
}

func printRunSummary(out io.Writer, a *agent.Agent, ops int64) error {
	st := a.Stats()

	fmt.Fprintf(out, "%s %d critical sections, %d monitors\n", okColor.Sprint("workload:"), ops, st.Monitors)
	fmt.Fprintf(out, "%s %d written, %d dropped\n", okColor.Sprint("dumper:"), st.Written, st.Dropped)
	if st.Dropped > 0 || st.Recovered > 0 {
		fmt.Fprintf(out, "%s %d records dropped, %d panics recovered\n", warnColor.Sprint("warning:"), st.Dropped, st.Recovered)
	}
	if a.Path() == "" {
		return nil
	}
	fmt.Fprintf(out, "%s %s\n", okColor.Sprint("output:"), a.Path())

	f, err := os.Open(a.Path())
	if err != nil {
		return err
	}
	defer f.Close()

	s, err := summarize(f)
	if err != nil {
		return err
	}
	s.render(out, 3)
	return nil
}
