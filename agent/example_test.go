package agent_test

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/kolkov/monitortrace/agent"
)

// Example demonstrates tracing a monitor. Uncontended acquisitions produce no
// records.
func Example() {
	cfg := agent.DefaultConfig()
	cfg.Log.Level = "error"

	var out bytes.Buffer
	a, err := agent.Start(cfg, agent.WithOutput(&out))
	if err != nil {
		fmt.Println(err)
		return
	}

	balance := 0
	m := a.NewMonitor(&balance)
	m.Synchronized(func() {
		balance += 100
	})

	if err := a.Close(); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(balance, strings.Count(out.String(), "\n"))

	// Output:
	// 100 0
}

// Example_waitNotify demonstrates Java-style wait/notify on a monitor.
func Example_waitNotify() {
	cfg := agent.DefaultConfig()
	cfg.Log.Level = "error"

	var out bytes.Buffer
	a, err := agent.Start(cfg, agent.WithOutput(&out))
	if err != nil {
		fmt.Println(err)
		return
	}
	defer a.Close()

	var queue []string
	m := a.NewMonitor(&queue)

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Enter()
		defer m.Exit()
		for len(queue) == 0 {
			_ = m.Wait()
		}
		fmt.Println("got", queue[0])
	}()

	m.Synchronized(func() {
		queue = append(queue, "job-1")
		_ = m.NotifyAll()
	})
	<-done

	// Output:
	// got job-1
}

// ExampleGetInfo shows version information.
func ExampleGetInfo() {
	info := agent.GetInfo()
	fmt.Println(info.Version, info.Major)

	// Output:
	// v0.1.0 v0
}
