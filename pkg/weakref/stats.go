package weakref

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Stats is a snapshot of a Manager's activity.
type Stats struct {
	// Creation
	RefsCreated    int64 // Reference nodes allocated
	ProxiesCreated int64 // Proxy nodes allocated
	BasicReused    int64 // Requests served by an existing basic node

	// Teardown
	Teardowns        int64 // ClearAll calls that succeeded
	NodesCleared     int64 // Nodes detached by ClearAll
	CallbacksRun     int64 // Callbacks invoked by ClearAll
	CallbackFailures int64 // Callbacks that failed or panicked

	// Collection
	StructuralClears int64 // Nodes detached by StructuralClear
	NodesFreed       int64 // Nodes whose last handle was released
}

// Merge adds o's counters to s.
func (s *Stats) Merge(o Stats) {
	s.RefsCreated += o.RefsCreated
	s.ProxiesCreated += o.ProxiesCreated
	s.BasicReused += o.BasicReused
	s.Teardowns += o.Teardowns
	s.NodesCleared += o.NodesCleared
	s.CallbacksRun += o.CallbacksRun
	s.CallbackFailures += o.CallbackFailures
	s.StructuralClears += o.StructuralClears
	s.NodesFreed += o.NodesFreed
}

// String returns a formatted statistics report
func (s Stats) String() string {
	var sb strings.Builder

	sb.WriteString("=== Weak Reference Statistics ===\n\n")

	sb.WriteString("Creation:\n")
	sb.WriteString(fmt.Sprintf("  References created:  %d\n", s.RefsCreated))
	sb.WriteString(fmt.Sprintf("  Proxies created:     %d\n", s.ProxiesCreated))
	sb.WriteString(fmt.Sprintf("  Basic reused:        %d\n", s.BasicReused))
	if total := s.RefsCreated + s.ProxiesCreated + s.BasicReused; total > 0 {
		pct := float64(s.BasicReused) / float64(total) * 100
		sb.WriteString(fmt.Sprintf("  Reuse ratio:         %.1f%%\n", pct))
	}

	sb.WriteString("\nTeardown:\n")
	sb.WriteString(fmt.Sprintf("  Referents torn down: %d\n", s.Teardowns))
	sb.WriteString(fmt.Sprintf("  Nodes cleared:       %d\n", s.NodesCleared))
	sb.WriteString(fmt.Sprintf("  Callbacks run:       %d\n", s.CallbacksRun))
	sb.WriteString(fmt.Sprintf("  Callback failures:   %d\n", s.CallbackFailures))

	sb.WriteString("\nCollection:\n")
	sb.WriteString(fmt.Sprintf("  Structural clears:   %d\n", s.StructuralClears))
	sb.WriteString(fmt.Sprintf("  Nodes freed:         %d\n", s.NodesFreed))

	return sb.String()
}

type counters struct {
	refsCreated      atomic.Int64
	proxiesCreated   atomic.Int64
	basicReused      atomic.Int64
	teardowns        atomic.Int64
	nodesCleared     atomic.Int64
	callbacksRun     atomic.Int64
	callbackFailures atomic.Int64
	structuralClears atomic.Int64
	nodesFreed       atomic.Int64
}

// discard absorbs counts for lists never bound to a Manager
var discard counters

func (c *counters) snapshot() Stats {
	return Stats{
		RefsCreated:      c.refsCreated.Load(),
		ProxiesCreated:   c.proxiesCreated.Load(),
		BasicReused:      c.basicReused.Load(),
		Teardowns:        c.teardowns.Load(),
		NodesCleared:     c.nodesCleared.Load(),
		CallbacksRun:     c.callbacksRun.Load(),
		CallbackFailures: c.callbackFailures.Load(),
		StructuralClears: c.structuralClears.Load(),
		NodesFreed:       c.nodesFreed.Load(),
	}
}
