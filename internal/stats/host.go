package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// HostCollector samples the local machine with gopsutil.
// Not safe for concurrent use.
type HostCollector struct {
	sampleInterval time.Duration
	// Process handles are kept between calls so per-process CPU is the
	// delta since the previous sample rather than a lifetime average.
	procs map[int32]*process.Process
}

// NewHostCollector creates a collector; CPU load is measured over sampleInterval
func NewHostCollector(sampleInterval time.Duration) *HostCollector {
	if sampleInterval <= 0 {
		sampleInterval = time.Second
	}
	return &HostCollector{
		sampleInterval: sampleInterval,
		procs:          make(map[int32]*process.Process),
	}
}

// Collect implements Collector
func (h *HostCollector) Collect(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	cpuPct, err := cpu.PercentWithContext(ctx, h.sampleInterval, false)
	if err != nil {
		return snap, fmt.Errorf("cpu percent: %w", err)
	}
	if len(cpuPct) > 0 {
		snap.CPUPercent = cpuPct[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return snap, fmt.Errorf("virtual memory: %w", err)
	}
	snap.MemPercent = vm.UsedPercent

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return snap, fmt.Errorf("list processes: %w", err)
	}

	alive := make(map[int32]*process.Process, len(procs))
	var byCPU, byMem []ProcessUsage
	for _, p := range procs {
		if prev, ok := h.procs[p.Pid]; ok {
			p = prev
		}
		alive[p.Pid] = p

		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		if pct, err := p.PercentWithContext(ctx, 0); err == nil {
			byCPU = append(byCPU, ProcessUsage{Name: name, Percent: pct})
		}
		if pct, err := p.MemoryPercentWithContext(ctx); err == nil {
			byMem = append(byMem, ProcessUsage{Name: name, Percent: float64(pct)})
		}
	}
	h.procs = alive

	snap.TopCPU = top(byCPU, TopN)
	snap.TopMem = top(byMem, TopN)
	return snap, nil
}

// top returns the n highest entries, highest first
func top(usage []ProcessUsage, n int) []ProcessUsage {
	sort.SliceStable(usage, func(i, j int) bool {
		return usage[i].Percent > usage[j].Percent
	})
	if len(usage) > n {
		usage = usage[:n]
	}
	return usage
}
