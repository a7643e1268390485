package stats

import (
	"context"
	"fmt"
	"strings"
)

// TopN is how many processes each ranking reports
const TopN = 3

// ProcessUsage is one entry of a ranking
type ProcessUsage struct {
	Name    string
	Percent float64
}

// Snapshot is a single sample of host load
type Snapshot struct {
	CPUPercent float64
	MemPercent float64
	TopCPU     []ProcessUsage
	TopMem     []ProcessUsage
}

// Collector samples host load
type Collector interface {
	Collect(ctx context.Context) (Snapshot, error)
}

// Format renders the telemetry line the device displays:
//
//	CPU: 12.5%, RAM: 40.1%, Top CPU: a(3.0%), b(1.0%), Top RAM: c(4.12%), d(2.00%)
func Format(s Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CPU: %.1f%%, RAM: %.1f%%, Top CPU: ", s.CPUPercent, s.MemPercent)
	writeUsage(&b, s.TopCPU, "%s(%.1f%%)")
	b.WriteString(", Top RAM: ")
	writeUsage(&b, s.TopMem, "%s(%.2f%%)")
	return b.String()
}

func writeUsage(b *strings.Builder, usage []ProcessUsage, format string) {
	for i, u := range usage {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, format, u.Name, u.Percent)
	}
}
