package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	s := Snapshot{
		CPUPercent: 12.54,
		MemPercent: 40.06,
		TopCPU: []ProcessUsage{
			{Name: "chrome", Percent: 7.26},
			{Name: "code", Percent: 3},
			{Name: "explorer", Percent: 0.5},
		},
		TopMem: []ProcessUsage{
			{Name: "chrome", Percent: 8.123},
			{Name: "code", Percent: 2},
		},
	}

	assert.Equal(t,
		"CPU: 12.5%, RAM: 40.1%, Top CPU: chrome(7.3%), code(3.0%), explorer(0.5%), Top RAM: chrome(8.12%), code(2.00%)",
		Format(s))
}

func TestFormat_Empty(t *testing.T) {
	assert.Equal(t, "CPU: 0.0%, RAM: 0.0%, Top CPU: , Top RAM: ", Format(Snapshot{}))
}

func TestTop(t *testing.T) {
	usage := []ProcessUsage{
		{Name: "a", Percent: 1},
		{Name: "b", Percent: 9},
		{Name: "c", Percent: 5},
		{Name: "d", Percent: 7},
	}

	got := top(usage, TopN)
	assert.Equal(t, []ProcessUsage{
		{Name: "b", Percent: 9},
		{Name: "d", Percent: 7},
		{Name: "c", Percent: 5},
	}, got)

	assert.Len(t, top([]ProcessUsage{{Name: "x", Percent: 1}}, TopN), 1)
	assert.Empty(t, top(nil, TopN))
}
