// ABOUTME: Tests for telemetry snapshots with injected sources.
// ABOUTME: Verifies partial failures never abort a snapshot.

package sysinfo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func healthySources() *Sources {
	return &Sources{
		CPUPercent: func(context.Context) (float64, error) { return 12.34, nil },
		Memory: func(context.Context) (Memory, error) {
			return Memory{Total: 16 << 30, Used: 4 << 30, UsedPercent: 25}, nil
		},
		DiskUsage: func(_ context.Context, path string) (float64, error) {
			if path != "/data" {
				return 0, errors.New("unexpected path " + path)
			}
			return 40.06, nil
		},
		Platform: func(context.Context) (string, error) { return "Linux 6.1.0", nil },
	}
}

func TestSnapshot_AllSourcesHealthy(t *testing.T) {
	c := NewCollector(CollectorConfig{
		DiskPath: "/data",
		Sources:  healthySources(),
		Now:      func() time.Time { return fixedNow },
	})

	snap := c.Snapshot(context.Background())

	assert.Equal(t, Snapshot{
		CPUUsage:    12.3,
		MemoryUsage: 25,
		MemoryTotal: 16 << 30,
		MemoryUsed:  4 << 30,
		DiskUsage:   40.1,
		System:      "Linux 6.1.0",
		Timestamp:   fixedNow,
	}, snap)
}

func TestSnapshot_PartialFailure(t *testing.T) {
	src := healthySources()
	src.CPUPercent = func(context.Context) (float64, error) { return 0, errors.New("no /proc") }
	src.Platform = func(context.Context) (string, error) { return "", errors.New("denied") }

	c := NewCollector(CollectorConfig{DiskPath: "/data", Sources: src, Now: func() time.Time { return fixedNow }})
	snap := c.Snapshot(context.Background())

	assert.Zero(t, snap.CPUUsage)
	assert.Empty(t, snap.System)
	assert.Equal(t, 25.0, snap.MemoryUsage)
	assert.Equal(t, 40.1, snap.DiskUsage)
	assert.Contains(t, snap.Error, "cpu: no /proc")
	assert.Contains(t, snap.Error, "platform: denied")
}

func TestGiB(t *testing.T) {
	assert.InDelta(t, 1.5, GiB(3<<29), 0.0001)
}
