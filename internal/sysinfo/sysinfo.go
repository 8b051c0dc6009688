// ABOUTME: Best-effort host telemetry snapshots via gopsutil.
// ABOUTME: A failed probe zeroes its field and is reported in Error; Snapshot never fails.

package sysinfo

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// Snapshot is a point-in-time view of host load.
type Snapshot struct {
	CPUUsage    float64   `json:"cpu_usage"`
	MemoryUsage float64   `json:"memory_usage"`
	MemoryTotal uint64    `json:"memory_total"`
	MemoryUsed  uint64    `json:"memory_used"`
	DiskUsage   float64   `json:"disk_usage"`
	System      string    `json:"system"`
	Timestamp   time.Time `json:"timestamp"`
	Error       string    `json:"error,omitempty"`
}

// Probe produces snapshots.
type Probe interface {
	Snapshot(ctx context.Context) Snapshot
}

// Memory holds the virtual memory figures a snapshot needs.
type Memory struct {
	Total       uint64
	Used        uint64
	UsedPercent float64
}

// Sources are the raw readers behind a Collector. Tests replace them.
type Sources struct {
	CPUPercent func(ctx context.Context) (float64, error)
	Memory     func(ctx context.Context) (Memory, error)
	DiskUsage  func(ctx context.Context, path string) (float64, error)
	Platform   func(ctx context.Context) (string, error)
}

// Collector reads host telemetry.
type Collector struct {
	src      Sources
	diskPath string
	now      func() time.Time
	logger   *slog.Logger
}

// CollectorConfig contains configuration options for the Collector.
type CollectorConfig struct {
	// DiskPath is the mount point whose usage is reported. Defaults to "/".
	DiskPath string
	// CPUSample is how long the CPU probe samples. Zero compares against the
	// previous call and does not block.
	CPUSample time.Duration
	Sources   *Sources
	Now       func() time.Time
	Logger    *slog.Logger
}

// NewCollector creates a Collector backed by gopsutil unless cfg.Sources is set.
func NewCollector(cfg CollectorConfig) *Collector {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	diskPath := cfg.DiskPath
	if diskPath == "" {
		diskPath = "/"
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	src := gopsutilSources(cfg.CPUSample)
	if cfg.Sources != nil {
		src = *cfg.Sources
	}
	return &Collector{
		src:      src,
		diskPath: diskPath,
		now:      now,
		logger:   logger.With("component", "sysinfo"),
	}
}

// Snapshot collects every figure it can. Probe failures are joined into
// Snapshot.Error; the remaining fields are still populated.
func (c *Collector) Snapshot(ctx context.Context) Snapshot {
	snap := Snapshot{Timestamp: c.now().UTC()}
	var problems []string

	if v, err := c.src.CPUPercent(ctx); err != nil {
		problems = append(problems, "cpu: "+err.Error())
	} else {
		snap.CPUUsage = round1(v)
	}

	if m, err := c.src.Memory(ctx); err != nil {
		problems = append(problems, "memory: "+err.Error())
	} else {
		snap.MemoryUsage = round1(m.UsedPercent)
		snap.MemoryTotal = m.Total
		snap.MemoryUsed = m.Used
	}

	if v, err := c.src.DiskUsage(ctx, c.diskPath); err != nil {
		problems = append(problems, "disk: "+err.Error())
	} else {
		snap.DiskUsage = round1(v)
	}

	if p, err := c.src.Platform(ctx); err != nil {
		problems = append(problems, "platform: "+err.Error())
	} else {
		snap.System = p
	}

	if len(problems) > 0 {
		snap.Error = strings.Join(problems, "; ")
		c.logger.Debug("partial telemetry snapshot", "error", snap.Error)
	}
	return snap
}

func gopsutilSources(sample time.Duration) Sources {
	return Sources{
		CPUPercent: func(ctx context.Context) (float64, error) {
			values, err := cpu.PercentWithContext(ctx, sample, false)
			if err != nil {
				return 0, err
			}
			if len(values) == 0 {
				return 0, nil
			}
			return values[0], nil
		},
		Memory: func(ctx context.Context) (Memory, error) {
			vm, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return Memory{}, err
			}
			return Memory{Total: vm.Total, Used: vm.Used, UsedPercent: vm.UsedPercent}, nil
		},
		DiskUsage: func(ctx context.Context, path string) (float64, error) {
			u, err := disk.UsageWithContext(ctx, path)
			if err != nil {
				return 0, err
			}
			return u.UsedPercent, nil
		},
		Platform: func(ctx context.Context) (string, error) {
			info, err := host.InfoWithContext(ctx)
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(capitalize(info.OS) + " " + info.KernelVersion), nil
		},
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}

// GiB converts a byte count to gibibytes.
func GiB(bytes uint64) float64 {
	return float64(bytes) / (1 << 30)
}
