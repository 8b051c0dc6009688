// ABOUTME: System handler reporting host CPU, memory, disk and platform.
// ABOUTME: Reads telemetry through a sysinfo.Probe.

package builtins

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/2389/jarvis-gateway/internal/plugins"
	"github.com/2389/jarvis-gateway/internal/sysinfo"
)

var systemVocabulary = plugins.NewVocabulary(
	"system", "systems", "cpu", "memory", "disk", "status", "health",
)

// System reports host status.
type System struct {
	probe sysinfo.Probe
	now   func() time.Time
}

// NewSystem creates a System handler reading from probe.
func NewSystem(probe sysinfo.Probe, now func() time.Time) *System {
	if now == nil {
		now = time.Now
	}
	return &System{probe: probe, now: now}
}

func (s *System) Info() plugins.Info {
	return plugins.Info{
		Name:        NameSystem,
		Version:     plugins.DefaultVersion,
		Description: "System information and monitoring",
		Priority:    5,
		Commands:    []string{"system status", "cpu usage", "memory usage", "disk usage"},
	}
}

func (s *System) CanHandle(_ context.Context, message string) (bool, error) {
	return systemVocabulary.Matches(message), nil
}

func (s *System) Handle(ctx context.Context, _ string, _ plugins.HandleContext) (string, error) {
	snap := s.probe.Snapshot(ctx)

	var b strings.Builder
	b.WriteString("System Status Report:\n")
	fmt.Fprintf(&b, "• CPU Usage: %.1f%%\n", snap.CPUUsage)
	fmt.Fprintf(&b, "• Memory: %.1f%% used (%.1f GB of %.1f GB)\n",
		snap.MemoryUsage, sysinfo.GiB(snap.MemoryUsed), sysinfo.GiB(snap.MemoryTotal))
	fmt.Fprintf(&b, "• Disk: %.1f%% used\n", snap.DiskUsage)
	if snap.System != "" {
		fmt.Fprintf(&b, "• System: %s\n", snap.System)
	}
	fmt.Fprintf(&b, "• Time: %s\n\n", s.now().Format(time.DateTime))

	if snap.Error != "" {
		fmt.Fprintf(&b, "Some readings are unavailable (%s), Sir.", snap.Error)
	} else {
		b.WriteString("All systems operational, Sir.")
	}
	return b.String(), nil
}
