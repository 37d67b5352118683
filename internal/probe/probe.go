package probe

import (
	"context"
	"log/slog"
	"math"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// RAM holds memory utilization in gigabytes.
type RAM struct {
	TotalGB float64 `json:"total_gb"`
	UsedGB  float64 `json:"used_gb"`
	Percent float64 `json:"percent"`
}

// CPU holds aggregate CPU utilization and core counts.
type CPU struct {
	UsagePercent  float64 `json:"usage_percent"`
	LogicalCores  int     `json:"logical_cores"`
	PhysicalCores int     `json:"physical_cores"`
}

// Drive holds utilization for one mounted filesystem.
type Drive struct {
	Device  string  `json:"device"`
	TotalGB float64 `json:"total_gb"`
	UsedGB  float64 `json:"used_gb"`
	Percent float64 `json:"percent"`
}

// Snapshot is a point-in-time view of host resources, attached to outgoing
// events. The zero value stands in for a host whose metrics are unreadable.
type Snapshot struct {
	RAM    RAM     `json:"ram"`
	CPU    CPU     `json:"cpu"`
	Drives []Drive `json:"drives"`
}

// Probe samples host RAM, CPU and disk utilization.
type Probe struct{}

func New() *Probe { return &Probe{} }

// Collect samples the host. It never fails: each unreadable source leaves
// its section of the snapshot zeroed, and a single unreadable drive is
// skipped without affecting the others.
func (p *Probe) Collect(ctx context.Context) Snapshot {
	var snap Snapshot

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		slog.Warn("Memory probe failed", "error", err)
	} else {
		snap.RAM = RAM{
			TotalGB: toGB(vm.Total),
			UsedGB:  toGB(vm.Used),
			Percent: vm.UsedPercent,
		}
	}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		slog.Warn("CPU probe failed", "error", err)
	} else if len(pct) > 0 {
		snap.CPU.UsagePercent = round2(pct[0])
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		snap.CPU.LogicalCores = n
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		snap.CPU.PhysicalCores = n
	}

	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		slog.Warn("Disk partition probe failed", "error", err)
		return snap
	}
	for _, part := range parts {
		if isRemovable(part) {
			continue
		}
		usage, err := disk.UsageWithContext(ctx, part.Mountpoint)
		if err != nil {
			slog.Warn("Disk usage probe failed", "mountpoint", part.Mountpoint, "error", err)
			continue
		}
		snap.Drives = append(snap.Drives, Drive{
			Device:  part.Device,
			TotalGB: toGB(usage.Total),
			UsedGB:  toGB(usage.Used),
			Percent: usage.UsedPercent,
		})
	}
	return snap
}

// isRemovable filters optical and removable media out of the snapshot.
func isRemovable(part disk.PartitionStat) bool {
	switch part.Fstype {
	case "iso9660", "udf":
		return true
	}
	for _, opt := range part.Opts {
		if opt == "cdrom" || opt == "removable" {
			return true
		}
	}
	return false
}

func toGB(b uint64) float64 {
	return round2(float64(b) / (1 << 30))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
