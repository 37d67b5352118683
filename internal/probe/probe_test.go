package probe

import (
	"context"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
)

func TestCollectNeverFails(t *testing.T) {
	p := New()
	// A snapshot must come back even on hosts with partial metric support;
	// sections that cannot be read stay zeroed.
	snap := p.Collect(context.Background())
	if snap.RAM.Percent < 0 || snap.RAM.Percent > 100 {
		t.Fatalf("implausible RAM percent: %v", snap.RAM.Percent)
	}
	for _, d := range snap.Drives {
		if d.Device == "" {
			t.Fatalf("drive without device: %+v", d)
		}
	}
}

func TestCollectCanceledContext(t *testing.T) {
	p := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan Snapshot, 1)
	go func() { done <- p.Collect(ctx) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Collect blocked on canceled context")
	}
}

func TestIsRemovable(t *testing.T) {
	cases := []struct {
		fstype string
		opts   []string
		want   bool
	}{
		{"ext4", []string{"rw"}, false},
		{"iso9660", nil, true},
		{"udf", nil, true},
		{"vfat", []string{"ro", "cdrom"}, true},
		{"ntfs", []string{"removable"}, true},
	}
	for _, c := range cases {
		part := disk.PartitionStat{Fstype: c.fstype, Opts: c.opts}
		if got := isRemovable(part); got != c.want {
			t.Fatalf("isRemovable(%s, %v) = %v, want %v", c.fstype, c.opts, got, c.want)
		}
	}
}

func TestRounding(t *testing.T) {
	if got := toGB(1 << 30); got != 1.0 {
		t.Fatalf("toGB(1GiB) = %v", got)
	}
	if got := round2(33.33333); got != 33.33 {
		t.Fatalf("round2 = %v", got)
	}
}
