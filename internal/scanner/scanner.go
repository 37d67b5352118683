package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"

	"github.com/loykin/scriptwatch/internal/resolver"
	"github.com/loykin/scriptwatch/internal/tracker"
)

// PathResolver maps a process command line and working directory to a script
// identity.
type PathResolver interface {
	Resolve(cmdline []string, cwd string) resolver.Result
}

// Scanner enumerates host processes belonging to the monitored runtime and
// resolves each to a script identity. Scan is a pure read of host state.
type Scanner struct {
	runtime  string
	resolver PathResolver
}

// New returns a Scanner matching processes whose name contains runtime
// (case-insensitive).
func New(runtime string, res PathResolver) *Scanner {
	return &Scanner{runtime: strings.ToLower(runtime), resolver: res}
}

// Scan returns the snapshot of monitored processes with a resolved script
// identity. Interactive sessions and unresolvable processes are excluded.
// Per-process access errors skip that process only.
func (s *Scanner) Scan(ctx context.Context) ([]tracker.Observation, error) {
	procs, err := gopsproc.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	var out []tracker.Observation
	for _, p := range procs {
		obs, ok := s.inspect(ctx, p)
		if ok {
			out = append(out, obs)
		}
	}
	return out, nil
}

func (s *Scanner) inspect(ctx context.Context, p *gopsproc.Process) (tracker.Observation, bool) {
	name, err := p.NameWithContext(ctx)
	if err != nil {
		// Processes come and go between enumeration and inspection.
		if !skippable(err) {
			slog.Warn("Cannot read process name", "pid", p.Pid, "error", err)
		}
		return tracker.Observation{}, false
	}
	if !strings.Contains(strings.ToLower(name), s.runtime) {
		return tracker.Observation{}, false
	}

	cmdline, err := p.CmdlineSliceWithContext(ctx)
	if err != nil {
		logInspectErr("command line", p.Pid, err)
		return tracker.Observation{}, false
	}
	cwd, err := p.CwdWithContext(ctx)
	if err != nil {
		logInspectErr("working directory", p.Pid, err)
		return tracker.Observation{}, false
	}

	res := s.resolver.Resolve(cmdline, cwd)
	if res.Kind == resolver.Interactive {
		return tracker.Observation{}, false
	}
	if res.Kind == resolver.Unresolved && res.Reason == "" {
		return tracker.Observation{}, false
	}
	return tracker.Observation{
		PID:        p.Pid,
		Path:       res.String(),
		CreateTime: createTime(ctx, p),
	}, true
}

// createTime returns the kernel-reported process start time, used to tell a
// reused pid apart from the process it was first observed as. Zero when the
// host cannot provide it.
func createTime(ctx context.Context, p *gopsproc.Process) time.Time {
	if ms, err := p.CreateTimeWithContext(ctx); err == nil && ms > 0 {
		return time.UnixMilli(ms)
	}
	if sec := procStartUnix(int(p.Pid)); sec > 0 {
		return time.Unix(sec, 0)
	}
	return time.Time{}
}

// skippable reports errors expected from racing against process lifetime or
// from inspecting processes of other users.
func skippable(err error) bool {
	return errors.Is(err, os.ErrPermission) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.EACCES) ||
		errors.Is(err, syscall.ESRCH) ||
		errors.Is(err, gopsproc.ErrorProcessNotRunning)
}

func logInspectErr(what string, pid int32, err error) {
	if skippable(err) {
		slog.Warn("Process access denied or gone, skipping", "what", what, "pid", pid, "error", err)
		return
	}
	slog.Error("Unexpected error inspecting process", "what", what, "pid", pid, "error", err)
}
