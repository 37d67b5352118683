package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loykin/scriptwatch/internal/resolver"
	"github.com/loykin/scriptwatch/internal/tracker"
)

type stubResolver struct{ res resolver.Result }

func (s stubResolver) Resolve([]string, string) resolver.Result { return s.res }

// selfName returns the name the OS reports for this test process.
func selfName() string {
	name := strings.ToLower(filepath.Base(os.Args[0]))
	// Linux comm is truncated to 15 characters.
	if len(name) > 15 {
		name = name[:15]
	}
	return name
}

func findPID(obs []tracker.Observation, pid int32) (tracker.Observation, bool) {
	for _, o := range obs {
		if o.PID == pid {
			return o, true
		}
	}
	return tracker.Observation{}, false
}

func TestScanFindsSelf(t *testing.T) {
	s := New(selfName(), stubResolver{res: resolver.Result{Kind: resolver.Resolved, Path: "/fake.py"}})
	obs, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	self, ok := findPID(obs, int32(os.Getpid()))
	if !ok {
		t.Fatalf("own pid not in snapshot (%d observations)", len(obs))
	}
	if self.Path != "/fake.py" {
		t.Fatalf("unexpected path: %s", self.Path)
	}
	if self.CreateTime.IsZero() {
		t.Fatal("expected a process create time for self")
	}
}

func TestScanExcludesInteractive(t *testing.T) {
	s := New(selfName(), stubResolver{res: resolver.Result{Kind: resolver.Interactive}})
	obs, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, ok := findPID(obs, int32(os.Getpid())); ok {
		t.Fatal("interactive sessions must not be tracked")
	}
}

func TestScanExcludesBareUnresolved(t *testing.T) {
	s := New(selfName(), stubResolver{res: resolver.Result{Kind: resolver.Unresolved}})
	obs, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, ok := findPID(obs, int32(os.Getpid())); ok {
		t.Fatal("unresolved processes must not be tracked")
	}
}

func TestScanKeepsDescriptiveUnresolved(t *testing.T) {
	reason := "spider news: project root not found"
	s := New(selfName(), stubResolver{res: resolver.Result{Kind: resolver.Unresolved, Reason: reason}})
	obs, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	self, ok := findPID(obs, int32(os.Getpid()))
	if !ok {
		t.Fatal("descriptive unresolved identity should surface to the operator")
	}
	if self.Path != reason {
		t.Fatalf("unexpected identity: %s", self.Path)
	}
}

func TestScanNoRuntimeMatch(t *testing.T) {
	s := New("no-such-runtime-name-zzz", stubResolver{res: resolver.Result{Kind: resolver.Resolved, Path: "/x.py"}})
	obs, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(obs) != 0 {
		t.Fatalf("expected empty snapshot, got %d", len(obs))
	}
}
