package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loykin/scriptwatch/internal/probe"
	"github.com/loykin/scriptwatch/internal/tracker"
)

func TestSanitizeBase(t *testing.T) {
	cases := map[string]string{
		"":             "",
		"/":            "",
		"scriptwatch":  "/scriptwatch",
		"/watch/":      "/watch",
		" /watch/ ":    "/watch",
		"/a/b":         "/a/b",
	}
	for in, want := range cases {
		if got := sanitizeBase(in); got != want {
			t.Fatalf("sanitizeBase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHealthz(t *testing.T) {
	r := NewRouter(tracker.New(), probe.New(), "")
	rr := httptest.NewRecorder()
	r.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rr.Code)
	}
}

func TestStatusListsTrackedScripts(t *testing.T) {
	trk := tracker.New()
	now := time.Unix(1700000100, 0)
	trk.Diff(now, []tracker.Observation{
		{PID: 100, Path: "/jobs/crawler.py", CreateTime: now},
	})

	r := NewRouter(trk, probe.New(), "/watch")
	rr := httptest.NewRecorder()
	r.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/watch/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status code %d", rr.Code)
	}

	var resp statusResp
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Scripts) != 1 || resp.Scripts[0].PID != 100 || resp.Scripts[0].Path != "/jobs/crawler.py" {
		t.Fatalf("unexpected scripts: %+v", resp.Scripts)
	}
	if resp.LocalIP == "" {
		t.Fatal("local_ip missing")
	}
}

func TestMetricsRoute(t *testing.T) {
	r := NewRouter(tracker.New(), probe.New(), "")
	rr := httptest.NewRecorder()
	r.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rr.Code)
	}
}
