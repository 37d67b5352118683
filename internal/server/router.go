package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/scriptwatch/internal/metrics"
	"github.com/loykin/scriptwatch/internal/netutil"
	"github.com/loykin/scriptwatch/internal/probe"
	"github.com/loykin/scriptwatch/internal/tracker"
)

// Router exposes read-only observability endpoints for the monitor.
// Endpoints:
//
//	GET {basePath}/healthz   liveness probe
//	GET {basePath}/status    currently tracked scripts plus a resource snapshot
//	GET {basePath}/metrics   Prometheus metrics
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	trk      *tracker.Tracker
	prb      *probe.Probe
	basePath string
}

func NewRouter(trk *tracker.Tracker, prb *probe.Probe, basePath string) *Router {
	return &Router{trk: trk, prb: prb, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server or mux.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/status", r.handleStatus)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr serving this router.
func NewServer(addr, basePath string, trk *tracker.Tracker, prb *probe.Probe) *http.Server {
	r := NewRouter(trk, prb, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

type scriptResp struct {
	PID       int32     `json:"pid"`
	Path      string    `json:"path"`
	StartedAt time.Time `json:"started_at"`
}

type statusResp struct {
	LocalIP   string         `json:"local_ip"`
	Scripts   []scriptResp   `json:"scripts"`
	Resources probe.Snapshot `json:"resources"`
}

func (r *Router) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (r *Router) handleStatus(c *gin.Context) {
	running := r.trk.Running()
	scripts := make([]scriptResp, 0, len(running))
	for _, s := range running {
		scripts = append(scripts, scriptResp{PID: s.PID, Path: s.Path, StartedAt: s.StartedAt})
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	c.JSON(http.StatusOK, statusResp{
		LocalIP:   netutil.LocalIP(ctx),
		Scripts:   scripts,
		Resources: r.prb.Collect(ctx),
	})
}

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimRight(bp, "/")
}
