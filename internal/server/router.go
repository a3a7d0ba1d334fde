// Package server exposes the supervisor's command surface as a local
// HTTP API for UI shells: sidecar lifecycle, status, mount control,
// an SSE event stream and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/davbridge/davbridge/internal/cmderr"
	"github.com/davbridge/davbridge/internal/events"
	"github.com/davbridge/davbridge/internal/history"
	"github.com/davbridge/davbridge/internal/metrics"
	"github.com/davbridge/davbridge/internal/status"
)

// Core is the slice of the application the router drives.
type Core interface {
	StartSidecar(ctx context.Context, port int) (int, error)
	StopSidecar(ctx context.Context) error
	RestartSidecar(ctx context.Context, port int) error
	Status(ctx context.Context) status.StatusResponse
	Mount(ctx context.Context) error
	Unmount(ctx context.Context) error
	CheckMount(ctx context.Context) (string, bool, error)
	Login(ctx context.Context, email string) error
	Logout(ctx context.Context) error
	PurgeCache(ctx context.Context) error
	OpenInFiles(ctx context.Context, path string) error
	Bus() *events.Bus
}

// EventStore is the optional read side of the history sink.
type EventStore interface {
	Recent(ctx context.Context, limit int) ([]history.StoredEvent, error)
}

// Router provides embeddable HTTP handlers for the davbridge core.
type Router struct {
	core     Core
	store    EventStore // may be nil
	basePath string
}

// NewRouter constructs a Router with a configurable basePath. store
// may be nil when no readable history sink is configured.
func NewRouter(core Core, store EventStore, basePath string) *Router {
	return &Router{core: core, store: store, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler that can be mounted in any mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/sidecar/start", r.handleStart)
	group.POST("/sidecar/stop", r.handleStop)
	group.POST("/sidecar/restart", r.handleRestart)
	group.GET("/status", r.handleStatus)
	group.POST("/mount", r.handleMount)
	group.DELETE("/mount", r.handleUnmount)
	group.GET("/mount", r.handleCheckMount)
	group.POST("/auth/login", r.handleLogin)
	group.POST("/auth/logout", r.handleLogout)
	group.POST("/cache/purge", r.handlePurgeCache)
	group.POST("/open", r.handleOpen)
	group.GET("/events", r.handleEvents)
	group.GET("/history", r.handleHistory)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, core Core, store EventStore) *http.Server {
	r := NewRouter(core, store, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type portReq struct {
	Port int `json:"port"`
}

func (r *Router) handleStart(c *gin.Context) {
	var req portReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error(), Code: string(cmderr.CodeUnknown)})
			return
		}
	}
	pid, err := r.core.StartSidecar(c.Request.Context(), req.Port)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pid": pid})
}

func (r *Router) handleStop(c *gin.Context) {
	if err := r.core.StopSidecar(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (r *Router) handleRestart(c *gin.Context) {
	var req portReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error(), Code: string(cmderr.CodeUnknown)})
		return
	}
	if err := r.core.RestartSidecar(c.Request.Context(), req.Port); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.core.Status(c.Request.Context()))
}

func (r *Router) handleMount(c *gin.Context) {
	if err := r.core.Mount(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (r *Router) handleUnmount(c *gin.Context) {
	if err := r.core.Unmount(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (r *Router) handleCheckMount(c *gin.Context) {
	name, mounted, err := r.core.CheckMount(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mounted": mounted, "name": name})
}

func (r *Router) handleLogin(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error(), Code: string(cmderr.CodeUnknown)})
		return
	}
	if err := r.core.Login(c.Request.Context(), req.Email); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (r *Router) handleLogout(c *gin.Context) {
	if err := r.core.Logout(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (r *Router) handlePurgeCache(c *gin.Context) {
	if err := r.core.PurgeCache(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

func (r *Router) handleOpen(c *gin.Context) {
	var req struct {
		Path string `json:"path"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error(), Code: string(cmderr.CodeUnknown)})
			return
		}
	}
	if err := r.core.OpenInFiles(c.Request.Context(), req.Path); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

// handleEvents streams bus events as server-sent events until the
// client disconnects.
func (r *Router) handleEvents(c *gin.Context) {
	ch, cancel := r.core.Bus().Subscribe(64)
	defer cancel()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case e, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(e.Name, e.Payload)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (r *Router) handleHistory(c *gin.Context) {
	if r.store == nil {
		c.JSON(http.StatusNotFound, errorResp{Error: "no readable history sink configured", Code: string(cmderr.CodeUnknown)})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	rows, err := r.store.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error(), Code: string(cmderr.CodeIoError)})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// writeError maps a typed error to an HTTP status while preserving
// its machine code for programmatic clients.
func writeError(c *gin.Context, err error) {
	code := cmderr.CodeOf(err)
	st := http.StatusInternalServerError
	switch code {
	case cmderr.CodeInvalidPort, cmderr.CodeInvalidEmail:
		st = http.StatusBadRequest
	case cmderr.CodeSidecarAlreadyRunning, cmderr.CodeSidecarNotRunning, cmderr.CodeServerNotRunning, cmderr.CodePortInUse:
		st = http.StatusConflict
	case cmderr.CodeMountTimeout, cmderr.CodeServerInitTimeout:
		st = http.StatusGatewayTimeout
	case cmderr.CodeAuthFailed:
		st = http.StatusUnauthorized
	}
	var terr *cmderr.Error
	if !errors.As(err, &terr) {
		c.JSON(st, errorResp{Error: err.Error(), Code: string(cmderr.CodeUnknown)})
		return
	}
	c.JSON(st, errorResp{Error: terr.Error(), Code: string(terr.Code)})
}
