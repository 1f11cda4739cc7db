package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/loykin/timewarden/internal/backend"
	"github.com/loykin/timewarden/internal/gateway"
	"github.com/loykin/timewarden/internal/metrics"
	"github.com/loykin/timewarden/internal/usage"
	"github.com/loykin/timewarden/pkg/client"
)

// Router exposes the backend call table over HTTP.
// Endpoints:
//
//	POST {basePath}/invoke/:call     body: argument object, reply {"result": ...}
//	GET  {basePath}/health           reply {"ok": true}
//	POST {basePath}/debug/probe      body: {"app": "...", "idle_seconds": N}
//	POST {basePath}/debug/sessions   body: session JSON, reply {"result": id}
//	GET  {basePath}/metrics          only when metrics are enabled
//
// Failures reply {"error": "..."}: unknown call 404, bad arguments 400,
// missing schedule 404, anything else 500.
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	svc      *backend.Service
	basePath string
	logger   *slog.Logger
	metrics  bool
	calls    map[string]invokeFunc
}

type invokeFunc func(ctx context.Context, args json.RawMessage) (any, error)

type RouterOption func(*Router)

func WithLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics mounts the Prometheus handler under {basePath}/metrics.
func WithMetrics() RouterOption {
	return func(r *Router) { r.metrics = true }
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(svc *backend.Service, basePath string, opts ...RouterOption) *Router {
	r := &Router{svc: svc, basePath: normalizeBase(basePath), logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	r.logger = r.logger.With("component", "server")
	r.calls = r.callTable()
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery(), requestID())
	group := g.Group(r.basePath)
	group.POST("/invoke/:call", r.handleInvoke)
	group.GET("/health", r.handleHealth)
	group.POST("/debug/probe", r.handleDebugProbe)
	group.POST("/debug/sessions", r.handleDebugSessions)
	if r.metrics {
		group.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Use Shutdown or Close on the returned server to stop it.
func NewServer(addr string, r *Router) (*http.Server, error) {
	server := newHTTPServer(addr, r)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("server stopped", "addr", addr, "error", err)
		}
	}()
	return server, nil
}

// NewTLSServer is NewServer over TLS; tlsCfg must carry the certificate.
func NewTLSServer(addr string, tlsCfg *tls.Config, r *Router) (*http.Server, error) {
	if tlsCfg == nil || (len(tlsCfg.Certificates) == 0 && tlsCfg.GetCertificate == nil) {
		return nil, errors.New("TLS config without certificate")
	}
	server := newHTTPServer(addr, r)
	server.TLSConfig = tlsCfg
	go func() {
		if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("server stopped", "addr", addr, "error", err)
		}
	}()
	return server, nil
}

func newHTTPServer(addr string, r *Router) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// requestID echoes the caller's X-Request-ID, minting one when absent.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(client.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(client.RequestIDHeader, id)
		c.Next()
	}
}

func (r *Router) callTable() map[string]invokeFunc {
	s := r.svc
	return map[string]invokeFunc{
		gateway.CallGetCurrentApp: func(ctx context.Context, _ json.RawMessage) (any, error) {
			app, ok, err := s.CurrentApp(ctx)
			if err != nil || !ok {
				return nil, err
			}
			return app, nil
		},
		gateway.CallGetIdleSeconds: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return s.IdleSeconds(ctx)
		},
		gateway.CallGetTodaySessions: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return s.TodaySessions(ctx)
		},
		gateway.CallGetAppTotalsToday: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return s.AppTotalsToday(ctx)
		},
		gateway.CallGetAllSchedules: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return s.AllSchedules(ctx)
		},
		gateway.CallCreateSchedule: func(ctx context.Context, raw json.RawMessage) (any, error) {
			a, err := decode[client.ScheduleArgs](raw)
			if err != nil {
				return nil, err
			}
			return nil, s.CreateSchedule(ctx, a.Schedule)
		},
		gateway.CallUpdateSchedule: func(ctx context.Context, raw json.RawMessage) (any, error) {
			a, err := decode[client.ScheduleArgs](raw)
			if err != nil {
				return nil, err
			}
			return nil, s.UpdateSchedule(ctx, a.Schedule)
		},
		gateway.CallDeleteSchedule: func(ctx context.Context, raw json.RawMessage) (any, error) {
			a, err := decode[client.IDArgs](raw)
			if err != nil {
				return nil, err
			}
			if a.ID <= 0 {
				return nil, argError{errors.New("id required")}
			}
			return nil, s.DeleteSchedule(ctx, a.ID)
		},
		gateway.CallToggleSchedule: func(ctx context.Context, raw json.RawMessage) (any, error) {
			a, err := decode[client.ToggleArgs](raw)
			if err != nil {
				return nil, err
			}
			if a.ID <= 0 {
				return nil, argError{errors.New("id required")}
			}
			return nil, s.ToggleSchedule(ctx, a.ID, a.Enabled)
		},
	}
}

func (r *Router) handleInvoke(c *gin.Context) {
	call := c.Param("call")
	fn, ok := r.calls[call]
	if !ok {
		metrics.IncServerCall("unknown", strconv.Itoa(http.StatusNotFound))
		writeError(c, http.StatusNotFound, fmt.Errorf("unknown call %q", call))
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		r.reply(c, call, nil, argError{err})
		return
	}
	res, err := fn(c.Request.Context(), raw)
	r.reply(c, call, res, err)
}

func (r *Router) reply(c *gin.Context, call string, res any, err error) {
	code := statusOf(err)
	metrics.IncServerCall(call, strconv.Itoa(code))
	if err != nil {
		log := r.logger.Warn
		if code == http.StatusInternalServerError {
			log = r.logger.Error
		}
		log("call failed", "call", call, "status", code, "request_id", c.GetString("request_id"), "error", err)
		writeError(c, code, err)
		return
	}
	writeJSON(c, http.StatusOK, resultResp{Result: res})
}

func (r *Router) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

type probeReq struct {
	App         string `json:"app"`
	IdleSeconds uint64 `json:"idle_seconds"`
}

func (r *Router) handleDebugProbe(c *gin.Context) {
	mp, ok := r.svc.Probe().(*backend.ManualProbe)
	if !ok {
		writeError(c, http.StatusConflict, errors.New("probe is not settable"))
		return
	}
	var req probeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, argError{err})
		return
	}
	mp.Set(req.App, req.IdleSeconds)
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleDebugSessions(c *gin.Context) {
	var sess usage.Session
	if err := c.ShouldBindJSON(&sess); err != nil {
		writeError(c, http.StatusBadRequest, argError{err})
		return
	}
	id, err := r.svc.RecordSession(c.Request.Context(), sess)
	if err != nil {
		writeError(c, statusOf(err), err)
		return
	}
	writeJSON(c, http.StatusOK, resultResp{Result: id})
}
