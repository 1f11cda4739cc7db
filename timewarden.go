package timewarden

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/timewarden/internal/backend"
	cfg "github.com/loykin/timewarden/internal/config"
	"github.com/loykin/timewarden/internal/gateway"
	"github.com/loykin/timewarden/internal/metrics"
	"github.com/loykin/timewarden/internal/poller"
	"github.com/loykin/timewarden/internal/schedule"
	"github.com/loykin/timewarden/internal/schedules"
	iapi "github.com/loykin/timewarden/internal/server"
	"github.com/loykin/timewarden/internal/store"
	"github.com/loykin/timewarden/internal/store/factory"
	"github.com/loykin/timewarden/internal/usage"
	"github.com/loykin/timewarden/pkg/client"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Schedule = schedule.Schedule

type Weekday = schedule.Weekday

type Session = usage.Session

type AppTotal = usage.AppTotal

type StatusSnapshot = usage.StatusSnapshot

type UsageSnapshot = usage.UsageSnapshot

type Config = cfg.Config

// Gateway is the full set of backend calls; *Client and *Backend both
// implement it.
type Gateway = gateway.Gateway

type RemoteCallError = gateway.RemoteCallError

type Client = client.Client

type ClientConfig = client.Config

// Poller facade

type Poller = poller.Poller

type PollerOption = poller.Option

type View = poller.View

const (
	ViewStatus    = poller.ViewStatus
	ViewDashboard = poller.ViewDashboard
)

// ScheduleStore facade

type ScheduleStore = schedules.Store

type ScheduleStoreOption = schedules.Option

// Backend facade

type Backend = backend.Service

type Store = store.Store

type Probe = backend.Probe

func NewDraft(name string) Schedule { return schedule.NewDraft(name) }

func NewClient(c ClientConfig) *Client { return client.New(c) }

func NewPoller(src gateway.StatusSource, opts ...PollerOption) *Poller {
	return poller.New(src, opts...)
}

func NewScheduleStore(b gateway.ScheduleBackend, opts ...ScheduleStoreOption) *ScheduleStore {
	return schedules.New(b, opts...)
}

func LoadConfig(path string) (Config, error) { return cfg.Load(path) }

// OpenStore opens the sqlite or postgres store named by dsn. Call
// EnsureSchema before first use.
func OpenStore(dsn string) (Store, error) { return factory.NewFromDSN(dsn) }

// NewBackend serves the gateway calls from st; a nil probe reports no
// foreground app and zero idle time.
func NewBackend(st Store, probe Probe) *Backend { return backend.New(st, probe) }

// NewHandler exposes b over HTTP under basePath.
func NewHandler(basePath string, b *Backend) http.Handler {
	return iapi.NewRouter(b, basePath).Handler()
}

// NewHTTPServer starts an HTTP server exposing b under basePath.
func NewHTTPServer(addr, basePath string, b *Backend) (*http.Server, error) {
	return iapi.NewServer(addr, iapi.NewRouter(b, basePath))
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
