// Package davbridge supervises an external WebDAV bridge worker
// ("sidecar") process: lifecycle control, status reconciliation and
// OS-level mounting of the endpoint it serves. This file is the public
// embedding surface; the implementation lives under internal/.
package davbridge

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/davbridge/davbridge/internal/config"
	"github.com/davbridge/davbridge/internal/events"
	"github.com/davbridge/davbridge/internal/history"
	"github.com/davbridge/davbridge/internal/logger"
	"github.com/davbridge/davbridge/internal/metrics"
	"github.com/davbridge/davbridge/internal/mount"
	"github.com/davbridge/davbridge/internal/server"
	"github.com/davbridge/davbridge/internal/sidecar"
	"github.com/davbridge/davbridge/internal/status"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = config.Config

type LogConfig = logger.Config

type StatusResponse = status.StatusResponse

type Event = events.Event

type HistorySink = history.Sink

// App wires the supervisor, status reconciler, mount orchestrator and
// optional event history into one embeddable unit. It satisfies the
// control API's Core interface.
type App struct {
	cfg      config.Config
	bus      *events.Bus
	sup      *sidecar.Supervisor
	rec      *status.Reconciler
	orch     *mount.Orchestrator
	recorder *history.Recorder
	sink     history.Sink
	store    server.EventStore
}

// New builds an App from cfg. A non-empty HistoryDSN opens the event
// sink eagerly so misconfiguration surfaces at startup.
func New(cfg config.Config) (*App, error) {
	if cfg.Port == 0 {
		cfg.Port = config.DefaultPort
	}
	if err := config.ValidatePort(cfg.Port); err != nil {
		return nil, err
	}

	bus := events.NewBus()
	bin := cfg.SidecarPath
	if bin == "" {
		bin = sidecar.DefaultBinary
	}
	sup := sidecar.New(bin, bus)
	rec := status.NewReconciler(sup, bus)
	orch := mount.NewOrchestrator(mount.GioCLI{}, rec, bus)

	a := &App{cfg: cfg, bus: bus, sup: sup, rec: rec, orch: orch}

	if cfg.HistoryDSN != "" {
		sink, err := history.NewSinkFromDSN(cfg.HistoryDSN)
		if err != nil {
			return nil, err
		}
		a.sink = sink
		a.recorder = history.NewRecorder(bus, sink)
		if s, ok := sink.(*history.SQLSink); ok {
			a.store = s
		}
	}
	return a, nil
}

// LoadConfig reads a davbridge.toml from path, or from the standard
// locations when path is empty.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

// SetupLogging installs the process-wide logger per c and returns a
// closer for the rotating file writer.
func SetupLogging(c LogConfig) func() { return logger.Setup(c) }

// Bus exposes the event stream for subscribers.
func (a *App) Bus() *events.Bus { return a.bus }

// Config returns the effective configuration.
func (a *App) Config() Config { return a.cfg }

// StartSidecar launches the worker on port, or on the configured port
// when port is zero, and returns its PID.
func (a *App) StartSidecar(ctx context.Context, port int) (int, error) {
	if port == 0 {
		port = a.cfg.Port
	}
	return a.sup.Start(ctx, port)
}

// StopSidecar asks the tracked worker to shut down.
func (a *App) StopSidecar(ctx context.Context) error { return a.sup.Stop(ctx) }

// RestartSidecar stops any tracked worker and starts a fresh one on
// port (configured port when zero).
func (a *App) RestartSidecar(ctx context.Context, port int) error {
	if port == 0 {
		port = a.cfg.Port
	}
	return a.sup.RestartWithPort(ctx, port)
}

// Status queries the worker and returns its reconciled state. Never
// fails; degraded results fall back to the stopped default.
func (a *App) Status(ctx context.Context) StatusResponse { return a.rec.Query(ctx) }

// Mount attaches the worker's WebDAV endpoint to the local filesystem.
func (a *App) Mount(ctx context.Context) error { return a.orch.Mount(ctx) }

// Unmount detaches the endpoint.
func (a *App) Unmount(ctx context.Context) error { return a.orch.Unmount(ctx) }

// CheckMount reports whether the endpoint is currently mounted and
// under which display name.
func (a *App) CheckMount(ctx context.Context) (string, bool, error) {
	return a.orch.CheckMount(ctx)
}

// Login authenticates the worker with the remote service.
func (a *App) Login(ctx context.Context, email string) error { return a.sup.Login(ctx, email) }

// Logout stops the worker if running and clears its credentials.
func (a *App) Logout(ctx context.Context) error { return a.sup.Logout(ctx) }

// PurgeCache clears the worker's local content cache.
func (a *App) PurgeCache(ctx context.Context) error { return a.sup.PurgeCache(ctx) }

// OpenInFiles reveals path (or a URI) in the desktop file manager.
// With an empty path it opens the sidecar's served endpoint instead:
// the URL the worker reports, or the canonical dav:// address.
func (a *App) OpenInFiles(ctx context.Context, path string) error {
	if path == "" {
		st := a.rec.Query(ctx)
		if st.Server.URL != nil && *st.Server.URL != "" {
			path = *st.Server.URL
		} else {
			path = mount.EndpointURI(a.cfg.Port)
		}
	}
	return mount.OpenURI(ctx, path)
}

// NewHTTPServer starts the control API on addr and returns the server
// for shutdown.
func (a *App) NewHTTPServer(addr, basePath string) *http.Server {
	return server.NewServer(addr, basePath, a, a.store)
}

// Close releases the history recorder and its sink. The sidecar
// itself is left running; call StopSidecar first for a full shutdown.
func (a *App) Close() {
	if a.recorder != nil {
		a.recorder.Close()
	}
	if a.sink != nil {
		_ = a.sink.Close()
	}
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
