package mount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/davbridge/davbridge/internal/cmderr"
	"github.com/davbridge/davbridge/internal/events"
	"github.com/davbridge/davbridge/internal/metrics"
	"github.com/davbridge/davbridge/internal/status"
)

// Timeout layering: the backend call gets its own watchdog so a hung
// gvfs callback cannot wedge the dispatch goroutine, and the caller
// waits under a longer outer bound guarding against the goroutine
// itself never scheduling. Each expiry is reported distinctly.
const (
	CallbackTimeout  = 5 * time.Second
	OperationTimeout = 20 * time.Second
)

// StatusSource yields the sidecar status used to derive the endpoint.
type StatusSource interface {
	Query(ctx context.Context) status.StatusResponse
}

// Orchestrator coordinates OS mount operations for the sidecar's
// endpoint. Safe for concurrent use; operations share no state beyond
// the backend.
type Orchestrator struct {
	backend Backend
	status  StatusSource
	bus     *events.Bus

	callbackTimeout  time.Duration
	operationTimeout time.Duration
}

func NewOrchestrator(backend Backend, src StatusSource, bus *events.Bus) *Orchestrator {
	if bus == nil {
		bus = events.NewBus()
	}
	return &Orchestrator{
		backend:          backend,
		status:           src,
		bus:              bus,
		callbackTimeout:  CallbackTimeout,
		operationTimeout: OperationTimeout,
	}
}

// EndpointURI is the dav:// identifier used to address the sidecar's
// served filesystem, distinct from the http(s):// URL it reports for
// status display.
func EndpointURI(port int) string {
	return fmt.Sprintf("dav://localhost:%d", port)
}

// Mount mounts the sidecar's endpoint. The worker must report a
// running server. There is no caller cancellation once dispatched.
func (o *Orchestrator) Mount(ctx context.Context) error {
	st := o.status.Query(ctx)
	if !st.Server.Running {
		return cmderr.New(cmderr.CodeServerNotRunning, "sidecar server is not running")
	}
	uri := EndpointURI(st.Config.Webdav.Port)

	o.bus.Emit(events.MountStatus, "mounting "+uri)

	resultCh := make(chan error, 1)
	go func() {
		cctx, cancel := context.WithTimeout(context.Background(), o.callbackTimeout)
		defer cancel()

		err := o.backend.Mount(cctx, uri)
		switch {
		case err == nil:
		case isAlreadyMounted(err):
			err = nil
		case errors.Is(cctx.Err(), context.DeadlineExceeded):
			err = cmderr.Newf(cmderr.CodeMountTimeout, "no mount completion within %s", o.callbackTimeout)
		default:
			err = cmderr.Wrap(cmderr.CodeGioError, err)
		}
		resultCh <- err
	}()

	select {
	case err := <-resultCh:
		if err != nil {
			o.bus.Emit(events.MountStatus, "mount failed: "+err.Error())
			metrics.IncMountOp("mount", outcomeOf(err))
			return err
		}
		o.bus.Emit(events.MountStatus, "mounted "+uri)
		metrics.IncMountOp("mount", "ok")
		slog.Info("mounted", "uri", uri)
		return nil
	case <-time.After(o.operationTimeout):
		err := cmderr.Newf(cmderr.CodeMountTimeout, "mount of %s did not complete within %s", uri, o.operationTimeout)
		o.bus.Emit(events.MountStatus, "mount failed: "+err.Error())
		metrics.IncMountOp("mount", "timeout")
		return err
	}
}

// Unmount finds the endpoint in the live mount table and unmounts it.
// A missing mount and a mount gvfs refuses to release are distinct
// errors, not silently merged.
func (o *Orchestrator) Unmount(ctx context.Context) error {
	st := o.status.Query(ctx)
	uri := EndpointURI(st.Config.Webdav.Port)

	mounts, err := o.backend.List(ctx)
	if err != nil {
		metrics.IncMountOp("unmount", "failed")
		return cmderr.Wrap(cmderr.CodeGioError, err)
	}

	rec, res := Locate(mounts, uri)
	switch res {
	case NotFound:
		o.bus.Emit(events.MountStatus, "no mount found for "+uri)
		metrics.IncMountOp("unmount", "failed")
		return cmderr.Newf(cmderr.CodeGioError, "no mount found for %s", uri)
	case NotUnmountable:
		metrics.IncMountOp("unmount", "failed")
		return cmderr.Newf(cmderr.CodeGioError, "%s cannot be unmounted", rec.URI)
	}

	o.bus.Emit(events.MountStatus, "unmounting "+rec.URI)
	if err := o.backend.Unmount(ctx, rec.URI); err != nil {
		o.bus.Emit(events.MountStatus, "unmount failed: "+err.Error())
		metrics.IncMountOp("unmount", "failed")
		return cmderr.Wrap(cmderr.CodeGioError, err)
	}
	o.bus.Emit(events.MountStatus, "unmounted "+rec.URI)
	metrics.IncMountOp("unmount", "ok")
	slog.Info("unmounted", "uri", rec.URI)
	return nil
}

// CheckMount reports whether the endpoint is currently mounted and
// returns an identifying string (mount name, or URI when unnamed).
func (o *Orchestrator) CheckMount(ctx context.Context) (string, bool, error) {
	st := o.status.Query(ctx)
	uri := EndpointURI(st.Config.Webdav.Port)

	mounts, err := o.backend.List(ctx)
	if err != nil {
		return "", false, cmderr.Wrap(cmderr.CodeGioError, err)
	}

	rec, res := Locate(mounts, uri)
	if res == NotFound {
		o.bus.Emit(events.MountStatus, "no matching mount found")
		return "", false, nil
	}
	name := rec.Name
	if name == "" {
		name = rec.URI
	}
	o.bus.Emit(events.MountStatus, "mounted as "+name)
	return name, true, nil
}

// isAlreadyMounted detects the gvfs "already mounted" failure, which
// is success for our purposes. Both historical spellings occur.
func isAlreadyMounted(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already mounted")
}

func outcomeOf(err error) string {
	if cmderr.CodeOf(err) == cmderr.CodeMountTimeout {
		return "timeout"
	}
	return "failed"
}
