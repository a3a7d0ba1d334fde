// Package status reconciles the sidecar's live state. Queries never
// fail: every failure mode degrades to the default status so callers
// and UI code never deal with partial data.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/davbridge/davbridge/internal/events"
	"github.com/davbridge/davbridge/internal/metrics"
)

// QueryTimeout bounds a single status query.
const QueryTimeout = 5 * time.Second

// Sidecar is the slice of the supervisor the reconciler needs: binary
// resolution and the locally tracked PID for backfill.
type Sidecar interface {
	Binary() (string, error)
	PID() (int, bool)
}

// Reconciler queries the sidecar's status under a hard timeout.
type Reconciler struct {
	sc      Sidecar
	bus     *events.Bus
	timeout time.Duration
}

func NewReconciler(sc Sidecar, bus *events.Bus) *Reconciler {
	if bus == nil {
		bus = events.NewBus()
	}
	return &Reconciler{sc: sc, bus: bus, timeout: QueryTimeout}
}

// Query returns the sidecar's current status, or the default status on
// any failure. An optimistic default is emitted immediately so
// observers have a non-blocking initial value; the reconciled status
// is emitted once known.
func (r *Reconciler) Query(ctx context.Context) StatusResponse {
	start := time.Now()
	r.bus.Emit(events.StatusUpdate, Default())

	st, ok := r.query(ctx)
	metrics.ObserveStatusQuery(time.Since(start).Seconds())
	if !ok {
		metrics.IncStatusQuery("degraded")
		return st
	}
	metrics.IncStatusQuery("ok")
	r.bus.Emit(events.StatusUpdate, st)
	return st
}

func (r *Reconciler) query(ctx context.Context) (StatusResponse, bool) {
	bin, err := r.sc.Binary()
	if err != nil {
		slog.Warn("sidecar not available", "error", err)
		return Default(), false
	}

	qctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Combined output: the sidecar's line-based logging is not
	// guaranteed to keep stdout JSON-only.
	cmd := exec.CommandContext(qctx, bin, "status", "--json")
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(qctx.Err(), context.DeadlineExceeded) {
			slog.Warn("sidecar status query timed out", "timeout", r.timeout)
		} else {
			slog.Warn("sidecar status query failed", "error", err, "stderr", strings.TrimSpace(string(out)))
		}
		return Default(), false
	}

	payload, found := ExtractJSON(string(out))
	if !found {
		slog.Warn("no JSON in sidecar status output", "output", strings.TrimSpace(string(out)))
		return Default(), false
	}

	var st StatusResponse
	if err := json.Unmarshal([]byte(payload), &st); err != nil {
		slog.Warn("failed to parse sidecar status JSON", "error", err)
		return Default(), false
	}

	// The sidecar may know it is running without expressing its own
	// PID; backfill from the locally tracked one.
	if st.Server.PID == nil {
		if pid, ok := r.sc.PID(); ok {
			st.Server.PID = &pid
		}
	}
	return st, true
}

// ExtractJSON returns the JSON document embedded in mixed sidecar
// output: everything from the first '{' onward. This permissiveness is
// a documented contract with the sidecar, whose status output may be
// preceded by plain-text log lines.
func ExtractJSON(out string) (string, bool) {
	idx := strings.IndexByte(out, '{')
	if idx < 0 {
		return "", false
	}
	return out[idx:], true
}
