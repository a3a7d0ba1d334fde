package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second Register: %v", err)
	}
}

func TestHelpersRecordAfterRegister(t *testing.T) {
	_ = Register(prometheus.NewRegistry())

	before := testutil.ToFloat64(sidecarStarts)
	IncStart()
	if got := testutil.ToFloat64(sidecarStarts); got != before+1 {
		t.Fatalf("starts counter = %v want %v", got, before+1)
	}

	mb := testutil.ToFloat64(mountOps.WithLabelValues("mount", "timeout"))
	IncMountOp("mount", "timeout")
	if got := testutil.ToFloat64(mountOps.WithLabelValues("mount", "timeout")); got != mb+1 {
		t.Fatalf("mount ops counter = %v", got)
	}

	sb := testutil.ToFloat64(statusQueries.WithLabelValues("degraded"))
	IncStatusQuery("degraded")
	if got := testutil.ToFloat64(statusQueries.WithLabelValues("degraded")); got != sb+1 {
		t.Fatalf("status queries counter = %v", got)
	}
}
