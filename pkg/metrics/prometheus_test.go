package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordEvaluation("ok")
	r.RecordEvaluation("ok")
	r.RecordVeto("1x2")
	r.RecordChaos("HIGH", 5.6)
	r.RecordMarket("1x2", "NO-BET")

	if got := testutil.ToFloat64(r.evaluations.WithLabelValues("ok")); got != 2 {
		t.Fatalf("evaluations = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.vetoes.WithLabelValues("1x2")); got != 1 {
		t.Fatalf("vetoes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.chaos.WithLabelValues("HIGH")); got != 1 {
		t.Fatalf("chaos = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(r.divergence); n != 1 {
		t.Fatalf("divergence series = %d", n)
	}
}
