package observability

import (
	"strings"
	"testing"
	"time"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	t.Setenv("METRICS_ENABLED", "true")
	m := Init(nil)
	if m == nil {
		t.Fatal("Init returned nil with metrics enabled")
	}
	return m
}

func TestInitDisabledByDefault(t *testing.T) {
	t.Setenv("METRICS_ENABLED", "")
	if m := Init(nil); m != nil {
		t.Fatal("metrics should be nil when METRICS_ENABLED is unset")
	}
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/captures", "200", time.Millisecond)
	m.ObserveEmbedding("RETRIEVAL_QUERY", "200", time.Millisecond)
	m.ObserveVectorOp("search", "ok", time.Millisecond)
	m.ObserveRetrieval(3, 2)
	if err := m.WritePrometheus(&strings.Builder{}); err != nil {
		t.Fatalf("WritePrometheus on nil metrics: %v", err)
	}
}

func TestExpositionFormat(t *testing.T) {
	m := newTestMetrics(t)
	m.ObserveAPI("POST", "/api/brain/search", "200", 120*time.Millisecond)
	m.ObserveAPI("POST", "/api/brain/search", "500", 50*time.Millisecond)
	m.ObserveVectorOp("upsert", "ok", 30*time.Millisecond)
	m.AddVectorPoints("upsert", 4)
	m.ObserveRetrieval(5, 2)

	var b strings.Builder
	if err := m.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := b.String()

	for _, want := range []string{
		`dpn_api_requests_total{method="POST",route="/api/brain/search",status="200"} 1`,
		"# TYPE dpn_api_request_duration_seconds histogram",
		`dpn_vector_ops_total{op="upsert",status="ok"} 1`,
		`dpn_vector_points_total{op="upsert"} 4`,
		"dpn_retrieval_chunks_returned_count 1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("exposition missing %q\n%s", want, out)
		}
	}
	if m.apiReqError.Value() != 1 {
		t.Fatalf("apiReqError: want=1 got=%f", m.apiReqError.Value())
	}
}

func TestHistogramBucketCounts(t *testing.T) {
	h := NewHistogramVec("test_seconds", "test", []string{"status"}, []float64{0.1, 1})
	h.Observe(0.05, "ok")
	h.Observe(0.5, "ok")
	h.Observe(5, "ok")

	var b strings.Builder
	if err := h.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := b.String()
	for _, want := range []string{
		`test_seconds_bucket{status="ok",le="0.1"} 1`,
		`test_seconds_bucket{status="ok",le="1"} 2`,
		`test_seconds_bucket{status="ok",le="+Inf"} 3`,
		`test_seconds_count{status="ok"} 3`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("histogram missing %q\n%s", want, out)
		}
	}
}
