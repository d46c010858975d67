package prometheus

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	sessioncore "github.com/KPpay-project/sessioncore"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot sessioncore.MetricsSnapshot
}

func (f *fakeSource) set(id sessioncore.MetricID, v uint64) {
	f.mu.Lock()
	f.snapshot.Counters[id] = v
	f.mu.Unlock()
}

func (f *fakeSource) MetricsSnapshot() sessioncore.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshot
}

func TestRenderIncludesAllCounters(t *testing.T) {
	src := &fakeSource{}
	src.set(sessioncore.MetricLoginSuccess, 5)
	src.set(sessioncore.MetricGuardRedirectLogin, 2)

	out := NewPrometheusExporterFromSource(src).Render()

	if !strings.Contains(out, "sessioncore_login_success_total 5") {
		t.Fatalf("missing login success counter:\n%s", out)
	}
	if !strings.Contains(out, "sessioncore_guard_redirect_login_total 2") {
		t.Fatalf("missing guard redirect counter:\n%s", out)
	}
	for _, id := range sessioncore.MetricIDs() {
		if !strings.Contains(out, "sessioncore_"+id.String()+"_total") {
			t.Fatalf("counter %s absent from exposition", id)
		}
	}
}

func TestHandlerServesExposition(t *testing.T) {
	src := &fakeSource{}
	src.set(sessioncore.MetricRefreshSuccess, 1)

	rec := httptest.NewRecorder()
	NewPrometheusExporterFromSource(src).Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "sessioncore_refresh_success_total 1") {
		t.Fatalf("body missing counter:\n%s", rec.Body.String())
	}
}

func TestNilExporterRendersEmpty(t *testing.T) {
	var p *PrometheusExporter
	if out := p.Render(); out != "" {
		t.Fatalf("nil exporter rendered %q", out)
	}
}
