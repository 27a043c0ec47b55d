package prometheus

import (
	"net/http/httptest"
	"strings"
	"testing"

	authkit "github.com/sorguskor/authkit"
)

type fakeSource struct {
	metrics *authkit.Metrics
	dropped uint64
}

func (f *fakeSource) Metrics() *authkit.Metrics { return f.metrics }
func (f *fakeSource) AuditDropped() uint64      { return f.dropped }

func TestRender(t *testing.T) {
	m := authkit.NewMetrics(true)
	m.Inc(authkit.MetricLoginSuccess)
	m.Inc(authkit.MetricLoginSuccess)
	m.Inc(authkit.MetricRefreshReuseDetected)

	exp := NewExporterFromSource(&fakeSource{metrics: m, dropped: 3})
	out := exp.Render()

	for _, want := range []string{
		"authkit_login_success_total 2",
		"authkit_refresh_reuse_detected_total 1",
		"authkit_login_failure_total 0",
		"authkit_audit_dropped_total 3",
		"# TYPE authkit_login_success_total counter",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendered output missing %q:\n%s", want, out)
		}
	}
}

func TestHandlerContentType(t *testing.T) {
	exp := NewExporterFromSource(&fakeSource{metrics: authkit.NewMetrics(true)})

	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	ct := rec.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestNilExporter(t *testing.T) {
	var exp *Exporter
	if out := exp.Render(); out != "" {
		t.Fatalf("nil exporter must render nothing, got %q", out)
	}
}
