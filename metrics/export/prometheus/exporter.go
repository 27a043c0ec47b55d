// Package prometheus renders engine counters in the Prometheus text
// exposition format without pulling in a client library.
package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	authkit "github.com/sorguskor/authkit"
)

type metricsSource interface {
	Metrics() *authkit.Metrics
	AuditDropped() uint64
}

// Exporter serves the current counter values as text exposition.
type Exporter struct {
	source metricsSource
}

func NewExporter(engine *authkit.Engine) *Exporter {
	return &Exporter{source: engine}
}

func NewExporterFromSource(source metricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler returns an http.Handler that serves the rendered metrics.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render writes the current metrics in Prometheus text exposition format.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.Metrics().Snapshot()
	dropped := p.source.AuditDropped()

	var b strings.Builder
	b.Grow(4096)

	for _, id := range authkit.MetricIDs() {
		writeCounter(&b, "authkit_"+id.String()+"_total",
			"Authentication engine event counter.", snapshot.Counters[id])
	}
	writeCounter(&b, "authkit_audit_dropped_total",
		"Dropped audit events due to dispatcher backpressure.", dropped)

	return b.String()
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(help)
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteString(" counter\n")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}
