// Package telemetry counts generation calls and evidence sizes for one run
// and writes them in the Prometheus text format, e.g. for the node-exporter
// textfile collector.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ppiankov/opslens/internal/llm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Recorder owns a private registry so runs never touch the global one.
type Recorder struct {
	reg *prometheus.Registry

	generations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	evidence    *prometheus.HistogramVec
	reports     *prometheus.CounterVec
}

// NewRecorder registers the opslens metrics on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opslens_generations_total",
			Help: "Generation calls by tool and outcome.",
		}, []string{"tool", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opslens_generation_duration_seconds",
			Help:    "Latency of generation calls.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"tool"}),
		evidence: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opslens_evidence_chars",
			Help:    "Size of extracted evidence passed to prompts.",
			Buckets: prometheus.ExponentialBuckets(100, 2, 8),
		}, []string{"tool"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opslens_reports_total",
			Help: "Reports produced by tool.",
		}, []string{"tool"}),
	}
	r.reg.MustRegister(r.generations, r.duration, r.evidence, r.reports)
	return r
}

// Instrument wraps g so every call is counted and timed under tool.
func (r *Recorder) Instrument(g llm.Generator, tool string) llm.Generator {
	return instrumented{next: g, tool: tool, rec: r}
}

// ObserveEvidence records the rune count of an evidence excerpt.
func (r *Recorder) ObserveEvidence(tool string, chars int) {
	r.evidence.WithLabelValues(tool).Observe(float64(chars))
}

// CountReport records one produced report.
func (r *Recorder) CountReport(tool string) {
	r.reports.WithLabelValues(tool).Inc()
}

// WriteTextfile atomically writes all metrics to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// Write renders all metrics in the text exposition format.
func (r *Recorder) Write(w io.Writer) error {
	families, err := r.reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}

type instrumented struct {
	next llm.Generator
	tool string
	rec  *Recorder
}

func (i instrumented) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := i.next.Complete(ctx, prompt)
	i.rec.duration.WithLabelValues(i.tool).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	i.rec.generations.WithLabelValues(i.tool, outcome).Inc()
	return out, err
}
