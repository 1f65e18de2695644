// Package metrics exposes the counters of an import run in the Prometheus
// text format, for the node exporter textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aktin/p21import/internal/model"
)

// Metrics holds the counters of one import run. Each run owns its registry,
// so runs in the same process never share state.
type Metrics struct {
	registry *prometheus.Registry

	RowsTotal     prometheus.Gauge
	RowsValid     prometheus.Gauge
	RowsMatched   prometheus.Gauge
	FactsUploaded *prometheus.CounterVec
	RowsDropped   *prometheus.CounterVec
	Encounters    *prometheus.CounterVec
	PhaseDuration *prometheus.GaugeVec
	LastSuccess   prometheus.Gauge
}

// New creates and registers all metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RowsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "p21import_encounter_rows",
			Help: "Records in fall.csv",
		}),
		RowsValid: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "p21import_encounters_valid",
			Help: "Encounters of fall.csv that passed validation",
		}),
		RowsMatched: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "p21import_encounters_matched",
			Help: "Valid encounters matched with the data warehouse",
		}),
		FactsUploaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "p21import_facts_uploaded_total",
			Help: "Observation facts written, by source file",
		}, []string{"file"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "p21import_rows_dropped_total",
			Help: "Matched records dropped by validation during upload, by source file",
		}, []string{"file"}),
		Encounters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "p21import_encounters_uploaded_total",
			Help: "Encounters uploaded, by outcome (new or updated)",
		}, []string{"outcome"}),
		PhaseDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "p21import_phase_duration_seconds",
			Help: "Duration of the pipeline phases of the last run",
		}, []string{"phase"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "p21import_last_success_timestamp_seconds",
			Help: "Unix time of the last successful import",
		}),
	}

	m.registry.MustRegister(
		m.RowsTotal,
		m.RowsValid,
		m.RowsMatched,
		m.FactsUploaded,
		m.RowsDropped,
		m.Encounters,
		m.PhaseDuration,
		m.LastSuccess,
	)

	return m
}

// Registry returns the registry holding the run metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records the outcome of a successful run.
func (m *Metrics) Observe(s *model.ImportSummary) {
	m.RowsTotal.Set(float64(s.TotalRows))
	m.RowsValid.Set(float64(s.ValidRows))
	m.RowsMatched.Set(float64(s.MatchedRows))
	for kind, n := range s.FactsByKind {
		m.FactsUploaded.WithLabelValues(kind.FileName()).Add(float64(n))
	}
	for kind, n := range s.DroppedByKind {
		m.RowsDropped.WithLabelValues(kind.FileName()).Add(float64(n))
	}
	m.Encounters.WithLabelValues("new").Add(float64(s.NewEncounters))
	m.Encounters.WithLabelValues("updated").Add(float64(s.UpdatedEncounters))
	m.PhaseDuration.WithLabelValues("validate").Set(s.DurationValidate.Seconds())
	m.PhaseDuration.WithLabelValues("match").Set(s.DurationMatch.Seconds())
	m.PhaseDuration.WithLabelValues("upload").Set(s.DurationUpload.Seconds())
	m.PhaseDuration.WithLabelValues("total").Set(s.DurationTotal.Seconds())
	m.LastSuccess.SetToCurrentTime()
}

// WriteTextfile writes all metrics to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
