package persist

// metrics.go is a thin Prometheus abstraction so a Plugin works with or
// without metrics: a metricsSink interface with a no-op default and a
// Prometheus-backed implementation behind it.

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metricsSink abstracts the concrete metrics backend (Prometheus vs noop)
// away from the save/load code paths.
type metricsSink interface {
	incSave()
	incLoad()
	incSaveError()
	incLoadError()
	incChecksumFailure()
	incMigration()
	addBytesWritten(n int64)
	addBytesRead(n int64)
}

type noopMetrics struct{}

func (noopMetrics) incSave()                 {}
func (noopMetrics) incLoad()                 {}
func (noopMetrics) incSaveError()            {}
func (noopMetrics) incLoadError()            {}
func (noopMetrics) incChecksumFailure()      {}
func (noopMetrics) incMigration()            {}
func (noopMetrics) addBytesWritten(int64)    {}
func (noopMetrics) addBytesRead(int64)       {}

type promMetrics struct {
	saves            prometheus.Counter
	loads            prometheus.Counter
	saveErrors       prometheus.Counter
	loadErrors       prometheus.Counter
	checksumFailures prometheus.Counter
	migrations       prometheus.Counter
	bytesWritten     prometheus.Counter
	bytesRead        prometheus.Counter
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	pm := &promMetrics{
		saves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pecs", Subsystem: "persist", Name: "saves_total", Help: "Number of World saves completed.",
		}),
		loads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pecs", Subsystem: "persist", Name: "loads_total", Help: "Number of World loads completed.",
		}),
		saveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pecs", Subsystem: "persist", Name: "save_errors_total", Help: "Number of failed saves.",
		}),
		loadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pecs", Subsystem: "persist", Name: "load_errors_total", Help: "Number of failed loads.",
		}),
		checksumFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pecs", Subsystem: "persist", Name: "checksum_failures_total", Help: "Number of footer checksum mismatches detected on load.",
		}),
		migrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pecs", Subsystem: "persist", Name: "migrations_applied_total", Help: "Number of format or component migrations applied during load.",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pecs", Subsystem: "persist", Name: "bytes_written_total", Help: "Total bytes written across all saves.",
		}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pecs", Subsystem: "persist", Name: "bytes_read_total", Help: "Total bytes read across all loads.",
		}),
	}
	reg.MustRegister(pm.saves, pm.loads, pm.saveErrors, pm.loadErrors, pm.checksumFailures, pm.migrations, pm.bytesWritten, pm.bytesRead)
	return pm
}

func (m *promMetrics) incSave()              { m.saves.Inc() }
func (m *promMetrics) incLoad()              { m.loads.Inc() }
func (m *promMetrics) incSaveError()         { m.saveErrors.Inc() }
func (m *promMetrics) incLoadError()         { m.loadErrors.Inc() }
func (m *promMetrics) incChecksumFailure()   { m.checksumFailures.Inc() }
func (m *promMetrics) incMigration()         { m.migrations.Inc() }
func (m *promMetrics) addBytesWritten(n int64) { m.bytesWritten.Add(float64(n)) }
func (m *promMetrics) addBytesRead(n int64)    { m.bytesRead.Add(float64(n)) }

func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
