package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TaxonomyMetrics tracks eBird taxonomy imports and record backups
type TaxonomyMetrics struct {
	importRecordsTotal *prometheus.CounterVec
	importDuration     prometheus.Histogram
	backupOpsTotal     *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewTaxonomyMetrics creates and registers new import and backup metrics
func NewTaxonomyMetrics(registry prometheus.Registerer) (*TaxonomyMetrics, error) {
	m := &TaxonomyMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *TaxonomyMetrics) initMetrics() {
	m.importRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "taxonomy",
			Name:      "import_records_total",
			Help:      "Taxonomy entries processed by the importer",
		},
		[]string{"result"}, // created, updated, skipped, failed
	)

	m.importDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "taxonomy",
			Name:      "import_duration_seconds",
			Help:      "Time taken for a complete taxonomy import",
			Buckets:   prometheus.ExponentialBuckets(0.1, BucketFactor2, 12),
		},
	)

	m.backupOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "backup",
			Name:      "operations_total",
			Help:      "Total number of backup operations",
		},
		[]string{"operation", "status"},
	)

	m.collectors = []prometheus.Collector{m.importRecordsTotal, m.importDuration, m.backupOpsTotal}
}

// Describe implements the Collector interface
func (m *TaxonomyMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *TaxonomyMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordImportRecords adds n processed entries with the given result.
func (m *TaxonomyMetrics) RecordImportRecords(result string, n int) {
	if n <= 0 {
		return
	}
	m.importRecordsTotal.WithLabelValues(result).Add(float64(n))
}

// RecordImportDuration records a finished import run.
func (m *TaxonomyMetrics) RecordImportDuration(d time.Duration) {
	m.importDuration.Observe(d.Seconds())
}

// RecordBackupOperation records an export, store or restore.
func (m *TaxonomyMetrics) RecordBackupOperation(operation, status string) {
	m.backupOpsTotal.WithLabelValues(operation, status).Inc()
}
